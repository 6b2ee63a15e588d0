package export

import (
	"testing"

	"github.com/adaeze-okafor/stats-exporter/constants"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(constants.FormatJSON, &stubExporter{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.Resolve(constants.FormatJSON); !ok {
		t.Error("registered format should resolve")
	}
	if _, ok := r.Resolve(constants.FormatPDF); ok {
		t.Error("unregistered format must not resolve")
	}
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(constants.FormatJSON, nil); err == nil {
		t.Error("nil exporter should be rejected")
	}
	if err := r.Register(constants.FormatJSON, &stubExporter{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(constants.FormatJSON, &stubExporter{}); err == nil {
		t.Error("duplicate registration should be rejected")
	}
}

func TestRegistryFormatsSorted(t *testing.T) {
	r := NewRegistry()
	for _, f := range []constants.Format{constants.FormatXLSX, constants.FormatCSV, constants.FormatJSON} {
		if err := r.Register(f, &stubExporter{}); err != nil {
			t.Fatalf("register %s: %v", f, err)
		}
	}

	got := r.Formats()
	want := []constants.Format{constants.FormatCSV, constants.FormatJSON, constants.FormatXLSX}
	if len(got) != len(want) {
		t.Fatalf("expected %d formats, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("formats[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
