package export

import (
	"errors"
	"testing"
	"time"

	"github.com/adaeze-okafor/stats-exporter/constants"
)

func testJob() *Job {
	return newJob(constants.FormatJSON, constants.PersonaGeneral, "", "metrics", map[string]any{"k": "v"}, DefaultSettings(), nil)
}

func TestNewJobDefaults(t *testing.T) {
	j := testJob()

	if j.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("job ID should be assigned")
	}
	if j.Status != constants.JobStatusPending {
		t.Errorf("expected PENDING, got %s", j.Status)
	}
	if j.Progress != 0 {
		t.Errorf("expected progress 0, got %f", j.Progress)
	}
	if j.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
	if j.StartedAt != nil || j.CompletedAt != nil {
		t.Error("timestamps should be unset before dispatch")
	}
}

func TestJobDispatchTransition(t *testing.T) {
	j := testJob()

	if !j.markDispatched() {
		t.Fatal("dispatch of a pending job should succeed")
	}
	if j.Status != constants.JobStatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", j.Status)
	}
	if j.StartedAt == nil {
		t.Error("started_at should be set at dispatch")
	}
	if j.Progress != 0.1 {
		t.Errorf("expected progress 0.1 at dispatch, got %f", j.Progress)
	}

	if j.markDispatched() {
		t.Error("dispatching twice should fail")
	}
}

func TestJobCompleteTransition(t *testing.T) {
	j := testJob()
	j.markDispatched()

	if !j.markCompleted("/tmp/report.json", 123) {
		t.Fatal("completing a running job should succeed")
	}
	if j.Status != constants.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", j.Status)
	}
	if j.FilePath != "/tmp/report.json" || j.FileSize != 123 {
		t.Errorf("artifact fields not recorded: %s %d", j.FilePath, j.FileSize)
	}
	if j.Progress != 1.0 {
		t.Errorf("expected progress 1.0, got %f", j.Progress)
	}
	if j.CompletedAt == nil {
		t.Error("completed_at should be set")
	}

	if j.markCompleted("/tmp/other.json", 1) {
		t.Error("completing a terminal job should fail")
	}
	if j.markFailed(errors.New("late")) {
		t.Error("failing a terminal job should fail")
	}
	if j.markCancelled() {
		t.Error("cancelling a terminal job should fail")
	}
}

func TestJobFailTransition(t *testing.T) {
	j := testJob()
	j.markDispatched()

	if !j.markFailed(errors.New("bad template")) {
		t.Fatal("failing a running job should succeed")
	}
	if j.Status != constants.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", j.Status)
	}
	if j.ErrorMessage != "bad template" {
		t.Errorf("expected error message recorded, got %q", j.ErrorMessage)
	}
	if j.CompletedAt == nil {
		t.Error("completed_at should be set on failure")
	}
	if j.FilePath != "" {
		t.Error("failed job should carry no artifact path")
	}
}

func TestJobCancelPending(t *testing.T) {
	j := testJob()

	if !j.markCancelled() {
		t.Fatal("cancelling a pending job should succeed")
	}
	if j.Status != constants.JobStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", j.Status)
	}
	if j.StartedAt != nil {
		t.Error("a never-dispatched job should have no started_at")
	}
	if j.CompletedAt == nil {
		t.Error("cancelled job should record completed_at")
	}
	if j.ProcessingTime() != 0 {
		t.Error("processing time should be zero without started_at")
	}

	if j.markDispatched() {
		t.Error("a cancelled job must not dispatch")
	}
}

func TestJobCancelFiresRunContext(t *testing.T) {
	j := testJob()
	j.markDispatched()

	fired := false
	j.setCancel(func() { fired = true })

	if !j.markCancelled() {
		t.Fatal("cancelling a running job should succeed")
	}
	if !fired {
		t.Error("cancel handle should fire for a running job")
	}
	if j.Status != constants.JobStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", j.Status)
	}
}

func TestProgressRescaling(t *testing.T) {
	j := testJob()
	j.markDispatched()

	j.reportProgress(0)
	if j.Progress != 0.2 {
		t.Errorf("expected 0.2 at exporter start, got %f", j.Progress)
	}

	j.reportProgress(0.5)
	if j.Progress < 0.54 || j.Progress > 0.56 {
		t.Errorf("expected ~0.55 at half, got %f", j.Progress)
	}

	j.reportProgress(1)
	if j.Progress < 0.89 || j.Progress > 0.91 {
		t.Errorf("expected ~0.9 at exporter end, got %f", j.Progress)
	}
}

func TestProgressClampAndMonotonic(t *testing.T) {
	j := testJob()
	j.markDispatched()

	j.reportProgress(2) // clamps to 1 -> 0.9
	if j.Progress < 0.89 || j.Progress > 0.91 {
		t.Errorf("expected clamp to ~0.9, got %f", j.Progress)
	}

	j.reportProgress(0.1) // lower report must not regress
	if j.Progress < 0.89 {
		t.Errorf("progress regressed to %f", j.Progress)
	}

	j.reportProgress(-5) // clamps to 0 -> 0.2, still below current
	if j.Progress < 0.89 {
		t.Errorf("progress regressed to %f", j.Progress)
	}
}

func TestProgressIgnoredWhenTerminal(t *testing.T) {
	j := testJob()
	j.markDispatched()
	j.markCompleted("/tmp/x", 1)

	j.reportProgress(0.5)
	if j.Progress != 1.0 {
		t.Errorf("terminal progress must stay 1.0, got %f", j.Progress)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	j := newJob(constants.FormatXLSX, constants.PersonaExecutive, "revenue", "metrics",
		map[string]any{"k": "v"}, DefaultSettings(), map[string]any{"limit_rows": 5})
	j.Metadata["origin"] = "test"

	snap := j.Snapshot()

	j.markDispatched()
	j.markCompleted("/tmp/x", 10)

	if snap.Status != constants.JobStatusPending {
		t.Errorf("snapshot mutated: %s", snap.Status)
	}
	if snap.FilePath != "" {
		t.Error("snapshot mutated: file path leaked")
	}

	snap.Options["limit_rows"] = 99
	snap.Metadata["origin"] = "other"
	if j.Options["limit_rows"] != 5 {
		t.Error("options not deep-copied")
	}
	if j.Metadata["origin"] != "test" {
		t.Error("metadata not deep-copied")
	}
}

func TestProcessingTime(t *testing.T) {
	j := testJob()
	j.markDispatched()

	start := *j.StartedAt
	end := start.Add(250 * time.Millisecond)
	j.mu.Lock()
	j.CompletedAt = &end
	j.mu.Unlock()

	if got := j.ProcessingTime(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", got)
	}
}
