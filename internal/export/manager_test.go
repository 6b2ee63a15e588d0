package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/adaeze-okafor/stats-exporter/constants"
)

// stubExporter is a controllable exporter: it can block on a gate channel,
// fail, panic, or write a small artifact and succeed.
type stubExporter struct {
	ext     string
	started chan uuid.UUID
	gate    chan struct{}
	fail    error
	panics  bool
}

func (f *stubExporter) FileExtension() string {
	if f.ext == "" {
		return ".out"
	}
	return f.ext
}

func (f *stubExporter) MimeType() string { return "application/octet-stream" }

func (f *stubExporter) Export(ctx context.Context, req *Request) (string, error) {
	if f.started != nil {
		f.started <- req.JobID
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.panics {
		panic("stub exploded")
	}
	if f.fail != nil {
		return "", f.fail
	}
	req.Progress(1.0)
	if err := os.WriteFile(req.OutputPath, []byte("artifact"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, exporters map[constants.Format]Exporter, opts ...Option) *Manager {
	t.Helper()
	registry := NewRegistry()
	for format, exp := range exporters {
		if err := registry.Register(format, exp); err != nil {
			t.Fatalf("register %s: %v", format, err)
		}
	}
	base := []Option{
		WithOutputDir(t.TempDir()),
		WithMaxConcurrentJobs(2),
		WithJobTimeout(5 * time.Second),
	}
	m, err := NewManager(registry, discardLogger(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func submitJob(t *testing.T, m *Manager, format string) *Job {
	t.Helper()
	j, err := m.CreateExportJob(CreateRequest{
		Format:  format,
		DataRef: "metrics",
		Data:    map[string]any{"k": "v"},
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

// waitForStatus polls until the job reaches want or lands on a different
// terminal status, which fails the test.
func waitForStatus(t *testing.T, m *Manager, id uuid.UUID, want constants.JobStatus, timeout time.Duration) *Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := m.GetJobStatus(id)
		if err != nil {
			t.Fatalf("status %s: %v", id, err)
		}
		if j.Status == want {
			return j
		}
		if j.Status.IsTerminal() {
			t.Fatalf("job %s reached %s, want %s (error=%q)", id, j.Status, want, j.ErrorMessage)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach %s within %s", id, want, timeout)
	return nil
}

func TestCreateExportJobUnknownFormat(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	_, err := m.CreateExportJob(CreateRequest{Format: "docx", DataRef: "metrics", Data: map[string]any{}})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if got := len(m.GetAllJobs()); got != 0 {
		t.Errorf("rejected submission must leave no job, found %d", got)
	}
}

func TestCreateExportJobUnregisteredFormat(t *testing.T) {
	// csv is a known format, but nothing is registered for it.
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	_, err := m.CreateExportJob(CreateRequest{Format: "csv", DataRef: "metrics", Data: map[string]any{}})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestCreateExportJobValidation(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	if _, err := m.CreateExportJob(CreateRequest{Format: "json", Data: map[string]any{}}); err == nil {
		t.Error("missing data_ref should be rejected")
	}
	if _, err := m.CreateExportJob(CreateRequest{Format: "json", DataRef: "metrics"}); err == nil {
		t.Error("nil data should be rejected")
	}
	if got := len(m.GetAllJobs()); got != 0 {
		t.Errorf("rejected submissions must leave no jobs, found %d", got)
	}
}

func TestCreateExportJobInvalidOptions(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	cases := []map[string]any{
		{"bogus": 1},               // unknown key
		{"limit_rows": 0},          // below minimum
		{"chart_kind": "scatter"},  // not in enum
		{"table": ""},              // too short
		{"include_summaries": "y"}, // wrong type
	}
	for _, options := range cases {
		if _, err := m.CreateExportJob(CreateRequest{
			Format: "json", DataRef: "metrics", Data: map[string]any{}, Options: options,
		}); err == nil {
			t.Errorf("options %v should be rejected", options)
		}
	}
}

func TestExportJobCompletes(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{ext: ".json"}})

	j := submitJob(t, m, "json")
	if j.Status != constants.JobStatusPending {
		t.Errorf("snapshot at creation should be PENDING, got %s", j.Status)
	}

	done := waitForStatus(t, m, j.ID, constants.JobStatusCompleted, 2*time.Second)
	if done.FilePath == "" {
		t.Fatal("completed job must carry the artifact path")
	}
	if done.FileSize != int64(len("artifact")) {
		t.Errorf("expected file size %d, got %d", len("artifact"), done.FileSize)
	}
	if done.Progress != 1.0 {
		t.Errorf("expected progress 1.0, got %f", done.Progress)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("completed job must carry both timestamps")
	}
	if filepath.Ext(done.FilePath) != ".json" {
		t.Errorf("artifact should use the exporter extension, got %s", done.FilePath)
	}
	if _, err := os.Stat(done.FilePath); err != nil {
		t.Errorf("artifact missing on disk: %v", err)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	started := make(chan uuid.UUID, 8)
	gate := make(chan struct{})
	stub := &stubExporter{started: started, gate: gate}
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: stub},
		WithMaxConcurrentJobs(2))

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, submitJob(t, m, "json").ID)
	}

	// Exactly two workers may start.
	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatalf("worker %d did not start", i+1)
		}
	}
	select {
	case id := <-started:
		t.Fatalf("third worker started while two were running: %s", id)
	case <-time.After(50 * time.Millisecond):
	}

	pending, active := m.sched.counts()
	if active != 2 || pending != 3 {
		t.Fatalf("expected 2 active / 3 pending, got %d / %d", active, pending)
	}

	// Releasing the gate drains the whole backlog without new submissions.
	close(gate)
	for _, id := range ids {
		waitForStatus(t, m, id, constants.JobStatusCompleted, 2*time.Second)
	}
}

func TestQueueFullRejection(t *testing.T) {
	started := make(chan uuid.UUID, 4)
	gate := make(chan struct{})
	stub := &stubExporter{started: started, gate: gate}
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: stub},
		WithMaxConcurrentJobs(1), WithMaxPendingJobs(2))

	blocker := submitJob(t, m, "json")
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("blocker did not start")
	}

	submitJob(t, m, "json")
	submitJob(t, m, "json")

	_, err := m.CreateExportJob(CreateRequest{Format: "json", DataRef: "metrics", Data: map[string]any{}})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if got := len(m.GetAllJobs()); got != 3 {
		t.Errorf("rejected job must not be stored, have %d jobs", got)
	}

	close(gate)
	waitForStatus(t, m, blocker.ID, constants.JobStatusCompleted, 2*time.Second)
}

func TestCancelPendingJobNeverRuns(t *testing.T) {
	started := make(chan uuid.UUID, 4)
	gate := make(chan struct{})
	stub := &stubExporter{started: started, gate: gate}
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: stub},
		WithMaxConcurrentJobs(1))

	blocker := submitJob(t, m, "json")
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("blocker did not start")
	}

	queued := submitJob(t, m, "json")
	if err := m.CancelJob(queued.ID); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}

	got, err := m.GetJobStatus(queued.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != constants.JobStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}
	if got.StartedAt != nil {
		t.Error("cancelled pending job must not have started")
	}
	if pending, _ := m.sched.counts(); pending != 0 {
		t.Errorf("cancelled job should leave the queue, pending=%d", pending)
	}

	close(gate)
	waitForStatus(t, m, blocker.ID, constants.JobStatusCompleted, 2*time.Second)

	// The worker freed by the blocker must not pick up the cancelled job.
	select {
	case id := <-started:
		if id == queued.ID {
			t.Fatal("cancelled job was dispatched")
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan uuid.UUID, 2)
	gate := make(chan struct{}) // never closed; only ctx unblocks the stub
	stub := &stubExporter{started: started, gate: gate}
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: stub})

	j := submitJob(t, m, "json")
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job did not start")
	}

	if err := m.CancelJob(j.ID); err != nil {
		t.Fatalf("cancel running: %v", err)
	}

	// The record is terminal immediately, before the worker unwinds.
	got, err := m.GetJobStatus(j.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != constants.JobStatusCancelled {
		t.Fatalf("expected CANCELLED right after cancel, got %s", got.Status)
	}

	// The worker observes the cancelled context and releases its slot without
	// overwriting the terminal status.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, active := m.sched.counts(); active == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker slot was not released after cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, _ = m.GetJobStatus(j.ID)
	if got.Status != constants.JobStatusCancelled {
		t.Errorf("status changed after worker unwound: %s", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Errorf("cancellation must not record an exporter error, got %q", got.ErrorMessage)
	}
}

func TestCancelErrors(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	if err := m.CancelJob(uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}

	j := submitJob(t, m, "json")
	waitForStatus(t, m, j.ID, constants.JobStatusCompleted, 2*time.Second)
	if err := m.CancelJob(j.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable for a completed job, got %v", err)
	}
}

func TestExporterErrorContained(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{
		constants.FormatCSV:  &stubExporter{fail: errors.New("bad template")},
		constants.FormatJSON: &stubExporter{},
	})

	failed := submitJob(t, m, "csv")
	got := waitForStatus(t, m, failed.ID, constants.JobStatusFailed, 2*time.Second)
	if got.ErrorMessage != "bad template" {
		t.Errorf("expected exporter error recorded, got %q", got.ErrorMessage)
	}
	if got.FilePath != "" {
		t.Error("failed job must not carry an artifact path")
	}
	if got.CompletedAt == nil {
		t.Error("failed job must carry completed_at")
	}

	// The pool keeps serving after a failure.
	ok := submitJob(t, m, "json")
	waitForStatus(t, m, ok.ID, constants.JobStatusCompleted, 2*time.Second)
}

func TestExporterPanicContained(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{panics: true}})

	j := submitJob(t, m, "json")
	got := waitForStatus(t, m, j.ID, constants.JobStatusFailed, 2*time.Second)
	if got.ErrorMessage == "" {
		t.Fatal("panic must be captured into the job record")
	}
	if want := "exporter panic"; !strings.Contains(got.ErrorMessage, want) {
		t.Errorf("expected %q in error, got %q", want, got.ErrorMessage)
	}
}

func TestJobTimeout(t *testing.T) {
	gate := make(chan struct{}) // never closed; the deadline unblocks the stub
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{gate: gate}},
		WithJobTimeout(50*time.Millisecond))

	j := submitJob(t, m, "json")
	got := waitForStatus(t, m, j.ID, constants.JobStatusFailed, 2*time.Second)
	if !strings.Contains(got.ErrorMessage, "timed out") {
		t.Errorf("expected timeout in error message, got %q", got.ErrorMessage)
	}
}

func TestDeleteJob(t *testing.T) {
	started := make(chan uuid.UUID, 2)
	gate := make(chan struct{})
	stub := &stubExporter{started: started, gate: gate}
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: stub})

	running := submitJob(t, m, "json")
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job did not start")
	}
	if err := m.DeleteJob(running.ID, false); !errors.Is(err, ErrJobNotTerminal) {
		t.Errorf("expected ErrJobNotTerminal for a running job, got %v", err)
	}

	close(gate)
	done := waitForStatus(t, m, running.ID, constants.JobStatusCompleted, 2*time.Second)

	if err := m.DeleteJob(running.ID, true); err != nil {
		t.Fatalf("delete terminal job: %v", err)
	}
	if _, err := m.GetJobStatus(running.ID); !errors.Is(err, ErrJobNotFound) {
		t.Error("deleted job should be gone from the ledger")
	}
	if _, err := os.Stat(done.FilePath); !os.IsNotExist(err) {
		t.Errorf("artifact should be deleted, stat err=%v", err)
	}

	if err := m.DeleteJob(uuid.New(), false); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

// seedJob inserts a hand-built job so retention and statistics paths can be
// exercised without timing games.
func seedJob(m *Manager, status constants.JobStatus, completedAgo time.Duration, fileSize int64, filePath string) *Job {
	j := newJob(constants.FormatJSON, constants.PersonaGeneral, "", "metrics", map[string]any{}, DefaultSettings(), nil)
	j.Status = status
	if status != constants.JobStatusPending {
		started := time.Now().UTC().Add(-completedAgo - time.Minute)
		j.StartedAt = &started
	}
	if status.IsTerminal() {
		completed := time.Now().UTC().Add(-completedAgo)
		j.CompletedAt = &completed
	}
	j.FileSize = fileSize
	j.FilePath = filePath
	m.store.Add(j)
	return j
}

func TestCleanupOldJobs(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	artifact := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(artifact, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	oldCompleted := seedJob(m, constants.JobStatusCompleted, 10*24*time.Hour, 1, artifact)
	oldFailed := seedJob(m, constants.JobStatusFailed, 9*24*time.Hour, 0, "")
	oldCancelled := seedJob(m, constants.JobStatusCancelled, 30*24*time.Hour, 0, "")
	freshCompleted := seedJob(m, constants.JobStatusCompleted, time.Hour, 1, "")
	pending := seedJob(m, constants.JobStatusPending, 0, 0, "")
	running := seedJob(m, constants.JobStatusInProgress, 0, 0, "")

	removed := m.CleanupOldJobs(7)
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}

	for _, gone := range []uuid.UUID{oldCompleted.ID, oldFailed.ID} {
		if _, err := m.GetJobStatus(gone); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("job %s should have been removed", gone)
		}
	}
	for _, kept := range []uuid.UUID{oldCancelled.ID, freshCompleted.ID, pending.ID, running.ID} {
		if _, err := m.GetJobStatus(kept); err != nil {
			t.Errorf("job %s should have been kept: %v", kept, err)
		}
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Errorf("old artifact should be deleted, stat err=%v", err)
	}

	if m.CleanupOldJobs(0) != 0 {
		t.Error("non-positive retention must remove nothing")
	}
}

func TestStatisticsAggregation(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	seedJob(m, constants.JobStatusCompleted, time.Hour, 100, "")
	seedJob(m, constants.JobStatusCompleted, time.Hour, 200, "")
	seedJob(m, constants.JobStatusFailed, time.Hour, 50, "") // size ignored for failed
	seedJob(m, constants.JobStatusPending, 0, 0, "")

	stats := m.GetExportStatistics()
	if stats.TotalJobs != 4 {
		t.Errorf("expected 4 jobs, got %d", stats.TotalJobs)
	}
	if stats.ByStatus[constants.JobStatusCompleted] != 2 {
		t.Errorf("expected 2 completed, got %d", stats.ByStatus[constants.JobStatusCompleted])
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("expected success rate 0.5, got %f", stats.SuccessRate)
	}
	if stats.TotalFileSize != 300 {
		t.Errorf("file size must sum completed jobs only, got %d", stats.TotalFileSize)
	}
	if stats.ByFormat[constants.FormatJSON] != 4 {
		t.Errorf("expected 4 json jobs, got %d", stats.ByFormat[constants.FormatJSON])
	}
	if stats.AvgProcessingMS <= 0 {
		t.Errorf("expected positive average processing time, got %d", stats.AvgProcessingMS)
	}
}

func TestGetRecentJobs(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	old := seedJob(m, constants.JobStatusCompleted, time.Hour, 0, "")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := seedJob(m, constants.JobStatusCompleted, time.Hour, 0, "")

	recent := m.GetRecentJobs(24)
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent job, got %d", len(recent))
	}
	if recent[0].ID != fresh.ID {
		t.Error("wrong job returned for the recent window")
	}

	all := m.GetAllJobs()
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Error("jobs should be newest first")
	}
}

func TestShutdownRejectsNewJobs(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}})

	j := submitJob(t, m, "json")
	waitForStatus(t, m, j.ID, constants.JobStatusCompleted, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Shutdown(ctx)

	_, err := m.CreateExportJob(CreateRequest{Format: "json", DataRef: "metrics", Data: map[string]any{}})
	if !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
	if got := len(m.GetAllJobs()); got != 1 {
		t.Errorf("rejected job must be rolled back, have %d", got)
	}
}

func TestChainedDrainCompletesBacklog(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatJSON: &stubExporter{}},
		WithMaxConcurrentJobs(2), WithMaxPendingJobs(32))

	var ids []uuid.UUID
	for i := 0; i < 10; i++ {
		ids = append(ids, submitJob(t, m, "json").ID)
	}
	for _, id := range ids {
		waitForStatus(t, m, id, constants.JobStatusCompleted, 5*time.Second)
	}

	pending, active := m.sched.counts()
	if pending != 0 || active != 0 {
		t.Errorf("queue should be drained, pending=%d active=%d", pending, active)
	}
}

func TestFormatSynonymAccepted(t *testing.T) {
	m := newTestManager(t, map[constants.Format]Exporter{constants.FormatXLSX: &stubExporter{ext: ".xlsx"}})

	j, err := m.CreateExportJob(CreateRequest{Format: "Excel", DataRef: "metrics", Data: map[string]any{}})
	if err != nil {
		t.Fatalf("synonym submission failed: %v", err)
	}
	if j.Format != constants.FormatXLSX {
		t.Errorf("expected canonical xlsx, got %s", j.Format)
	}
	waitForStatus(t, m, j.ID, constants.JobStatusCompleted, 2*time.Second)
}

