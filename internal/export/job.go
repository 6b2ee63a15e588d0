package export

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adaeze-okafor/stats-exporter/constants"
)

// Job is one accepted export request together with its lifecycle state.
//
// Ownership: the creating goroutine writes it once before it is stored; after
// dispatch exactly one worker mutates it, plus the manager for cancellation.
// Because a running job can be cancelled while its worker is writing, every
// field access goes through the job's mutex.
type Job struct {
	ID      uuid.UUID         `json:"id"`
	Format  constants.Format  `json:"format"`
	Persona constants.Persona `json:"persona"`
	View    string            `json:"view,omitempty"`
	DataRef string            `json:"data_ref"`

	Status       constants.JobStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	FilePath     string              `json:"file_path,omitempty"`
	FileSize     int64               `json:"file_size,omitempty"`
	Progress     float64             `json:"progress"`

	Settings Settings          `json:"settings"`
	Options  map[string]any    `json:"options,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	payload any
	cancel  func()
	mu      sync.RWMutex
}

func newJob(format constants.Format, persona constants.Persona, view, dataRef string, payload any, settings Settings, options map[string]any) *Job {
	return &Job{
		ID:        uuid.New(),
		Format:    format,
		Persona:   persona,
		View:      view,
		DataRef:   dataRef,
		Status:    constants.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		Progress:  0,
		Settings:  settings,
		Options:   options,
		Metadata:  map[string]string{},
		payload:   payload,
	}
}

// CurrentStatus returns the status under the job lock.
func (j *Job) CurrentStatus() constants.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a read-only copy safe to hand to any caller. The payload
// and cancel handle stay behind.
func (j *Job) Snapshot() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := &Job{
		ID:           j.ID,
		Format:       j.Format,
		Persona:      j.Persona,
		View:         j.View,
		DataRef:      j.DataRef,
		Status:       j.Status,
		CreatedAt:    j.CreatedAt,
		ErrorMessage: j.ErrorMessage,
		FilePath:     j.FilePath,
		FileSize:     j.FileSize,
		Progress:     j.Progress,
		Settings:     j.Settings.Clone(),
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.Options != nil {
		out.Options = make(map[string]any, len(j.Options))
		for k, v := range j.Options {
			out.Options[k] = v
		}
	}
	if j.Metadata != nil {
		out.Metadata = make(map[string]string, len(j.Metadata))
		for k, v := range j.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// setCancel stores the cancel handle for the job's run context. Called once
// at dispatch, before the worker goroutine starts the exporter. If a cancel
// won the race between dispatch and here, the handle fires immediately so the
// exporter starts with an already-cancelled context.
func (j *Job) setCancel(cancel func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.IsTerminal() {
		cancel()
		return
	}
	j.cancel = cancel
}

// markDispatched moves PENDING -> IN_PROGRESS, records started_at and bumps
// progress to the accepted marker. Returns false if the job is no longer
// pending (cancelled between pop and dispatch).
func (j *Job) markDispatched() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status != constants.JobStatusPending {
		return false
	}
	now := time.Now().UTC()
	j.Status = constants.JobStatusInProgress
	j.StartedAt = &now
	j.Progress = 0.1
	return true
}

// reportProgress rescales an exporter-reported fraction into the job's
// visible range. The first 20% and last 10% are reserved for orchestration
// bookkeeping. Progress never decreases and never moves a terminal job.
func (j *Job) reportProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	scaled := 0.2 + p*0.7

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status.IsTerminal() {
		return
	}
	if scaled > j.Progress {
		j.Progress = scaled
	}
}

// markCompleted records a successful run. Returns false when the job already
// reached a terminal state (a cancel raced the completion); the artifact is
// then the caller's to clean up.
func (j *Job) markCompleted(filePath string, fileSize int64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status != constants.JobStatusInProgress {
		return false
	}
	now := time.Now().UTC()
	j.Status = constants.JobStatusCompleted
	j.CompletedAt = &now
	j.FilePath = filePath
	j.FileSize = fileSize
	j.Progress = 1.0
	j.cancel = nil
	return true
}

// markFailed records a contained exporter failure. Returns false when the
// job already reached a terminal state.
func (j *Job) markFailed(err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status != constants.JobStatusInProgress {
		return false
	}
	now := time.Now().UTC()
	j.Status = constants.JobStatusFailed
	j.CompletedAt = &now
	j.ErrorMessage = err.Error()
	j.cancel = nil
	return true
}

// markCancelled moves a PENDING or IN_PROGRESS job to CANCELLED and fires the
// run context's cancel handle if one exists. The exporter call, if running,
// keeps executing until it observes the context; the record is terminal
// immediately. Returns false for jobs already terminal.
func (j *Job) markCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status != constants.JobStatusPending && j.Status != constants.JobStatusInProgress {
		return false
	}
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	now := time.Now().UTC()
	j.Status = constants.JobStatusCancelled
	j.CompletedAt = &now
	return true
}

// ProcessingTime returns the started->completed duration for jobs that have
// both timestamps, else zero.
func (j *Job) ProcessingTime() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// terminalInfo reads the fields cleanup and delete decide on, in one lock
// acquisition.
func (j *Job) terminalInfo() (status constants.JobStatus, completedAt *time.Time, filePath string) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.CompletedAt != nil {
		t := *j.CompletedAt
		completedAt = &t
	}
	return j.Status, completedAt, j.FilePath
}
