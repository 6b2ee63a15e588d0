package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/adaeze-okafor/stats-exporter/constants"
	"github.com/adaeze-okafor/stats-exporter/internal/common"
)

// Manager is the façade over the job store, the scheduler and the exporter
// registry: job creation, status and statistics queries, cancellation,
// explicit deletes and retention cleanup. Every public entry point is
// non-blocking; the only place that waits on I/O is a worker goroutine.
type Manager struct {
	store    *JobStore
	sched    *scheduler
	registry *Registry
	themes   *Themes
	logger   *slog.Logger

	outputDir     string
	maxConcurrent int
	maxPending    int
	jobTimeout    time.Duration
}

type Option func(*Manager)

func WithMaxConcurrentJobs(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

func WithMaxPendingJobs(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPending = n
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.jobTimeout = d
		}
	}
}

func WithOutputDir(dir string) Option {
	return func(m *Manager) {
		if dir != "" {
			m.outputDir = dir
		}
	}
}

func WithThemes(t *Themes) Option {
	return func(m *Manager) {
		if t != nil {
			m.themes = t
		}
	}
}

// NewManager builds a manager around an injected registry. The output
// directory is created eagerly so an unwritable location fails at startup
// rather than inside the first worker.
func NewManager(registry *Registry, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if registry == nil {
		return nil, fmt.Errorf("nil exporter registry")
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		store:         NewJobStore(),
		registry:      registry,
		themes:        &Themes{presets: map[string]Settings{}},
		logger:        logger,
		outputDir:     "./exports",
		maxConcurrent: 3,
		maxPending:    64,
		jobTimeout:    10 * time.Minute,
	}
	for _, o := range opts {
		o(m)
	}

	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	m.sched = newScheduler(m.store, m.registry, m.logger, m.outputDir, m.maxConcurrent, m.maxPending, m.jobTimeout)
	return m, nil
}

// CreateRequest carries one export submission.
type CreateRequest struct {
	Format   string
	Persona  string
	View     string
	DataRef  string
	Data     any
	Theme    string
	Settings *Settings
	Options  map[string]any
	Metadata map[string]string
}

// CreateExportJob validates the request, stores a PENDING job and enqueues
// it. It returns a snapshot immediately; rendering happens on a worker. An
// unknown format, invalid options or a full queue reject synchronously and
// leave no job behind.
func (m *Manager) CreateExportJob(req CreateRequest) (*Job, error) {
	format, ok := constants.CanonicalizeFormat(req.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, req.Format)
	}
	if _, ok := m.registry.Resolve(format); !ok {
		return nil, fmt.Errorf("%w: no exporter registered for %q", ErrUnknownFormat, format)
	}

	v := common.NewValidator()
	v.Field("data_ref", req.DataRef, common.Required)
	v.Field("view", req.View, func(name string, value interface{}) *common.ValidationError {
		return common.MaxLength(name, value, 120)
	})
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if req.Data == nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "data bundle is required", common.ErrInvalidInput)
	}
	if err := ValidateOptions(req.Options); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", err.Error(), common.ErrInvalidInput)
	}

	var settings Settings
	themeApplied := false
	if req.Settings != nil {
		settings = req.Settings.Clone()
	} else {
		settings, themeApplied = m.themes.Resolve(req.Theme)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	persona := constants.CanonicalizePersona(req.Persona)
	j := newJob(format, persona, req.View, req.DataRef, req.Data, settings, req.Options)
	for k, val := range req.Metadata {
		j.Metadata[k] = val
	}
	if req.Theme != "" && themeApplied {
		j.Metadata["theme"] = req.Theme
	}

	m.store.Add(j)
	if err := m.sched.enqueue(j.ID); err != nil {
		m.store.Remove(j.ID)
		return nil, err
	}

	m.logger.Info("export.job.created",
		"job_id", j.ID,
		"format", format,
		"persona", persona,
		"view", req.View,
		"data_ref", req.DataRef,
	)
	return j.Snapshot(), nil
}

// GetJobStatus returns a read-only snapshot, safe from any goroutine.
func (m *Manager) GetJobStatus(id uuid.UUID) (*Job, error) {
	j, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j.Snapshot(), nil
}

// GetAllJobs returns snapshots of every stored job, newest first.
func (m *Manager) GetAllJobs() []*Job {
	jobs := m.store.All()
	out := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// GetRecentJobs returns snapshots of jobs created within the last N hours,
// newest first.
func (m *Manager) GetRecentJobs(hours int) []*Job {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	all := m.GetAllJobs()
	out := make([]*Job, 0, len(all))
	for _, j := range all {
		if j.CreatedAt.After(cutoff) {
			out = append(out, j)
		}
	}
	return out
}

// CancelJob cancels a PENDING or IN_PROGRESS job. A pending job is removed
// from the queue and will never run. A running job is terminal in the ledger
// immediately; its exporter keeps executing until it observes the cancelled
// context. Terminal jobs return ErrNotCancellable, unknown ids ErrJobNotFound.
func (m *Manager) CancelJob(id uuid.UUID) error {
	j, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if !j.markCancelled() {
		return fmt.Errorf("%w: %s is %s", ErrNotCancellable, id, j.CurrentStatus())
	}
	// Drop the queue entry if it had not been popped yet; if it had, the
	// dispatch guard skips the job.
	m.sched.removePending(id)

	m.logger.Info("export.job.cancelled", "job_id", id)
	return nil
}

// DeleteJob removes a terminal job from the ledger, optionally deleting its
// artifact. Pending and running jobs are refused.
func (m *Manager) DeleteJob(id uuid.UUID, removeFile bool) error {
	j, ok := m.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	status, _, filePath := j.terminalInfo()
	if !status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobNotTerminal, id, status)
	}

	m.store.Remove(id)
	if removeFile && filePath != "" {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to delete artifact", "job_id", id, "path", filePath, "error", err)
		}
	}
	m.logger.Info("export.job.deleted", "job_id", id, "remove_file", removeFile)
	return nil
}

// CleanupOldJobs removes COMPLETED and FAILED jobs whose completed_at is
// older than the retention window, deleting artifacts best-effort. PENDING,
// IN_PROGRESS and CANCELLED jobs are never touched regardless of age;
// cancelled records stay until an explicit delete. Returns the number of
// jobs removed.
func (m *Manager) CleanupOldJobs(days int) int {
	if days <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	removed := 0
	for _, j := range m.store.All() {
		status, completedAt, filePath := j.terminalInfo()
		if status != constants.JobStatusCompleted && status != constants.JobStatusFailed {
			continue
		}
		if completedAt == nil || !completedAt.Before(cutoff) {
			continue
		}

		m.store.Remove(j.ID)
		removed++
		if filePath != "" {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("cleanup could not delete artifact", "job_id", j.ID, "path", filePath, "error", err)
			}
		}
	}

	if removed > 0 {
		m.logger.Info("export.cleanup.done", "removed", removed, "retention_days", days)
	}
	return removed
}

// GetExportStatistics aggregates over every stored job.
func (m *Manager) GetExportStatistics() Statistics {
	stats := computeStatistics(m.GetAllJobs())
	stats.PendingCount, stats.ActiveCount = m.sched.counts()
	return stats
}

// Formats lists the formats with a registered exporter.
func (m *Manager) Formats() []constants.Format {
	return m.registry.Formats()
}

// ThemeNames lists the loaded theme presets.
func (m *Manager) ThemeNames() []string {
	return m.themes.Names()
}

// MimeTypeFor returns the registered exporter's MIME type for a format.
func (m *Manager) MimeTypeFor(format constants.Format) (string, bool) {
	exp, ok := m.registry.Resolve(format)
	if !ok {
		return "", false
	}
	return exp.MimeType(), true
}

// Shutdown stops admitting new jobs and waits for active workers until ctx
// expires. Nothing is cancelled; pending jobs simply never dispatch.
func (m *Manager) Shutdown(ctx context.Context) {
	m.sched.shutdown(ctx)
}
