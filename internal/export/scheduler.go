package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// scheduler is a bounded worker pool over a FIFO pending queue. Draining is
// chained: every finishing worker re-invokes processQueue, so the backlog
// empties without any external polling.
type scheduler struct {
	store    *JobStore
	registry *Registry
	logger   *slog.Logger

	outputDir     string
	maxConcurrent int
	maxPending    int
	jobTimeout    time.Duration

	mu      sync.Mutex
	pending []uuid.UUID
	active  map[uuid.UUID]struct{}
	closed  bool

	wg sync.WaitGroup
}

func newScheduler(store *JobStore, registry *Registry, logger *slog.Logger, outputDir string, maxConcurrent, maxPending int, jobTimeout time.Duration) *scheduler {
	return &scheduler{
		store:         store,
		registry:      registry,
		logger:        logger,
		outputDir:     outputDir,
		maxConcurrent: maxConcurrent,
		maxPending:    maxPending,
		jobTimeout:    jobTimeout,
		active:        make(map[uuid.UUID]struct{}),
	}
}

// enqueue admits a stored job id to the pending queue and kicks the drain.
// Admission is rejected outright when the queue is at capacity; callers roll
// the store back.
func (s *scheduler) enqueue(id uuid.UUID) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	if len(s.pending) >= s.maxPending {
		s.mu.Unlock()
		s.logger.Warn("pending queue at capacity, rejecting job", "job_id", id, "max_pending", s.maxPending)
		return ErrQueueFull
	}
	s.pending = append(s.pending, id)
	s.mu.Unlock()

	s.processQueue()
	return nil
}

// removePending drops an id from the pending list so a cancelled job can
// never be dispatched. Returns false if the id was not queued (already
// popped or never enqueued).
func (s *scheduler) removePending(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// processQueue dispatches pending jobs while worker slots are free. Pops and
// active-set insertion happen atomically under the scheduler mutex; the
// worker itself is spawned outside it.
func (s *scheduler) processQueue() {
	for {
		s.mu.Lock()
		if s.closed || len(s.active) >= s.maxConcurrent || len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		id := s.pending[0]
		s.pending = s.pending[1:]
		s.active[id] = struct{}{}
		s.mu.Unlock()

		j, ok := s.store.Get(id)
		if !ok || !j.markDispatched() {
			// Cancelled (or cleared) between pop and dispatch.
			s.release(id)
			continue
		}

		s.wg.Add(1)
		go s.runJob(j)
	}
}

func (s *scheduler) release(id uuid.UUID) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// runJob drives one dispatched job through its exporter. Exporter failures
// of any kind are captured into the job record and never escape the worker.
func (s *scheduler) runJob(j *Job) {
	defer func() {
		s.release(j.ID)
		s.wg.Done()
		s.processQueue()
	}()

	exp, ok := s.registry.Resolve(j.Format)
	if !ok {
		// Creation already validated the format; this guards a registry
		// mutated after startup.
		j.markFailed(fmt.Errorf("%w: %s", ErrUnknownFormat, j.Format))
		s.logger.Error("exporter missing at dispatch", "job_id", j.ID, "format", j.Format)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	j.setCancel(cancel)

	req := &Request{
		JobID:      j.ID,
		Data:       j.payload,
		Persona:    j.Persona,
		View:       j.View,
		Settings:   j.Settings.Clone(),
		Options:    j.Options,
		OutputPath: filepath.Join(s.outputDir, artifactName(j, exp.FileExtension())),
		Progress:   j.reportProgress,
	}

	s.logger.Info("export.job.dispatched", "job_id", j.ID, "format", j.Format, "persona", j.Persona, "data_ref", j.DataRef)
	start := time.Now()

	path, err := runExporter(ctx, exp, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrJobTimeout, s.jobTimeout, err)
		}
		if j.markFailed(err) {
			s.logger.Error("export.job.failed", "job_id", j.ID, "format", j.Format, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		} else {
			// Job went terminal underneath us (cancelled mid-run).
			s.logger.Info("export.job.cancelled_during_run", "job_id", j.ID, "format", j.Format)
		}
		return
	}

	var size int64
	if fi, statErr := os.Stat(path); statErr == nil {
		size = fi.Size()
	} else {
		s.logger.Warn("completed artifact missing on disk", "job_id", j.ID, "path", path, "error", statErr)
	}

	if !j.markCompleted(path, size) {
		// Cancelled while the exporter was finishing; the artifact is orphaned.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("failed to remove orphaned artifact", "job_id", j.ID, "path", path, "error", rmErr)
		}
		return
	}
	s.logger.Info("export.job.completed", "job_id", j.ID, "format", j.Format, "path", path, "size", size, "elapsed_ms", time.Since(start).Milliseconds())
}

// runExporter invokes the exporter with panic containment, so one misbehaving
// renderer cannot take down the pool.
func runExporter(ctx context.Context, exp Exporter, req *Request) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("exporter panic: %v", r)
		}
	}()
	return exp.Export(ctx, req)
}

// counts reports the current pending and active sizes.
func (s *scheduler) counts() (pending, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending), len(s.active)
}

// shutdown stops admitting and dispatching, then waits for in-flight workers
// until ctx expires. Pending jobs are left PENDING; the ledger is process
// memory and dies with the process anyway.
func (s *scheduler) shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("shutdown interrupted by context")
	case <-done:
		s.logger.Info("active exports drained, shutdown complete")
	}
}
