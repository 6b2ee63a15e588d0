package export

import "errors"

// Errors surfaced by the manager. Creation-time errors propagate to the
// caller synchronously; everything after admission is captured into the job
// record and only observed by polling.
var (
	// ErrUnknownFormat means the requested format has no registered exporter.
	ErrUnknownFormat = errors.New("unknown export format")

	// ErrJobNotFound means the id does not exist in the store.
	ErrJobNotFound = errors.New("export job not found")

	// ErrQueueFull means the pending queue is at capacity and the request
	// was rejected at admission.
	ErrQueueFull = errors.New("export queue full")

	// ErrJobTimeout marks jobs failed by the per-job deadline rather than
	// by the exporter itself.
	ErrJobTimeout = errors.New("export job timed out")

	// ErrNotCancellable means the job was already terminal when cancellation
	// was requested.
	ErrNotCancellable = errors.New("job is not cancellable")

	// ErrJobNotTerminal means a delete was requested for a job that is still
	// pending or running.
	ErrJobNotTerminal = errors.New("job is not in a terminal state")

	// ErrShuttingDown means the manager no longer admits new jobs.
	ErrShuttingDown = errors.New("export manager is shutting down")
)
