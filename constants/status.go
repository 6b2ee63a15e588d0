package constants

// JobStatus is the canonical lifecycle status for export jobs.
type JobStatus string

// Stable values (these exact strings appear in API responses and logs).
const (
	JobStatusPending    JobStatus = "PENDING"     // accepted, waiting for a worker slot
	JobStatusInProgress JobStatus = "IN_PROGRESS" // claimed by a worker, exporter running
	JobStatusCompleted  JobStatus = "COMPLETED"   // terminal success (artifact on disk)
	JobStatusFailed     JobStatus = "FAILED"      // terminal failure (error captured)
	JobStatusCancelled  JobStatus = "CANCELLED"   // terminal, cancelled before or during the run
)

// IsTerminal reports whether a job in this status can never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsValidJobStatus reports whether s is one of the five known statuses.
func IsValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
