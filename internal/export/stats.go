package export

import (
	"github.com/adaeze-okafor/stats-exporter/constants"
)

// Statistics aggregates the whole ledger for dashboards and health checks.
type Statistics struct {
	TotalJobs       int                         `json:"total_jobs"`
	ByStatus        map[constants.JobStatus]int `json:"by_status"`
	ByFormat        map[constants.Format]int    `json:"by_format"`
	ByPersona       map[constants.Persona]int   `json:"by_persona"`
	SuccessRate     float64                     `json:"success_rate"`
	AvgProcessingMS int64                       `json:"avg_processing_ms"`
	TotalFileSize   int64                       `json:"total_file_size"`
	PendingCount    int                         `json:"pending_count"`
	ActiveCount     int                         `json:"active_count"`
}

// computeStatistics walks job snapshots. Success rate is completed over
// total; average processing time only counts jobs that both started and
// finished; file sizes sum over COMPLETED jobs only.
func computeStatistics(jobs []*Job) Statistics {
	stats := Statistics{
		ByStatus:  make(map[constants.JobStatus]int),
		ByFormat:  make(map[constants.Format]int),
		ByPersona: make(map[constants.Persona]int),
	}

	var processed int64
	var processedMS int64

	for _, j := range jobs {
		stats.TotalJobs++
		stats.ByStatus[j.Status]++
		stats.ByFormat[j.Format]++
		stats.ByPersona[j.Persona]++

		if j.StartedAt != nil && j.CompletedAt != nil {
			processed++
			processedMS += j.CompletedAt.Sub(*j.StartedAt).Milliseconds()
		}
		if j.Status == constants.JobStatusCompleted {
			stats.TotalFileSize += j.FileSize
		}
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.ByStatus[constants.JobStatusCompleted]) / float64(stats.TotalJobs)
	}
	if processed > 0 {
		stats.AvgProcessingMS = processedMS / processed
	}
	return stats
}
