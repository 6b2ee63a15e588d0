package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adaeze-okafor/stats-exporter/constants"
)

// ProgressFunc reports fractional completion in [0,1]. Values must be
// non-decreasing; the orchestrator rescales them into the job's visible range.
type ProgressFunc func(p float64)

// Request carries everything an exporter needs for one run. Data is the
// bundle handed in at job creation, forwarded untouched.
type Request struct {
	JobID      uuid.UUID
	Data       any
	Persona    constants.Persona
	View       string
	Settings   Settings
	Options    map[string]any
	OutputPath string
	Progress   ProgressFunc
}

// Exporter is the capability contract one renderer implements per format.
//
// Export writes the artifact to req.OutputPath and returns the path actually
// written. It must report progress through req.Progress, signal failure by
// returning an error, check ctx between expensive steps and exit early when
// cancelled, and be safe to run concurrently with other invocations.
type Exporter interface {
	Export(ctx context.Context, req *Request) (string, error)
	FileExtension() string
	MimeType() string
}

// artifactName builds the output filename for a job, embedding persona, view
// and timestamp for uniqueness plus a short id suffix against same-second
// collisions.
func artifactName(j *Job, ext string) string {
	parts := []string{"report", string(j.Persona)}
	if j.View != "" {
		parts = append(parts, j.View)
	}
	parts = append(parts,
		time.Now().UTC().Format("20060102_150405"),
		j.ID.String()[:8],
	)
	return sanitizeFilename(strings.Join(parts, "_")) + ext
}

// sanitizeFilename replaces path separators and other hostile characters so
// the name is safe on every filesystem we care about.
func sanitizeFilename(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if out == "" {
		out = fmt.Sprintf("export_%d", time.Now().Unix())
	}
	return out
}
