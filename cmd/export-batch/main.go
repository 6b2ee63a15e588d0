package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adaeze-okafor/stats-exporter/constants"
	"github.com/adaeze-okafor/stats-exporter/internal/common"
	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
	"github.com/adaeze-okafor/stats-exporter/internal/render"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		data    = flag.String("data", "", "bundle JSON file or directory of bundles (required)")
		formats = flag.String("formats", "", "comma-separated output formats (default: all)")
		out     = flag.String("out", "./exports", "output directory for artifacts")
		persona = flag.String("persona", "general", "audience persona (general|executive|analyst|research)")
		view    = flag.String("view", "", "optional view hint, narrows to one table")
		theme   = flag.String("theme", "", "theme preset name (requires EXPORT_THEMES_PATH)")
		wait    = flag.Duration("wait", 5*time.Minute, "maximum time to wait for all jobs")
	)
	flag.Parse()

	if *data == "" {
		printError("Error: --data is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	wanted, err := parseFormats(*formats)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	bundles, err := loadBundles(ctx, *data, logger)
	if err != nil {
		logger.Error("failed to load bundles", "path", *data, "error", err)
		os.Exit(1)
	}
	if len(bundles) == 0 {
		printError("Error: no bundles found under %s\n", *data)
		os.Exit(1)
	}
	logger.Info("bundles loaded", "count", len(bundles), "path", *data)

	registry := export.NewRegistry()
	for format, exp := range render.Suite(logger) {
		if err := registry.Register(format, exp); err != nil {
			logger.Error("register exporter", "format", format, "error", err)
			os.Exit(1)
		}
	}

	var themes *export.Themes
	if path := common.LoadConfig().Export.ThemesPath; path != "" {
		themes, err = export.LoadThemes(path)
		if err != nil {
			logger.Error("load themes", "path", path, "error", err)
			os.Exit(1)
		}
	}

	total := len(bundles) * len(wanted)
	manager, err := export.NewManager(registry, logger,
		export.WithOutputDir(*out),
		export.WithMaxConcurrentJobs(2),
		export.WithMaxPendingJobs(total+1),
		export.WithThemes(themes),
	)
	if err != nil {
		logger.Error("create export manager", "error", err)
		os.Exit(1)
	}

	// Submit one job per bundle and format.
	var ids []uuid.UUID
	failures := 0
	for _, bundle := range bundles {
		for _, format := range wanted {
			job, err := manager.CreateExportJob(export.CreateRequest{
				Format:  string(format),
				Persona: *persona,
				View:    *view,
				DataRef: bundle.Name,
				Data:    bundle,
				Theme:   *theme,
			})
			if err != nil {
				logger.Error("submit failed", "bundle", bundle.Name, "format", format, "error", err)
				failures++
				continue
			}
			ids = append(ids, job.ID)
		}
	}

	completed, failed := awaitJobs(manager, ids, *wait, logger)
	failures += failed

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	manager.Shutdown(shutdownCtx)

	stats := manager.GetExportStatistics()
	logger.Info("batch export complete",
		"submitted", len(ids),
		"completed", completed,
		"failures", failures,
		"total_bytes", stats.TotalFileSize,
		"output_dir", *out)

	fmt.Printf("Batch export complete!\n")
	fmt.Printf("- Bundles: %d\n", len(bundles))
	fmt.Printf("- Jobs submitted: %d\n", len(ids))
	fmt.Printf("- Completed: %d\n", completed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)

	if failures > 0 {
		os.Exit(1)
	}
}

// parseFormats canonicalizes the -formats flag; empty means every format.
func parseFormats(raw string) ([]constants.Format, error) {
	if strings.TrimSpace(raw) == "" {
		return constants.AllFormats(), nil
	}
	var out []constants.Format
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		format, ok := constants.CanonicalizeFormat(part)
		if !ok {
			return nil, fmt.Errorf("unknown format %q (known: %s)", part, strings.Join(constants.FormatsAsStringSlice(), ", "))
		}
		out = append(out, format)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no formats given")
	}
	return out, nil
}

func loadBundles(ctx context.Context, path string, logger *slog.Logger) ([]*dataset.Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return dataset.NewDirSource(path, logger).Load(ctx)
	}
	bundle, err := dataset.LoadBundleFile(path)
	if err != nil {
		return nil, err
	}
	return []*dataset.Bundle{bundle}, nil
}

// awaitJobs polls until every job is terminal or the deadline passes.
func awaitJobs(manager *export.Manager, ids []uuid.UUID, wait time.Duration, logger *slog.Logger) (completed, failed int) {
	deadline := time.Now().Add(wait)
	pending := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}

	for len(pending) > 0 && time.Now().Before(deadline) {
		for id := range pending {
			job, err := manager.GetJobStatus(id)
			if err != nil {
				logger.Error("job vanished", "job_id", id, "error", err)
				delete(pending, id)
				failed++
				continue
			}
			if !job.Status.IsTerminal() {
				continue
			}
			delete(pending, id)
			switch job.Status {
			case constants.JobStatusCompleted:
				completed++
				logger.Info("job completed", "job_id", id, "format", job.Format, "file", job.FilePath, "bytes", job.FileSize)
			case constants.JobStatusFailed:
				failed++
				logger.Error("job failed", "job_id", id, "format", job.Format, "error", job.ErrorMessage)
			default:
				failed++
				logger.Warn("job cancelled", "job_id", id, "format", job.Format)
			}
		}
		if len(pending) > 0 {
			time.Sleep(100 * time.Millisecond)
		}
	}

	for id := range pending {
		failed++
		logger.Error("job timed out waiting", "job_id", id)
	}
	return completed, failed
}
