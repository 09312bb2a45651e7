package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/zatobox/invoice-ocr/internal/app"
	"github.com/zatobox/invoice-ocr/internal/async"
	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/entity"
	"github.com/zatobox/invoice-ocr/internal/export"
	"github.com/zatobox/invoice-ocr/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem    = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir      = flag.String("dir", "", "directory to process invoices from (required)")
		out      = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		workers  = flag.Int("workers", 4, "concurrent OCR workers")
		watch    = flag.Bool("watch", false, "keep watching the directory and export on exit")
		debounce = flag.Duration("debounce", 500*time.Millisecond, "watch mode: quiet period before a changed file is processed")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, app.Options{InMemoryDB: *inmem, NoRateLimit: true}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	if a.Provider == nil {
		logger.Warn("OCR provider not configured, every file will fail", "provider", cfg.OCR.Provider)
	}

	queue := async.NewProcessorQueue(a.OCR, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(256),
		async.WithProcessTimeout(cfg.OCR.Timeout+30*time.Second),
	)

	enqueued := 0
	if *watch {
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{*dir},
			SkipHidden:  true,
			InitialScan: true,
			Debounce:    *debounce,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start watcher", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("watching directory, interrupt to export", "dir", *dir)
		enqueued = drainWatcher(ctx, queue, paths, errs, logger)
	} else {
		paths, stats, err := ingest.Discover(*dir, nil, true)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("scan complete", "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
		for _, p := range paths {
			if err := queue.Enqueue(ctx, async.Job{Path: p, SubmittedAt: time.Now()}); err != nil {
				logger.Error("failed to enqueue file", "path", p, "error", err)
				break
			}
			enqueued++
		}
	}

	queue.Shutdown(context.Background())
	outcomes := queue.Outcomes()

	recs, failures := records(outcomes)
	xlsxBytes, err := export.ExportResultsXLSX(recs)
	if err != nil {
		logger.Error("failed to export results", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_enqueued", enqueued,
		"files_processed", len(recs),
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files enqueued: %d\n", enqueued)
	fmt.Printf("- Files processed: %d\n", len(recs))
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}

func drainWatcher(ctx context.Context, queue *async.ProcessorQueue, paths <-chan string, errs <-chan error, logger *slog.Logger) int {
	n := 0
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return n
			}
			if err := queue.Enqueue(ctx, async.Job{Path: p, SubmittedAt: time.Now()}); err != nil {
				logger.Warn("failed to enqueue file", "path", p, "error", err)
				continue
			}
			n++
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", "error", err)
		case <-ctx.Done():
			return n
		}
	}
}

// records turns successful outcomes into export rows, oldest path first.
func records(outcomes []async.Outcome) ([]entity.StoredResult, int) {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Path < outcomes[j].Path })

	recs := make([]entity.StoredResult, 0, len(outcomes))
	failures := 0
	now := time.Now().UTC()
	for _, o := range outcomes {
		if o.Err != nil {
			failures++
			continue
		}
		id, err := uuid.Parse(o.Result.ID)
		if err != nil {
			id = uuid.New()
		}
		recs = append(recs, entity.StoredResult{
			ID:        id,
			Filename:  filepath.Base(o.Path),
			Status:    entity.StatusOf(o.Result),
			Result:    o.Result,
			CreatedAt: now,
		})
	}
	return recs, failures
}
