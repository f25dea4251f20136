package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"textract/extract"
	"textract/logging"
)

// Extractor is the part of extract.Dispatcher the runner needs.
type Extractor interface {
	ExtractFile(ctx context.Context, root, path string) (string, error)
}

// Job is a single file extraction task.
type Job struct {
	Index int
	Path  string
}

// Result is the outcome of one Job.
type Result struct {
	Index    int
	Path     string
	Text     string
	Output   string // file the text was written to, if any
	Err      error
	Duration time.Duration
}

// Stats summarises a batch.
type Stats struct {
	Files     int
	Succeeded int64
	Failed    int64
	Bytes     int64
	Elapsed   time.Duration
}

// Runner extracts a batch of files with a fixed pool of workers.
type Runner struct {
	Extractor Extractor
	TempRoot  string
	OutputDir string
	Workers   int
	Logger    *logging.Logger

	mu      sync.Mutex
	claimed map[string]bool
}

// Run extracts files and calls onResult once per file, in completion order.
// The returned results are in input order.
func (r *Runner) Run(ctx context.Context, files []string, onResult func(Result)) ([]Result, *Stats) {
	start := time.Now()
	stats := &Stats{Files: len(files)}
	logger := r.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobChan := make(chan Job)
	resultChan := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, jobChan, resultChan, &wg)
	}

	go func() {
		defer close(jobChan)
		for i, f := range files {
			select {
			case jobChan <- Job{Index: i, Path: f}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, len(files))
	done := make([]bool, len(files))
	for res := range resultChan {
		if res.Err != nil {
			stats.Failed++
			logger.Error(ctx, "extraction failed", zap.String("file", res.Path), zap.Error(res.Err))
		} else {
			stats.Succeeded++
			stats.Bytes += int64(len(res.Text))
			logger.Info(ctx, "extracted",
				zap.String("file", res.Path),
				zap.Int("chars", len(res.Text)),
				zap.Duration("took", res.Duration))
		}
		results[res.Index] = res
		done[res.Index] = true
		if onResult != nil {
			onResult(res)
		}
	}

	// jobs never handed out because ctx was cancelled
	for i, ok := range done {
		if !ok {
			results[i] = Result{Index: i, Path: files[i], Err: ctx.Err()}
			stats.Failed++
		}
	}
	stats.Elapsed = time.Since(start)
	return results, stats
}

func (r *Runner) worker(ctx context.Context, jobs <-chan Job, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		started := time.Now()
		text, err := r.Extractor.ExtractFile(ctx, r.TempRoot, job.Path)
		res := Result{Index: job.Index, Path: job.Path, Text: text, Err: err}
		if err == nil && r.OutputDir != "" {
			res.Output, res.Err = r.writeOutput(job.Path, text)
		}
		res.Duration = time.Since(started)
		results <- res
	}
}

// writeOutput stores text as <OutputDir>/<name>.txt, adding a numeric suffix
// when another input of this batch already claimed the name.
func (r *Runner) writeOutput(src, text string) (string, error) {
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if base == "" {
		base = "document"
	}

	r.mu.Lock()
	if r.claimed == nil {
		r.claimed = make(map[string]bool)
	}
	name := base + ".txt"
	for n := 1; r.claimed[name]; n++ {
		name = fmt.Sprintf("%s-%d.txt", base, n)
	}
	r.claimed[name] = true
	r.mu.Unlock()

	out := filepath.Join(r.OutputDir, name)
	if err := os.WriteFile(out, []byte(text+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

// failureKind names the error class for display.
func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, extract.ErrEmptyResult):
		return "empty"
	case errors.Is(err, extract.ErrTimeout):
		return "timeout"
	case errors.Is(err, extract.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, extract.ErrBackendExecution):
		return "failed"
	default:
		return "error"
	}
}
