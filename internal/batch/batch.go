// Package batch turns a folder of media files into watermarking jobs and runs
// them, isolating every job's failure from the rest of the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// OutputPrefix is prepended to every output file name.
const OutputPrefix = "watermarked_"

// ErrUnsupported is returned for files whose extension has no processor.
var ErrUnsupported = errors.New("unsupported media type")

// Kind is the media category a file is dispatched on.
type Kind int

const (
	Unsupported Kind = iota
	Image
	Video
	AnimatedImage
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Video:
		return "video"
	case AnimatedImage:
		return "animated-image"
	}
	return "unsupported"
}

var kindByExt = map[string]Kind{
	".png":  Image,
	".jpg":  Image,
	".jpeg": Image,
	".mp4":  Video,
	".avi":  Video,
	".mov":  Video,
	".mkv":  Video,
	".gif":  AnimatedImage,
}

// Classify maps a file name to its media kind by extension, case-insensitively.
func Classify(name string) Kind {
	return kindByExt[strings.ToLower(filepath.Ext(name))]
}

// Handler processes one file of each media kind.
type Handler interface {
	ProcessImage(ctx context.Context, inputPath, outputPath string) error
	ProcessVideo(ctx context.Context, inputPath, outputPath string) error
	ProcessAnimatedImage(ctx context.Context, inputPath, outputPath string) error
}

// Job is one input file and where its result goes.
type Job struct {
	Input  string
	Output string
	Kind   Kind
}

// Dispatch runs job on the handler method for its kind.
func Dispatch(ctx context.Context, h Handler, job Job) error {
	switch job.Kind {
	case Image:
		return h.ProcessImage(ctx, job.Input, job.Output)
	case Video:
		return h.ProcessVideo(ctx, job.Input, job.Output)
	case AnimatedImage:
		return h.ProcessAnimatedImage(ctx, job.Input, job.Output)
	}
	return fmt.Errorf("%s: %w", job.Input, ErrUnsupported)
}

// Plan lists the regular files directly inside inputDir, sorted by name.
// Supported files become jobs writing into outputDir; the rest are returned
// as skipped paths.
func Plan(inputDir, outputDir string) (jobs []Job, skipped []string, err error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read input folder: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		in := filepath.Join(inputDir, e.Name())
		kind := Classify(e.Name())
		if kind == Unsupported {
			skipped = append(skipped, in)
			continue
		}
		jobs = append(jobs, Job{
			Input:  in,
			Output: filepath.Join(outputDir, OutputPrefix+e.Name()),
			Kind:   kind,
		})
	}
	return jobs, skipped, nil
}

// Summary counts job outcomes. Skipped files are neither successes nor failures.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Runner executes a batch. Workers <= 1 runs jobs one after another.
type Runner struct {
	Handler Handler
	Workers int
	Logger  *slog.Logger
}

// NewRunner returns a Runner for h.
func NewRunner(h Handler, workers int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{Handler: h, Workers: workers, Logger: logger}
}

// Run processes every supported file in inputDir, writing results to
// outputDir (created if absent). Only an unreadable input folder or an
// uncreatable output folder fails the whole run; job failures are logged and
// counted.
func (r *Runner) Run(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	runID := uuid.NewString()
	log := r.Logger.With("run", runID)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output folder: %w", err)
	}
	jobs, skipped, err := Plan(inputDir, outputDir)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, path := range skipped {
		log.Warn("skipping unsupported file", "input", path)
		sum.Skipped++
	}
	log.Info("starting batch", "input_folder", inputDir, "output_folder", outputDir, "jobs", len(jobs), "workers", max(1, r.Workers))

	results := r.execute(ctx, log, jobs)
	for _, err := range results {
		if err != nil {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
	}
	log.Info("batch finished", "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

// execute runs jobs and returns one error slot per job, in job order.
func (r *Runner) execute(ctx context.Context, log *slog.Logger, jobs []Job) []error {
	results := make([]error, len(jobs))
	workers := min(max(1, r.Workers), max(1, len(jobs)))

	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				results[i] = r.runJob(ctx, log, jobs[i])
			}
		}()
	}

feed:
	for i := range jobs {
		select {
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = ctx.Err()
			}
			break feed
		case queue <- i:
		}
	}
	close(queue)
	wg.Wait()
	return results
}

func (r *Runner) runJob(ctx context.Context, log *slog.Logger, job Job) error {
	log = log.With("input", job.Input, "output", job.Output, "kind", job.Kind.String())
	log.Debug("processing job")
	if err := Dispatch(ctx, r.Handler, job); err != nil {
		log.Error("job failed", "error", err)
		return err
	}
	log.Info("watermark added")
	return nil
}
