// Package batch drives detection, subject selection and crop geometry across
// a list of files on a background goroutine. Progress and results are
// delivered as ordered events on a channel; a failure in one file never
// aborts the rest of the batch.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/menta2k/subject-crop/pkg/detect"
	"github.com/menta2k/subject-crop/pkg/geometry"
	"github.com/menta2k/subject-crop/pkg/selector"
	"github.com/menta2k/subject-crop/pkg/types"
	"github.com/menta2k/subject-crop/pkg/xmp"
)

// ErrInvalidOptions is returned by Start for unusable run options.
var ErrInvalidOptions = errors.New("invalid batch options")

// EventKind discriminates the events emitted during a run.
type EventKind int

const (
	// EventProgress reports that work on file Index of Total is starting.
	EventProgress EventKind = iota
	// EventFileComplete carries the ProcessingResult for one file.
	EventFileComplete
	// EventBatchComplete carries the full ordered result list and closes
	// the run.
	EventBatchComplete
)

// Event is delivered on the channel returned by Start. Events carry no
// goroutine affinity: they may be consumed from any goroutine the caller
// chooses.
type Event struct {
	Kind    EventKind
	RunID   uuid.UUID
	Index   int
	Total   int
	Message string
	// Result is set for EventFileComplete.
	Result *types.ProcessingResult
	// Results and Cancelled are set for EventBatchComplete.
	Results   []types.ProcessingResult
	Cancelled bool
}

// Options configures a batch run.
type Options struct {
	Aspect   types.AspectRatio
	Padding  float64
	Strategy selector.Strategy
}

// Worker processes batches of image files sequentially on a background
// goroutine. The detection resource is created lazily by the injected
// factory, exactly once, and reused across runs; it is never invoked for
// more than one file at a time.
type Worker struct {
	newDetector func() (detect.Detector, error)

	initOnce sync.Once
	detector detect.Detector
	initErr  error

	mu        sync.Mutex
	running   bool
	cancelled atomic.Bool
}

// NewWorker creates a worker. The factory is called once, before the first
// file of the first run.
func NewWorker(factory func() (detect.Detector, error)) *Worker {
	return &Worker{newDetector: factory}
}

// IsRunning reports whether a run is currently active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start begins processing files in input order on a background goroutine and
// returns the event channel for the run. The channel is buffered for the
// whole run, so the worker never blocks on a slow consumer, and is closed
// after the batch-complete event. If a run is already active, Start is a
// no-op and returns a nil channel.
//
// The context is passed to the detection backend and checked between files,
// so cancelling it behaves like Cancel; the worker itself imposes no
// timeout.
func (w *Worker) Start(ctx context.Context, files []string, opts Options) (<-chan Event, error) {
	if opts.Strategy.Name() == "" {
		return nil, fmt.Errorf("%w: no selection strategy", ErrInvalidOptions)
	}
	if opts.Aspect.Width <= 0 || opts.Aspect.Height <= 0 {
		return nil, fmt.Errorf("%w: target aspect must be positive, got %d:%d", ErrInvalidOptions, opts.Aspect.Width, opts.Aspect.Height)
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, nil
	}
	w.running = true
	w.cancelled.Store(false)
	w.mu.Unlock()

	// Progress per file + one file-complete per file + initial progress,
	// final progress and batch-complete.
	events := make(chan Event, 2*len(files)+3)
	go w.run(ctx, uuid.New(), files, opts, events)
	return events, nil
}

// Cancel requests cooperative cancellation of the active run. It is
// idempotent and has no effect when no run is active. The file currently in
// flight is not interrupted; the run stops before dispatching the next one.
func (w *Worker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.cancelled.Store(true)
	}
}

func (w *Worker) run(ctx context.Context, runID uuid.UUID, files []string, opts Options, events chan Event) {
	defer close(events)
	defer w.finishRun()

	total := len(files)
	results := make([]types.ProcessingResult, 0, total)

	events <- Event{Kind: EventProgress, RunID: runID, Index: 0, Total: total, Message: "Loading detection model..."}
	w.initOnce.Do(func() {
		w.detector, w.initErr = w.newDetector()
	})

	cancelled := false
	for i, path := range files {
		if w.cancelled.Load() || ctx.Err() != nil {
			cancelled = true
			break
		}

		events <- Event{
			Kind:    EventProgress,
			RunID:   runID,
			Index:   i,
			Total:   total,
			Message: fmt.Sprintf("Processing %s...", filepath.Base(path)),
		}

		result := w.processFile(ctx, path, opts)
		results = append(results, result)

		r := result
		events <- Event{Kind: EventFileComplete, RunID: runID, Index: i, Total: total, Result: &r}
	}

	message := "Complete"
	if cancelled {
		message = "Cancelled"
	}
	events <- Event{Kind: EventProgress, RunID: runID, Index: total, Total: total, Message: message}
	events <- Event{Kind: EventBatchComplete, RunID: runID, Index: total, Total: total, Results: results, Cancelled: cancelled}
}

func (w *Worker) finishRun() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	w.cancelled.Store(false)
}

// processFile runs the per-file pipeline. All failures are converted into a
// status=error result so one bad file cannot fail the batch.
func (w *Worker) processFile(ctx context.Context, path string, opts Options) types.ProcessingResult {
	result := types.ProcessingResult{SourcePath: path, Status: types.StatusPending}

	if w.initErr != nil {
		result.Status = types.StatusError
		result.ErrorMessage = fmt.Sprintf("detector initialization failed: %v", w.initErr)
		return result
	}

	detected, err := w.detector.Detect(ctx, path)
	if err != nil {
		result.Status = types.StatusError
		result.ErrorMessage = err.Error()
		return result
	}

	result.ImageWidth = detected.Width
	result.ImageHeight = detected.Height
	result.Detections = detected.Detections

	if len(detected.Detections) == 0 {
		result.Status = types.StatusNoSubject
		return result
	}

	primary, err := selector.Select(detected.Detections, opts.Strategy)
	if err != nil {
		result.Status = types.StatusError
		result.ErrorMessage = err.Error()
		return result
	}
	result.Primary = primary

	crop, err := geometry.ComputeCropForDetection(*primary, detected.Width, detected.Height, opts.Aspect, opts.Padding)
	if err != nil {
		result.Status = types.StatusError
		result.ErrorMessage = err.Error()
		return result
	}
	result.Crop = &crop
	result.Status = types.StatusSuccess
	return result
}

// SidecarOutcome reports the sidecar write for one result.
type SidecarOutcome struct {
	SourcePath  string
	SidecarPath string
	Err         error
}

// WriteSidecars writes XMP sidecars for every successful result. Failures
// are collected per file, never aborting the remaining writes.
func WriteSidecars(results []types.ProcessingResult, opts xmp.Options) []SidecarOutcome {
	var outcomes []SidecarOutcome
	for _, result := range results {
		if result.Status != types.StatusSuccess || result.Crop == nil {
			continue
		}
		path, err := xmp.WriteCrop(result.SourcePath, *result.Crop, opts)
		outcomes = append(outcomes, SidecarOutcome{SourcePath: result.SourcePath, SidecarPath: path, Err: err})
	}
	return outcomes
}
