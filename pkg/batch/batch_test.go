package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/subject-crop/pkg/detect"
	"github.com/menta2k/subject-crop/pkg/selector"
	"github.com/menta2k/subject-crop/pkg/types"
	"github.com/menta2k/subject-crop/pkg/xmp"
)

type stubDetector struct {
	onDetect func(path string)
	gate     chan struct{}
	results  map[string]detect.Result
	errs     map[string]error
}

func (s *stubDetector) Detect(ctx context.Context, path string) (detect.Result, error) {
	if s.onDetect != nil {
		s.onDetect(path)
	}
	if s.gate != nil {
		<-s.gate
	}
	if err := s.errs[path]; err != nil {
		return detect.Result{}, err
	}
	return s.results[path], nil
}

func singleDetection(confidence float64) detect.Result {
	return detect.Result{
		Width:  2000,
		Height: 1500,
		Detections: []types.Detection{
			{BBox: [4]float64{0.3, 0.3, 0.7, 0.7}, Confidence: confidence, Label: "person"},
		},
	}
}

func defaultOptions() Options {
	return Options{
		Aspect:   types.AspectRatio{Width: 4, Height: 5},
		Padding:  0.05,
		Strategy: selector.Largest,
	}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var all []Event
	for e := range events {
		all = append(all, e)
	}
	return all
}

func TestStartRejectsInvalidOptions(t *testing.T) {
	w := NewWorker(func() (detect.Detector, error) { return &stubDetector{}, nil })

	opts := defaultOptions()
	opts.Strategy = selector.Strategy{}
	if _, err := w.Start(context.Background(), []string{"a.jpg"}, opts); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions for zero strategy, got %v", err)
	}

	opts = defaultOptions()
	opts.Aspect = types.AspectRatio{Width: 0, Height: 5}
	if _, err := w.Start(context.Background(), []string{"a.jpg"}, opts); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions for zero aspect, got %v", err)
	}
}

func TestBatchIsolatesPerFileErrors(t *testing.T) {
	det := &stubDetector{
		results: map[string]detect.Result{
			"a.jpg": singleDetection(0.9),
			"c.jpg": singleDetection(0.8),
		},
		errs: map[string]error{
			"b.jpg": errors.New("backend unavailable"),
		},
	}
	w := NewWorker(func() (detect.Detector, error) { return det, nil })

	events, err := w.Start(context.Background(), []string{"a.jpg", "b.jpg", "c.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	all := collect(t, events)

	final := all[len(all)-1]
	if final.Kind != EventBatchComplete {
		t.Fatalf("last event kind = %d, want EventBatchComplete", final.Kind)
	}
	if final.Cancelled {
		t.Error("batch reported cancelled")
	}
	if len(final.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(final.Results))
	}

	want := []types.Status{types.StatusSuccess, types.StatusError, types.StatusSuccess}
	for i, result := range final.Results {
		if result.Status != want[i] {
			t.Errorf("result %d: status = %q, want %q", i, result.Status, want[i])
		}
	}
	if final.Results[1].ErrorMessage == "" {
		t.Error("failed file carries no error message")
	}
	if final.Results[0].Crop == nil || final.Results[2].Crop == nil {
		t.Error("successful results missing crop")
	}
	if final.Results[0].SourcePath != "a.jpg" || final.Results[2].SourcePath != "c.jpg" {
		t.Error("results not in input order")
	}
}

func TestEventOrdering(t *testing.T) {
	det := &stubDetector{
		results: map[string]detect.Result{
			"a.jpg": singleDetection(0.9),
			"b.jpg": singleDetection(0.8),
		},
	}
	w := NewWorker(func() (detect.Detector, error) { return det, nil })

	events, err := w.Start(context.Background(), []string{"a.jpg", "b.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	all := collect(t, events)

	var completes []int
	lastProgress := -1
	for _, e := range all {
		if e.RunID.String() != all[0].RunID.String() {
			t.Error("events carry different run IDs")
		}
		switch e.Kind {
		case EventProgress:
			if e.Index < lastProgress {
				t.Errorf("progress index went backwards: %d after %d", e.Index, lastProgress)
			}
			lastProgress = e.Index
			if e.Total != 2 {
				t.Errorf("progress total = %d, want 2", e.Total)
			}
		case EventFileComplete:
			completes = append(completes, e.Index)
			if e.Result == nil {
				t.Error("file-complete event carries no result")
			}
		}
	}
	if len(completes) != 2 || completes[0] != 0 || completes[1] != 1 {
		t.Errorf("file-complete indices = %v, want [0 1]", completes)
	}
	if all[len(all)-1].Kind != EventBatchComplete {
		t.Error("batch-complete is not the last event")
	}
	if all[len(all)-2].Kind != EventProgress || all[len(all)-2].Index != 2 {
		t.Error("missing final progress event")
	}
}

func TestNoSubjectStatus(t *testing.T) {
	det := &stubDetector{
		results: map[string]detect.Result{
			"empty.jpg": {Width: 1000, Height: 800},
		},
	}
	w := NewWorker(func() (detect.Detector, error) { return det, nil })

	events, err := w.Start(context.Background(), []string{"empty.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	all := collect(t, events)
	results := all[len(all)-1].Results
	if len(results) != 1 || results[0].Status != types.StatusNoSubject {
		t.Fatalf("got results %+v, want one no_subject", results)
	}
	if results[0].Crop != nil {
		t.Error("no-subject result carries a crop")
	}
	if results[0].ImageWidth != 1000 || results[0].ImageHeight != 800 {
		t.Error("no-subject result missing image dimensions")
	}
}

func TestDetectorInitializedOnceAcrossRuns(t *testing.T) {
	calls := 0
	det := &stubDetector{results: map[string]detect.Result{"a.jpg": singleDetection(0.9)}}
	w := NewWorker(func() (detect.Detector, error) {
		calls++
		return det, nil
	})

	for run := 0; run < 2; run++ {
		events, err := w.Start(context.Background(), []string{"a.jpg"}, defaultOptions())
		if err != nil {
			t.Fatalf("run %d: Start failed: %v", run, err)
		}
		collect(t, events)
	}
	if calls != 1 {
		t.Errorf("detector factory called %d times, want 1", calls)
	}
	if w.IsRunning() {
		t.Error("worker still reports running after both runs")
	}
}

func TestInitErrorMarksAllFilesError(t *testing.T) {
	w := NewWorker(func() (detect.Detector, error) {
		return nil, errors.New("model not found")
	})

	events, err := w.Start(context.Background(), []string{"a.jpg", "b.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	results := collectLast(t, events).Results
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, result := range results {
		if result.Status != types.StatusError {
			t.Errorf("result %d: status = %q, want error", i, result.Status)
		}
	}
}

func TestStartWhileRunningIsNoOp(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	det := &stubDetector{
		gate:     gate,
		onDetect: func(string) { started <- struct{}{} },
		results:  map[string]detect.Result{"a.jpg": singleDetection(0.9)},
	}
	w := NewWorker(func() (detect.Detector, error) { return det, nil })

	events, err := w.Start(context.Background(), []string{"a.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started
	if !w.IsRunning() {
		t.Error("IsRunning false while a file is in flight")
	}

	second, err := w.Start(context.Background(), []string{"b.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	if second != nil {
		t.Error("second Start returned a channel while a run is active")
	}

	close(gate)
	collect(t, events)
	if w.IsRunning() {
		t.Error("IsRunning true after channel closed")
	}
}

func TestCancelStopsBeforeNextFile(t *testing.T) {
	var w *Worker
	det := &stubDetector{
		results: map[string]detect.Result{
			"a.jpg": singleDetection(0.9),
			"b.jpg": singleDetection(0.8),
			"c.jpg": singleDetection(0.7),
		},
	}
	det.onDetect = func(path string) {
		if path == "a.jpg" {
			w.Cancel()
		}
	}
	w = NewWorker(func() (detect.Detector, error) { return det, nil })

	events, err := w.Start(context.Background(), []string{"a.jpg", "b.jpg", "c.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	all := collect(t, events)

	final := all[len(all)-1]
	if !final.Cancelled {
		t.Error("batch-complete does not report cancellation")
	}
	if len(final.Results) != 1 {
		t.Fatalf("got %d results after cancel, want 1", len(final.Results))
	}
	if final.Results[0].SourcePath != "a.jpg" || final.Results[0].Status != types.StatusSuccess {
		t.Errorf("in-flight file was not completed: %+v", final.Results[0])
	}

	// Cancelling again after the run is idempotent and must not poison the
	// next run.
	w.Cancel()
	events, err = w.Start(context.Background(), []string{"b.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	all = collect(t, events)
	if all[len(all)-1].Cancelled {
		t.Error("stale cancel flag leaked into the next run")
	}
}

func TestContextCancellationStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	det := &stubDetector{
		results: map[string]detect.Result{
			"a.jpg": singleDetection(0.9),
			"b.jpg": singleDetection(0.8),
		},
	}
	det.onDetect = func(path string) {
		if path == "a.jpg" {
			cancel()
		}
	}
	w := NewWorker(func() (detect.Detector, error) { return det, nil })

	events, err := w.Start(ctx, []string{"a.jpg", "b.jpg"}, defaultOptions())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	final := collectLast(t, events)
	if !final.Cancelled || len(final.Results) != 1 {
		t.Errorf("context cancel: cancelled=%v results=%d, want true/1", final.Cancelled, len(final.Results))
	}
}

func collectLast(t *testing.T, events <-chan Event) Event {
	t.Helper()
	all := collect(t, events)
	if len(all) == 0 {
		t.Fatal("no events delivered")
	}
	return all[len(all)-1]
}

func TestWriteSidecars(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(source, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	crop := &types.CropRegion{Left: 0.1, Right: 0.9, Top: 0.0, Bottom: 1.0}
	results := []types.ProcessingResult{
		{SourcePath: source, Status: types.StatusSuccess, Crop: crop},
		{SourcePath: filepath.Join(dir, "skip.jpg"), Status: types.StatusNoSubject},
		{SourcePath: filepath.Join(dir, "gone.jpg"), Status: types.StatusSuccess, Crop: crop},
	}

	outcomes := WriteSidecars(results, xmp.DefaultOptions())
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2 (non-success results are skipped)", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Errorf("sidecar write failed: %v", outcomes[0].Err)
	}
	if _, err := os.Stat(outcomes[0].SidecarPath); err != nil {
		t.Errorf("sidecar not written: %v", err)
	}
	if outcomes[1].Err == nil {
		t.Error("expected error for missing source file")
	}
}
