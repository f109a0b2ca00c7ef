// Package subjectcrop provides automated subject-aware cropping for photo
// libraries.
//
// A vision model (or a built-in saliency fallback) finds the subjects in each
// image, a selection strategy picks the primary one, and a crop region with
// the requested aspect ratio is computed around it. Crops are persisted as
// Lightroom-compatible XMP sidecar files, so the source pixels are never
// touched; an optional export step renders the crops to standalone files.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		subjectcrop "github.com/menta2k/subject-crop"
//		"github.com/menta2k/subject-crop/pkg/types"
//	)
//
//	func main() {
//		app, err := subjectcrop.New()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := app.ProcessFile(context.Background(), "photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if result.Status != types.StatusSuccess {
//			log.Fatalf("no crop: %s", result.Status)
//		}
//
//		sidecar, err := app.WriteSidecar(*result)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("crop written to %s\n", sidecar)
//	}
//
// The package consists of four main components:
//
// 1. Detection (pkg/detect, pkg/vision): Finds subject bounding boxes
// 2. Selection (pkg/selector): Picks the primary subject
// 3. Geometry (pkg/geometry): Computes the aspect-constrained crop region
// 4. Sidecar (pkg/xmp): Persists crops as non-destructive XMP metadata
//
// Batch processing with progress events lives in pkg/batch, preset shoot
// types in pkg/presets, and catalog-driven file selection in pkg/catalog.
package subjectcrop

import (
	"context"
	"fmt"

	"github.com/menta2k/subject-crop/internal/config"
	"github.com/menta2k/subject-crop/pkg/batch"
	"github.com/menta2k/subject-crop/pkg/client"
	"github.com/menta2k/subject-crop/pkg/detect"
	"github.com/menta2k/subject-crop/pkg/export"
	"github.com/menta2k/subject-crop/pkg/geometry"
	"github.com/menta2k/subject-crop/pkg/llamacpp"
	"github.com/menta2k/subject-crop/pkg/ollama"
	"github.com/menta2k/subject-crop/pkg/presets"
	"github.com/menta2k/subject-crop/pkg/selector"
	"github.com/menta2k/subject-crop/pkg/types"
	"github.com/menta2k/subject-crop/pkg/vision"
	"github.com/menta2k/subject-crop/pkg/xmp"
)

// Version of the subject-crop library
const Version = "1.0.0"

// App is the high-level entry point tying detection, selection, geometry and
// sidecar output together under one configuration.
type App struct {
	config   *config.Config
	strategy selector.Strategy
	aspect   types.AspectRatio

	detector detect.Detector
}

// New creates an App with the default configuration.
func New() (*App, error) {
	return NewWithConfig(config.Default())
}

// NewWithConfig creates an App from a validated configuration. The detection
// backend is constructed immediately; for the model backends this only sets
// up the HTTP client, nothing is contacted until the first Detect call.
func NewWithConfig(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	strategy, err := selector.Parse(cfg.Crop.Strategy)
	if err != nil {
		return nil, err
	}
	aspect, err := presets.ParseAspect(cfg.Crop.AspectRatio)
	if err != nil {
		return nil, err
	}
	detector, err := BuildDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}

	return &App{
		config:   cfg,
		strategy: strategy,
		aspect:   aspect,
		detector: detector,
	}, nil
}

// BuildDetector constructs the detection backend named by the configuration.
func BuildDetector(cfg config.DetectorConfig) (detect.Detector, error) {
	detectConfig := detect.Config{
		Model:               cfg.Model,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		SendMaxDim:          cfg.SendMaxDim,
		SendQuality:         cfg.SendQuality,
	}

	switch cfg.Backend {
	case "saliency":
		return vision.New(), nil
	case "ollama":
		backend, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return newVisionDetector(backend, detectConfig), nil
	case "llamacpp":
		backend, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return newVisionDetector(backend, detectConfig), nil
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}

func newVisionDetector(backend client.DetectionClient, cfg detect.Config) detect.Detector {
	defaults := detect.DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.SendMaxDim <= 0 {
		cfg.SendMaxDim = defaults.SendMaxDim
	}
	if cfg.SendQuality <= 0 {
		cfg.SendQuality = defaults.SendQuality
	}
	if cfg.SendFormat == "" {
		cfg.SendFormat = defaults.SendFormat
	}
	return detect.NewWithConfig(backend, cfg)
}

// ProcessFile runs the full per-file pipeline: detect subjects, pick the
// primary one, compute the crop. The returned result carries a non-success
// status instead of an error for expected conditions like an image without
// subjects; an error is returned only when the file itself cannot be
// processed.
func (a *App) ProcessFile(ctx context.Context, path string) (*types.ProcessingResult, error) {
	result := types.ProcessingResult{SourcePath: path, Status: types.StatusPending}

	detected, err := a.detector.Detect(ctx, path)
	if err != nil {
		return nil, err
	}
	result.ImageWidth = detected.Width
	result.ImageHeight = detected.Height
	result.Detections = detected.Detections

	if len(detected.Detections) == 0 {
		result.Status = types.StatusNoSubject
		return &result, nil
	}

	primary, err := selector.Select(detected.Detections, a.strategy)
	if err != nil {
		return nil, err
	}
	result.Primary = primary

	crop, err := geometry.ComputeCropForDetection(*primary, detected.Width, detected.Height, a.aspect, a.config.Crop.Padding)
	if err != nil {
		return nil, err
	}
	result.Crop = &crop
	result.Status = types.StatusSuccess
	return &result, nil
}

// WriteSidecar persists the crop of a successful result as an XMP sidecar
// and returns the sidecar path.
func (a *App) WriteSidecar(result types.ProcessingResult) (string, error) {
	if result.Crop == nil {
		return "", fmt.Errorf("result for %s has no crop", result.SourcePath)
	}
	opts := xmp.Options{
		OutputDir: a.config.Sidecar.OutputDir,
		Backup:    a.config.Sidecar.Backup,
	}
	return xmp.WriteCrop(result.SourcePath, *result.Crop, opts)
}

// NewWorker creates a batch worker sharing this App's detection backend.
func (a *App) NewWorker() *batch.Worker {
	return batch.NewWorker(func() (detect.Detector, error) {
		return a.detector, nil
	})
}

// BatchOptions returns the batch options matching this App's configuration.
func (a *App) BatchOptions() batch.Options {
	return batch.Options{
		Aspect:   a.aspect,
		Padding:  a.config.Crop.Padding,
		Strategy: a.strategy,
	}
}

// NewExporter creates a pixel exporter matching this App's configuration.
func (a *App) NewExporter() *export.Exporter {
	return export.NewWithOptions(export.Options{
		OutputDir:    a.config.Export.OutputDir,
		Format:       a.config.Export.Format,
		Quality:      a.config.Export.Quality,
		Suffix:       a.config.Export.Suffix,
		MaxDimension: a.config.Export.MaxDimension,
	})
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
