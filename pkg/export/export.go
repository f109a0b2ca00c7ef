// Package export renders crop regions into standalone image files. It is a
// side channel next to the XMP sidecar output: sidecars stay non-destructive,
// export produces ready-to-deliver pixels.
package export

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/menta2k/subject-crop/internal/utils"
	"github.com/menta2k/subject-crop/pkg/processing"
	"github.com/menta2k/subject-crop/pkg/types"
)

// ErrNoCrop is returned when a result has no crop to render.
var ErrNoCrop = errors.New("result has no crop region")

// Options configures exported files.
type Options struct {
	// OutputDir receives the exported files. Empty means next to the
	// source image.
	OutputDir string
	// Format is the output encoding: "jpg", "png" or "webp".
	Format string
	// Quality applies to lossy formats, 1..100.
	Quality int
	// Suffix is appended to the source base name.
	Suffix string
	// MaxDimension downscales the crop so its longest side does not
	// exceed it. Zero disables downscaling.
	MaxDimension int
	// Lossless selects lossless webp encoding.
	Lossless bool
}

// DefaultOptions returns full-quality jpg export beside the source file.
func DefaultOptions() Options {
	return Options{
		Format:  "jpg",
		Quality: 92,
		Suffix:  "_cropped",
	}
}

// Outcome reports the export of one result.
type Outcome struct {
	SourcePath string
	OutputPath string
	Err        error
}

// Exporter renders crops using a shared image processor.
type Exporter struct {
	processor *processing.Processor
	options   Options
}

// New creates an exporter with default options.
func New() *Exporter {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates an exporter. Zero-value option fields fall back to
// defaults.
func NewWithOptions(options Options) *Exporter {
	defaults := DefaultOptions()
	if options.Format == "" {
		options.Format = defaults.Format
	}
	if options.Quality <= 0 {
		options.Quality = defaults.Quality
	}
	if options.Suffix == "" {
		options.Suffix = defaults.Suffix
	}
	return &Exporter{processor: processing.NewProcessor(), options: options}
}

// ExportResult renders the crop of a single successful result and returns
// the path written. Name collisions are resolved with a numeric counter, so
// existing files are never overwritten.
func (e *Exporter) ExportResult(result types.ProcessingResult) (string, error) {
	if result.Crop == nil {
		return "", fmt.Errorf("%w: %s", ErrNoCrop, result.SourcePath)
	}

	img, err := e.processor.LoadImage(result.SourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", result.SourcePath, err)
	}

	cropped, err := e.processor.CropToRegion(img, *result.Crop)
	if err != nil {
		return "", fmt.Errorf("failed to crop %s: %w", result.SourcePath, err)
	}
	if e.options.MaxDimension > 0 {
		cropped = e.processor.DownscaleToFit(cropped, e.options.MaxDimension)
	}

	outputDir := e.options.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(result.SourcePath)
	} else if err := utils.EnsureDir(outputDir); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputPath := utils.UniquePath(utils.OutputFilename(result.SourcePath, outputDir, e.options.Suffix, e.options.Format))
	if err := e.processor.SaveImage(cropped, outputPath, e.options.Format, e.options.Quality, e.options.Lossless); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", outputPath, err)
	}
	return outputPath, nil
}

// ExportResults renders every successful result, skipping the rest. One
// failed export never aborts the others.
func (e *Exporter) ExportResults(results []types.ProcessingResult) []Outcome {
	var outcomes []Outcome
	for _, result := range results {
		if result.Status != types.StatusSuccess || result.Crop == nil {
			continue
		}
		path, err := e.ExportResult(result)
		outcomes = append(outcomes, Outcome{SourcePath: result.SourcePath, OutputPath: path, Err: err})
	}
	return outcomes
}
