// Package detect turns an image file into a list of candidate subject
// detections. The actual detection model is an external collaborator behind
// the client.DetectionClient interface; this package loads the image, drives
// the backend, validates the returned boxes and fills in sharpness scores.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/menta2k/subject-crop/pkg/client"
	"github.com/menta2k/subject-crop/pkg/processing"
	"github.com/menta2k/subject-crop/pkg/types"
)

// ErrNotFound is returned when the source image does not exist.
var ErrNotFound = errors.New("image not found")

// DefaultPrompt is the default prompt for subject detection.
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "detections": [
    {"bbox": [0.0, 0.0, 0.0, 0.0], "confidence": 0.0, "label": "string"}
  ]
}

HARD RULES
- bbox is [x1, y1, x2, y2] normalized to [0,1] (NOT pixels), with x1 < x2 and y1 < y2.
- List every clearly visible person; if no people are visible, list distinct faces or the most salient subjects instead.
- label is a short lowercase tag like "person" or "face".
- Order detections by confidence, highest first.
- If nothing qualifies, return {"detections": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Result carries the detections for one image together with its pixel
// dimensions.
type Result struct {
	Detections []types.Detection
	Width      int
	Height     int
}

// Detector produces candidate subjects for an image file. Implementations
// are not required to be safe for concurrent use; the batch orchestrator
// serializes all calls.
type Detector interface {
	Detect(ctx context.Context, path string) (Result, error)
}

// Config holds settings for the vision-model detector.
type Config struct {
	Model               string
	Prompt              string
	ConfidenceThreshold float64
	// Encoding of the image sent to the model.
	SendFormat  string
	SendMaxDim  int
	SendQuality int
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		Model:               "qwen2.5vl",
		Prompt:              DefaultPrompt,
		ConfidenceThreshold: 0.5,
		SendFormat:          "jpg",
		SendMaxDim:          1536,
		SendQuality:         85,
	}
}

// VisionDetector detects subjects using a vision-model backend.
type VisionDetector struct {
	client    client.DetectionClient
	config    Config
	processor *processing.Processor
}

// New creates a detector with default configuration.
func New(c client.DetectionClient) *VisionDetector {
	return NewWithConfig(c, DefaultConfig())
}

// NewWithConfig creates a detector with custom configuration.
func NewWithConfig(c client.DetectionClient, config Config) *VisionDetector {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	return &VisionDetector{
		client:    c,
		config:    config,
		processor: processing.NewProcessor(),
	}
}

// Detect loads the image, queries the backend and returns validated
// detections sorted by confidence, highest first.
func (d *VisionDetector) Detect(ctx context.Context, path string) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Result{}, fmt.Errorf("failed to stat image: %w", err)
	}

	img, err := d.processor.LoadImage(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load image: %w", err)
	}
	width, height := d.processor.Dimensions(img)

	imgB64, err := d.processor.EncodeForModel(img, d.config.SendFormat, d.config.SendMaxDim, d.config.SendQuality)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode image for model: %w", err)
	}

	raw, err := d.client.DetectSubjects(ctx, d.config.Model, d.config.Prompt, imgB64)
	if err != nil {
		return Result{}, fmt.Errorf("detection backend failed: %w", err)
	}

	detections := make([]types.Detection, 0, len(raw))
	for _, det := range raw {
		fixed, ok := normalizeDetection(det)
		if !ok || fixed.Confidence < d.config.ConfidenceThreshold {
			continue
		}
		fixed.Sharpness = d.processor.RegionSharpness(img, fixed.BBox)
		detections = append(detections, fixed)
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	return Result{Detections: detections, Width: width, Height: height}, nil
}

// normalizeDetection clamps box coordinates into [0,1] and rejects boxes
// that degenerate to zero width or height.
func normalizeDetection(d types.Detection) (types.Detection, bool) {
	for i, v := range d.BBox {
		d.BBox[i] = clamp(v, 0, 1)
	}
	if d.BBox[0] >= d.BBox[2] || d.BBox[1] >= d.BBox[3] {
		return types.Detection{}, false
	}
	if d.Label == "" {
		d.Label = "subject"
	}
	d.Confidence = clamp(d.Confidence, 0, 1)
	return d, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
