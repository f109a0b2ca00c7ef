// Package vision provides an offline saliency-based subject detector. It is
// the fallback backend when no vision-model server is available: edge and
// contrast analysis stand in for a real detection model, producing normalized
// detections the rest of the pipeline consumes unchanged.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sort"

	"github.com/menta2k/subject-crop/pkg/detect"
	"github.com/menta2k/subject-crop/pkg/processing"
	"github.com/menta2k/subject-crop/pkg/types"
)

// SaliencyDetector finds high-saliency regions and reports them as subject
// detections.
type SaliencyDetector struct {
	config    DetectionConfig
	processor *processing.Processor
}

// DetectionConfig holds configuration for saliency detection.
type DetectionConfig struct {
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	MinSubjectRatio float64
	MaxDetections   int
}

// New creates a new SaliencyDetector with default configuration.
func New() *SaliencyDetector {
	return NewWithConfig(DetectionConfig{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.3,
		ColorWeight:     0.2,
		MinSubjectRatio: 0.05,
		MaxDetections:   5,
	})
}

// NewWithConfig creates a new SaliencyDetector with custom configuration.
func NewWithConfig(config DetectionConfig) *SaliencyDetector {
	return &SaliencyDetector{config: config, processor: processing.NewProcessor()}
}

// Detect implements detect.Detector. The context is accepted for interface
// compatibility; saliency analysis is purely local and not interruptible.
func (d *SaliencyDetector) Detect(ctx context.Context, path string) (detect.Result, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return detect.Result{}, fmt.Errorf("%w: %s", detect.ErrNotFound, path)
		}
		return detect.Result{}, fmt.Errorf("failed to stat image: %w", err)
	}

	img, err := d.processor.LoadImage(path)
	if err != nil {
		return detect.Result{}, fmt.Errorf("failed to load image: %w", err)
	}
	width, height := d.processor.Dimensions(img)
	if width < 3 || height < 3 {
		return detect.Result{}, errors.New("image too small for saliency analysis")
	}

	saliencyMap := d.calculateSaliencyMap(img)
	regions := d.findImportantRegions(saliencyMap, width, height)
	regions = d.filterRegions(regions, width, height)

	detections := make([]types.Detection, 0, len(regions))
	for _, r := range regions {
		if len(detections) >= d.config.MaxDetections {
			break
		}
		det := types.Detection{
			BBox: [4]float64{
				float64(r.x) / float64(width),
				float64(r.y) / float64(height),
				float64(r.x+r.width) / float64(width),
				float64(r.y+r.height) / float64(height),
			},
			// Saliency scores are tiny fractions; rescale into a usable
			// confidence band capped below model-grade certainty.
			Confidence: math.Min(0.9, r.score*20),
			Label:      "subject",
		}
		det.Sharpness = d.processor.RegionSharpness(img, det.BBox)
		detections = append(detections, det)
	}

	return detect.Result{Detections: detections, Width: width, Height: height}, nil
}

type region struct {
	x, y          int
	width, height int
	score         float64
}

func (d *SaliencyDetector) calculateSaliencyMap(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	saliencyMap := make([][]float64, height)
	for i := range saliencyMap {
		saliencyMap[i] = make([]float64, width)
	}

	// Edge strength from color difference against the 8-neighborhood,
	// combined with brightness for contrast.
	neighbors := [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			r1, g1, b1, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			var edgeStrength float64
			for _, offset := range neighbors {
				r2, g2, b2, _ := img.At(x+offset[0]+bounds.Min.X, y+offset[1]+bounds.Min.Y).RGBA()
				dr := float64(r1) - float64(r2)
				dg := float64(g1) - float64(g2)
				db := float64(b1) - float64(b2)
				edgeStrength += math.Sqrt(dr*dr + dg*dg + db*db)
			}
			edgeStrength /= 8.0 * 65535.0

			brightness := (float64(r1) + float64(g1) + float64(b1)) / (3.0 * 65535.0)
			saliencyMap[y][x] = d.config.ContrastWeight*edgeStrength + d.config.ColorWeight*brightness
		}
	}
	return saliencyMap
}

func (d *SaliencyDetector) findImportantRegions(saliencyMap [][]float64, width, height int) []region {
	var regions []region

	windowSizes := []int{width / 16, width / 8, width / 4, width / 2}
	for _, windowSize := range windowSizes {
		if windowSize < 10 {
			continue
		}
		step := windowSize / 4
		if step < 1 {
			step = 1
		}
		for y := 0; y+windowSize <= height; y += step {
			for x := 0; x+windowSize <= width; x += step {
				score := regionScore(saliencyMap, x, y, windowSize, windowSize)
				if score > d.config.EdgeThreshold {
					regions = append(regions, region{x: x, y: y, width: windowSize, height: windowSize, score: score})
				}
			}
		}
	}
	return regions
}

func regionScore(saliencyMap [][]float64, x, y, width, height int) float64 {
	var total float64
	count := 0
	for ry := y; ry < y+height && ry < len(saliencyMap); ry++ {
		for rx := x; rx < x+width && rx < len(saliencyMap[0]); rx++ {
			total += saliencyMap[ry][rx]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// filterRegions drops undersized regions, orders the rest by score and
// keeps only regions that do not heavily overlap a better one.
func (d *SaliencyDetector) filterRegions(regions []region, imageWidth, imageHeight int) []region {
	minArea := int(float64(imageWidth*imageHeight) * d.config.MinSubjectRatio)

	var sized []region
	for _, r := range regions {
		if r.width*r.height >= minArea {
			sized = append(sized, r)
		}
	}

	sort.SliceStable(sized, func(i, j int) bool {
		return sized[i].score > sized[j].score
	})

	var kept []region
	for _, r := range sized {
		overlapping := false
		for _, k := range kept {
			if overlapRatio(r, k) > 0.4 {
				overlapping = true
				break
			}
		}
		if !overlapping {
			kept = append(kept, r)
		}
	}
	return kept
}

func overlapRatio(a, b region) float64 {
	x0 := max(a.x, b.x)
	y0 := max(a.y, b.y)
	x1 := min(a.x+a.width, b.x+b.width)
	y1 := min(a.y+a.height, b.y+b.height)
	if x1 <= x0 || y1 <= y0 {
		return 0
	}
	inter := float64((x1 - x0) * (y1 - y0))
	smaller := float64(min(a.width*a.height, b.width*b.height))
	return inter / smaller
}
