package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/subject-crop/pkg/detect"
)

// createTestImage paints a high-contrast square on a flat background so the
// saliency analysis has an obvious subject to find.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				if (x+y)%2 == 0 {
					img.Set(x, y, color.RGBA{255, 255, 255, 255})
				} else {
					img.Set(x, y, color.RGBA{0, 0, 0, 255})
				}
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func saveTestImage(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to save test image: %v", err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	d := New()
	if d == nil {
		t.Fatal("New() returned nil")
	}
	if d.config.EdgeThreshold != 0.01 {
		t.Errorf("Expected edge threshold 0.01, got %f", d.config.EdgeThreshold)
	}
}

func TestDetectMissingFile(t *testing.T) {
	d := New()
	_, err := d.Detect(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, detect.ErrNotFound) {
		t.Errorf("Expected detect.ErrNotFound, got %v", err)
	}
}

func TestDetectFindsSalientRegion(t *testing.T) {
	path := saveTestImage(t, createTestImage(240, 180))
	d := New()

	result, err := d.Detect(context.Background(), path)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if result.Width != 240 || result.Height != 180 {
		t.Errorf("Expected 240x180, got %dx%d", result.Width, result.Height)
	}
	if len(result.Detections) == 0 {
		t.Fatal("Expected at least one detection for a high-contrast subject")
	}

	for _, det := range result.Detections {
		if det.BBox[0] >= det.BBox[2] || det.BBox[1] >= det.BBox[3] {
			t.Errorf("Degenerate detection box: %v", det.BBox)
		}
		for _, v := range det.BBox {
			if v < 0 || v > 1 {
				t.Errorf("Box coordinate out of [0,1]: %v", det.BBox)
			}
		}
		if det.Confidence <= 0 || det.Confidence > 0.9 {
			t.Errorf("Confidence outside expected band: %f", det.Confidence)
		}
		if det.Label != "subject" {
			t.Errorf("Expected label \"subject\", got %q", det.Label)
		}
	}
}

func TestDetectCapsDetectionCount(t *testing.T) {
	path := saveTestImage(t, createTestImage(320, 240))
	d := New()

	result, err := d.Detect(context.Background(), path)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(result.Detections) > d.config.MaxDetections {
		t.Errorf("Expected at most %d detections, got %d", d.config.MaxDetections, len(result.Detections))
	}
}
