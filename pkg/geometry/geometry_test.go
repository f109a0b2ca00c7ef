package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/menta2k/subject-crop/pkg/types"
)

func approx(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestComputeCropInvalidDimensions(t *testing.T) {
	cases := []struct {
		name          string
		width, height int
	}{
		{"zero width", 0, 4000},
		{"zero height", 6000, 0},
		{"negative width", -1, 4000},
	}

	for _, tc := range cases {
		_, err := ComputeCrop(tc.width, tc.height, [4]float64{0.4, 0.3, 0.6, 0.7}, types.AspectRatio{Width: 4, Height: 5}, 0)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: expected ErrInvalidArgument, got %v", tc.name, err)
		}
	}
}

func TestComputeCropInvalidAspect(t *testing.T) {
	_, err := ComputeCrop(6000, 4000, [4]float64{0.4, 0.3, 0.6, 0.7}, types.AspectRatio{Width: 4, Height: 0}, 0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument for zero aspect component, got %v", err)
	}
}

func TestCenteredSubjectProducesCenteredCrop(t *testing.T) {
	// 3:2 landscape (6000x4000) with the subject dead center.
	crop, err := ComputeCrop(6000, 4000, [4]float64{0.4, 0.3, 0.6, 0.7}, types.AspectRatio{Width: 4, Height: 5}, 0)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	cx, _ := crop.Center()
	if !approx(cx, 0.5, 0.01) {
		t.Errorf("Expected horizontally centered crop, center at %f", cx)
	}
	if !approx(crop.Height(), 1.0, 1e-9) {
		t.Errorf("Expected full-height crop, got %f", crop.Height())
	}
	// 4:5 from 3:2: width = 0.8 / 1.5
	if !approx(crop.Width(), (4.0/5.0)/1.5, 0.001) {
		t.Errorf("Expected crop width %f, got %f", (4.0/5.0)/1.5, crop.Width())
	}
}

func TestAspectRatio916(t *testing.T) {
	crop, err := ComputeCrop(6000, 4000, [4]float64{0.4, 0.3, 0.6, 0.7}, types.AspectRatio{Width: 9, Height: 16}, 0)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	expectedWidth := (9.0 / 16.0) / 1.5
	if !approx(crop.Width(), expectedWidth, 0.001) {
		t.Errorf("Expected crop width %f, got %f", expectedWidth, crop.Width())
	}
}

func TestSubjectAtLeftEdgeClamps(t *testing.T) {
	crop, err := ComputeCrop(6000, 4000, [4]float64{0.0, 0.3, 0.1, 0.7}, types.AspectRatio{Width: 4, Height: 5}, 0)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	if crop.Left != 0.0 {
		t.Errorf("Expected crop.Left clamped to exactly 0.0, got %f", crop.Left)
	}
	if crop.Right > 1.0 {
		t.Errorf("Expected crop.Right <= 1.0, got %f", crop.Right)
	}
}

func TestSubjectAtRightEdgeClamps(t *testing.T) {
	crop, err := ComputeCrop(6000, 4000, [4]float64{0.9, 0.3, 1.0, 0.7}, types.AspectRatio{Width: 4, Height: 5}, 0)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	if !approx(crop.Right, 1.0, 1e-9) {
		t.Errorf("Expected crop.Right at 1.0, got %f", crop.Right)
	}
	if crop.Left < 0.0 {
		t.Errorf("Expected crop.Left >= 0.0, got %f", crop.Left)
	}
}

func TestPaddingKeepsCropWhenSubjectFits(t *testing.T) {
	// A narrow subject fits inside the natural 4:5 crop even with padding;
	// the crop dimensions must not change.
	subject := [4]float64{0.4, 0.3, 0.6, 0.7}

	unpadded, err := ComputeCrop(6000, 4000, subject, types.AspectRatio{Width: 4, Height: 5}, 0)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}
	padded, err := ComputeCrop(6000, 4000, subject, types.AspectRatio{Width: 4, Height: 5}, 0.15)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	if unpadded.Height() != padded.Height() {
		t.Errorf("Expected identical heights, got %f and %f", unpadded.Height(), padded.Height())
	}
	if !approx(unpadded.Width(), padded.Width(), 1e-9) {
		t.Errorf("Expected identical widths, got %f and %f", unpadded.Width(), padded.Width())
	}
}

func TestPaddingBestEffortWhenSubjectTooWide(t *testing.T) {
	// Padded minimum width above 1.0 cannot be satisfied; the engine keeps
	// the unpadded full-height crop.
	crop, err := ComputeCrop(6000, 4000, [4]float64{0.05, 0.3, 0.95, 0.7}, types.AspectRatio{Width: 4, Height: 5}, 0.15)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	if !approx(crop.Height(), 1.0, 1e-9) {
		t.Errorf("Expected full-height fallback, got height %f", crop.Height())
	}
	if !approx(crop.Width(), (4.0/5.0)/1.5, 0.001) {
		t.Errorf("Expected unpadded width, got %f", crop.Width())
	}
}

func TestWiderTargetUsesFullWidth(t *testing.T) {
	// Target 16:9 from a 3:2 source: the atypical branch. Full width, only
	// vertical centering on the subject.
	crop, err := ComputeCrop(6000, 4000, [4]float64{0.6, 0.1, 0.9, 0.4}, types.AspectRatio{Width: 16, Height: 9}, 0)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	if crop.Left != 0.0 {
		t.Errorf("Expected full-width crop starting at 0, got left %f", crop.Left)
	}
	if !approx(crop.Width(), 1.0, 1e-9) {
		t.Errorf("Expected full-width crop, got %f", crop.Width())
	}
	// height = source/target = 1.5 / (16/9)
	if !approx(crop.Height(), 1.5/(16.0/9.0), 0.001) {
		t.Errorf("Expected crop height %f, got %f", 1.5/(16.0/9.0), crop.Height())
	}
	// Vertically centered on the subject (center y 0.25), clamped at top.
	if crop.Top != 0.0 {
		t.Errorf("Expected top clamped to 0 for a high subject, got %f", crop.Top)
	}
}

func TestPortraitSourceWithWiderTarget(t *testing.T) {
	// 2:3 portrait source with a 4:5 target: target aspect (0.8) exceeds the
	// source aspect (0.667), so the wide branch applies with height < 1.
	crop, err := ComputeCrop(4000, 6000, [4]float64{0.3, 0.4, 0.7, 0.8}, types.AspectRatio{Width: 4, Height: 5}, 0)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}

	expectedHeight := (4000.0 / 6000.0) / (4.0 / 5.0)
	if !approx(crop.Height(), expectedHeight, 0.001) {
		t.Errorf("Expected crop height %f, got %f", expectedHeight, crop.Height())
	}
	if !approx(crop.Width(), 1.0, 1e-9) {
		t.Errorf("Expected full width, got %f", crop.Width())
	}
}

func TestCropBoundsAlwaysValid(t *testing.T) {
	subjects := [][4]float64{
		{0.0, 0.0, 0.2, 0.5}, // top-left
		{0.8, 0.0, 1.0, 0.5}, // top-right
		{0.0, 0.5, 0.2, 1.0}, // bottom-left
		{0.8, 0.5, 1.0, 1.0}, // bottom-right
		{0.3, 0.3, 0.7, 0.7}, // center
		{0.0, 0.0, 1.0, 1.0}, // full frame
	}
	aspects := []types.AspectRatio{{Width: 4, Height: 5}, {Width: 9, Height: 16}, {Width: 1, Height: 1}, {Width: 16, Height: 9}}
	paddings := []float64{0, 0.15, 0.5}

	for _, subject := range subjects {
		for _, aspect := range aspects {
			for _, padding := range paddings {
				crop, err := ComputeCrop(6000, 4000, subject, aspect, padding)
				if err != nil {
					t.Fatalf("ComputeCrop(%v, %v, %v) failed: %v", subject, aspect, padding, err)
				}
				if !crop.Valid() {
					t.Errorf("ComputeCrop(%v, %v, %v) produced invalid crop %+v", subject, aspect, padding, crop)
				}
			}
		}
	}
}

func TestComputeCropForDetection(t *testing.T) {
	d := types.Detection{BBox: [4]float64{0.4, 0.3, 0.6, 0.7}, Confidence: 0.9, Label: "person"}

	fromDetection, err := ComputeCropForDetection(d, 6000, 4000, types.AspectRatio{Width: 4, Height: 5}, 0.15)
	if err != nil {
		t.Fatalf("ComputeCropForDetection failed: %v", err)
	}
	fromBox, err := ComputeCrop(6000, 4000, d.BBox, types.AspectRatio{Width: 4, Height: 5}, 0.15)
	if err != nil {
		t.Fatalf("ComputeCrop failed: %v", err)
	}
	if fromDetection != fromBox {
		t.Errorf("Expected identical crops, got %+v and %+v", fromDetection, fromBox)
	}
}
