// Package geometry converts a subject bounding box into a normalized crop
// region honoring a target aspect ratio. The engine is tuned for producing
// vertical crops from typically wider sources: padding is applied only as a
// minimum-width constraint around the subject, never to height.
package geometry

import (
	"errors"
	"fmt"

	"github.com/menta2k/subject-crop/pkg/types"
)

// ErrInvalidArgument is returned for non-positive image dimensions or target
// aspect components.
var ErrInvalidArgument = errors.New("invalid argument")

// ComputeCrop calculates the optimal crop for a subject bounding box
// (x1, y1, x2, y2, normalized). Padding is a fraction of the subject width
// (0.15 = 15%) enforced as a minimum crop width on each side of the subject;
// when the padded subject cannot fit at full height the padding requirement
// is best-effort.
func ComputeCrop(imageWidth, imageHeight int, subject [4]float64, target types.AspectRatio, padding float64) (types.CropRegion, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return types.CropRegion{}, fmt.Errorf("%w: image dimensions must be positive, got %dx%d", ErrInvalidArgument, imageWidth, imageHeight)
	}
	if target.Width <= 0 || target.Height <= 0 {
		return types.CropRegion{}, fmt.Errorf("%w: target aspect must be positive, got %d:%d", ErrInvalidArgument, target.Width, target.Height)
	}

	sourceAspect := float64(imageWidth) / float64(imageHeight)
	targetAspect := target.Ratio()

	subjCenterX := (subject[0] + subject[2]) / 2
	subjCenterY := (subject[1] + subject[3]) / 2
	subjWidth := subject[2] - subject[0]

	var crop types.CropRegion

	if targetAspect < sourceAspect {
		// Target is more vertical than the source, the typical
		// portrait-from-landscape case. Start at full height and center
		// horizontally on the subject.
		cropHeight := 1.0
		cropWidth := cropHeight * targetAspect / sourceAspect

		// Zoom in when the subject plus padding does not fit the crop width.
		minCropWidth := subjWidth * (1 + 2*padding)
		if cropWidth < minCropWidth && minCropWidth <= 1.0 {
			cropWidth = minCropWidth
			cropHeight = cropWidth * sourceAspect / targetAspect
			if cropHeight > 1.0 {
				// Padding cannot be honored at full height; fall back to it.
				cropHeight = 1.0
				cropWidth = cropHeight * targetAspect / sourceAspect
			}
		}

		cropLeft := clamp(subjCenterX-cropWidth/2, 0, 1.0-cropWidth)
		cropTop := clamp(subjCenterY-cropHeight/2, 0, 1.0-cropHeight)

		crop = types.CropRegion{
			Left:   cropLeft,
			Right:  cropLeft + cropWidth,
			Top:    cropTop,
			Bottom: cropTop + cropHeight,
		}
	} else {
		// Target is as wide as or wider than the source. The crop spans the
		// full available width, so only vertical centering applies.
		cropWidth := 1.0
		cropHeight := cropWidth * sourceAspect / targetAspect
		if cropHeight > 1.0 {
			cropHeight = 1.0
			cropWidth = cropHeight * targetAspect / sourceAspect
		}

		cropTop := clamp(subjCenterY-cropHeight/2, 0, 1.0-cropHeight)

		crop = types.CropRegion{
			Left:   0,
			Right:  cropWidth,
			Top:    cropTop,
			Bottom: cropTop + cropHeight,
		}
	}

	if !crop.Valid() {
		return types.CropRegion{}, fmt.Errorf("%w: computed crop out of bounds: %+v", ErrInvalidArgument, crop)
	}
	return crop, nil
}

// ComputeCropForDetection is a convenience wrapper taking a Detection instead
// of a raw bounding box.
func ComputeCropForDetection(det types.Detection, imageWidth, imageHeight int, target types.AspectRatio, padding float64) (types.CropRegion, error) {
	return ComputeCrop(imageWidth, imageHeight, det.BBox, target, padding)
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
