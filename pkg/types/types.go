// Package types defines the shared data model: detections, crop regions and
// per-file processing results. All coordinates are normalized to [0,1] so the
// same values work regardless of pixel resolution.
package types

import "math"

// Detection represents a candidate subject found in an image. BBox holds
// (x1, y1, x2, y2) normalized to image width/height with x1 < x2 and y1 < y2.
// Sharpness is a relative focus score (Laplacian variance); it is only
// meaningful compared against other detections from the same image, and 0
// means "no sharpness information", not "completely blurred".
type Detection struct {
	BBox       [4]float64 `json:"bbox"`
	Confidence float64    `json:"confidence"`
	Label      string     `json:"label"`
	Sharpness  float64    `json:"sharpness,omitempty"`
}

// Width returns the normalized width of the bounding box.
func (d Detection) Width() float64 {
	return d.BBox[2] - d.BBox[0]
}

// Height returns the normalized height of the bounding box.
func (d Detection) Height() float64 {
	return d.BBox[3] - d.BBox[1]
}

// Area returns the normalized area of the bounding box.
func (d Detection) Area() float64 {
	return d.Width() * d.Height()
}

// Center returns the normalized center point of the bounding box.
func (d Detection) Center() (float64, float64) {
	return (d.BBox[0] + d.BBox[2]) / 2, (d.BBox[1] + d.BBox[3]) / 2
}

// DistanceToCenter returns the Euclidean distance from the box center to the
// image center (0.5, 0.5) in normalized space.
func (d Detection) DistanceToCenter() float64 {
	cx, cy := d.Center()
	return math.Sqrt((cx-0.5)*(cx-0.5) + (cy-0.5)*(cy-0.5))
}

// CropRegion is a normalized crop rectangle with left < right and
// top < bottom. A region is created whole by the geometry engine and replaced
// whole by interactive overrides, never mutated field by field.
type CropRegion struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Width returns the normalized width of the crop region.
func (c CropRegion) Width() float64 {
	return c.Right - c.Left
}

// Height returns the normalized height of the crop region.
func (c CropRegion) Height() float64 {
	return c.Bottom - c.Top
}

// Center returns the normalized center point of the crop region.
func (c CropRegion) Center() (float64, float64) {
	return (c.Left + c.Right) / 2, (c.Top + c.Bottom) / 2
}

// AspectRatio returns width/height of the region in normalized coordinates,
// or 0 for a degenerate region with zero height.
func (c CropRegion) AspectRatio() float64 {
	if c.Height() == 0 {
		return 0
	}
	return c.Width() / c.Height()
}

// Valid reports whether the region satisfies
// 0 <= left < right <= 1 and 0 <= top < bottom <= 1.
func (c CropRegion) Valid() bool {
	return c.Left >= 0 && c.Left < c.Right && c.Right <= 1 &&
		c.Top >= 0 && c.Top < c.Bottom && c.Bottom <= 1
}

// AspectRatio is a target aspect ratio expressed as an integer pair,
// e.g. {4, 5} for Instagram portrait or {9, 16} for stories.
type AspectRatio struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Ratio returns the aspect ratio as width/height.
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

// Status describes the outcome of processing a single file.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusNoSubject Status = "no_subject"
	StatusError     Status = "error"
)

// ProcessingResult is the per-file outcome emitted by the batch orchestrator.
// A result is immutable once emitted; consumers that want a different crop
// derive a copy via WithCrop instead of mutating in place, since the original
// may be held concurrently by a display layer.
type ProcessingResult struct {
	SourcePath   string      `json:"source_path"`
	Status       Status      `json:"status"`
	Detections   []Detection `json:"detections,omitempty"`
	Primary      *Detection  `json:"primary,omitempty"`
	Crop         *CropRegion `json:"crop,omitempty"`
	ImageWidth   int         `json:"image_width"`
	ImageHeight  int         `json:"image_height"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// WithCrop returns a copy of the result carrying a replacement crop region.
func (r ProcessingResult) WithCrop(crop CropRegion) ProcessingResult {
	c := crop
	r.Crop = &c
	return r
}
