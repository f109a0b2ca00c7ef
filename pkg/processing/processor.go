// Package processing handles pixel-level image operations: loading with WebP
// support, cropping to a normalized region, downscaling, encoding for vision
// models and measuring region sharpness.
package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/subject-crop/pkg/types"
)

// Processor handles image processing operations.
type Processor struct{}

// NewProcessor creates a new image processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage loads an image from a file path with WebP support.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if img, err := webp.Decode(f); err == nil {
		return img, nil
	}
	if _, err := f.Seek(0, 0); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// Dimensions returns the pixel width and height of an image.
func (p *Processor) Dimensions(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// CropToRegion crops an image to a normalized crop region.
func (p *Processor) CropToRegion(img image.Image, crop types.CropRegion) (image.Image, error) {
	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())

	x0 := bounds.Min.X + int(clamp(crop.Left, 0, 1)*fw+0.5)
	y0 := bounds.Min.Y + int(clamp(crop.Top, 0, 1)*fh+0.5)
	x1 := bounds.Min.X + int(clamp(crop.Right, 0, 1)*fw+0.5)
	y1 := bounds.Min.Y + int(clamp(crop.Bottom, 0, 1)*fh+0.5)

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle for region %+v", crop)
	}
	return imaging.Crop(img, rect), nil
}

// DownscaleToFit resizes an image so neither dimension exceeds maxDim,
// preserving aspect ratio. Images already within bounds are returned as-is;
// maxDim <= 0 disables downscaling.
func (p *Processor) DownscaleToFit(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}

// SaveImage saves an image to a file with the specified format and quality.
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// EncodeForModel converts an image to base64 for sending to vision models,
// optionally downscaled so the long side does not exceed maxDim.
func (p *Processor) EncodeForModel(img image.Image, format string, maxDim, quality int) (string, error) {
	img = p.DownscaleToFit(img, maxDim)

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// RegionSharpness measures the focus of a normalized bounding box region
// using Laplacian variance. Higher values mean sharper content; the score
// has no absolute scale and is only comparable within the same image.
// Degenerate regions score 0.
func (p *Processor) RegionSharpness(img image.Image, bbox [4]float64) float64 {
	bounds := img.Bounds()
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())

	x0 := int(clamp(bbox[0], 0, 1) * fw)
	y0 := int(clamp(bbox[1], 0, 1) * fh)
	x1 := int(clamp(bbox[2], 0, 1) * fw)
	y1 := int(clamp(bbox[3], 0, 1) * fh)
	if x1-x0 < 3 || y1-y0 < 3 {
		return 0
	}

	region := imaging.Crop(img, image.Rect(bounds.Min.X+x0, bounds.Min.Y+y0, bounds.Min.X+x1, bounds.Min.Y+y1))
	gray := imaging.Grayscale(region)

	w := gray.Bounds().Dx()
	h := gray.Bounds().Dy()
	if w < 3 || h < 3 {
		return 0
	}

	// 4-neighbor Laplacian over the grayscale plane; R channel carries the
	// gray value in an NRGBA image.
	responses := make([]float64, 0, (w-2)*(h-2))
	at := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4])
	}
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap := at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
			responses = append(responses, lap)
			sum += lap
		}
	}

	mean := sum / float64(len(responses))
	var variance float64
	for _, r := range responses {
		variance += (r - mean) * (r - mean)
	}
	return variance / float64(len(responses))
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
