// Package selector picks the primary subject from a list of candidate
// detections. Strategies form a closed set, each carrying its own scoring
// function; unknown strategy names fail at construction time via Parse, never
// at selection time.
package selector

import (
	"errors"
	"fmt"
	"math"

	"github.com/menta2k/subject-crop/pkg/types"
)

// ErrUnknownStrategy is returned by Parse for strategy names outside the
// closed set.
var ErrUnknownStrategy = errors.New("unknown selection strategy")

// Strategy scores candidate detections. The zero value is not a valid
// strategy; use the package variables or Parse.
type Strategy struct {
	name  string
	score func(d types.Detection, factor float64) float64
}

// The supported strategies. All are sharpness-aware: a candidate much
// blurrier than the sharpest detection in the same image is scored down.
var (
	// Largest prefers the biggest bounding box. Sharpness enters through a
	// square root so size still dominates: a huge but blurry subject is
	// penalized, not eliminated.
	Largest = Strategy{"largest", func(d types.Detection, factor float64) float64 {
		return d.Area() * math.Sqrt(factor)
	}}

	// Centered prefers the detection closest to the image center. Blur
	// roughly doubles the effective distance penalty (factor 1 keeps the
	// multiplier at 1, factor 0 pushes it to 2).
	Centered = Strategy{"centered", func(d types.Detection, factor float64) float64 {
		return -d.DistanceToCenter() * (2.0 - factor)
	}}

	// HighestConfidence prefers sharp, confident detections.
	HighestConfidence = Strategy{"highest_confidence", func(d types.Detection, factor float64) float64 {
		return d.Confidence * factor
	}}
)

// Name returns the wire name of the strategy ("largest", "centered",
// "highest_confidence").
func (s Strategy) Name() string {
	return s.name
}

// Strategies returns the closed set of supported strategies.
func Strategies() []Strategy {
	return []Strategy{Largest, Centered, HighestConfidence}
}

// Parse resolves a strategy name. Unknown names fail with
// ErrUnknownStrategy; there is no silent default.
func Parse(name string) (Strategy, error) {
	for _, s := range Strategies() {
		if s.name == name {
			return s, nil
		}
	}
	return Strategy{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Select picks the primary subject from detections using the given strategy.
// It returns nil without error for an empty input. A single detection is
// returned as-is, bypassing all scoring. Ties are broken deterministically:
// the first detection in input order wins.
func Select(detections []types.Detection, strategy Strategy) (*types.Detection, error) {
	if strategy.score == nil {
		return nil, fmt.Errorf("%w: empty strategy", ErrUnknownStrategy)
	}
	if len(detections) == 0 {
		return nil, nil
	}
	if len(detections) == 1 {
		d := detections[0]
		return &d, nil
	}

	maxSharpness := 0.0
	for _, d := range detections {
		if d.Sharpness > maxSharpness {
			maxSharpness = d.Sharpness
		}
	}

	best := detections[0]
	bestScore := strategy.score(best, sharpnessFactor(best, maxSharpness))
	for _, d := range detections[1:] {
		score := strategy.score(d, sharpnessFactor(d, maxSharpness))
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	return &best, nil
}

// sharpnessFactor normalizes a detection's sharpness against the sharpest
// candidate in the same image. When no sharpness data is available
// (maxSharpness == 0) the factor is 1.0 for every detection, so absent data
// never biases selection. Candidates below 30% of the sharpest are pushed
// into a heavier penalty zone.
func sharpnessFactor(d types.Detection, maxSharpness float64) float64 {
	if maxSharpness == 0 {
		return 1.0
	}
	relative := d.Sharpness / maxSharpness
	if relative < 0.3 {
		return relative * 0.5
	}
	return relative
}
