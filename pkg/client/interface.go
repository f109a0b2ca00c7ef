// Package client defines the wire interface to vision-model backends and the
// shared parsing of their detection responses.
package client

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/subject-crop/pkg/types"
)

// DetectionClient is implemented by vision-model backends. The model is
// treated as a black box that, given an image, produces candidate subject
// detections with normalized bounding boxes.
type DetectionClient interface {
	DetectSubjects(ctx context.Context, model, prompt, imgB64 string) ([]types.Detection, error)
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

// detectionResponse is the JSON shape requested from the model.
type detectionResponse struct {
	Detections []types.Detection `json:"detections"`
}

// ParseDetections extracts a detection list from a raw model response.
// Responses that carry no parseable JSON yield an empty list rather than an
// error, since "nothing detected" is a normal model answer.
func ParseDetections(raw string) []types.Detection {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		return nil
	}

	var resp detectionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		// Conservative brace-slice retry for chatty models.
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
			return nil
		}
	}
	return resp.Detections
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from
// a JSON response.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reInline := regexp.MustCompile(`(?m)//.*$`)
	raw = reInline.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
