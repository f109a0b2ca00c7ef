// Package catalog reads photo editor catalogs (Lightroom, darktable,
// Capture One) so a batch can be assembled from rated or picked images
// instead of raw directory listings. Catalogs are opened read-only; this
// package never writes to them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedCatalog is returned by Open for unrecognized catalog files.
var ErrUnsupportedCatalog = errors.New("unsupported catalog format")

// Pick flag values, following the Lightroom convention.
const (
	PickRejected = -1
	PickNone     = 0
	PickFlagged  = 1
)

// Entry is one image record from a catalog.
type Entry struct {
	// Path is the absolute path of the image file as recorded by the
	// catalog. The file may no longer exist on disk.
	Path string
	// Rating is the star rating, 0 to 5.
	Rating int
	// Pick is PickRejected, PickNone or PickFlagged.
	Pick int
	// ColorLabel is the lowercase label name ("red", "green", ...) or
	// empty.
	ColorLabel string
}

// Reader lists the images of one catalog. Implementations are not safe for
// concurrent use.
type Reader interface {
	// Name identifies the catalog format ("lightroom", "darktable",
	// "captureone").
	Name() string
	// Entries returns every image in the catalog.
	Entries(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open picks a reader by the catalog file's extension: .lrcat for
// Lightroom, .db for darktable's library database, .cocatalogdb for
// Capture One.
func Open(path string) (Reader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lrcat":
		return OpenLightroom(path)
	case ".db":
		return OpenDarktable(path)
	case ".cocatalogdb":
		return OpenCaptureOne(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCatalog, path)
	}
}

// Selection filters catalog entries for batch assembly.
type Selection struct {
	// MinRating keeps entries rated at least this many stars.
	MinRating int
	// PickedOnly keeps only flagged picks.
	PickedOnly bool
	// ColorLabel, when non-empty, keeps only entries with that label.
	ColorLabel string
}

// Filter applies a selection and returns the surviving file paths in
// catalog order. Rejected picks are always dropped.
func Filter(entries []Entry, sel Selection) []string {
	var paths []string
	for _, e := range entries {
		if e.Pick == PickRejected {
			continue
		}
		if e.Rating < sel.MinRating {
			continue
		}
		if sel.PickedOnly && e.Pick != PickFlagged {
			continue
		}
		if sel.ColorLabel != "" && !strings.EqualFold(e.ColorLabel, sel.ColorLabel) {
			continue
		}
		paths = append(paths, e.Path)
	}
	return paths
}
