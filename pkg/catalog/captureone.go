package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// CaptureOneReader reads a Capture One .cocatalogdb database.
type CaptureOneReader struct {
	db *sql.DB
}

// OpenCaptureOne opens a .cocatalogdb file read-only.
func OpenCaptureOne(path string) (*CaptureOneReader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open capture one catalog: %w", err)
	}
	return &CaptureOneReader{db: db}, nil
}

func (r *CaptureOneReader) Name() string { return "captureone" }

func (r *CaptureOneReader) Close() error { return r.db.Close() }

// Capture One color tag codes.
var captureOneColors = map[int]string{
	1: "red",
	2: "orange",
	3: "yellow",
	4: "green",
	5: "blue",
	6: "pink",
	7: "purple",
}

// Entries reads the Core Data schema: ZIMAGE rows point at a ZPATHLOCATION
// folder, and rating and color tag live on the image's ZVARIANT.
func (r *CaptureOneReader) Entries(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT pl.ZRELATIVEPATH, im.ZIMAGEFILENAME,
		       COALESCE(v.ZRATING, 0), COALESCE(v.ZCOLORTAG, 0)
		FROM ZIMAGE im
		JOIN ZPATHLOCATION pl ON pl.Z_PK = im.ZIMAGELOCATION
		LEFT JOIN ZVARIANT v ON v.ZIMAGE = im.Z_PK
		ORDER BY pl.ZRELATIVEPATH, im.ZIMAGEFILENAME`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query capture one catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var folder, filename string
		var rating, color int
		if err := rows.Scan(&folder, &filename, &rating, &color); err != nil {
			return nil, fmt.Errorf("failed to scan capture one row: %w", err)
		}
		if rating < 0 {
			rating = 0
		} else if rating > 5 {
			rating = 5
		}
		entries = append(entries, Entry{
			Path:       filepath.Join(folder, filename),
			Rating:     rating,
			ColorLabel: captureOneColors[color],
		})
	}
	return entries, rows.Err()
}
