package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// LightroomReader reads an Adobe Lightroom Classic .lrcat catalog.
type LightroomReader struct {
	db *sql.DB
}

// OpenLightroom opens a .lrcat file read-only.
func OpenLightroom(path string) (*LightroomReader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open lightroom catalog: %w", err)
	}
	return &LightroomReader{db: db}, nil
}

func (r *LightroomReader) Name() string { return "lightroom" }

func (r *LightroomReader) Close() error { return r.db.Close() }

// Entries walks the folder hierarchy tables to reconstruct absolute file
// paths, joined with per-image rating, pick and color label.
func (r *LightroomReader) Entries(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT rf.absolutePath, f.pathFromRoot, fi.idx_filename,
		       COALESCE(i.rating, 0), COALESCE(i.pick, 0), COALESCE(i.colorLabels, '')
		FROM Adobe_images i
		JOIN AgLibraryFile fi ON fi.id_local = i.rootFile
		JOIN AgLibraryFolder f ON f.id_local = fi.folder
		JOIN AgLibraryRootFolder rf ON rf.id_local = f.rootFolder
		ORDER BY rf.absolutePath, f.pathFromRoot, fi.idx_filename`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lightroom catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var rootPath, folderPath, filename, colorLabel string
		var rating, pick float64
		if err := rows.Scan(&rootPath, &folderPath, &filename, &rating, &pick, &colorLabel); err != nil {
			return nil, fmt.Errorf("failed to scan lightroom row: %w", err)
		}
		entries = append(entries, Entry{
			Path:       filepath.Join(rootPath, folderPath, filename),
			Rating:     int(rating),
			Pick:       normalizePick(pick),
			ColorLabel: normalizeColorLabel(colorLabel),
		})
	}
	return entries, rows.Err()
}

// Collection is a named image group inside a Lightroom catalog.
type Collection struct {
	Name       string
	ImageCount int
}

// Collections lists the catalog's collections with their image counts.
func (r *LightroomReader) Collections(ctx context.Context) ([]Collection, error) {
	query := `
		SELECT c.name, COUNT(ci.image)
		FROM AgLibraryCollection c
		LEFT JOIN AgLibraryCollectionImage ci ON ci.collection = c.id_local
		GROUP BY c.id_local
		ORDER BY c.name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lightroom collections: %w", err)
	}
	defer rows.Close()

	var collections []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.ImageCount); err != nil {
			return nil, fmt.Errorf("failed to scan collection row: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// Lightroom stores pick as a REAL: -1, 0 or 1.
func normalizePick(pick float64) int {
	switch {
	case pick > 0:
		return PickFlagged
	case pick < 0:
		return PickRejected
	default:
		return PickNone
	}
}

// Lightroom stores the display name of the label ("Red", "Blue", custom
// strings possible).
func normalizeColorLabel(label string) string {
	switch label {
	case "Red":
		return "red"
	case "Yellow":
		return "yellow"
	case "Green":
		return "green"
	case "Blue":
		return "blue"
	case "Purple":
		return "purple"
	default:
		return label
	}
}
