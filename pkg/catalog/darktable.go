package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// DarktableReader reads a darktable library.db database.
type DarktableReader struct {
	db *sql.DB
}

// OpenDarktable opens a library.db file read-only.
func OpenDarktable(path string) (*DarktableReader, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open darktable library: %w", err)
	}
	return &DarktableReader{db: db}, nil
}

func (r *DarktableReader) Name() string { return "darktable" }

func (r *DarktableReader) Close() error { return r.db.Close() }

// darktable color label codes.
var darktableColors = map[int]string{
	0: "red",
	1: "yellow",
	2: "green",
	3: "blue",
	4: "purple",
}

// Entries joins images with their film roll folder. The star rating lives in
// the low three bits of the flags column; the value 6 marks a rejected
// image. Color labels come from a separate table, one row per label; the
// first one wins.
func (r *DarktableReader) Entries(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT fr.folder, im.filename, im.flags,
		       COALESCE((SELECT cl.color FROM color_labels cl WHERE cl.imgid = im.id ORDER BY cl.color LIMIT 1), -1)
		FROM images im
		JOIN film_rolls fr ON fr.id = im.film_id
		ORDER BY fr.folder, im.filename`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query darktable library: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var folder, filename string
		var flags, color int
		if err := rows.Scan(&folder, &filename, &flags, &color); err != nil {
			return nil, fmt.Errorf("failed to scan darktable row: %w", err)
		}

		rating := flags & 0x7
		pick := PickNone
		if rating == 6 {
			rating = 0
			pick = PickRejected
		} else if rating > 5 {
			rating = 5
		}

		entries = append(entries, Entry{
			Path:       filepath.Join(folder, filename),
			Rating:     rating,
			Pick:       pick,
			ColorLabel: darktableColors[color],
		})
	}
	return entries, rows.Err()
}
