package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/menta2k/subject-crop/pkg/catalog"
)

func main() {
	var catalogPath, colorLabel string
	var minRating int
	var pickedOnly, verbose, listCollections bool

	flag.StringVar(&catalogPath, "catalog", "", "catalog file (.lrcat, library.db, .cocatalogdb)")
	flag.IntVar(&minRating, "min-rating", 0, "keep entries rated at least this many stars")
	flag.BoolVar(&pickedOnly, "picked", false, "keep only flagged picks")
	flag.StringVar(&colorLabel, "label", "", "keep only entries with this color label")
	flag.BoolVar(&verbose, "v", false, "print rating and label next to each path")
	flag.BoolVar(&listCollections, "collections", false, "list collections instead of files (Lightroom only)")
	flag.Parse()

	if catalogPath == "" {
		log.Fatalf("usage: %s -catalog shoot.lrcat [-min-rating 3] [-picked] [-label red]", filepath.Base(os.Args[0]))
	}

	reader, err := catalog.Open(catalogPath)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	if listCollections {
		lr, ok := reader.(*catalog.LightroomReader)
		if !ok {
			log.Fatalf("collections are only available for Lightroom catalogs, not %s", reader.Name())
		}
		collections, err := lr.Collections(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		for _, c := range collections {
			fmt.Printf("%s\t%d images\n", c.Name, c.ImageCount)
		}
		return
	}

	entries, err := reader.Entries(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	sel := catalog.Selection{MinRating: minRating, PickedOnly: pickedOnly, ColorLabel: colorLabel}
	kept := catalog.Filter(entries, sel)
	keptSet := make(map[string]bool, len(kept))
	for _, path := range kept {
		keptSet[path] = true
	}

	for _, entry := range entries {
		if !keptSet[entry.Path] {
			continue
		}
		if verbose {
			fmt.Printf("%s\trating=%d label=%s\n", entry.Path, entry.Rating, entry.ColorLabel)
		} else {
			fmt.Println(entry.Path)
		}
	}
	log.Printf("%s catalog: %d of %d entries match", reader.Name(), len(kept), len(entries))
}
