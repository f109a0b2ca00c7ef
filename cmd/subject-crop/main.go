package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	subjectcrop "github.com/menta2k/subject-crop"
	"github.com/menta2k/subject-crop/internal/config"
	"github.com/menta2k/subject-crop/internal/utils"
	"github.com/menta2k/subject-crop/pkg/batch"
	"github.com/menta2k/subject-crop/pkg/catalog"
	"github.com/menta2k/subject-crop/pkg/presets"
	"github.com/menta2k/subject-crop/pkg/types"
	"github.com/menta2k/subject-crop/pkg/xmp"
)

func main() {
	var in, configPath string
	var aspect, strategy string
	var padding float64
	var backend, model, url string
	var shootType, destination, presetFile string
	var catalogPath, colorLabel string
	var minRating int
	var pickedOnly bool
	var outputDir string
	var noBackup bool
	var doExport bool
	var exportDir, exportFormat string
	var exportQuality, exportMaxDim int
	var resultsPath string
	var dryRun bool

	flag.StringVar(&in, "in", "", "input image file or directory")
	flag.StringVar(&configPath, "config", "", "config file path (JSON)")

	flag.StringVar(&aspect, "aspect", "", "target aspect ratio as W:H (default 4:5)")
	flag.Float64Var(&padding, "padding", -1, "padding around the subject as a fraction of its width")
	flag.StringVar(&strategy, "strategy", "", "subject selection: largest|centered|highest_confidence")

	flag.StringVar(&backend, "backend", "", "detection backend: ollama|llamacpp|saliency")
	flag.StringVar(&model, "model", "", "vision model name")
	flag.StringVar(&url, "url", "", "model server URL")

	flag.StringVar(&shootType, "shoot", "", "shoot type preset: wedding|sports|portrait|street|auto")
	flag.StringVar(&destination, "dest", "", "delivery destination preset: social|client|print|web")
	flag.StringVar(&presetFile, "presets", "", "custom preset file (YAML)")

	flag.StringVar(&catalogPath, "catalog", "", "read the file list from a catalog (.lrcat, library.db, .cocatalogdb)")
	flag.IntVar(&minRating, "min-rating", 0, "keep catalog entries rated at least this many stars")
	flag.BoolVar(&pickedOnly, "picked", false, "keep only flagged picks from the catalog")
	flag.StringVar(&colorLabel, "label", "", "keep only catalog entries with this color label")

	flag.StringVar(&outputDir, "out", "", "sidecar output directory (default: next to each image)")
	flag.BoolVar(&noBackup, "no-backup", false, "do not back up existing sidecars before updating them")

	flag.BoolVar(&doExport, "export", false, "also render the crops to image files")
	flag.StringVar(&exportDir, "export-dir", "", "export output directory")
	flag.StringVar(&exportFormat, "export-format", "", "export format: jpg|png|webp")
	flag.IntVar(&exportQuality, "export-quality", 0, "export quality (1-100)")
	flag.IntVar(&exportMaxDim, "export-maxdim", 0, "export max long side in pixels, 0=original")

	flag.StringVar(&resultsPath, "results", "", "write a JSON summary of all results to this file")
	flag.BoolVar(&dryRun, "dry-run", false, "compute crops but write nothing")

	flag.Parse()
	if in == "" && catalogPath == "" {
		log.Fatalf("usage: %s -in photo.jpg|photos/ [-aspect 4:5] [-strategy largest] [-backend ollama] [-shoot wedding] [-export]", filepath.Base(os.Args[0]))
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	files, err := collectFiles(in, catalogPath, catalog.Selection{
		MinRating:  minRating,
		PickedOnly: pickedOnly,
		ColorLabel: colorLabel,
	})
	if err != nil {
		log.Fatal(err)
	}
	if len(files) == 0 {
		log.Fatal("no image files to process")
	}

	library := presets.NewLibrary()
	if presetFile != "" {
		if err := library.LoadFile(presetFile); err != nil {
			log.Fatal(err)
		}
	}
	applyPresets(cfg, library, shootType, destination, files[0])

	// Explicit flags win over presets and config file.
	if aspect != "" {
		cfg.Crop.AspectRatio = aspect
	}
	if padding >= 0 {
		cfg.Crop.Padding = padding
	}
	if strategy != "" {
		cfg.Crop.Strategy = strategy
	}
	if backend != "" {
		cfg.Detector.Backend = backend
	}
	if model != "" {
		cfg.Detector.Model = model
	}
	if url != "" {
		cfg.Detector.URL = url
	}
	cfg.Sidecar.OutputDir = outputDir
	cfg.Sidecar.Backup = !noBackup
	if doExport {
		cfg.Export.Enabled = true
	}
	if exportDir != "" {
		cfg.Export.OutputDir = exportDir
	}
	if exportFormat != "" {
		cfg.Export.Format = exportFormat
	}
	if exportQuality > 0 {
		cfg.Export.Quality = exportQuality
	}
	if exportMaxDim > 0 {
		cfg.Export.MaxDimension = exportMaxDim
	}

	app, err := subjectcrop.NewWithConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := app.NewWorker()
	events, err := worker.Start(ctx, files, app.BatchOptions())
	if err != nil {
		log.Fatal(err)
	}

	var results []types.ProcessingResult
	for event := range events {
		switch event.Kind {
		case batch.EventProgress:
			log.Printf("[%d/%d] %s", event.Index, event.Total, event.Message)
		case batch.EventFileComplete:
			logResult(event.Result)
		case batch.EventBatchComplete:
			results = event.Results
			if event.Cancelled {
				log.Printf("batch cancelled after %d of %d files", len(results), event.Total)
			}
		}
	}

	if resultsPath != "" {
		js, _ := json.MarshalIndent(results, "", "  ")
		if err := os.WriteFile(resultsPath, js, 0o644); err != nil {
			log.Printf("failed to write results summary: %v", err)
		}
	}

	if dryRun {
		log.Printf("dry run, nothing written")
		return
	}

	sidecarOpts := xmp.Options{OutputDir: cfg.Sidecar.OutputDir, Backup: cfg.Sidecar.Backup}
	for _, outcome := range batch.WriteSidecars(results, sidecarOpts) {
		if outcome.Err != nil {
			log.Printf("sidecar for %s failed: %v", outcome.SourcePath, outcome.Err)
		} else {
			log.Printf("wrote %s", outcome.SidecarPath)
		}
	}

	if cfg.Export.Enabled {
		for _, outcome := range app.NewExporter().ExportResults(results) {
			if outcome.Err != nil {
				log.Printf("export for %s failed: %v", outcome.SourcePath, outcome.Err)
			} else {
				log.Printf("wrote %s", outcome.OutputPath)
			}
		}
	}
}

// collectFiles assembles the batch from a catalog or from the input path.
func collectFiles(in, catalogPath string, sel catalog.Selection) ([]string, error) {
	if catalogPath != "" {
		reader, err := catalog.Open(catalogPath)
		if err != nil {
			return nil, err
		}
		defer reader.Close()

		entries, err := reader.Entries(context.Background())
		if err != nil {
			return nil, err
		}
		log.Printf("%s catalog: %d entries", reader.Name(), len(entries))
		return catalog.Filter(entries, sel), nil
	}

	if utils.DirExists(in) {
		return utils.ListImageFiles(in)
	}
	if !utils.FileExists(in) {
		return nil, fmt.Errorf("input not found: %s", in)
	}
	return []string{in}, nil
}

// applyPresets overlays shoot type and destination presets onto the config.
func applyPresets(cfg *config.Config, library *presets.Library, shootType, destination, firstFile string) {
	if shootType == "auto" {
		if detected, ok := library.DetectShootType(firstFile); ok {
			log.Printf("detected shoot type %q from %s", detected.Name, firstFile)
			shootType = detected.Name
		} else {
			log.Printf("no shoot type matched %s, keeping defaults", firstFile)
			shootType = ""
		}
	}

	if shootType != "" {
		st, ok := library.ShootType(shootType)
		if !ok {
			log.Fatalf("unknown shoot type %q (known: %v)", shootType, library.ShootTypeNames())
		}
		cfg.Crop.Strategy = st.Strategy
		cfg.Crop.Padding = st.Padding
		if len(st.Aspects) > 0 {
			cfg.Crop.AspectRatio = st.Aspects[0]
		}
	}

	if destination != "" {
		dest, ok := library.Destination(destination)
		if !ok {
			log.Fatalf("unknown destination %q (known: %v)", destination, library.DestinationNames())
		}
		cfg.Export.Enabled = true
		cfg.Export.Quality = dest.Quality
		cfg.Export.MaxDimension = dest.MaxDimension
	}
}

func logResult(result *types.ProcessingResult) {
	base := filepath.Base(result.SourcePath)
	switch result.Status {
	case types.StatusSuccess:
		log.Printf("%s: %s %q conf=%.2f crop=%.3f,%.3f-%.3f,%.3f",
			base, result.Status, result.Primary.Label, result.Primary.Confidence,
			result.Crop.Left, result.Crop.Top, result.Crop.Right, result.Crop.Bottom)
	case types.StatusNoSubject:
		log.Printf("%s: no subject detected", base)
	default:
		log.Printf("%s: %s %s", base, result.Status, result.ErrorMessage)
	}
}
