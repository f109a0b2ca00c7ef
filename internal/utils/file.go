package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// Decodable formats plus the raw formats whose crops live only in the XMP
// sidecar. Raw files cannot be pixel-exported but are still valid batch
// input.
var imageExts = []string{
	"jpg", "jpeg", "png", "tiff", "tif", "webp", "bmp",
	"dng", "cr2", "cr3", "nef", "arw", "orf", "raf", "rw2",
}

// IsImageFile checks if a file has a supported image extension
func IsImageFile(filename string) bool {
	ext := GetFileExtension(filename)
	for _, imgExt := range imageExts {
		if ext == imgExt {
			return true
		}
	}
	return false
}

// IsRawFile reports whether the file is a camera raw format
func IsRawFile(filename string) bool {
	ext := GetFileExtension(filename)
	rawExts := []string{"dng", "cr2", "cr3", "nef", "arw", "orf", "raf", "rw2"}
	for _, rawExt := range rawExts {
		if ext == rawExt {
			return true
		}
	}
	return false
}

// OutputFilename builds the output path for a derived file: the source base
// name plus a suffix, re-extensioned for the target format. An empty format
// keeps the source extension, defaulting to jpg.
func OutputFilename(inputFile, outputDir, suffix, format string) string {
	baseName := filepath.Base(inputFile)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))

	if format == "" {
		format = GetFileExtension(inputFile)
		if format == "" {
			format = "jpg"
		}
	}

	outputName := fmt.Sprintf("%s%s.%s", nameWithoutExt, suffix, format)
	return filepath.Join(outputDir, outputName)
}

// UniquePath returns path if nothing exists there, otherwise the first
// name_1.ext, name_2.ext... that is free.
func UniquePath(path string) string {
	if !FileExists(path) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !FileExists(candidate) {
			return candidate
		}
	}
}

// ListImageFiles recursively lists all image files in a directory, skipping
// sidecars and hidden files
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if info.IsDir() {
			if strings.HasPrefix(base, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") {
			return nil
		}
		if IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}
