// Package presets maps photography shoot types and delivery destinations to
// crop settings, so a wedding batch and a sports batch start from sensible
// defaults instead of one global configuration. Custom presets can be loaded
// from YAML files and override the built-ins by name.
package presets

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/subject-crop/pkg/selector"
	"github.com/menta2k/subject-crop/pkg/types"
)

// ShootType bundles the selection strategy, padding and preferred aspect
// ratios for a kind of shoot.
type ShootType struct {
	Name     string   `yaml:"name"`
	Strategy string   `yaml:"strategy"`
	Padding  float64  `yaml:"padding"`
	Aspects  []string `yaml:"aspects"`
	// Keywords match against folder and file names for auto detection.
	Keywords []string `yaml:"keywords"`
}

// Destination describes a delivery target: export quality and size cap.
type Destination struct {
	Name         string `yaml:"name"`
	Quality      int    `yaml:"quality"`
	MaxDimension int    `yaml:"max_dimension"`
}

// Built-in shoot types. Strategy names are validated against the selector
// package on load, so a typo in a custom file fails fast.
var builtinShootTypes = []ShootType{
	{
		Name:     "wedding",
		Strategy: "centered",
		Padding:  0.08,
		Aspects:  []string{"4:5", "1:1"},
		Keywords: []string{"wedding", "bride", "groom", "ceremony", "reception"},
	},
	{
		Name:     "sports",
		Strategy: "largest",
		Padding:  0.12,
		Aspects:  []string{"16:9", "4:5"},
		Keywords: []string{"sports", "game", "match", "race", "track", "field"},
	},
	{
		Name:     "portrait",
		Strategy: "highest_confidence",
		Padding:  0.05,
		Aspects:  []string{"4:5", "3:4"},
		Keywords: []string{"portrait", "headshot", "studio", "senior"},
	},
	{
		Name:     "street",
		Strategy: "centered",
		Padding:  0.10,
		Aspects:  []string{"3:2", "1:1"},
		Keywords: []string{"street", "urban", "city", "travel"},
	},
}

var builtinDestinations = []Destination{
	{Name: "social", Quality: 85, MaxDimension: 2048},
	{Name: "client", Quality: 92, MaxDimension: 0},
	{Name: "print", Quality: 100, MaxDimension: 0},
	{Name: "web", Quality: 88, MaxDimension: 3000},
}

// Library holds the resolved set of shoot types and destinations.
type Library struct {
	shootTypes   map[string]ShootType
	destinations map[string]Destination
}

// NewLibrary returns a library containing only the built-in presets.
func NewLibrary() *Library {
	lib := &Library{
		shootTypes:   make(map[string]ShootType),
		destinations: make(map[string]Destination),
	}
	for _, st := range builtinShootTypes {
		lib.shootTypes[st.Name] = st
	}
	for _, d := range builtinDestinations {
		lib.destinations[d.Name] = d
	}
	return lib
}

// presetFile is the on-disk YAML layout.
type presetFile struct {
	ShootTypes   []ShootType   `yaml:"shoot_types"`
	Destinations []Destination `yaml:"destinations"`
}

// LoadFile merges a YAML preset file into the library. Entries with a name
// already present replace the existing preset.
func (l *Library) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read preset file: %w", err)
	}
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse preset file %s: %w", path, err)
	}

	for _, st := range file.ShootTypes {
		if st.Name == "" {
			return fmt.Errorf("preset file %s: shoot type with empty name", path)
		}
		if _, err := selector.Parse(st.Strategy); err != nil {
			return fmt.Errorf("preset file %s: shoot type %q: %w", path, st.Name, err)
		}
		if st.Padding < 0 {
			return fmt.Errorf("preset file %s: shoot type %q: negative padding", path, st.Name)
		}
		for _, aspect := range st.Aspects {
			if _, err := ParseAspect(aspect); err != nil {
				return fmt.Errorf("preset file %s: shoot type %q: %w", path, st.Name, err)
			}
		}
		l.shootTypes[st.Name] = st
	}
	for _, d := range file.Destinations {
		if d.Name == "" {
			return fmt.Errorf("preset file %s: destination with empty name", path)
		}
		if d.Quality < 1 || d.Quality > 100 {
			return fmt.Errorf("preset file %s: destination %q: quality %d out of range", path, d.Name, d.Quality)
		}
		l.destinations[d.Name] = d
	}
	return nil
}

// ShootType looks up a shoot type by name.
func (l *Library) ShootType(name string) (ShootType, bool) {
	st, ok := l.shootTypes[name]
	return st, ok
}

// Destination looks up a destination by name.
func (l *Library) Destination(name string) (Destination, bool) {
	d, ok := l.destinations[name]
	return d, ok
}

// ShootTypeNames returns the known shoot type names, sorted.
func (l *Library) ShootTypeNames() []string {
	names := make([]string, 0, len(l.shootTypes))
	for name := range l.shootTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DestinationNames returns the known destination names, sorted.
func (l *Library) DestinationNames() []string {
	names := make([]string, 0, len(l.destinations))
	for name := range l.destinations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectShootType matches path components against shoot type keywords and
// returns the first shoot type (in built-in order, custom types last) with a
// keyword hit. The second return is false when nothing matched.
func (l *Library) DetectShootType(path string) (ShootType, bool) {
	haystack := strings.ToLower(path)
	ordered := make([]ShootType, 0, len(l.shootTypes))
	seen := make(map[string]bool)
	for _, st := range builtinShootTypes {
		if resolved, ok := l.shootTypes[st.Name]; ok {
			ordered = append(ordered, resolved)
			seen[st.Name] = true
		}
	}
	for _, name := range l.ShootTypeNames() {
		if !seen[name] {
			ordered = append(ordered, l.shootTypes[name])
		}
	}
	for _, st := range ordered {
		for _, keyword := range st.Keywords {
			if keyword != "" && strings.Contains(haystack, strings.ToLower(keyword)) {
				return st, true
			}
		}
	}
	return ShootType{}, false
}

// Settings is a fully resolved crop and export configuration derived from a
// shoot type and a destination.
type Settings struct {
	Strategy     selector.Strategy
	Padding      float64
	Aspect       types.AspectRatio
	Quality      int
	MaxDimension int
}

// Resolve combines a shoot type and a destination into concrete settings,
// using the shoot type's first aspect ratio.
func Resolve(shootType ShootType, destination Destination) (Settings, error) {
	strategy, err := selector.Parse(shootType.Strategy)
	if err != nil {
		return Settings{}, err
	}
	if len(shootType.Aspects) == 0 {
		return Settings{}, fmt.Errorf("shoot type %q has no aspect ratios", shootType.Name)
	}
	aspect, err := ParseAspect(shootType.Aspects[0])
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Strategy:     strategy,
		Padding:      shootType.Padding,
		Aspect:       aspect,
		Quality:      destination.Quality,
		MaxDimension: destination.MaxDimension,
	}, nil
}

// ParseAspect parses "W:H" into an aspect ratio.
func ParseAspect(s string) (types.AspectRatio, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return types.AspectRatio{}, fmt.Errorf("invalid aspect ratio %q, expected W:H", s)
	}
	var w, h int
	if _, err := fmt.Sscanf(s, "%d:%d", &w, &h); err != nil {
		return types.AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return types.AspectRatio{}, fmt.Errorf("invalid aspect ratio %q: sides must be positive", s)
	}
	return types.AspectRatio{Width: w, Height: h}, nil
}
