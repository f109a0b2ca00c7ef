// Package xmp reads and writes crop data in XMP sidecar files.
//
// The sidecar is treated as an opaque attributed tree: the only operation is
// an upsert of the Camera Raw crop attribute group on one rdf:Description
// element. Everything else in an existing sidecar (other descriptions, other
// namespaces, comments) is preserved across an update.
package xmp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/menta2k/subject-crop/pkg/types"
)

// Namespaces that matter for the crop attribute group.
const (
	NamespaceCRS = "http://ns.adobe.com/camera-raw-settings/1.0/"
	NamespaceRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
)

var (
	// ErrNotFound is returned when a required file (source image or
	// sidecar) does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrMalformed is returned when an existing sidecar cannot be parsed.
	// The write is aborted rather than silently overwriting the content.
	ErrMalformed = errors.New("malformed XMP sidecar")
)

// xmpTemplate is the minimal sidecar synthesized when no file exists yet.
const xmpTemplate = "<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n" +
	`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Subject Crop">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
      xmlns:crs="http://ns.adobe.com/camera-raw-settings/1.0/"
      crs:Version="15.0"
      crs:ProcessVersion="11.0"
      crs:HasCrop="True"
      crs:CropTop="0.000000"
      crs:CropLeft="0.000000"
      crs:CropBottom="1.000000"
      crs:CropRight="1.000000"
      crs:CropAngle="0"
      crs:CropConstrainToWarp="0">
    </rdf:Description>
  </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

// Options controls where a sidecar is written and whether an existing one is
// backed up first.
type Options struct {
	// OutputDir redirects the written sidecar into a different directory
	// (created if missing). The canonical co-located sidecar is still the
	// one checked for pre-existing content.
	OutputDir string
	// Backup copies an existing sidecar byte-for-byte to a .bak sibling
	// before it is updated.
	Backup bool
}

// DefaultOptions enables backups and co-located output.
func DefaultOptions() Options {
	return Options{Backup: true}
}

// SidecarPath returns the canonical sidecar path for an image: the .xmp
// suffix is appended after the original extension, never replacing it.
func SidecarPath(imagePath string) string {
	return imagePath + ".xmp"
}

// BackupPath returns the backup sibling for a sidecar path.
func BackupPath(sidecarPath string) string {
	return sidecarPath + ".bak"
}

// WriteCrop writes crop data to the sidecar for sourcePath and returns the
// written path. An existing sidecar is updated in place, preserving all
// unrelated content; otherwise a minimal sidecar is synthesized from the
// template.
func WriteCrop(sourcePath string, crop types.CropRegion, opts Options) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, sourcePath)
		}
		return "", fmt.Errorf("failed to stat source: %w", err)
	}

	canonical := SidecarPath(sourcePath)
	target := canonical
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
		target = filepath.Join(opts.OutputDir, filepath.Base(canonical))
	}

	// Pre-existing content is always looked up at the canonical co-located
	// path, regardless of where the result is written.
	existing, err := os.ReadFile(canonical)
	var content []byte
	switch {
	case err == nil:
		if opts.Backup {
			if werr := os.WriteFile(BackupPath(canonical), existing, 0o644); werr != nil {
				return "", fmt.Errorf("failed to write backup: %w", werr)
			}
		}
		content, err = upsertCrop(existing, crop)
		if err != nil {
			return "", err
		}
	case os.IsNotExist(err):
		content, err = upsertCrop([]byte(xmpTemplate), crop)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("failed to read sidecar: %w", err)
	}

	if err := os.WriteFile(target, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write sidecar: %w", err)
	}
	return target, nil
}

// ReadCrop reads crop data back from a sidecar file. It returns nil without
// error when the sidecar carries no crop group.
func ReadCrop(sidecarPath string) (*types.CropRegion, error) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sidecarPath)
		}
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, desc := range doc.FindElements("//Description") {
		prefix := crsPrefix(desc)
		if prefix == "" {
			continue
		}
		if !strings.EqualFold(desc.SelectAttrValue(prefix+":HasCrop", ""), "true") {
			continue
		}
		crop := types.CropRegion{
			Left:   parseCoord(desc.SelectAttrValue(prefix+":CropLeft", "0"), 0),
			Right:  parseCoord(desc.SelectAttrValue(prefix+":CropRight", "1"), 1),
			Top:    parseCoord(desc.SelectAttrValue(prefix+":CropTop", "0"), 0),
			Bottom: parseCoord(desc.SelectAttrValue(prefix+":CropBottom", "1"), 1),
		}
		return &crop, nil
	}
	return nil, nil
}

// upsertCrop parses a sidecar document and sets the six crop attributes on
// the description element that carries Camera Raw settings, attaching the
// group to the first description when none does.
func upsertCrop(data []byte, crop types.CropRegion) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	descriptions := doc.FindElements("//Description")
	if len(descriptions) == 0 {
		return nil, fmt.Errorf("%w: no rdf:Description element", ErrMalformed)
	}

	// Prefer the description already carrying Camera Raw attributes, under
	// whatever prefix its sidecar binds to the namespace.
	target := descriptions[0]
	prefix := ""
	for _, desc := range descriptions {
		if p := crsPrefix(desc); p != "" && hasAttrWithSpace(desc, p) {
			target, prefix = desc, p
			break
		}
	}
	if prefix == "" {
		prefix = crsPrefix(target)
	}
	if prefix == "" {
		prefix = "crs"
		target.CreateAttr("xmlns:crs", NamespaceCRS)
	}

	target.CreateAttr(prefix+":HasCrop", "True")
	target.CreateAttr(prefix+":CropTop", formatCoord(crop.Top))
	target.CreateAttr(prefix+":CropLeft", formatCoord(crop.Left))
	target.CreateAttr(prefix+":CropBottom", formatCoord(crop.Bottom))
	target.CreateAttr(prefix+":CropRight", formatCoord(crop.Right))
	target.CreateAttr(prefix+":CropAngle", "0")

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize sidecar: %w", err)
	}
	return out, nil
}

func hasAttrWithSpace(el *etree.Element, prefix string) bool {
	for _, attr := range el.Attr {
		if attr.Space == prefix {
			return true
		}
	}
	return false
}

// crsPrefix resolves the prefix bound to the Camera Raw namespace in scope
// of el, honoring inner redeclarations that shadow an outer binding. It
// returns "" when the namespace is not declared. Default (unprefixed)
// namespace declarations never apply to attributes, so only xmlns:prefix
// bindings are considered.
func crsPrefix(el *etree.Element) string {
	shadowed := make(map[string]bool)
	for e := el; e != nil; e = e.Parent() {
		for _, attr := range e.Attr {
			if attr.Space != "xmlns" || shadowed[attr.Key] {
				continue
			}
			shadowed[attr.Key] = true
			if attr.Value == NamespaceCRS {
				return attr.Key
			}
		}
	}
	return ""
}

// formatCoord renders a normalized coordinate as fixed-point with six digits
// after the decimal point, matching what catalog applications write.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func parseCoord(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
