package calibration

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"framecut/internal/geometry"

	"golang.org/x/crypto/blake2b"
	"sigs.k8s.io/yaml"
)

// Mode selects between per-pixel masking and rectangular cropping.
type Mode string

const (
	// ModeMask removes white backdrop pixels outside the frame quadrilateral.
	ModeMask Mode = "mask"
	// ModeCrop crops footage to the frame's inner rectangle.
	ModeCrop Mode = "crop"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMask, ModeCrop:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want mask or crop)", s)
}

// Preset holds the two orientation-specific calibration regions for one mode.
type Preset struct {
	Wide geometry.CalibrationRegion
	Tall geometry.CalibrationRegion
}

// For returns the calibration region for the given orientation.
func (p Preset) For(o geometry.Orientation) geometry.CalibrationRegion {
	if o == geometry.Wide {
		return p.Wide
	}
	return p.Tall
}

// Set is the full calibration surface: one preset per mode.
type Set struct {
	Mask Preset
	Crop Preset
}

// Preset returns the preset for a mode.
func (s Set) Preset(m Mode) Preset {
	if m == ModeCrop {
		return s.Crop
	}
	return s.Mask
}

// Default returns the presets measured for the current physical frame setup.
func Default() Set {
	return Set{
		Mask: Preset{
			Wide: geometry.CalibrationRegion{
				Base: geometry.Size{Width: 883, Height: 737},
				Region: geometry.QuadRegion(geometry.Quad{
					{X: 54, Y: 61},   // top-left
					{X: 56, Y: 668},  // bottom-left
					{X: 804, Y: 668}, // bottom-right
					{X: 804, Y: 61},  // top-right
				}),
			},
			Tall: geometry.CalibrationRegion{
				Base: geometry.Size{Width: 737, Height: 883},
				Region: geometry.QuadRegion(geometry.Quad{
					{X: 61, Y: 50},
					{X: 61, Y: 807},
					{X: 674, Y: 807},
					{X: 670, Y: 58},
				}),
			},
		},
		Crop: Preset{
			Wide: geometry.CalibrationRegion{
				Base:   geometry.Size{Width: 883, Height: 737},
				Region: geometry.RectRegion(geometry.Rect{X: 50, Y: 54, Width: 770, Height: 629}),
			},
			Tall: geometry.CalibrationRegion{
				Base:   geometry.Size{Width: 737, Height: 883},
				Region: geometry.RectRegion(geometry.Rect{X: 54, Y: 50, Width: 629, Height: 769}),
			},
		},
	}
}

// Validate checks every region. Crop presets must be rectangles.
func (s Set) Validate() error {
	checks := []struct {
		name  string
		calib geometry.CalibrationRegion
	}{
		{"mask.wide", s.Mask.Wide},
		{"mask.tall", s.Mask.Tall},
		{"crop.wide", s.Crop.Wide},
		{"crop.tall", s.Crop.Tall},
	}
	for _, c := range checks {
		if err := c.calib.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	if s.Crop.Wide.Region.Shape != geometry.ShapeRect || s.Crop.Tall.Region.Shape != geometry.ShapeRect {
		return fmt.Errorf("crop presets must be rectangles: %w", geometry.ErrInvalidRegion)
	}
	return nil
}

// Fingerprint returns a stable hash of the calibration plus any extra
// parameters that affect output (such as the white threshold). Outputs made
// with equal fingerprints are interchangeable.
func (s Set) Fingerprint(extra ...string) string {
	data, _ := json.Marshal(toFile(s))
	h, _ := blake2b.New256(nil)
	h.Write(data)
	for _, e := range extra {
		h.Write([]byte{0})
		h.Write([]byte(e))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// File layout, YAML or JSON.

type file struct {
	Mask *presetFile `json:"mask,omitempty"`
	Crop *presetFile `json:"crop,omitempty"`
}

type presetFile struct {
	Wide *regionFile `json:"wide,omitempty"`
	Tall *regionFile `json:"tall,omitempty"`
}

type regionFile struct {
	Base geometry.Size    `json:"base"`
	Quad []geometry.Point `json:"quad,omitempty"`
	Rect *geometry.Rect   `json:"rect,omitempty"`
}

var errRegionShape = errors.New("region needs exactly one of quad (4 points) or rect")

// Load reads a calibration file. Presets absent from the file keep their
// default values. The merged set is validated.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read calibration file: %w", err)
	}
	return Parse(data)
}

// Parse decodes calibration YAML (or JSON) over the defaults.
func Parse(data []byte) (Set, error) {
	var f file
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return Set{}, fmt.Errorf("parse calibration: %w", err)
	}

	s := Default()
	if err := mergePreset(&s.Mask, f.Mask, "mask"); err != nil {
		return Set{}, err
	}
	if err := mergePreset(&s.Crop, f.Crop, "crop"); err != nil {
		return Set{}, err
	}
	if err := s.Validate(); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Marshal renders the set as YAML.
func Marshal(s Set) ([]byte, error) {
	return yaml.Marshal(toFile(s))
}

func mergePreset(dst *Preset, src *presetFile, name string) error {
	if src == nil {
		return nil
	}
	if src.Wide != nil {
		r, err := src.Wide.region()
		if err != nil {
			return fmt.Errorf("%s.wide: %w", name, err)
		}
		dst.Wide = r
	}
	if src.Tall != nil {
		r, err := src.Tall.region()
		if err != nil {
			return fmt.Errorf("%s.tall: %w", name, err)
		}
		dst.Tall = r
	}
	return nil
}

func (r *regionFile) region() (geometry.CalibrationRegion, error) {
	c := geometry.CalibrationRegion{Base: r.Base}
	switch {
	case r.Rect != nil && len(r.Quad) == 0:
		c.Region = geometry.RectRegion(*r.Rect)
	case r.Rect == nil && len(r.Quad) == 4:
		c.Region = geometry.QuadRegion(geometry.Quad(r.Quad))
	default:
		return c, errRegionShape
	}
	return c, nil
}

func toFile(s Set) file {
	return file{
		Mask: &presetFile{Wide: toRegionFile(s.Mask.Wide), Tall: toRegionFile(s.Mask.Tall)},
		Crop: &presetFile{Wide: toRegionFile(s.Crop.Wide), Tall: toRegionFile(s.Crop.Tall)},
	}
}

func toRegionFile(c geometry.CalibrationRegion) *regionFile {
	r := &regionFile{Base: c.Base}
	if c.Region.Shape == geometry.ShapeRect {
		rect := c.Region.Rect
		r.Rect = &rect
	} else {
		r.Quad = append([]geometry.Point(nil), c.Region.Quad[:]...)
	}
	return r
}
