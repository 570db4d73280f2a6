package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"framecut/internal/geometry"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultPresets(t *testing.T) {
	Convey("Given the default calibration", t, func() {
		s := Default()

		Convey("it validates", func() {
			So(s.Validate(), ShouldBeNil)
		})

		Convey("masking uses quadrilaterals and cropping uses rectangles", func() {
			So(s.Mask.Wide.Region.Shape, ShouldEqual, geometry.ShapeQuad)
			So(s.Mask.Tall.Region.Shape, ShouldEqual, geometry.ShapeQuad)
			So(s.Crop.Wide.Region.Shape, ShouldEqual, geometry.ShapeRect)
			So(s.Crop.Tall.Region.Shape, ShouldEqual, geometry.ShapeRect)
		})

		Convey("Preset.For selects by orientation", func() {
			So(s.Preset(ModeMask).For(geometry.Wide).Base, ShouldResemble, geometry.Size{Width: 883, Height: 737})
			So(s.Preset(ModeMask).For(geometry.Tall).Base, ShouldResemble, geometry.Size{Width: 737, Height: 883})
			So(s.Preset(ModeCrop).For(geometry.Tall).Region.Rect, ShouldResemble,
				geometry.Rect{X: 54, Y: 50, Width: 629, Height: 769})
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given a calibration file overriding one preset", t, func() {
		data := []byte(`
mask:
  wide:
    base: {width: 1000, height: 800}
    quad:
      - {x: 10, y: 10}
      - {x: 10, y: 790}
      - {x: 990, y: 790}
      - {x: 990, y: 10}
`)
		s, err := Parse(data)

		Convey("the override is applied", func() {
			So(err, ShouldBeNil)
			So(s.Mask.Wide.Base, ShouldResemble, geometry.Size{Width: 1000, Height: 800})
			So(s.Mask.Wide.Region.Quad[2], ShouldResemble, geometry.Point{X: 990, Y: 790})
		})

		Convey("untouched presets keep their defaults", func() {
			So(s.Mask.Tall, ShouldResemble, Default().Mask.Tall)
			So(s.Crop, ShouldResemble, Default().Crop)
		})
	})

	Convey("Given invalid calibration files", t, func() {
		Convey("a point outside the base size is rejected", func() {
			_, err := Parse([]byte(`
crop:
  tall:
    base: {width: 100, height: 100}
    rect: {x: 50, y: 50, w: 60, h: 10}
`))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "crop.tall")
		})

		Convey("a crop preset given as a quadrilateral is rejected", func() {
			_, err := Parse([]byte(`
crop:
  wide:
    base: {width: 100, height: 100}
    quad: [{x: 0, y: 0}, {x: 0, y: 10}, {x: 10, y: 10}, {x: 10, y: 0}]
`))
			So(err, ShouldNotBeNil)
		})

		Convey("a three point polygon is rejected", func() {
			_, err := Parse([]byte(`
mask:
  tall:
    base: {width: 100, height: 100}
    quad: [{x: 0, y: 0}, {x: 0, y: 10}, {x: 10, y: 10}]
`))
			So(err, ShouldNotBeNil)
		})

		Convey("unknown keys are rejected", func() {
			_, err := Parse([]byte(`masks: {}`))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	Convey("Marshalled defaults parse back to the same set", t, func() {
		data, err := Marshal(Default())
		So(err, ShouldBeNil)

		s, err := Parse(data)
		So(err, ShouldBeNil)
		So(s, ShouldResemble, Default())
	})
}

func TestLoad(t *testing.T) {
	Convey("Load reads from disk", t, func() {
		path := filepath.Join(t.TempDir(), "frame.yaml")
		So(os.WriteFile(path, []byte("crop:\n  wide:\n    base: {width: 10, height: 10}\n    rect: {x: 1, y: 1, w: 8, h: 8}\n"), 0o644), ShouldBeNil)

		s, err := Load(path)
		So(err, ShouldBeNil)
		So(s.Crop.Wide.Region.Rect, ShouldResemble, geometry.Rect{X: 1, Y: 1, Width: 8, Height: 8})

		_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
		So(err, ShouldNotBeNil)
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Fingerprints", t, func() {
		a := Default().Fingerprint("250")

		Convey("are stable", func() {
			So(Default().Fingerprint("250"), ShouldEqual, a)
		})

		Convey("change with extra parameters", func() {
			So(Default().Fingerprint("240"), ShouldNotEqual, a)
		})

		Convey("change with geometry", func() {
			s := Default()
			s.Mask.Wide.Region.Quad[0].X++
			So(s.Fingerprint("250"), ShouldNotEqual, a)
		})
	})
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"mask", "crop"} {
		if m, err := ParseMode(in); err != nil || string(m) != in {
			t.Errorf("ParseMode(%q) = %v, %v", in, m, err)
		}
	}
	if _, err := ParseMode("matte"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
