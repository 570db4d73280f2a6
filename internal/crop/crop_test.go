package crop

import (
	"errors"
	"testing"

	"framecut/internal/calibration"
	"framecut/internal/geometry"
)

func TestPlan(t *testing.T) {
	presets := calibration.Default().Crop

	tests := []struct {
		name   string
		region geometry.CalibrationRegion
		size   geometry.Size
		want   geometry.Rect
	}{
		{
			name:   "tall at double resolution",
			region: presets.Tall,
			size:   geometry.Size{Width: 1474, Height: 1766},
			want:   geometry.Rect{X: 108, Y: 100, Width: 1258, Height: 1538},
		},
		{
			name:   "tall at base",
			region: presets.Tall,
			size:   geometry.Size{Width: 737, Height: 883},
			want:   geometry.Rect{X: 54, Y: 50, Width: 629, Height: 769},
		},
		{
			name:   "wide at base",
			region: presets.Wide,
			size:   geometry.Size{Width: 883, Height: 737},
			want:   geometry.Rect{X: 50, Y: 54, Width: 770, Height: 629},
		},
		{
			name:   "wide at 1080p truncates each axis",
			region: presets.Wide,
			size:   geometry.Size{Width: 1920, Height: 1080},
			// 50*1920/883=108.7, 54*1080/737=79.1, 770*1920/883=1674.3, 629*1080/737=921.7
			want: geometry.Rect{X: 108, Y: 79, Width: 1674, Height: 921},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.region, tt.size)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Plan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanRejectsQuad(t *testing.T) {
	_, err := Plan(calibration.Default().Mask.Wide, geometry.Size{Width: 883, Height: 737})
	if !errors.Is(err, ErrNotRectangle) {
		t.Errorf("Plan(quad) error = %v, want ErrNotRectangle", err)
	}
}

func TestPlanRejectsEmptySize(t *testing.T) {
	_, err := Plan(calibration.Default().Crop.Wide, geometry.Size{})
	if !errors.Is(err, geometry.ErrInvalidRegion) {
		t.Errorf("Plan(empty) error = %v, want ErrInvalidRegion", err)
	}
}

func TestClip(t *testing.T) {
	size := geometry.Size{Width: 100, Height: 80}

	got, err := Clip(geometry.Rect{X: 90, Y: -5, Width: 20, Height: 20}, size)
	if err != nil {
		t.Fatal(err)
	}
	if want := (geometry.Rect{X: 90, Y: 0, Width: 10, Height: 15}); got != want {
		t.Errorf("Clip() = %+v, want %+v", got, want)
	}

	if _, err := Clip(geometry.Rect{X: 200, Y: 0, Width: 10, Height: 10}, size); err == nil {
		t.Error("expected error for rectangle outside the image")
	}
}

func TestFilterExpr(t *testing.T) {
	got := FilterExpr(geometry.Rect{X: 108, Y: 100, Width: 1258, Height: 1538})
	if want := "crop=1258:1538:108:100"; got != want {
		t.Errorf("FilterExpr() = %q, want %q", got, want)
	}
}
