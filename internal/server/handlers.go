package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"framecut/internal/calibration"
	"framecut/internal/geometry"
	"framecut/internal/logging"
	"framecut/internal/startup"

	"github.com/gorilla/mux"
	"sigs.k8s.io/yaml"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Fingerprint string `json:"fingerprint"`
	Threshold   int    `json:"threshold"`
	GoVersion   string `json:"goVersion"`
}

// RegionResponse describes a calibration region scaled to a resolution.
type RegionResponse struct {
	Mode        string           `json:"mode"`
	Orientation string           `json:"orientation"`
	Base        geometry.Size    `json:"base"`
	Size        geometry.Size    `json:"size"`
	Shape       string           `json:"shape"`
	Points      []geometry.Point `json:"points"`
	Bounds      geometry.Rect    `json:"bounds"`
	// Crop is the clipped rectangle ffmpeg or libvips would cut. Crop mode only.
	Crop *geometry.Rect `json:"crop,omitempty"`
	// Inside counts pixels inside the region. Mask mode only.
	Inside int `json:"inside,omitempty"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logging.Error("failed to encode JSON error: %v", err)
	}
}

// HealthCheck reports liveness and the calibration in effect.
func (s *Server) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{
		Status:      "healthy",
		Version:     startup.Version,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Fingerprint: s.fingerprint,
		Threshold:   int(s.threshold),
		GoVersion:   runtime.Version(),
	})
}

// GetCalibration returns the effective presets in calibration file layout.
func (s *Server) GetCalibration(w http.ResponseWriter, _ *http.Request) {
	data, err := calibration.Marshal(s.calibration)
	if err == nil {
		data, err = yaml.YAMLToJSON(data)
	}
	if err != nil {
		writeJSONError(w, "failed to render calibration", http.StatusInternalServerError)
		logging.Error("render calibration: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		logging.Debug("write calibration response: %v", err)
	}
}

// GetRegion scales one preset to the requested resolution.
func (s *Server) GetRegion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mode, err := calibration.ParseMode(vars["mode"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	orientation, err := geometry.ParseOrientation(vars["orientation"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	calib := s.calibration.Preset(mode).For(orientation)
	size, err := requestSize(r, calib.Base)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	region := geometry.Scale(calib, size)
	resp := RegionResponse{
		Mode:        string(mode),
		Orientation: string(orientation),
		Base:        calib.Base,
		Size:        size,
		Shape:       shapeName(region.Shape),
		Points:      region.Points(),
		Bounds:      region.Bounds(),
	}
	if mode == calibration.ModeCrop {
		clipped := region.Rect.Intersect(size)
		resp.Crop = &clipped
	} else {
		resp.Inside = geometry.NewMask(region, size).InsideCount()
	}
	writeJSON(w, resp)
}

// GetMask renders the mask preset for orientation as a grayscale PNG, white
// inside the frame and black outside.
func (s *Server) GetMask(w http.ResponseWriter, r *http.Request) {
	orientation, err := geometry.ParseOrientation(mux.Vars(r)["orientation"])
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	calib := s.calibration.Mask.For(orientation)
	size, err := requestSize(r, calib.Base)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	mask := geometry.NewMask(geometry.Scale(calib, size), size)
	var buf bytes.Buffer
	if err := png.Encode(&buf, mask.Gray()); err != nil {
		writeJSONError(w, "failed to encode mask", http.StatusInternalServerError)
		logging.Error("encode mask: %v", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.Debug("write mask response: %v", err)
	}
}

// requestSize reads width and height query parameters, falling back to def
// for any that are missing.
func requestSize(r *http.Request, def geometry.Size) (geometry.Size, error) {
	size := def
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"width", &size.Width},
		{"height", &size.Height},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDimension {
			return geometry.Size{}, fmt.Errorf("%s must be an integer between 1 and %d", p.name, maxDimension)
		}
		*p.dst = n
	}
	return size, nil
}

func shapeName(s geometry.Shape) string {
	if s == geometry.ShapeQuad {
		return "quad"
	}
	return "rect"
}
