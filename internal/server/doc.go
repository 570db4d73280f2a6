// Package server exposes the calibration presets over HTTP so a frame setup
// can be checked before a batch is run.
//
// Routes:
//
//	GET /health                               liveness and calibration fingerprint
//	GET /metrics                              Prometheus metrics
//	GET /api/calibration                      effective presets, calibration file layout
//	GET /api/region/{mode}/{orientation}      preset scaled to ?width=&height=
//	GET /api/mask/{orientation}.png           mask as a grayscale PNG
//
// Width and height default to the preset's base resolution.
package server
