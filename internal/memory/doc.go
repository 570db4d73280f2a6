// Package memory sets the Go soft memory limit from the container limit.
//
// Environment:
//
//	GOMEMLIMIT    standard Go limit; when present nothing else is applied
//	MEMORY_LIMIT  container limit in bytes
//	MEMORY_RATIO  share of MEMORY_LIMIT for the Go heap (default 0.75)
//
// Streaming a 4K video holds two RGBA frames of roughly 33 MB each, so the
// heap rarely needs much; the remainder is left for ffmpeg.
package memory
