// Package matte removes white backdrop outside the picture frame.
//
// A pixel becomes fully transparent only when both conditions hold: it lies
// outside the scaled frame region, and its red, green and blue channels are
// all at or above the white threshold. Pixels inside the frame are never
// modified, whatever their color, and existing alpha is otherwise preserved.
//
// Processor is the entry point used by the media pipeline. It caches one mask
// per orientation and resolution, so a video's frames share a single
// rasterised region.
package matte
