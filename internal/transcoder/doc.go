// Package transcoder wraps ffmpeg and ffprobe.
//
// Probe reads dimensions, frame rate, frame count and rotation. Masked videos
// are produced either by streaming raw RGBA frames through two ffmpeg
// processes (DecodeFrames and NewEncoder) or by extracting numbered PNGs into
// a workspace and reassembling them (ExtractFrames and AssembleFrames). Crop
// encodes a rectangular crop in a single invocation.
//
// Every invocation honours the caller's context and, when Config.Timeout is
// set, an additional deadline. Errors carry the tail of ffmpeg's stderr.
package transcoder
