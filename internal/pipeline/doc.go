// Package pipeline drives masking and cropping of individual files and of
// whole batches.
//
// A Pipeline combines a VideoTool (ffmpeg), an ImageCodec, the calibration in
// effect and, optionally, a run ledger and a publisher. ProcessFile never
// leaves a partially written output at the final path: every output goes
// through a filesystem.Output that is committed on success and aborted on
// any failure.
//
// Masked videos use one of two strategies:
//
//	stream  raw RGBA frames are piped from a decoder to a VP9 encoder
//	frames  frames are extracted to PNG in a private workspace, masked and
//	        reassembled; the workspace is removed on every exit path
//
// Failures are reported as *FileError values carrying a Kind; errors.Is
// matches them against ErrProbe, ErrDecode, ErrEncode, ErrFilesystem and
// ErrConfig.
package pipeline
