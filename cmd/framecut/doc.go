// Command framecut makes the white backdrop around a framed picture
// transparent, or crops footage to the inner edge of the frame.
//
// Usage:
//
//	framecut mask [flags] [file]
//	framecut crop [flags] [file]
//	framecut serve [-addr :8080] [-calibration file.yaml]
//	framecut history [-ledger path] [-limit n] [-run id]
//	framecut calibration [-file file.yaml]
//	framecut version
//
// mask and crop process every supported file in INPUT_DIR, or the single
// file given, writing results with the same base name to OUTPUT_DIR:
//
//	mask  images to .png, videos to .webm (VP9 with alpha)
//	crop  images to .jpg, videos to .mp4 (H.264)
//
// A failing file is reported and the batch moves on. The exit status is 1
// when any file failed or the run was interrupted, and 2 for usage or
// configuration errors.
//
// Configuration comes from the environment (see package startup); flags given
// on the command line take precedence. SIGINT and SIGTERM stop the batch after
// the current file, and any partial output is removed.
package main
