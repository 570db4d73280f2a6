// Package mediatypes provides shared type definitions and utilities for media file
// handling across framecut.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # Extension Detection
//
// Use GetFileType to determine the type of a file based on its extension:
//
//	switch mediatypes.GetFileType(filepath.Ext(filename)) {
//	case mediatypes.FileTypeImage:
//	    // Handle image
//	case mediatypes.FileTypeVideo:
//	    // Handle video
//	}
//
// # Output Naming
//
// OutputPath keeps an input's base name and picks the output container:
//
//	mediatypes.OutputPath("/out", "/in/IMG_1.mov", mediatypes.FileTypeVideo, true)  // /out/IMG_1.webm
//	mediatypes.OutputPath("/out", "/in/IMG_1.mov", mediatypes.FileTypeVideo, false) // /out/IMG_1.mp4
//
// Files whose names contain "-transparent" are treated as earlier outputs
// (IsDerived) and skipped by discovery.
package mediatypes
