package mediatypes

import (
	"path/filepath"
	"strings"
)

// FileType represents the type of a media file.
type FileType string

const (
	// FileTypeImage represents a still image.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeOther represents an unknown or unsupported file type.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".avi":  true,
	".mkv":  true,
	".m4v":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	// Videos
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".m4v":  "video/x-m4v",
}

// Output container extensions. Masked outputs keep an alpha channel, so
// they use PNG and VP9 WebM; cropped outputs are opaque.
const (
	ExtMaskedImage  = ".png"
	ExtMaskedVideo  = ".webm"
	ExtCroppedImage = ".jpg"
	ExtCroppedVideo = ".mp4"
)

// derivedMarker tags files produced by earlier masking runs that were copied
// back into an input folder.
const derivedMarker = "-transparent"

// GetFileType returns the FileType for a given file extension.
// Matching is case-insensitive and the extension must include the leading dot.
// Returns FileTypeOther if the extension is not recognized.
func GetFileType(ext string) FileType {
	ext = strings.ToLower(ext)
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if VideoExtensions[ext] {
		return FileTypeVideo
	}
	return FileTypeOther
}

// GetFileTypeForPath classifies a path by its extension.
func GetFileTypeForPath(path string) FileType {
	return GetFileType(filepath.Ext(path))
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetFileType(ext) != FileTypeOther
}

// IsDerived reports whether name looks like the output of a previous masking
// run. Such files are never reprocessed.
func IsDerived(name string) bool {
	return strings.Contains(filepath.Base(name), derivedMarker)
}

// OutputExtension returns the container extension for a processed file.
// alpha selects the transparent (masking) containers.
func OutputExtension(t FileType, alpha bool) string {
	switch {
	case t == FileTypeVideo && alpha:
		return ExtMaskedVideo
	case t == FileTypeVideo:
		return ExtCroppedVideo
	case alpha:
		return ExtMaskedImage
	default:
		return ExtCroppedImage
	}
}

// OutputPath places the processed version of input in outputDir, keeping
// the base name and swapping the extension.
func OutputPath(outputDir, input string, t FileType, alpha bool) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+OutputExtension(t, alpha))
}
