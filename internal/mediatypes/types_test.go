package mediatypes

import (
	"path/filepath"
	"testing"
)

func TestGetFileType(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want FileType
	}{
		{
			name: "JPEG image",
			ext:  ".jpg",
			want: FileTypeImage,
		},
		{
			name: "PNG image",
			ext:  ".png",
			want: FileTypeImage,
		},
		{
			name: "Uppercase TIFF image",
			ext:  ".TIFF",
			want: FileTypeImage,
		},
		{
			name: "MOV video",
			ext:  ".mov",
			want: FileTypeVideo,
		},
		{
			name: "WebM video",
			ext:  ".webm",
			want: FileTypeVideo,
		},
		{
			name: "Uppercase MP4 video",
			ext:  ".MP4",
			want: FileTypeVideo,
		},
		{
			name: "GIF unsupported",
			ext:  ".gif",
			want: FileTypeOther,
		},
		{
			name: "Unknown extension",
			ext:  ".xyz",
			want: FileTypeOther,
		},
		{
			name: "Empty extension",
			ext:  "",
			want: FileTypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetFileType(tt.ext)
			if got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestNoExtensionIsBothImageAndVideo(t *testing.T) {
	for ext := range ImageExtensions {
		if VideoExtensions[ext] {
			t.Errorf("%s is listed as both image and video", ext)
		}
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".png", "image/png"},
		{".JPG", "image/jpeg"},
		{".webm", "video/webm"},
		{".mp4", "video/mp4"},
		{".unknown", "application/octet-stream"},
		{"", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := GetMimeType(tt.ext); got != tt.want {
				t.Errorf("GetMimeType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestIsDerived(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"painting.png", false},
		{"painting-transparent.png", true},
		{"/in/clip-transparent.webm", true},
		{"/in-transparent/clip.mov", false},
	}

	for _, tt := range tests {
		if got := IsDerived(tt.name); got != tt.want {
			t.Errorf("IsDerived(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	out := filepath.Join("/srv", "out")

	tests := []struct {
		name  string
		input string
		kind  FileType
		alpha bool
		want  string
	}{
		{"masked image", "/in/art.jpg", FileTypeImage, true, "art.png"},
		{"masked video", "/in/IMG_0042.MOV", FileTypeVideo, true, "IMG_0042.webm"},
		{"cropped image", "/in/art.png", FileTypeImage, false, "art.jpg"},
		{"cropped video", "/in/clip.webm", FileTypeVideo, false, "clip.mp4"},
		{"dots in name", "/in/my.art.v2.tif", FileTypeImage, true, "my.art.v2.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputPath(out, tt.input, tt.kind, tt.alpha)
			if want := filepath.Join(out, tt.want); got != want {
				t.Errorf("OutputPath() = %q, want %q", got, want)
			}
		})
	}
}
