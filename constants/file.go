package constants

import "strings"

// AllowedExtensions holds the image extensions accepted for OCR.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImageExt reports whether ext (with or without the dot) is an accepted image type.
func IsImageExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// Output sub-directories created under the run's output root.
const (
	DirJSON      = "json"
	DirAnnotated = "annotated_images"
	DirMetrics   = "metrics"
)
