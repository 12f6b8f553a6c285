package constants

import "strings"

// AllowedExtensions holds the image file extensions accepted for scanning.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImagePath reports whether path has an allowed image extension.
func IsImagePath(path string) bool {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return false
	}
	_, ok := AllowedExtensions[NormalizeExt(path[idx:])]
	return ok
}
