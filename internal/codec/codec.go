// Package codec holds the image transform capability used by the batch
// pipeline: read an image's dimensions, and resize plus re-encode it next to
// the original.
package codec

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxDimension is the largest width or height left untouched.
	MaxDimension = 3840
	// Quality is the lossy encode quality for every output.
	Quality = 85
)

// ErrOutputExists is returned when the destination for a transformed image is
// already occupied by a different file.
var ErrOutputExists = errors.New("output already exists")

// Codec decodes, resizes and encodes images on disk.
type Codec interface {
	// Name identifies the implementation in logs.
	Name() string
	// Extension is the canonical output extension including the dot.
	Extension() string
	// SupportsHEIC reports whether .heic inputs can be decoded.
	SupportsHEIC() bool
	// DecodeDimensions reads width and height without a full decode where
	// the format allows it.
	DecodeDimensions(path string) (width, height int, err error)
	// ResizeAndEncode writes a resized copy of path to OutputPath(path,
	// Extension()) and returns that path.
	ResizeAndEncode(path string, width, height, quality int, preserveMetadata bool) (string, error)
}

// OutputPath swaps the extension of path for ext.
func OutputPath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// SameFile reports whether a and b name the same file on disk. Missing files
// are never the same.
func SameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
