package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	// Formats DecodeConfig and imaging.Open accept beyond JPEG and PNG.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"resizer/pkg/imgutil"
)

// Imaging is a pure Go codec: Lanczos resampling with
// github.com/disintegration/imaging and baseline JPEG output. It needs no
// native libraries, so it backs the pipeline when libvips is unavailable.
type Imaging struct {
	logger *slog.Logger
}

var _ Codec = (*Imaging)(nil)

// NewImaging returns an Imaging codec logging to logger.
func NewImaging(logger *slog.Logger) *Imaging {
	return &Imaging{logger: logger}
}

func (c *Imaging) Name() string { return "imaging" }

func (c *Imaging) Extension() string { return ".jpg" }

func (c *Imaging) SupportsHEIC() bool { return false }

// DecodeDimensions reads the image header only.
func (c *Imaging) DecodeDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, describeDecodeError(path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// describeDecodeError names what the file's bytes look like, since the
// extension is often wrong for images that fail to decode.
func describeDecodeError(path string, err error) error {
	kind, sniffErr := imgutil.SniffFile(path)
	switch {
	case sniffErr != nil:
		return fmt.Errorf("decode header: %w", err)
	case kind == imgutil.KindHEIC:
		return fmt.Errorf("decode header: %s content needs libvips with HEIF support: %w", kind, err)
	default:
		return fmt.Errorf("decode header (content looks like %s): %w", kind, err)
	}
}

func (c *Imaging) ResizeAndEncode(path string, width, height, quality int, preserveMetadata bool) (string, error) {
	srcInfo, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	img, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	// JPEG has no alpha channel; composite onto white rather than black.
	flat := imaging.Overlay(imaging.New(width, height, color.White), resized, image.Pt(0, 0), 1.0)

	var exifPayload []byte
	if preserveMetadata {
		exifPayload, err = readExif(path)
		if err != nil {
			c.logger.Debug("metadata not preserved", "file", filepath.Base(path), "error", err)
			exifPayload = nil
		} else if len(exifPayload) > 0 {
			c.logger.Debug("preserving exif", "file", filepath.Base(path), "tags", summarizeExif(exifPayload).Tags)
		}
	}

	dest := OutputPath(path, c.Extension())
	err = WriteOutput(path, dest, srcInfo.Mode().Perm(), func(w io.Writer) error {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		if len(exifPayload) == 0 {
			_, err := buf.WriteTo(w)
			return err
		}
		return insertJPEGSegment(&buf, w, markerAPP1, exifPayload)
	})
	if err != nil {
		return "", err
	}

	return dest, nil
}
