// Package vips implements the batch codec on libvips through govips: Lanczos3
// downscaling and lossy WebP output with the source metadata carried over.
//
// libvips is process-global. Startup and Shutdown are idempotent, but govips
// cannot start again after Shutdown, so call Shutdown once on exit.
package vips

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"resizer/internal/codec"
)

var (
	initMu    sync.Mutex
	started   bool
	available bool
)

// Startup initialises libvips and routes its log output to logger. It fails
// when libvips cannot start or cannot write WebP.
func Startup(logger *slog.Logger) (err error) {
	initMu.Lock()
	defer initMu.Unlock()

	if started {
		if !available {
			return fmt.Errorf("libvips unavailable")
		}
		return nil
	}
	started = true

	vips.LoggingSettings(logHandler(logger), vipsLevel(logger))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup: %v", r)
		}
	}()

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	if !vips.IsTypeSupported(vips.ImageTypeWEBP) {
		return fmt.Errorf("libvips %s built without WebP support", vips.Version)
	}

	available = true
	logger.Debug("libvips initialized", "version", vips.Version)
	return nil
}

// Shutdown releases libvips.
func Shutdown() {
	initMu.Lock()
	defer initMu.Unlock()

	if available {
		vips.Shutdown()
		available = false
	}
}

// Available reports whether Startup succeeded and Shutdown has not run.
func Available() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return available
}

func vipsLevel(logger *slog.Logger) vips.LogLevel {
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		return vips.LogLevelInfo
	}
	return vips.LogLevelWarning
}

func logHandler(logger *slog.Logger) func(string, vips.LogLevel, string) {
	return func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logger.Error(msg, "domain", domain)
		case vips.LogLevelWarning:
			logger.Warn(msg, "domain", domain)
		default:
			logger.Debug(msg, "domain", domain)
		}
	}
}

// Codec writes WebP through libvips. Startup must have succeeded first.
type Codec struct {
	logger *slog.Logger
}

var _ codec.Codec = (*Codec)(nil)

// New returns a libvips codec.
func New(logger *slog.Logger) *Codec {
	return &Codec{logger: logger}
}

func (c *Codec) Name() string { return "libvips" }

func (c *Codec) Extension() string { return ".webp" }

// SupportsHEIC reports whether this libvips build can load HEIF images.
func (c *Codec) SupportsHEIC() bool {
	return Available() && vips.IsTypeSupported(vips.ImageTypeHEIF)
}

// DecodeDimensions loads the image lazily; libvips reads the header only
// until pixels are requested.
func (c *Codec) DecodeDimensions(path string) (int, int, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return 0, 0, fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	return ref.Width(), ref.Height(), nil
}

func (c *Codec) ResizeAndEncode(path string, width, height, quality int, preserveMetadata bool) (string, error) {
	srcInfo, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return "", fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	hscale := float64(width) / float64(ref.Width())
	vscale := float64(height) / float64(ref.Height())
	if err := ref.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
		return "", fmt.Errorf("vips resize: %w", err)
	}
	if ref.Width() != width || ref.Height() != height {
		c.logger.Debug("vips resize rounding", "want_width", width, "want_height", height,
			"width", ref.Width(), "height", ref.Height())
	}

	data, _, err := ref.ExportWebp(&vips.WebpExportParams{
		Quality:       quality,
		Lossless:      false,
		StripMetadata: !preserveMetadata,
	})
	if err != nil {
		return "", fmt.Errorf("vips webp export: %w", err)
	}

	dest := codec.OutputPath(path, c.Extension())
	err = codec.WriteOutput(path, dest, srcInfo.Mode().Perm(), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}
