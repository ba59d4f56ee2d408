package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resizer/internal/codec"
)

// process transforms one file. Every failure, including a panic inside the
// codec, becomes a Failed outcome; nothing escapes to the caller.
func process(c codec.Codec, root, path string, opts Options) (res Result) {
	start := time.Now()
	res = Result{Path: path, Display: displayPath(root, path)}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = failed(fmt.Errorf("panic: %v", r))
		}
		res.Duration = time.Since(start)
	}()

	res.Outcome = transform(c, path, opts, &res)
	return res
}

func transform(c codec.Codec, path string, opts Options, res *Result) Outcome {
	srcInfo, err := os.Stat(path)
	if err != nil {
		return failed(err)
	}
	res.BytesBefore = srcInfo.Size()

	width, height, err := c.DecodeDimensions(path)
	if err != nil {
		return failed(err)
	}
	if width <= 0 || height <= 0 {
		return failed(fmt.Errorf("invalid dimensions %dx%d", width, height))
	}

	maxDim := max(width, height)
	if maxDim <= codec.MaxDimension {
		return skipped(maxDim, fmt.Sprintf("already %dpx", maxDim))
	}

	newWidth, newHeight := ScaleToFit(width, height, codec.MaxDimension)
	newMax := max(newWidth, newHeight)

	if opts.DryRun {
		out := transformed(maxDim, newMax, codec.OutputPath(path, c.Extension()))
		out.Planned = true
		return out
	}

	outputPath, err := c.ResizeAndEncode(path, newWidth, newHeight, codec.Quality, !opts.StripMetadata)
	if err != nil {
		return failed(err)
	}

	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return failed(fmt.Errorf("verify output: %w", err))
	}
	res.BytesAfter = outInfo.Size()

	if !codec.SameFile(path, outputPath) {
		if err := os.Remove(path); err != nil {
			return failed(fmt.Errorf("wrote %s but could not remove original: %w", filepath.Base(outputPath), err))
		}
	}

	return transformed(maxDim, newMax, outputPath)
}

// ScaleToFit shrinks width x height so the larger side equals limit exactly,
// truncating the smaller side. Neither side drops below 1.
func ScaleToFit(width, height, limit int) (int, int) {
	if width > height {
		return limit, max(1, height*limit/width)
	}
	return max(1, width*limit/height), limit
}

func displayPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return filepath.Base(path)
}
