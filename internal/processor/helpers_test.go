package processor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"resizer/internal/codec"
)

// fakeCodec stores dimensions as "WxH" text so tests can fabricate images
// of any size without pixels. Anything else fails to decode.
type fakeCodec struct {
	ext  string
	heic bool
	// gate, when set, holds every ResizeAndEncode until closed.
	gate    chan struct{}
	started chan struct{}
	delay   time.Duration
	panicOn string

	encodes     atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu      sync.Mutex
	encoded []string
}

var _ codec.Codec = (*fakeCodec)(nil)

func (f *fakeCodec) Name() string       { return "fake" }
func (f *fakeCodec) Extension() string {
	if f.ext == "" {
		return ".webp"
	}
	return f.ext
}
func (f *fakeCodec) SupportsHEIC() bool { return f.heic }

func (f *fakeCodec) DecodeDimensions(path string) (int, int, error) {
	if f.panicOn != "" && filepath.Base(path) == f.panicOn {
		panic("decoder exploded")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("corrupt image: %w", err)
	}
	return w, h, nil
}

func (f *fakeCodec) ResizeAndEncode(path string, width, height, quality int, preserveMetadata bool) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	f.encodes.Add(1)

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	dest := codec.OutputPath(path, f.Extension())
	err := codec.WriteOutput(path, dest, 0o644, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%dx%d", width, height)
		return err
	})
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.encoded = append(f.encoded, path)
	f.mu.Unlock()
	return dest, nil
}

// recorder captures every observer callback.
type recorder struct {
	lines    []string
	progress [][2]int
	outcomes []Result
	finished []Summary

	onProgress func(completed, total int)
}

func (r *recorder) OnLog(line string) { r.lines = append(r.lines, line) }

func (r *recorder) OnProgress(completed, total int) {
	r.progress = append(r.progress, [2]int{completed, total})
	if r.onProgress != nil {
		r.onProgress(completed, total)
	}
}

func (r *recorder) OnOutcome(res Result) { r.outcomes = append(r.outcomes, res) }

func (r *recorder) OnFinished(s Summary) { r.finished = append(r.finished, s) }

func (r *recorder) hasLine(substr string) bool {
	for _, line := range r.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func writeFakeImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%dx%d", width, height)), 0o644))
	return path
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			files = append(files, rel)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}
