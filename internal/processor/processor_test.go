package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resizer/internal/codec"
	"resizer/internal/logging"
)

func newCoordinator(c codec.Codec, obs Observer, workers int) *Coordinator {
	return &Coordinator{
		Codec:    c,
		Observer: obs,
		Cancel:   &Flag{},
		Logger:   logging.Discard(),
		Options:  Options{Workers: workers},
	}
}

func TestRunProgressAndOutcomes(t *testing.T) {
	dir := t.TempDir()
	const n = 25
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			writeFakeImage(t, dir, fmt.Sprintf("set%d/big%02d.jpg", i%3, i), 7680, 4320)
		} else {
			writeFakeImage(t, dir, fmt.Sprintf("set%d/small%02d.PNG", i%3, i), 1024, 768)
		}
	}

	rec := &recorder{}
	fc := &fakeCodec{}
	c := newCoordinator(fc, rec, 4)

	summary, err := c.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, rec.progress, n)
	for i, p := range rec.progress {
		assert.Equal(t, i+1, p[0], "completed must increase by one per event")
		assert.Equal(t, n, p[1])
	}

	require.Len(t, rec.outcomes, n)
	seen := make(map[string]int)
	for _, res := range rec.outcomes {
		seen[res.Path]++
	}
	assert.Len(t, seen, n)
	for path, count := range seen {
		assert.Equal(t, 1, count, "outcome for %s produced more than once", path)
	}

	require.Len(t, rec.finished, 1)
	assert.Equal(t, summary, rec.finished[0])
	assert.Equal(t, n, summary.Discovered)
	assert.Equal(t, n, summary.Completed)
	assert.Equal(t, 13, summary.Transformed)
	assert.Equal(t, 12, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, 0, summary.ExitCode())
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, StateFinished, c.State())

	assert.True(t, rec.hasLine("Found 25 images. Starting processing..."))
	assert.True(t, rec.hasLine("Using 4 worker threads."))
	assert.True(t, rec.hasLine("Done: 25 processed, 13 resized, 12 skipped, 0 failed."))

	for _, res := range rec.outcomes {
		if res.Kind != KindTransformed {
			continue
		}
		assert.Equal(t, 7680, res.OriginalMaxDim)
		assert.Equal(t, 3840, res.NewMaxDim)
		_, err := os.Stat(res.Path)
		assert.True(t, os.IsNotExist(err), "original %s should be deleted", res.Path)
		w, h, err := fc.DecodeDimensions(res.OutputPath)
		require.NoError(t, err)
		assert.Equal(t, 3840, w)
		assert.Equal(t, 2160, h)
	}
}

func TestRunBoundedConcurrency(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		writeFakeImage(t, dir, fmt.Sprintf("img%02d.jpg", i), 5000, 5000)
	}

	fc := &fakeCodec{delay: 10 * time.Millisecond}
	summary, err := newCoordinator(fc, nil, 3).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 12, summary.Transformed)
	assert.LessOrEqual(t, fc.maxInFlight.Load(), int32(3))
	assert.Equal(t, int32(12), fc.encodes.Load())
}

func TestRunSecondPassSkipsEverything(t *testing.T) {
	dir := t.TempDir()
	writeFakeImage(t, dir, "a.jpg", 7680, 4320)
	writeFakeImage(t, dir, "b.png", 4000, 6000)
	writeFakeImage(t, dir, "nested/c.tif", 9000, 100)
	writeFakeImage(t, dir, "nested/d.bmp", 800, 600)

	fc := &fakeCodec{ext: ".png"}
	first, err := newCoordinator(fc, nil, 2).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Transformed)
	assert.Equal(t, 1, first.Skipped)

	before := listFiles(t, dir)
	assert.ElementsMatch(t, []string{"a.png", "b.png", filepath.Join("nested", "c.png"), filepath.Join("nested", "d.bmp")}, before)

	rec := &recorder{}
	second, err := newCoordinator(fc, rec, 2).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, second.Completed)
	assert.Equal(t, 4, second.Skipped)
	assert.Zero(t, second.Transformed)
	assert.Zero(t, second.Failed)
	assert.Equal(t, before, listFiles(t, dir), "second pass must not delete or create files")
	for _, res := range rec.outcomes {
		assert.Equal(t, KindSkipped, res.Kind)
	}
}

func TestRunThresholdIsInclusive(t *testing.T) {
	dir := t.TempDir()
	at := writeFakeImage(t, dir, "at.jpg", 3840, 2000)
	over := writeFakeImage(t, dir, "over.jpg", 2000, 3841)

	rec := &recorder{}
	_, err := newCoordinator(&fakeCodec{}, rec, 2).Run(context.Background(), dir)
	require.NoError(t, err)

	byPath := make(map[string]Result)
	for _, res := range rec.outcomes {
		byPath[res.Path] = res
	}
	assert.Equal(t, KindSkipped, byPath[at].Kind)
	assert.Equal(t, "already 3840px", byPath[at].Reason)
	assert.Equal(t, KindTransformed, byPath[over].Kind)
	assert.Equal(t, 3840, byPath[over].NewMaxDim)

	_, err = os.Stat(at)
	assert.NoError(t, err, "skipped file must stay in place")
}

func TestRunFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("file%02d.jpg", i)
		if i == 5 {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("\xff\xd8 truncated"), 0o644))
			continue
		}
		writeFakeImage(t, dir, name, 6000, 4000)
	}

	rec := &recorder{}
	summary, err := newCoordinator(&fakeCodec{}, rec, 1).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 9, summary.Transformed)
	assert.Equal(t, 1, summary.ExitCode())
	assert.True(t, rec.hasLine("Error processing file05.jpg: corrupt image"))

	_, err = os.Stat(filepath.Join(dir, "file05.jpg"))
	assert.NoError(t, err, "a failed file is never deleted")
	for i := 6; i <= 10; i++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("file%02d.webp", i)))
		assert.NoError(t, err)
	}
}

func TestRunRecoversCodecPanic(t *testing.T) {
	dir := t.TempDir()
	writeFakeImage(t, dir, "boom.jpg", 5000, 10)
	writeFakeImage(t, dir, "fine.jpg", 5000, 10)

	rec := &recorder{}
	summary, err := newCoordinator(&fakeCodec{panicOn: "boom.jpg"}, rec, 2).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Transformed)
	assert.True(t, rec.hasLine("panic: decoder exploded"))
}

func TestRunCancelAfterFirstOutcome(t *testing.T) {
	dir := t.TempDir()
	const n = 20
	for i := 0; i < n; i++ {
		writeFakeImage(t, dir, fmt.Sprintf("img%02d.jpg", i), 4000, 3000)
	}

	flag := &Flag{}
	rec := &recorder{}
	rec.onProgress = func(completed, total int) {
		if completed == 1 {
			flag.Cancel()
		}
	}
	c := newCoordinator(&fakeCodec{delay: 5 * time.Millisecond}, rec, 2)
	c.Cancel = flag

	summary, err := c.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.Completed)
	assert.Less(t, summary.Completed, n)
	assert.Equal(t, 130, summary.ExitCode())
	require.Len(t, rec.finished, 1)
	assert.True(t, rec.hasLine("Processing cancelled."))
	assert.Equal(t, "Processing cancelled.", rec.lines[len(rec.lines)-2])
}

func TestRunCancelWhileWaiting(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFakeImage(t, dir, fmt.Sprintf("img%02d.jpg", i), 4000, 3000)
	}

	fc := &fakeCodec{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := newCoordinator(fc, &recorder{}, 2)

	go func() {
		<-fc.started
		c.Cancel.Cancel()
		// Let in-flight transforms finish once collection has stopped.
		close(fc.gate)
	}()

	done := make(chan Summary, 1)
	go func() {
		summary, err := c.Run(context.Background(), dir)
		assert.NoError(t, err)
		done <- summary
	}()

	select {
	case summary := <-done:
		assert.True(t, summary.Cancelled)
		assert.Zero(t, summary.Completed)
		assert.LessOrEqual(t, fc.encodes.Load(), int32(2), "unstarted work must be abandoned")
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not return")
	}
}

func TestRunContextCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		writeFakeImage(t, dir, fmt.Sprintf("img%02d.jpg", i), 4000, 3000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	fc := &fakeCodec{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	c := newCoordinator(fc, nil, 1)

	go func() {
		<-fc.started
		cancel()
		<-c.Cancel.Done()
		close(fc.gate)
	}()

	summary, err := c.Run(ctx, dir)
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Less(t, summary.Completed, 8)
	assert.True(t, c.Cancel.Cancelled())
}

func TestRunZeroFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))

	rec := &recorder{}
	summary, err := newCoordinator(&fakeCodec{}, rec, 4).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Zero(t, summary.Discovered)
	assert.Zero(t, summary.Completed)
	assert.Zero(t, summary.Transformed)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, rec.progress)
	require.Len(t, rec.finished, 1)
	assert.True(t, rec.hasLine("No supported images found."))
}

func TestRunThroughSymlinkedRoot(t *testing.T) {
	base := t.TempDir()
	photos := filepath.Join(base, "photos")
	writeFakeImage(t, photos, "a.jpg", 7680, 4320)
	writeFakeImage(t, photos, "sub/b.png", 10, 10)
	link := filepath.Join(base, "link")
	if err := os.Symlink(photos, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	rec := &recorder{}
	summary, err := newCoordinator(&fakeCodec{}, rec, 2).Run(context.Background(), link)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Transformed)
	assert.Equal(t, 1, summary.Skipped)
	assert.False(t, rec.hasLine("No supported images found."))
}

func TestRunInvalidRoot(t *testing.T) {
	dir := t.TempDir()
	file := writeFakeImage(t, dir, "single.jpg", 10, 10)

	tests := []struct {
		name string
		root string
	}{
		{"missing", filepath.Join(dir, "does-not-exist")},
		{"file", file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_, err := newCoordinator(&fakeCodec{}, rec, 1).Run(context.Background(), tt.root)

			var discoveryErr *DiscoveryError
			require.ErrorAs(t, err, &discoveryErr)
			assert.Empty(t, rec.finished, "an invalid root never starts a run")
			assert.Empty(t, rec.progress)
		})
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	writeFakeImage(t, dir, "big.jpg", 8000, 6000)
	writeFakeImage(t, dir, "small.jpg", 800, 600)
	before := listFiles(t, dir)

	rec := &recorder{}
	c := newCoordinator(&fakeCodec{}, rec, 2)
	c.Options.DryRun = true

	summary, err := c.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Transformed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.BytesSaved)
	assert.Equal(t, before, listFiles(t, dir))
	assert.True(t, rec.hasLine("Would resize 8000px → 3840px: big.jpg"))
	assert.True(t, rec.hasLine("Done: 2 processed, 1 to resize, 1 skipped, 0 failed."))
}

func TestRunDefaultWorkers(t *testing.T) {
	t.Setenv("RESIZER_WORKERS", "3")
	dir := t.TempDir()
	writeFakeImage(t, dir, "a.jpg", 10, 10)

	rec := &recorder{}
	_, err := newCoordinator(&fakeCodec{}, rec, 0).Run(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, rec.hasLine("Using 3 worker threads."))
}

func TestRunOutputCollisionFailsInsteadOfClobbering(t *testing.T) {
	dir := t.TempDir()
	writeFakeImage(t, dir, "photo.jpg", 5000, 5000)
	writeFakeImage(t, dir, "photo.png", 6000, 6000)

	rec := &recorder{}
	summary, err := newCoordinator(&fakeCodec{}, rec, 2).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Transformed)
	assert.Equal(t, 1, summary.Failed)

	var failedRes Result
	for _, res := range rec.outcomes {
		if res.Kind == KindFailed {
			failedRes = res
		}
	}
	assert.ErrorIs(t, failedRes.Err, codec.ErrOutputExists)
	_, err = os.Stat(failedRes.Path)
	assert.NoError(t, err, "the loser of a name collision keeps its original")
}

func TestRunWithImagingCodec(t *testing.T) {
	dir := t.TempDir()
	wide := filepath.Join(dir, "wide.png")
	writePNG(t, wide, 3900, 100)
	small := filepath.Join(dir, "small.png")
	writePNG(t, small, 64, 64)

	imgCodec := codec.NewImaging(logging.Discard())
	summary, err := newCoordinator(imgCodec, nil, 2).Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Transformed)
	assert.Equal(t, 1, summary.Skipped)

	_, err = os.Stat(wide)
	assert.True(t, os.IsNotExist(err))
	w, h, err := imgCodec.DecodeDimensions(filepath.Join(dir, "wide.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 3840, w)
	assert.Equal(t, 98, h)

	files := listFiles(t, dir)
	sort.Strings(files)
	assert.Equal(t, []string{"small.png", "wide.jpg"}, files)
}

func TestScaleToFit(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"16:9 landscape", 7680, 4320, 3840, 2160},
		{"portrait", 4000, 6000, 2560, 3840},
		{"square", 5000, 5000, 3840, 3840},
		{"truncates", 3900, 100, 3840, 98},
		{"never zero", 100000, 1, 3840, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaleToFit(tt.width, tt.height, codec.MaxDimension)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestResultMessage(t *testing.T) {
	assert.Equal(t, "Resized 7680px → 3840px: a/b.jpg",
		Result{Display: "a/b.jpg", Outcome: transformed(7680, 3840, "a/b.webp")}.Message())
	assert.Equal(t, "Skipped (already 1200px): b.jpg",
		Result{Display: "b.jpg", Outcome: skipped(1200, "already 1200px")}.Message())
	assert.Equal(t, "Error processing c.jpg: bad",
		Result{Display: "c.jpg", Outcome: failed(errors.New("bad"))}.Message())
}

func TestSummaryExitCode(t *testing.T) {
	assert.Equal(t, 0, Summary{Completed: 3}.ExitCode())
	assert.Equal(t, 1, Summary{Failed: 1}.ExitCode())
	assert.Equal(t, 130, Summary{Failed: 1, Cancelled: true}.ExitCode())
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, width, height))))
}
