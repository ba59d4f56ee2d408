package processor

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies what happened to one candidate file.
type Kind int

const (
	KindTransformed Kind = iota
	KindSkipped
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindTransformed:
		return "transformed"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of processing one file. Only the fields of
// its Kind are meaningful.
type Outcome struct {
	Kind Kind

	// Transformed
	OriginalMaxDim int
	NewMaxDim      int
	OutputPath     string
	Planned        bool

	// Skipped
	Reason string

	// Failed
	Err error
}

func transformed(originalMax, newMax int, outputPath string) Outcome {
	return Outcome{Kind: KindTransformed, OriginalMaxDim: originalMax, NewMaxDim: newMax, OutputPath: outputPath}
}

func skipped(originalMax int, reason string) Outcome {
	return Outcome{Kind: KindSkipped, OriginalMaxDim: originalMax, Reason: reason}
}

func failed(err error) Outcome {
	return Outcome{Kind: KindFailed, Err: err}
}

// Result is one worker's report for one path.
type Result struct {
	Path    string
	Display string
	Outcome

	BytesBefore int64
	BytesAfter  int64
	Duration    time.Duration
}

// Message renders the log line shown for this result.
func (r Result) Message() string {
	switch r.Kind {
	case KindTransformed:
		if r.Planned {
			return fmt.Sprintf("Would resize %dpx → %dpx: %s", r.OriginalMaxDim, r.NewMaxDim, r.Display)
		}
		return fmt.Sprintf("Resized %dpx → %dpx: %s", r.OriginalMaxDim, r.NewMaxDim, r.Display)
	case KindSkipped:
		return fmt.Sprintf("Skipped (%s): %s", r.Reason, r.Display)
	default:
		return fmt.Sprintf("Error processing %s: %v", r.Display, r.Err)
	}
}

// Counters is the aggregate state of a run. Only the coordinator goroutine
// touches it.
type Counters struct {
	Submitted   int
	Completed   int
	Transformed int
	Skipped     int
	Failed      int
	BytesSaved  int64
}

func (c *Counters) record(res Result) {
	c.Completed++
	switch res.Kind {
	case KindTransformed:
		c.Transformed++
		if !res.Planned {
			c.BytesSaved += res.BytesBefore - res.BytesAfter
		}
	case KindSkipped:
		c.Skipped++
	default:
		c.Failed++
	}
}

// Summary is the terminal report of a batch run. Failed files have their
// own bucket and are not folded into Skipped.
type Summary struct {
	RunID       string
	Root        string
	Discovered  int
	Completed   int
	Transformed int
	Skipped     int
	Failed      int
	BytesSaved  int64
	Cancelled   bool
	DryRun      bool
	Elapsed     time.Duration
}

func newSummary(runID, root string, discovered int, counters Counters) Summary {
	return Summary{
		RunID:       runID,
		Root:        root,
		Discovered:  discovered,
		Completed:   counters.Completed,
		Transformed: counters.Transformed,
		Skipped:     counters.Skipped,
		Failed:      counters.Failed,
		BytesSaved:  counters.BytesSaved,
	}
}

// ExitCode maps the summary onto a process exit status: 130 when cancelled,
// 1 when any file failed, 0 otherwise.
func (s Summary) ExitCode() int {
	switch {
	case s.Cancelled:
		return 130
	case s.Failed > 0:
		return 1
	default:
		return 0
	}
}

// Options tune a batch run.
type Options struct {
	// Workers bounds concurrent transforms; zero picks the default.
	Workers int
	// DryRun reports planned resizes without writing or deleting anything.
	DryRun bool
	// StripMetadata drops EXIF from outputs instead of carrying it over.
	StripMetadata bool
}

var errNotDirectory = errors.New("not a directory")

// DiscoveryError reports that the root folder itself cannot be scanned.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("cannot scan %s: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
