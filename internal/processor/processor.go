// Package processor runs the batch: discover candidate images under a root,
// transform them on a bounded pool of workers, and report progress to an
// Observer from a single collecting goroutine.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"resizer/internal/codec"
	"resizer/internal/logging"
	"resizer/internal/workers"
)

// MaxWorkers caps the default pool size.
const MaxWorkers = 32

// State is the coordinator's position in a run.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateDispatching
	StateCollecting
	StateCancelling
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDispatching:
		return "dispatching"
	case StateCollecting:
		return "collecting"
	case StateCancelling:
		return "cancelling"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Coordinator owns one batch run at a time.
type Coordinator struct {
	Codec    codec.Codec
	Observer Observer
	Cancel   *Flag
	Logger   *slog.Logger
	Options  Options

	state atomic.Int32
}

// State returns the current state; safe to call from any goroutine.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(logger *slog.Logger, s State) {
	c.state.Store(int32(s))
	logger.Debug("state", "state", s.String())
}

// Run processes every candidate under root. Only a root that cannot be
// scanned is returned as an error (a *DiscoveryError); per-file failures are
// counted in the summary. Cancelling the flag or ctx stops collection early;
// files already being transformed finish before Run returns.
func (c *Coordinator) Run(ctx context.Context, root string) (Summary, error) {
	obs := c.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	flag := c.Cancel
	if flag == nil {
		flag = &Flag{}
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	start := time.Now()
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	c.setState(logger, StateIdle)

	absRoot, err := ValidateRoot(root)
	if err != nil {
		logger.Error("invalid root", "root", root, "error", err)
		return Summary{RunID: runID, Root: root}, err
	}

	c.setState(logger, StateScanning)
	obs.OnLog(fmt.Sprintf("Scanning folder: %s", absRoot))
	logger.Info("scanning", "root", absRoot, "codec", c.Codec.Name(), "dry_run", c.Options.DryRun)

	found, err := Discover(absRoot, Extensions(c.Codec.SupportsHEIC()))
	if err != nil {
		c.setState(logger, StateIdle)
		logger.Error("discovery failed", "root", absRoot, "error", err)
		return Summary{RunID: runID, Root: absRoot}, err
	}
	if found.Omitted > 0 {
		obs.OnLog(fmt.Sprintf("Warning: %d unreadable entries were left out.", found.Omitted))
		logger.Warn("entries omitted during discovery", "count", found.Omitted)
	}

	total := len(found.Paths)
	var counters Counters
	finish := func(cancelled bool) Summary {
		summary := newSummary(runID, absRoot, total, counters)
		summary.Cancelled = cancelled
		summary.DryRun = c.Options.DryRun
		summary.Elapsed = time.Since(start)
		c.setState(logger, StateFinished)
		logger.Info("finished",
			"discovered", summary.Discovered,
			"completed", summary.Completed,
			"transformed", summary.Transformed,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
			"bytes_saved", summary.BytesSaved,
			"cancelled", summary.Cancelled,
			"elapsed", summary.Elapsed.Round(time.Millisecond))
		if total > 0 {
			obs.OnLog(summaryLine(summary))
		}
		obs.OnFinished(summary)
		return summary
	}

	if total == 0 {
		obs.OnLog("No supported images found.")
		return finish(false), nil
	}

	poolSize := c.Options.Workers
	if poolSize <= 0 {
		poolSize = workers.ForIO(MaxWorkers)
	}
	obs.OnLog(fmt.Sprintf("Found %d images. Starting processing...", total))
	obs.OnLog(fmt.Sprintf("Using %d worker threads.", poolSize))

	stopWatch := context.AfterFunc(ctx, flag.Cancel)
	defer stopWatch()

	c.setState(logger, StateDispatching)
	// Buffered to total so workers never block once collection stops.
	results := make(chan Result, total)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)

		var g errgroup.Group
		g.SetLimit(poolSize)
		for _, path := range found.Paths {
			if flag.Cancelled() {
				break
			}
			g.Go(func() error {
				if flag.Cancelled() {
					return nil
				}
				results <- process(c.Codec, absRoot, path, c.Options)
				return nil
			})
		}
		_ = g.Wait()
	}()
	counters.Submitted = total

	c.setState(logger, StateCollecting)
	cancelled := false
collect:
	for counters.Completed < total {
		if flag.Cancelled() {
			cancelled = true
			break
		}

		select {
		case res := <-results:
			if flag.Cancelled() {
				cancelled = true
				break collect
			}
			counters.record(res)
			logResult(logger, res)
			obs.OnLog(res.Message())
			if oo, ok := obs.(OutcomeObserver); ok {
				oo.OnOutcome(res)
			}
			obs.OnProgress(counters.Completed, total)
		case <-flag.Done():
			cancelled = true
			break collect
		}
	}

	if cancelled {
		c.setState(logger, StateCancelling)
		obs.OnLog("Processing cancelled.")
		logger.Warn("cancelled", "completed", counters.Completed, "total", total)
	}
	// In-flight transforms finish so no write or delete outlives the run.
	<-dispatched

	return finish(cancelled), nil
}

func logResult(logger *slog.Logger, res Result) {
	attrs := []any{
		"file", res.Display,
		"outcome", res.Kind.String(),
		"duration", res.Duration.Round(time.Millisecond),
	}
	switch res.Kind {
	case KindTransformed:
		logger.Debug("processed", append(attrs, "from", res.OriginalMaxDim, "to", res.NewMaxDim, "output", res.OutputPath)...)
	case KindSkipped:
		logger.Debug("processed", append(attrs, "reason", res.Reason)...)
	default:
		logger.Warn("processed", append(attrs, "error", res.Err)...)
	}
}

func summaryLine(s Summary) string {
	verb := "resized"
	if s.DryRun {
		verb = "to resize"
	}
	return fmt.Sprintf("Done: %d processed, %d %s, %d skipped, %d failed.",
		s.Completed, s.Transformed, verb, s.Skipped, s.Failed)
}
