package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"resizer/internal/codec"
	"resizer/internal/codec/vips"
	"resizer/internal/config"
	"resizer/internal/logging"
	"resizer/internal/metrics"
	"resizer/internal/processor"
	"resizer/internal/tui"
)

var runCmd = &cobra.Command{
	Use:     "run [flags] <folder>",
	Aliases: []string{"resize"},
	Short:   "Downscale images larger than 3840px and replace the originals",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := runBatch(cmd, args[0], false)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderSummary(tui.SummaryRows(summary)))
		return exitFor(summary)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runBatch resolves settings, picks a codec and drives one coordinator run
// through the interactive view or the plain observer. extra observers see
// every event too.
func runBatch(cmd *cobra.Command, root string, dryRun bool, extra ...processor.Observer) (processor.Summary, error) {
	cfg, err := config.Load(settings, configFile)
	if err != nil {
		return processor.Summary{}, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return processor.Summary{}, err
	}

	interactive := !cfg.NoTUI && term.IsTerminal(int(os.Stdout.Fd()))
	logger, closeLog, err := openLogger(cfg, level, interactive, cmd.ErrOrStderr())
	if err != nil {
		return processor.Summary{}, err
	}
	defer closeLog()

	c, shutdown, err := selectCodec(cfg.Encoder, logger)
	if err != nil {
		return processor.Summary{}, err
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	coord := &processor.Coordinator{
		Codec:  c,
		Cancel: &processor.Flag{},
		Logger: logger,
		Options: processor.Options{
			Workers:       cfg.Workers,
			DryRun:        dryRun,
			StripMetadata: !cfg.PreserveMetadata,
		},
	}

	observers := append(processor.Observers{recorder}, extra...)
	var summary processor.Summary
	if interactive {
		summary, err = runInteractive(ctx, coord, root, observers, logger, cmd.ErrOrStderr())
	} else {
		coord.Observer = append(observers, tui.NewPlain(cmd.OutOrStdout(), cmd.ErrOrStderr()))
		summary, err = coord.Run(ctx, root)
	}
	if err != nil {
		return summary, err
	}

	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("metrics not written", "path", cfg.MetricsFile, "error", err)
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}
	return summary, nil
}

func runInteractive(ctx context.Context, coord *processor.Coordinator, root string, observers processor.Observers, logger *slog.Logger, stderr io.Writer) (processor.Summary, error) {
	events := make(chan processor.Event, 64)
	coord.Observer = append(observers, processor.NewChannelObserver(events))

	program := tea.NewProgram(tui.NewModel(events, coord.Cancel.Cancel), tea.WithoutSignalHandler())

	uiDone := make(chan struct{})
	go func() {
		final, err := program.Run()
		if err != nil {
			logger.Warn("terminal view stopped", "error", err)
		}
		if m, ok := final.(tui.Model); ok && m.Abandoned() {
			fmt.Fprintln(stderr, "Waiting for files in progress to finish...")
		}
		close(uiDone)
		// A forced quit leaves the run going; keep it unblocked.
		for range events {
		}
	}()

	summary, err := coord.Run(ctx, root)
	close(events)
	<-uiDone
	return summary, err
}

func openLogger(cfg config.Config, level slog.Level, interactive bool, stderr io.Writer) (*slog.Logger, func(), error) {
	switch {
	case cfg.LogFile != "":
		logger, closer, err := logging.Open(cfg.LogFile, level)
		if err != nil {
			return nil, nil, err
		}
		return logger, func() { _ = closer.Close() }, nil
	case interactive:
		return logging.Discard(), func() {}, nil
	default:
		return logging.New(stderr, level), func() {}, nil
	}
}

// selectCodec prefers libvips for WebP output. In auto mode a missing or
// incomplete libvips falls back to the pure Go JPEG codec.
func selectCodec(encoder config.Encoder, logger *slog.Logger) (codec.Codec, func(), error) {
	switch encoder {
	case config.EncoderImaging:
		return codec.NewImaging(logger), func() {}, nil
	case config.EncoderVips:
		if err := vips.Startup(logger); err != nil {
			return nil, nil, fmt.Errorf("start libvips: %w", err)
		}
		return vips.New(logger), vips.Shutdown, nil
	default:
		if err := vips.Startup(logger); err != nil {
			logger.Warn("libvips unavailable, writing JPEG instead of WebP", "error", err)
			return codec.NewImaging(logger), func() {}, nil
		}
		return vips.New(logger), vips.Shutdown, nil
	}
}

func exitFor(summary processor.Summary) error {
	if code := summary.ExitCode(); code != 0 {
		return exitError{code: code}
	}
	return nil
}
