package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"resizer/internal/config"
)

var (
	settings   = config.New()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "resizer",
	Short: "resizer - shrink oversized photos in place",
	Long: "resizer walks a folder and downscales every image whose longer side exceeds 3840px, " +
		"replacing the original with a quality 85 WebP (or JPEG when libvips is unavailable).",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError ends the process with code after output has been written.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "read settings from this file (yaml, toml or json)")
	if err := config.BindFlags(settings, rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
}
