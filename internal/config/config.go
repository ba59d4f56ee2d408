// Package config resolves run settings from flags, RESIZER_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"resizer/internal/logging"
	"resizer/internal/processor"
)

const EnvPrefix = "RESIZER"

// Encoder selects which codec backs a run.
type Encoder string

const (
	EncoderAuto    Encoder = "auto"
	EncoderVips    Encoder = "vips"
	EncoderImaging Encoder = "imaging"
)

// Keys shared by flags, env vars and config files.
const (
	KeyWorkers     = "workers"
	KeyEncoder     = "encoder"
	KeyLogLevel    = "log-level"
	KeyLogFile     = "log-file"
	KeyMetricsFile = "metrics-file"
	KeyNoTUI       = "no-tui"
	KeyPreserve    = "preserve-metadata"
)

type Config struct {
	Workers          int     `mapstructure:"workers"`
	Encoder          Encoder `mapstructure:"encoder"`
	LogLevel         string  `mapstructure:"log-level"`
	LogFile          string  `mapstructure:"log-file"`
	MetricsFile      string  `mapstructure:"metrics-file"`
	NoTUI            bool    `mapstructure:"no-tui"`
	PreserveMetadata bool    `mapstructure:"preserve-metadata"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Encoder:          EncoderAuto,
		LogLevel:         "info",
		PreserveMetadata: true,
	}
}

// New returns a viper instance with defaults and environment lookup wired.
func New() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyWorkers, d.Workers)
	v.SetDefault(KeyEncoder, string(d.Encoder))
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyMetricsFile, d.MetricsFile)
	v.SetDefault(KeyNoTUI, d.NoTUI)
	v.SetDefault(KeyPreserve, d.PreserveMetadata)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags registers the persistent flags every command shares and binds
// them to v.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	d := Default()
	flags.Int(KeyWorkers, d.Workers, fmt.Sprintf("parallel workers (0 = two per CPU; larger values are capped at %d)", processor.MaxWorkers))
	flags.String(KeyEncoder, string(d.Encoder), "output encoder: auto, vips (WebP) or imaging (JPEG)")
	flags.String(KeyLogLevel, d.LogLevel, "log level: debug, info, warn or error")
	flags.String(KeyLogFile, d.LogFile, "write logs to this file")
	flags.String(KeyMetricsFile, d.MetricsFile, "write Prometheus metrics to this textfile after the run")
	flags.Bool(KeyNoTUI, d.NoTUI, "print plain progress instead of the interactive view")
	flags.Bool(KeyPreserve, d.PreserveMetadata, "carry EXIF metadata into resized outputs")

	for _, key := range []string{KeyWorkers, KeyEncoder, KeyLogLevel, KeyLogFile, KeyMetricsFile, KeyNoTUI, KeyPreserve} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the optional config file and decodes the merged settings.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Encoder = Encoder(strings.ToLower(string(cfg.Encoder)))
	// RESIZER_WORKERS reaches Workers through viper, so the pool cap is
	// applied here rather than rejected.
	cfg.Workers = min(cfg.Workers, processor.MaxWorkers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	switch c.Encoder {
	case EncoderAuto, EncoderVips, EncoderImaging:
	default:
		errs = append(errs, fmt.Errorf("unknown encoder %q", c.Encoder))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
