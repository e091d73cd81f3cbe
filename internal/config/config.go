// Package config provides configuration loading from environment variables
// and TOML timing profiles.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidConfig is returned when a value fails validation.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrAlignerConflict is returned when both ALIGNER_URL and ALIGNER_DIR are set.
	ErrAlignerConflict = errors.New("config: ALIGNER_URL and ALIGNER_DIR are mutually exclusive")
)

// Repository backends.
const (
	RepositoryMemory = "memory"
	RepositorySQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"gt=0,lte=65535"`

	// Storage settings
	TempDir   string `env:"TEMP_DIR, default=/tmp/reelsync" json:"temp_dir"`
	OutputDir string `env:"OUTPUT_DIR, default=./output" json:"output_dir" validate:"required"`
	// ClipRoot confines clip paths named in HTTP requests. Empty disables them.
	ClipRoot string `env:"CLIP_ROOT" json:"clip_root,omitempty"`

	// Timing settings
	Speed         float64 `env:"SPEED, default=1.05" json:"speed" validate:"gt=0"`
	WindowSize    int     `env:"WINDOW_SIZE, default=4" json:"window_size" validate:"gte=1"`
	LeadEnabled   bool    `env:"LEAD_ENABLED, default=false" json:"lead_enabled"`
	TimingProfile string  `env:"TIMING_PROFILE" json:"timing_profile,omitempty"`

	// Probing settings
	MaxConcurrentProbes int    `env:"MAX_CONCURRENT_PROBES, default=4" json:"max_concurrent_probes" validate:"gte=1"`
	FFprobePath         string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	FFmpegPath          string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Optional aligner settings
	AlignerURL        string `env:"ALIGNER_URL" json:"aligner_url,omitempty" validate:"omitempty,url"`
	AlignerAPIKey     string `env:"ALIGNER_API_KEY" json:"-"` // Masked in JSON
	AlignerDir        string `env:"ALIGNER_DIR" json:"aligner_dir,omitempty"`
	AlignerMaxRetries int    `env:"ALIGNER_MAX_RETRIES, default=3" json:"aligner_max_retries" validate:"gte=0"`

	// Run persistence
	Repository string `env:"REPOSITORY, default=memory" json:"repository" validate:"oneof=memory sqlite"`
	SQLitePath string `env:"SQLITE_PATH, default=./reelsync.db" json:"sqlite_path" validate:"required_if=Repository sqlite"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges and mutually exclusive settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.AlignerURL != "" && c.AlignerDir != "" {
		return ErrAlignerConflict
	}
	return nil
}

// NewLogger creates a structured logger writing to stdout.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, OutputDir: %s, ClipRoot: %s, Speed: %g, WindowSize: %d, LeadEnabled: %t, TimingProfile: %s, MaxConcurrentProbes: %d, AlignerURL: %s, AlignerDir: %s, Repository: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.OutputDir,
		c.ClipRoot,
		c.Speed,
		c.WindowSize,
		c.LeadEnabled,
		c.TimingProfile,
		c.MaxConcurrentProbes,
		c.AlignerURL,
		c.AlignerDir,
		c.Repository,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
