package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/reelsync", cfg.TempDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, 1.05, cfg.Speed)
	assert.Equal(t, 4, cfg.WindowSize)
	assert.False(t, cfg.LeadEnabled)
	assert.Equal(t, 4, cfg.MaxConcurrentProbes)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, 3, cfg.AlignerMaxRetries)
	assert.Equal(t, RepositoryMemory, cfg.Repository)
	assert.Empty(t, cfg.ClipRoot)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("OUTPUT_DIR", "/custom/out")
	t.Setenv("CLIP_ROOT", "/srv/clips")
	t.Setenv("SPEED", "1.0")
	t.Setenv("WINDOW_SIZE", "3")
	t.Setenv("LEAD_ENABLED", "true")
	t.Setenv("MAX_CONCURRENT_PROBES", "8")
	t.Setenv("ALIGNER_URL", "http://aligner:9000")
	t.Setenv("ALIGNER_API_KEY", "aligner-key")
	t.Setenv("REPOSITORY", "sqlite")
	t.Setenv("SQLITE_PATH", "/data/runs.db")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "/custom/out", cfg.OutputDir)
	assert.Equal(t, "/srv/clips", cfg.ClipRoot)
	assert.Equal(t, 1.0, cfg.Speed)
	assert.Equal(t, 3, cfg.WindowSize)
	assert.True(t, cfg.LeadEnabled)
	assert.Equal(t, 8, cfg.MaxConcurrentProbes)
	assert.Equal(t, "http://aligner:9000", cfg.AlignerURL)
	assert.Equal(t, "aligner-key", cfg.AlignerAPIKey)
	assert.Equal(t, RepositorySQLite, cfg.Repository)
	assert.Equal(t, "/data/runs.db", cfg.SQLitePath)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:4566", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"port not a number", "PORT", "not-a-number", nil},
		{"zero speed", "SPEED", "0", ErrInvalidConfig},
		{"negative speed", "SPEED", "-1.05", ErrInvalidConfig},
		{"zero window", "WINDOW_SIZE", "0", ErrInvalidConfig},
		{"zero probes", "MAX_CONCURRENT_PROBES", "0", ErrInvalidConfig},
		{"unknown repository", "REPOSITORY", "postgres", ErrInvalidConfig},
		{"bad aligner url", "ALIGNER_URL", "not a url", ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoad_AlignerConflict(t *testing.T) {
	t.Setenv("ALIGNER_URL", "http://aligner:9000")
	t.Setenv("ALIGNER_DIR", "/alignments")

	_, err := Load()
	assert.ErrorIs(t, err, ErrAlignerConflict)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		TempDir:            "/tmp/test",
		AlignerURL:         "http://aligner:9000",
		AlignerAPIKey:      "aligner-secret",
		AWSSecretAccessKey: "aws-secret",
		S3Bucket:           "bucket",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "http://aligner:9000")

	assert.NotContains(t, str, "aligner-secret")
	assert.NotContains(t, str, "aws-secret")
}

func TestConfig_NewLoggerTo(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := (&Config{LogFormat: "json", LogLevel: "info"}).NewLoggerTo(&buf)
		logger.Info("test message", slog.Int("lines", 3))
		logger.Debug("hidden")

		assert.Contains(t, buf.String(), `"msg":"test message"`)
		assert.Contains(t, buf.String(), `"lines":3`)
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := (&Config{LogFormat: "text", LogLevel: "debug"}).NewLoggerTo(&buf)
		logger.Debug("visible")

		assert.True(t, strings.Contains(buf.String(), "msg=visible"), buf.String())
	})

	t.Run("stdout", func(t *testing.T) {
		require.NotNil(t, (&Config{}).NewLogger())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
