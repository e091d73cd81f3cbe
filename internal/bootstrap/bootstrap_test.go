package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/reelsync/internal/align"
	"github.com/maauso/reelsync/internal/config"
	"github.com/maauso/reelsync/internal/job"
	"github.com/maauso/reelsync/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:                8080,
		TempDir:             filepath.Join(dir, "tmp"),
		OutputDir:           filepath.Join(dir, "out"),
		Speed:               1.05,
		WindowSize:          4,
		MaxConcurrentProbes: 2,
		FFprobePath:         "ffprobe",
		FFmpegPath:          "ffmpeg",
		AlignerMaxRetries:   1,
		Repository:          config.RepositoryMemory,
		SQLitePath:          filepath.Join(dir, "runs.db"),
		LogFormat:           "text",
		LogLevel:            "info",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_Defaults(t *testing.T) {
	cfg := testConfig(t)

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	require.NotNil(t, deps.SyncService)
	assert.IsType(t, &storage.LocalStorage{}, deps.Storage)
	assert.IsType(t, &job.MemoryRepository{}, deps.Repository)
	assert.Equal(t, 1.05, deps.Profile.Timing.Speed)

	_, err = os.Stat(cfg.OutputDir)
	assert.NoError(t, err, "output directory is created")
}

func TestNewDependencies_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Repository = config.RepositorySQLite

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)

	repo, ok := deps.Repository.(*job.SQLiteRepository)
	require.True(t, ok)
	assert.Equal(t, cfg.SQLitePath, repo.Path())

	j := job.New()
	require.NoError(t, deps.Repository.Save(context.Background(), j))
	require.NoError(t, deps.Close())

	reopened, err := job.OpenSQLite(cfg.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	_, err = reopened.FindByID(context.Background(), j.ID)
	assert.NoError(t, err)
}

func TestNewDependencies_S3(t *testing.T) {
	cfg := testConfig(t)
	cfg.S3Bucket = "captions"
	cfg.S3Region = "eu-west-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "key"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	assert.IsType(t, &storage.S3Storage{}, deps.Storage)
}

func TestNewDependencies_InvalidProfile(t *testing.T) {
	cfg := testConfig(t)
	cfg.TimingProfile = filepath.Join(t.TempDir(), "missing.toml")

	_, err := NewDependencies(cfg, quietLogger())
	assert.Error(t, err)
}

func TestInitLoader(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		loader, err := initLoader(testConfig(t), quietLogger())
		require.NoError(t, err)
		assert.Nil(t, loader)
	})

	t.Run("remote", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.AlignerURL = "http://aligner:9000"
		loader, err := initLoader(cfg, quietLogger())
		require.NoError(t, err)
		assert.IsType(t, &align.HTTPLoader{}, loader)
	})

	t.Run("directory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.AlignerDir = t.TempDir()
		loader, err := initLoader(cfg, quietLogger())
		require.NoError(t, err)
		assert.IsType(t, &align.DirLoader{}, loader)
	})
}
