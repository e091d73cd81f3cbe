// Package bootstrap wires configuration into the services used by the
// reelsync server and command line.
package bootstrap

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/reelsync/internal/align"
	"github.com/maauso/reelsync/internal/audio"
	"github.com/maauso/reelsync/internal/config"
	"github.com/maauso/reelsync/internal/job"
	"github.com/maauso/reelsync/internal/storage"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	SyncService *job.SyncService
	Storage     storage.Storage
	Repository  job.Repository
	Profile     config.Profile

	closers []io.Closer
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = slog.Default()
	}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, fmt.Errorf("load timing profile: %w", err)
	}

	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	loader, err := initLoader(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Storage: store, Profile: profile}

	repo, err := initRepository(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Repository = repo
	if c, ok := repo.(io.Closer); ok {
		deps.closers = append(deps.closers, c)
	}

	prober := audio.ChainProber{
		audio.NewFFprobeProber(cfg.FFprobePath),
		audio.NewFFmpegProber(cfg.FFmpegPath),
	}

	deps.SyncService = job.NewSyncService(repo, store, prober, loader, logger)
	deps.SyncService.SetMaxConcurrentProbes(cfg.MaxConcurrentProbes)

	return deps, nil
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.closers = nil
	return firstErr
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, cfg.OutputDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("output_dir", s3Store.OutputDir()),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
		slog.String("output_dir", localStore.OutputDir()),
	)
	return localStore, nil
}

// initLoader selects the aligner. With none configured every sentence is
// timed by proportional allocation.
func initLoader(cfg *config.Config, logger *slog.Logger) (align.Loader, error) {
	switch {
	case cfg.AlignerURL != "":
		loader, err := align.NewHTTPLoader(cfg.AlignerURL,
			align.WithAPIKey(cfg.AlignerAPIKey),
			align.WithMaxRetries(cfg.AlignerMaxRetries),
		)
		if err != nil {
			return nil, fmt.Errorf("create aligner client: %w", err)
		}
		logger.Info("remote aligner configured", slog.String("url", cfg.AlignerURL))
		return loader, nil
	case cfg.AlignerDir != "":
		logger.Info("alignment directory configured", slog.String("dir", cfg.AlignerDir))
		return align.NewDirLoader(cfg.AlignerDir), nil
	default:
		logger.Info("no aligner configured, using proportional timing")
		return nil, nil
	}
}

// initRepository creates the run repository.
func initRepository(cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	if cfg.Repository == config.RepositorySQLite {
		repo, err := job.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		logger.Info("sqlite run store opened", slog.String("path", repo.Path()))
		return repo, nil
	}
	return job.NewMemoryRepository(), nil
}
