package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/reelsync/internal/align"
	"github.com/maauso/reelsync/internal/audio"
	"github.com/maauso/reelsync/internal/script"
	"github.com/maauso/reelsync/internal/storage"
	"github.com/maauso/reelsync/internal/subtitle"
	"github.com/maauso/reelsync/internal/timing"
	"github.com/maauso/reelsync/internal/transcript"
)

// Static errors for the sync use case.
var (
	// ErrScriptRequired is returned when a run has no script.
	ErrScriptRequired = errors.New("script is required")
	// ErrRunNotCompleted is returned when artifacts of an unfinished or
	// failed run are requested.
	ErrRunNotCompleted = errors.New("run has not completed")
	// ErrRunInProgress is returned when a running run would be modified.
	ErrRunInProgress = errors.New("run is in progress")
)

// DefaultMaxConcurrentProbes bounds parallel duration probes.
const DefaultMaxConcurrentProbes = 4

// ClipSource is the audio of one script line: a file path, inline audio
// bytes, or a known duration.
type ClipSource struct {
	// Path is the clip file on disk.
	Path string
	// Audio holds the clip bytes; it is staged to a temporary file.
	Audio []byte
	// Duration, when non-zero, is used instead of probing.
	Duration float64
}

// SyncInput contains the input of one synchronization run.
type SyncInput struct {
	Script *script.Document
	// Clips has one entry per script line, in script order.
	Clips []ClipSource
	// Transcript is optional.
	Transcript transcript.Transcript
	// Timing is the timing profile. A zero value uses timing.DefaultConfig.
	Timing timing.Config
	// WindowSize is the highlight window in words; zero uses the default.
	WindowSize int
	// Style is the ASS style; a zero value uses subtitle.DefaultStyle.
	Style subtitle.Style
	// PushToS3 uploads every artifact to S3 after publishing it locally.
	PushToS3 bool
}

// SyncService runs the synchronization pipeline: stage clips, probe
// durations and align sentences concurrently, fold the timeline in script
// order, render the caption artifacts and publish them.
type SyncService struct {
	repo    Repository
	storage storage.Storage
	prober  audio.Prober
	loader  align.Loader
	logger  *slog.Logger

	maxConcurrentProbes int
}

// NewSyncService creates a new SyncService. A nil loader disables
// alignment; every sentence is then timed by proportional allocation.
func NewSyncService(repo Repository, store storage.Storage, prober audio.Prober, loader align.Loader, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		repo:                repo,
		storage:             store,
		prober:              prober,
		loader:              loader,
		logger:              logger,
		maxConcurrentProbes: DefaultMaxConcurrentProbes,
	}
}

// SetMaxConcurrentProbes configures how many clips are probed and aligned
// in parallel.
func (s *SyncService) SetMaxConcurrentProbes(n int) {
	if n > 0 {
		s.maxConcurrentProbes = n
	}
}

// CreateJob creates a new run in QUEUED status and persists it.
func (s *SyncService) CreateJob(ctx context.Context, input SyncInput) (*Job, error) {
	if input.Script == nil {
		return nil, ErrScriptRequired
	}

	job := New()
	job.Title = input.Script.Title
	job.Lines = len(input.Script.Lines())
	job.Speed = timingConfig(input).Speed
	job.PushToS3 = input.PushToS3

	s.logger.Info("creating sync run",
		slog.String("job_id", job.ID),
		slog.Int("lines", job.Lines),
		slog.Any("speakers", input.Script.Speakers()),
		slog.Int("clips", len(input.Clips)),
		slog.Bool("transcript", input.Transcript.Present()),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a run by ID.
func (s *SyncService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns every run, oldest first.
func (s *SyncService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// OpenArtifact opens a published artifact of a completed run.
func (s *SyncService) OpenArtifact(ctx context.Context, id, name string) (io.ReadCloser, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunNotCompleted, id, job.Status)
	}
	if _, ok := job.Artifact(name); !ok {
		return nil, fmt.Errorf("%w: %s/%s", storage.ErrArtifactNotFound, id, name)
	}
	return s.storage.OpenArtifact(ctx, id, name)
}

// DeleteJob removes a finished run and its stored artifacts. Running runs
// cannot be deleted.
func (s *SyncService) DeleteJob(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == StatusRunning {
		return fmt.Errorf("%w: %s is running", ErrRunInProgress, id)
	}
	if err := s.storage.DeleteArtifacts(ctx, id); err != nil {
		return fmt.Errorf("delete artifacts of %s: %w", id, err)
	}
	return s.repo.Delete(ctx, id)
}

// Sync creates a run and executes it synchronously.
func (s *SyncService) Sync(ctx context.Context, input SyncInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	err = s.Run(ctx, job, input)
	return job, err
}

// Run executes a created run to completion. On any fatal error the run is
// marked FAILED (or CANCELLED when ctx was cancelled) and lists no
// artifacts. The final state is persisted even when ctx is done.
func (s *SyncService) Run(ctx context.Context, job *Job, input SyncInput) error {
	logger := s.logger.With(slog.String("job_id", job.ID))
	started := time.Now()

	if err := job.Start(); err != nil {
		return fmt.Errorf("start run %s: %w", job.ID, err)
	}
	s.save(ctx, logger, job)

	runErr := s.run(ctx, logger, job, input)

	switch {
	case runErr == nil:
		_ = job.Complete()
	case errors.Is(runErr, context.Canceled):
		job.mu.Lock()
		job.Error = runErr.Error()
		job.Artifacts = make([]Artifact, 0)
		job.mu.Unlock()
		_ = job.Cancel()
	default:
		_ = job.Fail(runErr.Error())
	}
	s.save(context.WithoutCancel(ctx), logger, job)

	logger.Info("sync run finished",
		slog.String("status", string(job.GetStatus())),
		slog.Duration("duration", time.Since(started)),
		slog.Int("aligned", job.Aligned),
		slog.Int("total", job.Total),
		slog.Float64("coverage_pct", align.CoveragePercent(job.Aligned, job.Total)),
	)
	if runErr != nil {
		logger.Error("sync run failed", slog.String("error", runErr.Error()))
	}
	return runErr
}

func (s *SyncService) run(ctx context.Context, logger *slog.Logger, job *Job, input SyncInput) error {
	if input.Script == nil {
		return ErrScriptRequired
	}
	cfg := timingConfig(input)
	if input.Transcript.Present() {
		cfg.Transcript = input.Transcript.Sentences
	}

	lines := input.Script.Lines()
	refs := make([]timing.AudioClipRef, len(input.Clips))
	for i, c := range input.Clips {
		refs[i] = timing.AudioClipRef{Path: c.Path, DurationSeconds: c.Duration}
		if i < len(lines) {
			refs[i].Speaker = lines[i].Speaker
		}
	}
	inputs, err := timing.Pair(lines, refs)
	if err != nil {
		return err
	}

	var staged []string
	defer func() {
		if len(staged) == 0 {
			return
		}
		if err := s.storage.CleanupTemp(context.WithoutCancel(ctx), staged); err != nil {
			logger.Warn("failed to clean up staged clips", slog.String("error", err.Error()))
		}
	}()

	err = s.step(ctx, logger, job, StepStage, func() error {
		for i, c := range input.Clips {
			if len(c.Audio) == 0 {
				continue
			}
			name := script.ClipFileName(i+1, inputs[i].Line.Speaker)
			path, err := s.storage.SaveTemp(ctx, name, bytes.NewReader(c.Audio))
			if err != nil {
				return fmt.Errorf("stage clip %d: %w", i+1, err)
			}
			staged = append(staged, path)
			inputs[i].Clip.Path = path
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = s.step(ctx, logger, job, StepProbe, func() error {
		return s.probeAndAlign(ctx, logger, job, inputs)
	})
	if err != nil {
		return err
	}

	var tl *timing.Timeline
	err = s.step(ctx, logger, job, StepBuild, func() error {
		tl, err = timing.Build(inputs, cfg)
		return err
	})
	if err != nil {
		return err
	}

	var rendered []subtitle.Artifact
	err = s.step(ctx, logger, job, StepRender, func() error {
		rendered, err = subtitle.Render(tl, subtitle.Options{
			WindowSize: input.WindowSize,
			Lead:       cfg.Lead,
			Style:      input.Style,
		})
		return err
	})
	if err != nil {
		return err
	}

	return s.step(ctx, logger, job, StepPublish, func() error {
		published, err := s.publish(ctx, job.ID, rendered, input.PushToS3)
		if err != nil {
			return err
		}
		job.SetArtifacts(published)
		return nil
	})
}

// probeAndAlign resolves every clip duration and attempts alignment of
// every sentence. Results are stored by index; a probe failure cancels
// the remaining work.
func (s *SyncService) probeAndAlign(ctx context.Context, logger *slog.Logger, job *Job, inputs []timing.SentenceInput) error {
	session := align.NewSession(s.loader, logger)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close aligner", slog.String("error", err.Error()))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentProbes)

	for i := range inputs {
		g.Go(func() error {
			in := &inputs[i]
			if in.Clip.DurationSeconds == 0 {
				if s.prober == nil {
					return fmt.Errorf("line %d (%s): %w", i+1, in.Line.Speaker, audio.ErrNoProbers)
				}
				d, err := s.prober.Duration(gctx, in.Clip.Path)
				if err != nil {
					return fmt.Errorf("line %d (%s): %w", i+1, in.Line.Speaker, err)
				}
				in.Clip.DurationSeconds = d
			}
			if spk := script.SpeakerFromClip(in.Clip.Path); spk != "" && spk != in.Line.Speaker {
				logger.Warn("clip speaker does not match script line",
					slog.Int("line", i+1),
					slog.String("clip", in.Clip.Path),
					slog.String("script_speaker", in.Line.Speaker),
					slog.String("clip_speaker", spk),
				)
			}

			res := session.Align(gctx, in.Line.Text, in.Clip)
			if res.Status == align.StatusAligned {
				in.Aligned = res.Words
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	aligned, total := session.Coverage()
	job.SetCoverage(aligned, total)
	return nil
}

// publish stores every artifact and, when requested, uploads it to S3.
// The returned list is only used once every artifact succeeded.
func (s *SyncService) publish(ctx context.Context, runID string, rendered []subtitle.Artifact, pushToS3 bool) ([]Artifact, error) {
	published := make([]Artifact, 0, len(rendered))
	for _, a := range rendered {
		path, err := s.storage.SaveArtifact(ctx, runID, a.Name, bytes.NewReader(a.Data))
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", a.Name, err)
		}
		out := Artifact{Name: a.Name, Path: path, Size: len(a.Data)}

		if pushToS3 {
			url, err := s.storage.UploadToS3(ctx, storage.ArtifactKey(runID, a.Name), bytes.NewReader(a.Data))
			if err != nil {
				return nil, fmt.Errorf("upload %s: %w", a.Name, err)
			}
			out.URL = url
		}
		published = append(published, out)
	}
	return published, nil
}

// step records the stage on the job and logs its start, finish and duration.
func (s *SyncService) step(ctx context.Context, logger *slog.Logger, job *Job, step Step, fn func() error) error {
	job.SetStep(step)
	s.save(ctx, logger, job)

	started := time.Now()
	logger.Info("step started", slog.String("step", string(step)))

	if err := fn(); err != nil {
		logger.Error("step failed",
			slog.String("step", string(step)),
			slog.Duration("duration", time.Since(started)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", step, err)
	}

	logger.Info("step finished",
		slog.String("step", string(step)),
		slog.Duration("duration", time.Since(started)),
	)
	return nil
}

func (s *SyncService) save(ctx context.Context, logger *slog.Logger, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		logger.Warn("failed to persist run", slog.String("error", err.Error()))
	}
}

func timingConfig(input SyncInput) timing.Config {
	if input.Timing.Speed == 0 {
		return timing.DefaultConfig()
	}
	return input.Timing
}
