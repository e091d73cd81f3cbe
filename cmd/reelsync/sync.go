package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/reelsync/internal/audio"
	"github.com/maauso/reelsync/internal/bootstrap"
	"github.com/maauso/reelsync/internal/config"
	"github.com/maauso/reelsync/internal/job"
	"github.com/maauso/reelsync/internal/script"
	"github.com/maauso/reelsync/internal/transcript"
)

var errNoClips = errors.New("either --clips or --clip is required")

type syncOptions struct {
	scriptPath     string
	clipsDir       string
	clips          []string
	durations      []float64
	outDir         string
	transcriptPath string
	alignmentsDir  string
	alignerURL     string
	profilePath    string
	speed          float64
	window         int
	lead           bool
	pushToS3       bool
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize a script with its clips and write the artifacts",
		Long: `Synchronize a dialogue script with one clip per line. Clips are taken
from --clips (every .wav file in name order) or from repeated --clip flags, in
speaker-major script order. Durations are probed with ffprobe unless given
with --durations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			return runSync(cmd, ctx, applySyncFlags(cmd, *cfg, opts), opts)
		},
	}

	defaults := config.DefaultProfile()
	flags := cmd.Flags()
	flags.StringVarP(&opts.scriptPath, "script", "s", "", "dialogue script JSON")
	flags.StringVar(&opts.clipsDir, "clips", "", "directory of clips named NN_Speaker.wav")
	flags.StringArrayVar(&opts.clips, "clip", nil, "clip file, repeated once per line")
	flags.Float64SliceVar(&opts.durations, "durations", nil, "clip durations in seconds, skipping the probe")
	flags.StringVarP(&opts.outDir, "out", "o", "", "artifact directory (default: OUTPUT_DIR)")
	flags.StringVar(&opts.transcriptPath, "transcript", "", "optional sentence transcript JSON")
	flags.StringVar(&opts.alignmentsDir, "alignments", "", "directory of pre-computed <clip>.json alignments")
	flags.StringVar(&opts.alignerURL, "aligner-url", "", "remote aligner base URL")
	flags.StringVar(&opts.profilePath, "profile", "", "timing profile TOML (default: TIMING_PROFILE)")
	flags.Float64Var(&opts.speed, "speed", defaults.Timing.Speed, "playback speed factor")
	flags.IntVar(&opts.window, "window", defaults.WindowSize, "highlight window in words")
	flags.BoolVar(&opts.lead, "lead", false, "light words up slightly ahead of the audio")
	flags.BoolVar(&opts.pushToS3, "push-to-s3", false, "upload the artifacts to S3")
	_ = cmd.MarkFlagRequired("script")
	cmd.MarkFlagsMutuallyExclusive("clips", "clip")
	cmd.MarkFlagsMutuallyExclusive("alignments", "aligner-url")

	return cmd
}

// applySyncFlags overlays explicitly set flags on the environment config.
func applySyncFlags(cmd *cobra.Command, cfg config.Config, opts syncOptions) *config.Config {
	flags := cmd.Flags()
	cfg.Repository = config.RepositoryMemory
	if opts.outDir != "" {
		cfg.OutputDir = opts.outDir
	}
	if opts.profilePath != "" {
		cfg.TimingProfile = opts.profilePath
	}
	if opts.alignmentsDir != "" {
		cfg.AlignerDir, cfg.AlignerURL = opts.alignmentsDir, ""
	}
	if opts.alignerURL != "" {
		cfg.AlignerURL, cfg.AlignerDir = opts.alignerURL, ""
	}
	if flags.Changed("speed") {
		cfg.Speed = opts.speed
	}
	if flags.Changed("window") {
		cfg.WindowSize = opts.window
	}
	if flags.Changed("lead") {
		cfg.LeadEnabled = opts.lead
	}
	return &cfg
}

func runSync(cmd *cobra.Command, cctx *commandContext, cfg *config.Config, opts syncOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc, err := script.ParseFile(opts.scriptPath)
	if err != nil {
		return err
	}

	clips, err := clipSources(opts)
	if err != nil {
		return err
	}

	deps, err := bootstrap.NewDependencies(cfg, cctx.logger)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close() }()

	// Flags set after the profile file was read still win.
	profile := deps.Profile
	if cmd.Flags().Changed("speed") {
		profile.Timing.Speed = opts.speed
	}
	if cmd.Flags().Changed("window") {
		profile.WindowSize = opts.window
	}
	if cmd.Flags().Changed("lead") {
		profile.Timing.Lead.Enabled = opts.lead
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	input := job.SyncInput{
		Script:     doc,
		Clips:      clips,
		Timing:     profile.Timing,
		WindowSize: profile.WindowSize,
		Style:      profile.Style,
		PushToS3:   opts.pushToS3,
	}
	if opts.transcriptPath != "" {
		tr, err := transcript.ParseFile(opts.transcriptPath)
		if err != nil {
			return err
		}
		if !tr.Present() {
			cctx.logger.Warn("transcript ignored",
				slog.String("path", opts.transcriptPath),
				slog.String("shape", tr.Shape.String()),
				slog.String("reason", tr.Reason),
			)
		}
		input.Transcript = tr
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := deps.SyncService.Sync(runCtx, input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return err
	}

	out := cmd.OutOrStdout()
	for _, a := range result.Artifacts {
		if a.URL != "" {
			fmt.Fprintf(out, "%s\t%s\n", a.Path, a.URL)
			continue
		}
		fmt.Fprintln(out, a.Path)
	}
	if !cctx.quiet {
		cctx.logger.Info("done",
			slog.String("run_id", result.ID),
			slog.Int("aligned", result.Aligned),
			slog.Int("total", result.Total),
		)
	}
	return nil
}

// clipSources resolves the clip flags into one source per line.
func clipSources(opts syncOptions) ([]job.ClipSource, error) {
	paths := opts.clips
	if opts.clipsDir != "" {
		listed, err := audio.ListClips(opts.clipsDir)
		if err != nil {
			return nil, err
		}
		paths = listed
	}

	n := len(paths)
	if n == 0 {
		n = len(opts.durations)
	}
	if n == 0 {
		return nil, errNoClips
	}
	if len(opts.durations) > 0 && len(opts.durations) != n {
		return nil, fmt.Errorf("got %d durations for %d clips", len(opts.durations), n)
	}

	for i, d := range opts.durations {
		if !(d > 0) {
			return nil, fmt.Errorf("duration %d must be positive, got %v", i+1, d)
		}
	}

	sources := make([]job.ClipSource, n)
	for i := range sources {
		if i < len(paths) {
			sources[i].Path = paths[i]
		}
		if len(opts.durations) > 0 {
			sources[i].Duration = opts.durations[i]
		}
	}
	return sources, nil
}
