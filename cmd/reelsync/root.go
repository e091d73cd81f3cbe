package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/reelsync/internal/config"
)

// commandContext carries state shared by every subcommand.
type commandContext struct {
	verbose bool
	quiet   bool

	cfg    *config.Config
	logger *slog.Logger
}

// ensureConfig loads the environment configuration once.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	switch {
	case c.quiet:
		cfg.LogLevel = "error"
	case c.verbose:
		cfg.LogLevel = "debug"
	}
	c.cfg = cfg
	c.logger = cfg.NewLoggerTo(cmd.ErrOrStderr())
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:   "reelsync",
		Short: "Synchronize dialogue scripts with voice clips",
		Long: `reelsync times every word of a dialogue script against its rendered
voice clips and writes a sentence map, word timestamps, an SRT track and an
ASS track with a rolling word highlight.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&ctx.quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newProfileCommand(ctx))

	return rootCmd
}
