package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print the effective timing profile as TOML",
		Long: `Print the timing profile a run would use: built-in defaults, then the
environment, then TIMING_PROFILE. With --write the profile is saved to a file
that can be edited and passed back with --profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			profile, err := cfg.Profile()
			if err != nil {
				return err
			}
			data, err := toml.Marshal(profile)
			if err != nil {
				return fmt.Errorf("encode profile: %w", err)
			}
			if path == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write profile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote timing profile to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "write", "", "write the profile to this file instead of stdout")
	return cmd
}
