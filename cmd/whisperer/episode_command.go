package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whisperer/internal/podcast"
	"whisperer/internal/runner"
	"whisperer/internal/services"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "episode <podcast> <number>",
		Short: "Process a single episode without notifying subscribers",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseEpisodeNumber(args[1])
			if err != nil {
				return err
			}
			runCtx, cancel := signalContext(cmd)
			defer cancel()
			return ctx.withRunner(func(r *runner.Runner) error {
				marker, err := r.RunEpisode(runCtx, args[0], number)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published %s episode %s: %s\n", args[0], podcast.FormatNumber(number), marker)
				return nil
			})
		},
	}
}

func parseEpisodeNumber(raw string) (float64, error) {
	number, err := podcast.ParseNumber(raw)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "cli", "parse episode number", fmt.Sprintf("%q", raw), err)
	}
	return number, nil
}
