package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"whisperer/internal/podcast"
	"whisperer/internal/runner"
	"whisperer/internal/services"
	"whisperer/internal/workspace"
)

func newReprocessCommand(ctx *commandContext) *cobra.Command {
	var (
		download   bool
		transcribe bool
		attribute  bool
		markdown   bool
		all        bool
		dryRun     bool
		runAfter   bool
	)

	cmd := &cobra.Command{
		Use:   "reprocess <podcast> <number>",
		Short: "Remove stage artifacts so the next run recomputes them",
		Long: "Delete the working files owned by the selected stages, plus the rendered page and " +
			"the published completion marker, so the episode is rebuilt on the next run.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, ok := cfg.Podcast(name); !ok {
				return services.Wrap(services.ErrNotFound, "cli", "lookup podcast", name, nil)
			}
			number, err := parseEpisodeNumber(args[1])
			if err != nil {
				return err
			}

			var stages []string
			for _, sel := range []struct {
				on    bool
				stage string
			}{
				{download, workspace.StageDownload},
				{transcribe, workspace.StageTranscribe},
				{attribute, workspace.StageAttribute},
				{markdown, workspace.StageRender},
				{all, workspace.StageAll},
			} {
				if sel.on {
					stages = append(stages, sel.stage)
				}
			}
			if len(stages) == 0 {
				return fmt.Errorf("select at least one stage: --download, --transcribe, --attribute, --markdown, or --all")
			}

			layout := workspace.FromConfig(cfg)
			result, err := layout.Reset(name, number, stages, dryRun)
			out := cmd.OutOrStdout()
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, path := range result.Paths {
				fmt.Fprintf(out, "%s %s\n", verb, path)
			}
			if err != nil {
				return err
			}
			if len(result.Paths) == 0 {
				fmt.Fprintf(out, "Nothing to remove for %s episode %s (%s)\n",
					name, podcast.FormatNumber(number), strings.Join(stages, ", "))
			}
			if dryRun || !runAfter {
				return nil
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()
			return ctx.withRunner(func(r *runner.Runner) error {
				marker, err := r.RunEpisode(runCtx, name, number)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Published %s\n", marker)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&download, "download", false, "Re-download the audio")
	cmd.Flags().BoolVar(&transcribe, "transcribe", false, "Re-run transcription")
	cmd.Flags().BoolVar(&attribute, "attribute", false, "Re-run speaker attribution and synopsis")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Re-render the markdown page")
	cmd.Flags().BoolVar(&all, "all", false, "Reset every stage")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	cmd.Flags().BoolVar(&runAfter, "run", false, "Process the episode immediately after resetting")
	return cmd
}
