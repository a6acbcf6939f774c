package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"whisperer/internal/numbering"
	"whisperer/internal/podcast"
	"whisperer/internal/runner"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <podcast>",
		Short: "Show how the feed's episodes are numbered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signalContext(cmd)
			defer cancel()
			return ctx.withRunner(func(r *runner.Runner) error {
				episodes, err := r.Resolve(runCtx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderEpisodes(args[0], episodes))
				return nil
			})
		},
	}
}

func renderEpisodes(name string, episodes []podcast.Episode) string {
	columns := []column{
		{Header: "#", Align: alignRight},
		{Header: "Title", MaxWidth: 60},
		{Header: "Published"},
		{Header: "MP3", MaxWidth: 50},
	}
	rows := make([][]string, 0, len(episodes))
	for _, ep := range episodes {
		label := ep.Label()
		if numbering.IsSentinel(ep.Number) {
			label += " (pinned)"
		}
		published := ep.PubDateRaw
		if !ep.PubDate.IsZero() {
			published = ep.PubDate.Format("2006-01-02")
		}
		rows = append(rows, []string{label, ep.Title, published, ep.MP3URL})
	}
	return renderTable(fmt.Sprintf("%s: %d episodes", name, len(episodes)), columns, rows)
}
