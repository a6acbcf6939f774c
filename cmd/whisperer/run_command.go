package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"whisperer/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run [podcast...]",
		Short: "Poll feeds, notify subscribers, and publish new episodes",
		Long: "Fetch each podcast's feed, email subscribers about newly seen episodes, " +
			"process every episode without a published page, and rebuild the site. " +
			"With no arguments every enabled podcast is processed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signalContext(cmd)
			defer cancel()
			return ctx.withRunner(func(r *runner.Runner) error {
				summary, err := r.Run(runCtx, args...)
				if summary.RunID != "" {
					fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
				}
				if err != nil {
					return err
				}
				if failed := summary.Failed(); failed > 0 {
					return fmt.Errorf("run %s finished %s with %d failure(s)", summary.RunID, summary.Status(), failed)
				}
				return nil
			})
		},
	}
}

func renderSummary(s runner.Summary) string {
	columns := []column{
		{Header: "Podcast"},
		{Header: "Episodes", Align: alignRight},
		{Header: "Notified", Align: alignRight},
		{Header: "Processed", Align: alignRight},
		{Header: "Failed", Align: alignRight},
		{Header: "Site"},
		{Header: "Note", MaxWidth: 60},
	}
	rows := make([][]string, 0, len(s.Podcasts))
	for _, p := range s.Podcasts {
		note := p.Skipped
		if p.Err != nil {
			note = p.Err.Error()
		}
		rows = append(rows, []string{
			p.Name,
			strconv.Itoa(p.Episodes),
			strconv.Itoa(len(p.Notified)),
			strconv.Itoa(len(p.Processed)),
			strconv.Itoa(len(p.Failures)),
			yesNo(p.SiteBuilt),
			note,
		})
	}
	title := fmt.Sprintf("Run %s (%s, %s)", s.RunID, s.Status(), s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	return renderTable(title, columns, rows)
}
