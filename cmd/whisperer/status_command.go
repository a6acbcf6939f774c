package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"whisperer/internal/config"
	"whisperer/internal/deps"
	"whisperer/internal/history"
	"whisperer/internal/pipeline"
	"whisperer/internal/workspace"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var checkLLM bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs and external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, err := history.Open(workspace.FromConfig(cfg).HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
			} else {
				fmt.Fprintln(out, renderRuns(runs))
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if len(statuses) > 0 {
				fmt.Fprintln(out, renderDependencies(statuses))
			}

			if checkLLM {
				reportLLM(cmd, out, cfg)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent runs to show")
	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Send a minimal request to verify the LLM endpoint and key")
	return cmd
}

func renderRuns(runs []history.Run) string {
	columns := []column{
		{Header: "Run"},
		{Header: "Started"},
		{Header: "Duration", Align: alignRight},
		{Header: "Podcasts", MaxWidth: 30},
		{Header: "Status"},
		{Header: "Processed", Align: alignRight},
		{Header: "Failed", Align: alignRight},
		{Header: "Notified", Align: alignRight},
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if !run.FinishedAt.IsZero() {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			duration,
			strings.Join(run.Podcasts, ", "),
			run.Status,
			strconv.Itoa(run.Processed),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Notified),
		})
	}
	return renderTable("Recent runs", columns, rows)
}

func renderDependencies(statuses []deps.Status) string {
	columns := []column{
		{Header: "Tool"},
		{Header: "Command"},
		{Header: "Available"},
		{Header: "Detail", MaxWidth: 50},
	}
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		detail := s.Detail
		if detail == "" {
			detail = s.Description
		}
		if !s.Available && s.Optional {
			detail += " (optional)"
		}
		rows = append(rows, []string{s.Name, s.Command, yesNo(s.Available), detail})
	}
	return renderTable("External tools", columns, rows)
}

func reportLLM(cmd *cobra.Command, out io.Writer, cfg *config.Config) {
	client := pipeline.NewLLMClient(cfg.LLM)
	if err := client.HealthCheck(cmd.Context()); err != nil {
		fmt.Fprintf(out, "LLM %s: unavailable: %v\n", client.Model(), err)
		return
	}
	fmt.Fprintf(out, "LLM %s: ok\n", client.Model())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
