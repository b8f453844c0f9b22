package cli

// This file contains the list command for displaying previous runs.

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/orthanc-tools/harness/history"
	"github.com/orthanc-tools/harness/model"
)

func (a *App) list(ctx *cli.Context) error {
	kindFilter := ctx.String("kind")
	limit := ctx.Int("limit")

	root, err := history.DefaultRoot()
	if err != nil {
		return err
	}

	entries, err := history.LoadEntries(a.logger, root)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	var filtered []history.Entry
	for _, entry := range entries {
		if kindFilter == "" || string(entry.Run.Kind) == kindFilter {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == 0 {
		if kindFilter != "" {
			fmt.Fprintf(ctx.App.Writer, "No runs found of kind: %s\n", kindFilter)
		} else {
			fmt.Fprintln(ctx.App.Writer, "No runs found")
		}
		return nil
	}

	displayRuns := filtered
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Fprintf(ctx.App.Writer, "\n=== History (%d total) ===\n\n", len(filtered))

	for _, entry := range displayRuns {
		run := entry.Run
		timestamp := run.Timestamp.Format("2006-01-02 15:04:05")
		duration := run.Duration.Round(time.Millisecond)

		status := "✓"
		if run.ExitCode != 0 {
			status = "✗"
		}

		args := ""
		if len(run.Args) > 1 {
			args = strings.Join(run.Args[1:], " ")
		}

		shortID := run.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		fmt.Fprintf(ctx.App.Writer, "%s  %s  %-5s  [%s]  exit=%d  id=%s\n", status, timestamp, run.Kind, duration, run.ExitCode, shortID)
		if args != "" {
			fmt.Fprintf(ctx.App.Writer, "   Args: %s\n", args)
		}
		if run.Target != nil {
			switch {
			case run.Target.Executable != "":
				fmt.Fprintf(ctx.App.Writer, "   Target: %s\n", run.Target.Executable)
			case run.Target.Image != "":
				fmt.Fprintf(ctx.App.Writer, "   Target: %s\n", run.Target.Image)
			}
		}
		if run.Kind == model.RunKindTest {
			passed, failed := 0, 0
			for _, s := range run.Scenarios {
				if s.Status == model.StatusPassed {
					passed++
				} else {
					failed++
				}
			}
			fmt.Fprintf(ctx.App.Writer, "   Scenarios: %d passed, %d failed\n", passed, failed)
		}
		if run.Kind == model.RunKindBench && len(run.Benchmarks) > 0 {
			backends := map[string]bool{}
			for _, b := range run.Benchmarks {
				backends[b.Backend] = true
			}
			fmt.Fprintf(ctx.App.Writer, "   Benchmarks: %d timings over %d backends\n", len(run.Benchmarks), len(backends))
		}
		fmt.Fprintf(ctx.App.Writer, "   %s\n\n", entry.FullPath)
	}

	return nil
}
