package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/report"
	"github.com/brandond/obra-upgrades/internal/storage/sqlite"
)

var (
	reportSince  string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report [discipline...]",
	Short: "Print the upgrade roster (default: all disciplines)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		store, err := sqlite.Open(cfg.DatabasePath, log)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		since, err := parseSince(reportSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}

		targets := cfg.ParsedDisciplines()
		if len(args) > 0 {
			targets = targets[:0]
			for _, a := range args {
				targets = append(targets, discipline.Tag(a))
			}
		}

		roster, err := report.New(store).Build(cmd.Context(), targets, since)
		if err != nil {
			return err
		}

		var sink report.Sink
		switch reportFormat {
		case "html":
			sink = report.HTMLSink{}
		case "null":
			sink = report.NullSink{}
		default:
			sink = report.TextSink{}
		}
		return sink.Render(roster, os.Stdout)
	},
}

// parseSince resolves raw as either a YYYY-MM-DD date or an
// olebedev/when natural-language relative expression ("2 weeks ago",
// "last monday"), defaulting to one year back when raw is empty.
func parseSince(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().AddDate(-1, 0, 0), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	result, err := w.Parse(raw, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not parse relative date %q", raw)
	}
	return result.Time, nil
}

func init() {
	reportCmd.Flags().StringVar(&reportSince, "since", "", `start of the reporting window, e.g. "2026-01-01" or "3 months ago"`)
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text, html, or null")
	rootCmd.AddCommand(reportCmd)
}
