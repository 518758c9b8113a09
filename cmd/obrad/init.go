package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/brandond/obra-upgrades/internal/config"
	"github.com/brandond/obra-upgrades/internal/discipline"
)

func parseDurationOrDefault(raw, fallback string) (time.Duration, error) {
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively write a new config.toml",
	RunE: func(cmd *cobra.Command, args []string) error {
		home, _ := os.UserHomeDir()
		cfg := &config.Config{
			DatabasePath:      filepath.Join(home, ".obra", "obra.sqlite3"),
			CacheType:         "memory",
			FullScrapeEvery:   0,
			RecentScrapeEvery: 0,
			RecentScrapeDays:  14,
			APIAddr:           ":8080",
			ScraperBaseURL:    "https://www.obra.org",
		}

		var fullEvery, recentEvery string
		var disciplines []string
		var cacheType string

		disciplineOptions := make([]huh.Option[string], 0, len(discipline.All()))
		for _, d := range discipline.All() {
			disciplineOptions = append(disciplineOptions, huh.NewOption(string(d), string(d)).Selected(true))
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Database path").
					Value(&cfg.DatabasePath),
				huh.NewInput().
					Title("Full rescan interval").
					Description(`e.g. "10m", "1h"`).
					Placeholder("10m").
					Value(&fullEvery),
				huh.NewInput().
					Title("Recent-only rescan interval").
					Placeholder("30m").
					Value(&recentEvery),
				huh.NewMultiSelect[string]().
					Title("Disciplines to track").
					Options(disciplineOptions...).
					Value(&disciplines),
				huh.NewSelect[string]().
					Title("Cache backend").
					Options(huh.NewOption("memory", "memory"), huh.NewOption("redis", "redis")).
					Value(&cacheType),
			),
		).WithTheme(huh.ThemeDracula())

		if err := form.Run(); err != nil {
			return fmt.Errorf("config wizard: %w", err)
		}

		cfg.Disciplines = disciplines
		cfg.CacheType = cacheType
		if d, err := parseDurationOrDefault(fullEvery, "10m"); err == nil {
			cfg.FullScrapeEvery = d
		}
		if d, err := parseDurationOrDefault(recentEvery, "30m"); err == nil {
			cfg.RecentScrapeEvery = d
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Printf("Wrote %s\n", cfgPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
