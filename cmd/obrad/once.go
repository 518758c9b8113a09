package main

import (
	"github.com/spf13/cobra"

	"github.com/brandond/obra-upgrades/internal/cache"
	"github.com/brandond/obra-upgrades/internal/discipline"
	"github.com/brandond/obra-upgrades/internal/engine"
	"github.com/brandond/obra-upgrades/internal/memberapi"
	"github.com/brandond/obra-upgrades/internal/scraper"
	"github.com/brandond/obra-upgrades/internal/storage/sqlite"
)

var onceIncremental bool

var onceCmd = &cobra.Command{
	Use:   "once [discipline...]",
	Short: "Run one pipeline pass over the given disciplines (default: all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		store, err := sqlite.Open(cfg.DatabasePath, log)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var memberScraper memberapi.PersonScraper
		var engineScraper engine.Scraper
		if !cfg.NoScrape {
			sc := scraper.New(store, cfg.ScraperBaseURL, log)
			memberScraper = sc
			engineScraper = sc
		}
		members := memberapi.New(store, memberScraper, log)
		e := engine.New(store, engineScraper, members, cache.NewMemory(), log)

		targets := cfg.ParsedDisciplines()
		if len(args) > 0 {
			targets = targets[:0]
			for _, a := range args {
				targets = append(targets, discipline.Tag(a))
			}
		}

		ctx := cmd.Context()
		for _, d := range targets {
			if !discipline.Valid(d) {
				log.Warn().Str("discipline", string(d)).Msg("unknown discipline, skipping")
				continue
			}
			if err := e.RunDiscipline(ctx, d, onceIncremental); err != nil {
				log.Error().Err(err).Str("discipline", string(d)).Msg("pipeline run failed")
			}
		}
		return nil
	},
}

func init() {
	onceCmd.Flags().BoolVar(&onceIncremental, "incremental", false, "only reprocess incrementally affected races")
	rootCmd.AddCommand(onceCmd)
}
