package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brandond/obra-upgrades/internal/api"
	"github.com/brandond/obra-upgrades/internal/cache"
	"github.com/brandond/obra-upgrades/internal/config"
	"github.com/brandond/obra-upgrades/internal/engine"
	"github.com/brandond/obra-upgrades/internal/memberapi"
	"github.com/brandond/obra-upgrades/internal/scraper"
	"github.com/brandond/obra-upgrades/internal/storage/sqlite"
	"github.com/brandond/obra-upgrades/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler daemon: scrape and process every discipline on two timers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		shutdown, err := telemetry.Init(cmd.Context(), cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()

		store, err := sqlite.Open(cfg.DatabasePath, log)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		var c cache.Cache
		if cfg.CacheType == "redis" {
			c = cache.NewRedis(cfg.CacheRedisAddr)
		} else {
			c = cache.NewMemory()
		}
		defer func() { _ = c.Close() }()

		// Declared as interfaces, not *scraper.Scraper, so that leaving
		// scraping disabled produces a genuinely nil interface rather than
		// a non-nil interface wrapping a nil pointer.
		var memberScraper memberapi.PersonScraper
		var engineScraper engine.Scraper
		if !cfg.NoScrape {
			sc := scraper.New(store, cfg.ScraperBaseURL, log)
			memberScraper = sc
			engineScraper = sc
		}
		members := memberapi.New(store, memberScraper, log)
		e := engine.New(store, engineScraper, members, c, log)

		sched := engine.NewScheduler(e, cfg.FullScrapeEvery, cfg.RecentScrapeEvery, cfg.RecentScrapeDays, log)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		stopWatch, err := config.Watch(cfgPath, func(*config.Config) {
			log.Info().Msg("config changed on disk; restart obrad to apply")
		})
		if err == nil {
			defer stopWatch()
		}

		srv := api.New(store, log)
		httpServer := &http.Server{Addr: cfg.APIAddr, Handler: srv.Router()}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("api server stopped")
			}
		}()
		defer func() { _ = httpServer.Shutdown(context.Background()) }()

		log.Info().Str("api_addr", cfg.APIAddr).Msg("obrad daemon starting")
		sched.Run(ctx)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
