// Command obrad runs the upgrade-and-ranking engine: a scheduler daemon
// (obrad run), a one-shot pipeline pass (obrad once), the HTML/text
// roster report (obrad report), and an interactive first-run config
// wizard (obrad init).
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/brandond/obra-upgrades/internal/config"
)

var (
	cfgPath string
	log     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "obrad",
	Short: "Upgrade and ranking engine for federation race results",
}

func main() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "path to config.toml")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}
	return cfg
}
