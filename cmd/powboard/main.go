// Command powboard runs the proof-of-work ranked message board: it ingests
// on-chain events, stores them idempotently and serves the ranked feed.
//
//	powboard serve             HTTP API, plus the stream crawler when enabled
//	powboard ingest FILE...    replay NDJSON transaction records
//	powboard migrate           create or update the schema
//
// @title          powboard API
// @version        1.0
// @description    Message board ranked by proof of work attached to posts.
// @description    Served outside the base path: /api/v0/status, /health, /metrics.
// @BasePath       /api/v1
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-powboard/internal/config"
	"github.com/tbourn/go-powboard/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("powboard.failed")
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Configuration is loaded once, before
// any subcommand runs, from the environment and an optional .env file.
func newRootCmd() *cobra.Command {
	var cfg config.Config
	var envFile string

	root := &cobra.Command{
		Use:           "powboard",
		Short:         "Proof-of-work ranked message board",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal outside development.
			_ = godotenv.Load(envFile)
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			sysutil.SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCmd(&cfg),
		newIngestCmd(&cfg),
		newMigrateCmd(&cfg),
	)

	return root
}
