package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-powboard/internal/config"
	"github.com/tbourn/go-powboard/internal/source"
)

func newIngestCmd(cfg *config.Config) *cobra.Command {
	var appID string
	cmd := &cobra.Command{
		Use:   "ingest [FILE...]",
		Short: "Replay newline-delimited JSON transaction records (stdin when no file or -)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if appID != "" {
				c.AppID = appID
			}
			if c.AppID == "" {
				return errors.New("ingest: APP_ID or --app-id is required")
			}
			if len(args) == 0 {
				args = []string{"-"}
			}

			a, err := newApp(cmd.Context(), c, "file")
			if err != nil {
				return err
			}
			var total source.Stats
			for _, name := range args {
				st, err := ingestFile(cmd, a, name)
				total.Records += st.Records
				total.Failed += st.Failed
				if err != nil {
					_ = a.Close()
					return fmt.Errorf("%s: %w", name, err)
				}
			}
			// Close drains every queued write before reporting.
			if err := a.Close(); err != nil {
				return err
			}
			log.Info().Int("records", total.Records).Int("failed", total.Failed).Msg("ingest.done")
			return nil
		},
	}
	cmd.Flags().StringVar(&appID, "app-id", "", "board application id (overrides APP_ID)")
	return cmd
}

func ingestFile(cmd *cobra.Command, a *app, name string) (source.Stats, error) {
	var r io.Reader = cmd.InOrStdin()
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return source.Stats{}, err
		}
		defer f.Close()
		r = f
	}
	st, err := source.ReadNDJSON(cmd.Context(), r, a.pipeline.HandleTransaction)
	log.Info().Str("file", name).Int("records", st.Records).Int("failed", st.Failed).Msg("ingest.file")
	return st, err
}
