package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-powboard/internal/config"
	httpapi "github.com/tbourn/go-powboard/internal/http"
	"github.com/tbourn/go-powboard/internal/observability"
	"github.com/tbourn/go-powboard/internal/source"
)

// shutdownGrace bounds in-flight request draining on shutdown.
const shutdownGrace = 10 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and, when enabled, crawl the transaction stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel.shutdown_failed")
		}
	}()

	a, err := newApp(ctx, cfg, "bitbus")
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("app.close_failed")
		}
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, a.feed, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("api", cfg.APIBasePath).Msg("http.listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		log.Info().Msg("http.shutdown")
		return srv.Shutdown(sctx)
	})

	if cfg.Crawler.Enabled {
		cr := &source.Crawler{
			URL:         cfg.Crawler.URL,
			Token:       cfg.Crawler.Token,
			AppIDs:      []string{cfg.AppID, cfg.BoostAppID},
			StartHeight: cfg.Crawler.StartHeight,
			Interval:    cfg.Crawler.Interval,
			Stream:      "bitbus:" + cfg.AppID,
			HTTP:        &http.Client{Timeout: 2 * time.Minute},
			Checkpoints: source.DBCheckpoints{DB: a.db},
			Handler:     a.pipeline.HandleTransaction,
			Settle:      a.queue.Wait,
		}
		g.Go(func() error { return cr.Run(gctx) })
	} else {
		log.Info().Msg("crawler.disabled")
	}

	return g.Wait()
}
