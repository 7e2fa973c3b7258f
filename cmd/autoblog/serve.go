package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"autoblog/internal/api"
	"autoblog/internal/metrics"
	"autoblog/internal/site"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and admin pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.logger
	m := metrics.New()

	deps, closeDeps, err := buildDeps(ctx, a.cfg, logger, m)
	if err != nil {
		return err
	}
	defer closeDeps()

	hub := api.NewHub(logger, deps.Clock)
	deps.Extensions = append(deps.Extensions, hub.Extension())

	var auth *api.Auth
	if !a.cfg.Auth.Disabled {
		auth = api.NewAuth(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer, a.cfg.Auth.TokenTTL, deps.Clock)
	} else {
		logger.Warn("API authentication is disabled")
	}

	newSite := func() *site.Site { return site.New(deps) }
	srv := api.NewServer(api.Config{
		Addr:            a.cfg.Server.Addr,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		CronOnRequest:   a.cfg.Cron.OnRequest,
	}, newSite, auth, hub, m, logger)

	if err := srv.Start(); err != nil {
		return err
	}

	if every := a.cfg.Cron.Interval; every > 0 {
		go runCronTicker(ctx, newSite, every, logger.Named("cron"))
	}

	logger.Info("autoblog running",
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("base_url", a.cfg.Server.BaseURL))

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	return srv.Stop()
}

// runCronTicker spawns due pseudo-cron events on a fixed interval, for
// sites that receive too little traffic to rely on request spawning.
func runCronTicker(ctx context.Context, newSite func() *site.Site, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := newSite()
			st.Boot(ctx)
			n, err := st.SpawnCron(ctx)
			if err != nil {
				logger.Error("Pseudo-cron spawn failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Pseudo-cron events ran", zap.Int("events", n))
			}
		}
	}
}
