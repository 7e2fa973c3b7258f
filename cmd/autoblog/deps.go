package main

import (
	"context"
	"fmt"

	"autoblog/internal/ai"
	"autoblog/internal/clock"
	"autoblog/internal/config"
	"autoblog/internal/httpclient"
	"autoblog/internal/knowledge"
	"autoblog/internal/media"
	"autoblog/internal/metrics"
	"autoblog/internal/options"
	"autoblog/internal/posts"
	"autoblog/internal/site"
	"autoblog/internal/storage/postgres"
	"autoblog/pkg/extensions/eventrelay"
	"autoblog/pkg/host"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// buildDeps opens the configured backends. The returned close function
// releases every connection that was opened.
func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (site.Deps, func(), error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Failed to close backend", zap.Error(err))
			}
		}
	}
	fail := func(err error) (site.Deps, func(), error) {
		closeAll()
		return site.Deps{}, func() {}, err
	}

	clk := clock.NewReal()
	deps := site.Deps{
		Logger:  logger,
		Metrics: m,
		Clock:   clk,
		HTTP:    httpclient.New(cfg.HTTP.ClientConfig(), logger, m),
		Plugins: site.NewStaticPlugins(cfg.Plugins...),
	}

	var db *sqlx.DB
	if cfg.UsesPostgres() {
		var err error
		db, err = postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, db.Close)
		if cfg.Database.Migrate {
			if err := postgres.Migrate(db, logger.Named("migrate")); err != nil {
				return fail(err)
			}
		}
	}

	switch cfg.Options.Backend {
	case "memory":
		deps.Options = options.NewMemory()
	case "file":
		deps.Options = options.NewFile(cfg.Options.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		deps.Options = options.NewRedis(client, cfg.Redis.Prefix)
	case "postgres":
		deps.Options = options.NewPostgres(db)
	default:
		return fail(fmt.Errorf("unknown option store %q", cfg.Options.Backend))
	}

	switch cfg.Posts.Backend {
	case "postgres":
		deps.Posts = posts.NewPostgres(db, cfg.Server.BaseURL)
	default:
		deps.Posts = posts.NewMemory(cfg.Server.BaseURL, clk)
	}

	switch cfg.Media.Backend {
	case "s3":
		lib, err := media.NewS3FromConfig(ctx, cfg.Media.S3, clk)
		if err != nil {
			return fail(err)
		}
		deps.Media = lib
	default:
		deps.Media = media.NewLocal(cfg.Media.Dir, cfg.MediaBaseURL(), clk)
	}

	var gen host.TextGenerator
	switch cfg.AI.Provider {
	case "bedrock":
		b, err := ai.NewBedrockFromConfig(ctx, cfg.AI.Bedrock, logger)
		if err != nil {
			return fail(err)
		}
		gen = b
	default:
		gen = ai.NewStatic(cfg.AI.StaticText)
	}
	deps.AI = gen

	var kb knowledge.Store
	switch cfg.Knowledge.Backend {
	case "postgres":
		kb = knowledge.NewPostgres(db)
	default:
		kb = knowledge.NewMemory()
	}
	if cfg.Knowledge.Dir != "" {
		n, err := knowledge.LoadDir(ctx, kb, cfg.Knowledge.Dir, logger.Named("knowledge"))
		if err != nil {
			return fail(fmt.Errorf("failed to load knowledge base: %w", err))
		}
		logger.Info("Knowledge base loaded", zap.Int("documents", n), zap.String("dir", cfg.Knowledge.Dir))
	}
	deps.Knowledge = kb

	if brokers := cfg.Kafka.Brokers; len(brokers) > 0 {
		w, err := eventrelay.NewKafkaWriter(brokers)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, w.Close)
		deps.Extensions = append(deps.Extensions, func(hooks host.Hooks) {
			eventrelay.Install(hooks, w)
		})
		logger.Info("Event relay available", zap.Strings("brokers", brokers))
	}

	return deps, closeAll, nil
}

// newScope builds a booted request scope for a CLI command.
func newScope(ctx context.Context, deps site.Deps) *site.Site {
	st := site.New(deps)
	st.Boot(ctx)
	return st
}
