package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"gatekeeper/config"
	"gatekeeper/middleware/ratelimit"
	"gatekeeper/middleware/ratelimit/application"
	"gatekeeper/middleware/ratelimit/domain"
	"gatekeeper/middleware/ratelimit/infra"
)

type limiter struct {
	factory   *application.Factory
	scheduler *infra.Scheduler
}

// newLimiter monta a Factory com todas as regras. Devolve nil se o rate limit
// estiver desligado; qualquer erro de configuração impede a subida.
func newLimiter(cfg config.Env, rl *config.RateLimit, logger *slog.Logger) (*limiter, error) {
	if !rl.IsEnabled() {
		logger.Warn("rate limiting disabled by configuration")
		return nil, nil
	}

	handler, err := ratelimit.NewRejectionHandler(rl.Strategy)
	if err != nil {
		return nil, err
	}
	def, err := rl.DefaultRule()
	if err != nil {
		return nil, err
	}
	rules, err := rl.DomainRules()
	if err != nil {
		return nil, err
	}

	log := logger.With(slog.String("component", "ratelimit"))
	sched := infra.NewScheduler(infra.WithSchedulerLogger(log))
	registry := infra.Registry(sched,
		infra.WithIdleTTL(cfg.BucketIdleTTL),
		infra.WithLogger(log))

	f, err := application.NewFactory(registry, handler, def, rules, application.WithFactoryLogger(log))
	if err != nil {
		return nil, err
	}
	log.Info("rate limiter ready",
		slog.Int("rules", len(rules)),
		slog.String("default_algorithm", def.Algorithm),
		slog.Duration("bucket_idle_ttl", cfg.BucketIdleTTL))
	return &limiter{factory: f, scheduler: sched}, nil
}

type stats struct {
	store  domain.StatsStore
	memory *infra.MemoryStatsStore
	close  func()
}

func newStats(ctx context.Context, cfg config.Env) (stats, error) {
	switch cfg.StatsBackend {
	case config.StatsMemory:
		m := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.StatsTrackKeys))
		return stats{store: m, memory: m, close: func() {}}, nil

	case config.StatsRedis:
		opt, err := redis.ParseURL(cfg.StatsRedisURL)
		if err != nil {
			return stats{}, fmt.Errorf("RATE_STATS_REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err = rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return stats{}, fmt.Errorf("redis stats ping: %w", err)
		}

		store := infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsBucket(cfg.StatsBucket),
			infra.WithStatsTrackKeys(cfg.StatsTrackKeys))
		return stats{store: store, close: func() { _ = rdb.Close() }}, nil
	}
	return stats{close: func() {}}, nil
}
