package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gatekeeper/middleware/ratelimit"
	"gatekeeper/middleware/ratelimit/application"
	"gatekeeper/middleware/ratelimit/domain"
	"gatekeeper/middleware/ratelimit/infra"
)

// Exemplo: injetando o limitador diretamente no seu webserver (sem proxy).
//
//	/api/**  token bucket de 10 requisições por IP, 1 token por segundo
//	/slow/** leaky bucket: fila de 5 por IP, liberando 2 por segundo
//	resto    regra padrão (token bucket global 1000/100 por segundo)
var rules = []domain.Rule{
	{
		ID:           "api",
		ResourcePath: "/api/**",
		LimitBy:      []string{domain.DimensionIP},
		Algorithm:    domain.AlgorithmTokenBucket,
		Config: domain.AlgorithmConfig{
			TokenBucket: domain.TokenBucketConfig{Capacity: 10, RefillRate: 1, RefillUnit: domain.UnitSecond},
		},
	},
	{
		ID:           "slow",
		ResourcePath: "/slow/**",
		LimitBy:      []string{domain.DimensionIP},
		Algorithm:    domain.AlgorithmLeakyBucket,
		Config: domain.AlgorithmConfig{
			LeakyBucket: domain.LeakyBucketConfig{Capacity: 5, OutFlowPerSec: 2},
		},
	},
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := infra.NewScheduler(infra.WithSchedulerLogger(logger))
	factory, err := application.NewFactory(infra.Registry(sched), ratelimit.DropHandler{}, domain.DefaultRule(), rules,
		application.WithFactoryLogger(logger))
	if err != nil {
		logger.Error("invalid rate limit rules", slog.Any("error", err))
		os.Exit(1)
	}
	stats := infra.NewMemoryStatsStore()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok " + r.URL.Path + "\n"))
	})

	h := http.Handler(mux)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(h)
	h = ratelimit.Middleware(ratelimit.Options{
		Algorithms:          factory,
		Stats:               stats,
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
		Logger:              logger,
	})(h)

	root := http.NewServeMux()
	root.Handle("/_ratelimit/stats", ratelimit.StatsHandler(stats, factory))
	root.Handle("/", h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	drainCtx, stopDrain := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return sched.Run(drainCtx) })
	eg.Go(func() error { return factory.RunJanitor(ctx, time.Minute) })
	eg.Go(func() error {
		logger.Info("example server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer stopDrain()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}
