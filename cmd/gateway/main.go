package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gatekeeper/config"
	"gatekeeper/middleware/ratelimit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("gateway stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadEnv()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	rl, err := config.LoadRateLimit(cfg.RateConfigFile)
	if err != nil {
		return err
	}
	lim, err := newLimiter(cfg, rl, logger)
	if err != nil {
		return err
	}

	st, err := newStats(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", slog.String("path", r.URL.Path), slog.Any("error", err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	h := ratelimit.EncodeBrackets(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
	})(h)
	if lim != nil {
		h = ratelimit.Middleware(ratelimit.Options{
			Algorithms:          lim.factory,
			Stats:               st.store,
			TrustXForwardedFor:  cfg.TrustXFF,
			AddRateLimitHeaders: cfg.AddRateLimitHeaders,
			Logger:              logger.With(slog.String("component", "ratelimit")),
		})(h)
	}

	mux := http.NewServeMux()
	if st.memory != nil && cfg.AdminStatsPath != "" {
		var algs ratelimit.AlgorithmLister
		if lim != nil {
			algs = lim.factory
		}
		mux.Handle(cfg.AdminStatsPath, ratelimit.StatsHandler(st.memory, algs))
	}
	mux.Handle("/", h)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	// o scheduler de dreno só para depois do Shutdown: requisições na fila ainda saem
	drainCtx, stopDrain := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDrain()

	eg, ctx := errgroup.WithContext(ctx)
	if lim != nil {
		eg.Go(func() error { return lim.scheduler.Run(drainCtx) })
		eg.Go(func() error { return lim.factory.RunJanitor(ctx, cfg.BucketSweepEvery) })
	}
	eg.Go(func() error {
		logger.Info("gateway listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("upstream", target.String()),
			slog.Bool("rate_limit", lim != nil),
			slog.String("stats", cfg.StatsBackend),
			slog.Int("concurrency_max", cfg.ConcurrencyMax),
			slog.Duration("concurrency_timeout", cfg.ConcurrencyTimeout))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopDrain()
		logger.Info("gateway shut down")
		return err
	})
	return eg.Wait()
}
