package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backends de estatística aceitos em RATE_STATS_BACKEND.
const (
	StatsNone   = "none"
	StatsMemory = "memory"
	StatsRedis  = "redis"
)

// Env são os parâmetros de processo do gateway.
type Env struct {
	ListenAddr     string `env:"LISTEN_ADDR" envDefault:":8080"`
	UpstreamURL    string `env:"UPSTREAM_URL,required"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	RateConfigFile string `env:"RATE_CONFIG_FILE" envDefault:"ratelimit.yaml"`

	TrustXFF            bool `env:"TRUST_XFF" envDefault:"false"`
	AddRateLimitHeaders bool `env:"ADD_RATELIMIT_HEADERS" envDefault:"false"`

	ConcurrencyMax     int           `env:"CONCURRENCY_MAX" envDefault:"100"`
	ConcurrencyTimeout time.Duration `env:"CONCURRENCY_TIMEOUT" envDefault:"0s"`

	// BucketIdleTTL é quanto um bucket sem tráfego sobrevive; 0 desliga a remoção.
	BucketIdleTTL    time.Duration `env:"BUCKET_IDLE_TTL" envDefault:"15m"`
	BucketSweepEvery time.Duration `env:"BUCKET_SWEEP_EVERY" envDefault:"1m"`

	StatsBackend   string        `env:"RATE_STATS_BACKEND" envDefault:"none"`
	StatsRedisURL  string        `env:"RATE_STATS_REDIS_URL"`
	StatsPrefix    string        `env:"RATE_STATS_PREFIX" envDefault:"ratelimit:stats"`
	StatsTTL       time.Duration `env:"RATE_STATS_TTL" envDefault:"24h"`
	StatsBucket    string        `env:"RATE_STATS_BUCKET" envDefault:"minute"`
	StatsTrackKeys bool          `env:"RATE_STATS_TRACK_KEYS" envDefault:"false"`
	AdminStatsPath string        `env:"ADMIN_STATS_PATH" envDefault:"/_ratelimit/stats"`
}

// LoadEnv carrega .env (se existir) e lê o ambiente.
func LoadEnv(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("load .env: %w", err)
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	e.StatsBackend = strings.ToLower(strings.TrimSpace(e.StatsBackend))
	if err := e.Validate(); err != nil {
		return Env{}, err
	}
	return e, nil
}

func (e Env) Validate() error {
	if strings.TrimSpace(e.UpstreamURL) == "" {
		return errors.New("UPSTREAM_URL is required")
	}
	if e.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if e.BucketIdleTTL < 0 || e.BucketSweepEvery < 0 {
		return errors.New("BUCKET_IDLE_TTL and BUCKET_SWEEP_EVERY must be >= 0")
	}
	switch e.StatsBackend {
	case StatsNone, StatsMemory:
	case StatsRedis:
		if strings.TrimSpace(e.StatsRedisURL) == "" {
			return errors.New("RATE_STATS_REDIS_URL is required when RATE_STATS_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_STATS_BACKEND %q: want none, memory or redis", e.StatsBackend)
	}
	if _, err := e.Level(); err != nil {
		return err
	}
	return nil
}

// Level converte LOG_LEVEL (debug, info, warn, error) para slog.Level.
func (e Env) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(e.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}
