package infra

import (
	"io"
	"log/slog"
	"time"
)

type options struct {
	idleTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configura os algoritmos de infra.
type Option func(*options)

// WithIdleTTL define por quanto tempo um bucket sem tráfego sobrevive ao Sweep.
// Zero desliga a remoção.
func WithIdleTTL(d time.Duration) Option {
	return func(o *options) { o.idleTTL = d }
}

// WithClock troca o relógio (útil em testes do token bucket).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		idleTTL: 15 * time.Minute,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
