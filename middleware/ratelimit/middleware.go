package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"gatekeeper/middleware/ratelimit/application"
	"gatekeeper/middleware/ratelimit/domain"
)

type Options struct {
	// Algorithms escolhe o algoritmo por requisição (normalmente *application.Factory).
	// nil desliga o limite.
	Algorithms application.AlgorithmSource
	Stats      domain.StatsStore

	TrustXForwardedFor  bool
	AddRateLimitHeaders bool

	Logger *slog.Logger
	// LogEvery limita os logs de rejeição e de falha de stats (padrão 5s).
	LogEvery time.Duration
}

// Middleware é o ponto de entrada do gateway: escolhe o algoritmo da rota, executa a
// verificação de admissão e só chama next quando a requisição é admitida.
//
// Na negação o algoritmo já acionou o RejectionHandler; aqui nada mais é escrito.
// Se o cliente desiste enquanto espera na fila (leaky bucket), também não há resposta.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.LogEvery <= 0 {
		opts.LogEvery = 5 * time.Second
	}

	svc := application.Service{Algorithms: opts.Algorithms}
	rejectLog := &rate.Sometimes{Interval: opts.LogEvery}
	statsLog := &rate.Sometimes{Interval: opts.LogEvery}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ex := newExchange(w, r, opts.TrustXForwardedFor)

			alg := svc.Select(ex)
			if alg == nil {
				next.ServeHTTP(w, r)
				return
			}
			rule := alg.Rule()

			var key string
			if opts.AddRateLimitHeaders || opts.Stats != nil {
				key = domain.CompositeKey(ex, rule.LimitBy)
			}
			if opts.AddRateLimitHeaders {
				h := w.Header()
				h.Set("X-RateLimit-Key", key)
				h.Set("X-RateLimit-Rule", rule.ID)
				h.Set("X-RateLimit-Algorithm", alg.Name())
				if limit, ok := limitOf(rule); ok {
					h.Set("X-RateLimit-Limit", limit)
				}
			}

			dec := svc.Decide(r.Context(), alg, ex)

			if opts.Stats != nil {
				err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:       domain.Key(key),
					Outcome:   dec.Outcome,
					RuleID:    dec.RuleID,
					Algorithm: dec.Algorithm,
					Method:    r.Method,
					Path:      r.URL.Path,
					At:        time.Now(),
				})
				if err != nil {
					statsLog.Do(func() {
						opts.Logger.Warn("rate limit stats not recorded", slog.Any("error", err))
					})
				}
			}

			switch dec.Outcome {
			case domain.Admitted:
				next.ServeHTTP(w, r)
			case domain.Rejected:
				rejectLog.Do(func() {
					opts.Logger.Warn("request rate limited",
						slog.String("rule", dec.RuleID),
						slog.String("algorithm", dec.Algorithm),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("client", ex.ClientAddr()))
				})
			case domain.Cancelled:
				opts.Logger.Debug("client gave up while queued",
					slog.String("rule", dec.RuleID),
					slog.String("path", r.URL.Path))
			}
		})
	}
}
