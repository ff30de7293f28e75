package infra

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gatekeeper/middleware/ratelimit/domain"
)

type tokenBucket struct {
	mu         sync.Mutex
	tokens     int64
	lastRefill time.Time
	lastSeen   time.Time
	evicted    bool
}

// TokenBucket é o algoritmo token bucket síncrono: decide na mesma chamada, nunca suspende.
//
// Cada requisição consome um token de cada bucket envolvido (ver keys).
// Os buckets envolvidos são travados juntos (em ordem de chave) para que a verificação
// e o débito sejam atômicos para o conjunto.
type TokenBucket struct {
	rule     domain.Rule
	cfg      domain.TokenBucketConfig
	interval time.Duration
	handler  domain.RejectionHandler
	buckets  *Store[*tokenBucket]
	opts     options
}

// NewTokenBucket valida a configuração da regra. Os buckets nascem sob demanda.
func NewTokenBucket(h domain.RejectionHandler, rule domain.Rule, opts ...Option) (*TokenBucket, error) {
	cfg := rule.Config.TokenBucket
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.ID, err)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: rejection handler is required", domain.ErrInvalidConfig)
	}
	t := &TokenBucket{
		rule:     rule,
		cfg:      cfg,
		interval: cfg.RefillUnit.Interval(),
		handler:  h,
		buckets:  NewStore[*tokenBucket](),
		opts:     buildOptions(opts),
	}
	return t, nil
}

func (t *TokenBucket) Name() string      { return domain.AlgorithmTokenBucket }
func (t *TokenBucket) Rule() domain.Rule { return t.rule }

// Admit debita um token de cada bucket envolvido ou, se algum estiver vazio,
// aciona o RejectionHandler sem debitar nada.
func (t *TokenBucket) Admit(_ context.Context, ex domain.Exchange) domain.Outcome {
	keys := t.keys(ex)
	if t.take(keys) {
		return domain.Admitted
	}
	t.opts.logger.Debug("rate limited request",
		slog.String("rule", t.rule.ID),
		slog.String("path", ex.Path()),
		slog.Any("keys", keys))
	t.handler.Handle(ex)
	return domain.Rejected
}

// keys devolve as chaves de bucket da requisição, sem repetição e ordenadas
// (a ordem fixa evita deadlock ao travar vários buckets).
//
// Sem LimitBy, só o bucket global ("default"). Com LimitBy, um bucket por dimensão;
// a dimensão "default" (ou qualquer nome desconhecido) inclui o bucket global no conjunto.
func (t *TokenBucket) keys(req domain.Request) []string {
	if len(t.rule.LimitBy) == 0 {
		return []string{domain.DefaultDimension}
	}
	keys := make([]string, 0, len(t.rule.LimitBy))
	for _, dim := range t.rule.LimitBy {
		keys = append(keys, domain.IdentityKey(req, dim))
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

func (t *TokenBucket) bucket(key string, now time.Time) *tokenBucket {
	b, _ := t.buckets.GetOrCreate(key, func() *tokenBucket {
		return &tokenBucket{tokens: t.cfg.Capacity, lastRefill: now, lastSeen: now}
	})
	return b
}

func (t *TokenBucket) take(keys []string) bool {
	bs := make([]*tokenBucket, len(keys))
	for {
		now := t.opts.now()
		for i, k := range keys {
			bs[i] = t.bucket(k, now)
		}
		if !lockAll(bs) {
			// um bucket foi removido pelo Sweep entre o Get e o Lock; tenta de novo
			continue
		}

		allowed := true
		for _, b := range bs {
			t.refill(b, now)
			b.lastSeen = now
			if b.tokens <= 0 {
				allowed = false
			}
		}
		if allowed {
			for _, b := range bs {
				b.tokens--
			}
		}
		unlockAll(bs)
		return allowed
	}
}

// lockAll trava os buckets na ordem recebida. Se algum já foi removido, destrava
// tudo e devolve false.
func lockAll(bs []*tokenBucket) bool {
	for i, b := range bs {
		b.mu.Lock()
		if b.evicted {
			unlockAll(bs[:i+1])
			return false
		}
	}
	return true
}

func unlockAll(bs []*tokenBucket) {
	for i := len(bs) - 1; i >= 0; i-- {
		bs[i].mu.Unlock()
	}
}

// refill soma refillRate por intervalo inteiro decorrido e avança lastRefill pelos
// mesmos intervalos, preservando o progresso fracionário. Exige b.mu travado.
func (t *TokenBucket) refill(b *tokenBucket, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed < t.interval {
		return
	}
	n := int64(elapsed / t.interval)
	b.tokens = t.refilled(b.tokens, n)
	b.lastRefill = b.lastRefill.Add(time.Duration(n) * t.interval)
}

// refilled calcula min(capacity, tokens + n*refillRate) sem estourar int64.
func (t *TokenBucket) refilled(tokens, n int64) int64 {
	missing := t.cfg.Capacity - tokens
	if missing <= 0 {
		return t.cfg.Capacity
	}
	need := missing / t.cfg.RefillRate
	if missing%t.cfg.RefillRate != 0 {
		need++
	}
	if n >= need {
		return t.cfg.Capacity
	}
	return tokens + n*t.cfg.RefillRate
}

// Available devolve os tokens atuais da chave de bucket (ex.: "default", "ip=10.0.0.1")
// após aplicar o reabastecimento devido. Não consome nada.
func (t *TokenBucket) Available(key string) (int64, bool) {
	b, ok := t.buckets.Get(key)
	if !ok {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t.refill(b, t.opts.now())
	return b.tokens, true
}

// Sweep remove buckets ociosos há mais de idleTTL que já estariam cheios:
// recriá-los depois dá exatamente o mesmo estado.
func (t *TokenBucket) Sweep(now time.Time) int {
	if t.opts.idleTTL <= 0 {
		return 0
	}
	return t.buckets.Sweep(func(_ string, b *tokenBucket) bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		if now.Sub(b.lastSeen) < t.opts.idleTTL {
			return false
		}
		elapsed := now.Sub(b.lastRefill)
		if elapsed < 0 {
			return false
		}
		if t.refilled(b.tokens, int64(elapsed/t.interval)) < t.cfg.Capacity {
			return false
		}
		b.evicted = true
		return true
	})
}

func (t *TokenBucket) Stats() StoreStats { return t.buckets.Stats() }
