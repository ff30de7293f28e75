package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gatekeeper/middleware/ratelimit/domain"
)

// Factory constrói e guarda uma instância de algoritmo por regra, mais a instância padrão.
//
// Todas as instâncias são criadas na construção; nomes de algoritmo desconhecidos
// ou parâmetros inválidos fazem NewFactory falhar, nunca uma requisição.
type Factory struct {
	registry map[string]domain.AlgorithmConstructor
	handler  domain.RejectionHandler
	resolver *RuleResolver
	logger   *slog.Logger

	def    domain.Algorithm
	byRule []domain.Algorithm
}

type FactoryOption func(*Factory)

func WithFactoryLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFactory valida a configuração inteira e cria as instâncias.
func NewFactory(
	registry map[string]domain.AlgorithmConstructor,
	handler domain.RejectionHandler,
	def domain.Rule,
	rules []domain.Rule,
	opts ...FactoryOption,
) (*Factory, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: rejection handler is required", domain.ErrInvalidConfig)
	}
	f := &Factory{
		registry: registry,
		handler:  handler,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}

	resolver, err := NewRuleResolver(rules, def)
	if err != nil {
		return nil, err
	}
	f.resolver = resolver

	if f.def, err = f.Init(def.Algorithm, def); err != nil {
		return nil, fmt.Errorf("default rule: %w", err)
	}
	f.byRule = make([]domain.Algorithm, 0, len(rules))
	for _, rule := range rules {
		alg, err := f.Init(rule.Algorithm, rule)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.ID, err)
		}
		f.byRule = append(f.byRule, alg)
		f.logger.Info("rate limit rule loaded",
			slog.String("rule", rule.ID),
			slog.String("path", rule.ResourcePath),
			slog.String("algorithm", rule.Algorithm),
			slog.Any("limit_by", rule.LimitBy))
	}
	return f, nil
}

// Init constrói uma instância nova para a regra com o algoritmo registrado em name.
func (f *Factory) Init(name string, rule domain.Rule) (domain.Algorithm, error) {
	ctor, ok := f.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, name)
	}
	return ctor(f.handler, rule)
}

// Get devolve a instância da regra que casa com o caminho da requisição (ou a padrão).
func (f *Factory) Get(req domain.Request) domain.Algorithm {
	if i := f.resolver.index(req.Path()); i >= 0 {
		f.logger.Debug("route specific rate limiter", slog.String("path", req.Path()), slog.String("rule", f.byRule[i].Rule().ID))
		return f.byRule[i]
	}
	return f.def
}

func (f *Factory) Default() domain.Algorithm { return f.def }

func (f *Factory) Resolver() *RuleResolver { return f.resolver }

// Algorithms devolve a instância padrão seguida das instâncias por regra, na ordem da configuração.
func (f *Factory) Algorithms() []domain.Algorithm {
	out := make([]domain.Algorithm, 0, len(f.byRule)+1)
	out = append(out, f.def)
	return append(out, f.byRule...)
}

// Sweep descarta buckets ociosos de todas as instâncias que sabem fazer isso.
func (f *Factory) Sweep(now time.Time) int {
	removed := 0
	for _, alg := range f.Algorithms() {
		if s, ok := alg.(domain.Sweeper); ok {
			removed += s.Sweep(now)
		}
	}
	return removed
}

// RunJanitor chama Sweep a cada intervalo até ctx encerrar.
// Com every <= 0 apenas espera ctx.
func (f *Factory) RunJanitor(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			if n := f.Sweep(now); n > 0 {
				f.logger.Debug("idle buckets evicted", slog.Int("count", n))
			}
		}
	}
}
