package infra

import (
	"context"
	"sync"

	"gatekeeper/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed   int64 `json:"allowed"`
	Denied    int64 `json:"denied"`
	Cancelled int64 `json:"cancelled"`
}

func (c *Counters) add(o domain.Outcome) {
	switch o {
	case domain.Admitted:
		c.Allowed++
	case domain.Rejected:
		c.Denied++
	case domain.Cancelled:
		c.Cancelled++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes, desenvolvimento e para o endpoint de estatísticas do gateway.
//
// Não faz expiração: com trackKeys ligado, a cardinalidade cresce com os clientes.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
	byRule  map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute: make(map[string]Counters),
		byRule:  make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Outcome)
	bump(s.byRoute, route, ev.Outcome)
	if ev.RuleID != "" {
		bump(s.byRule, ev.RuleID, ev.Outcome)
	}
	if s.trackKeys && ev.Key != "" {
		bump(s.byKey, string(ev.Key), ev.Outcome)
	}
	return nil
}

func bump(m map[string]Counters, k string, o domain.Outcome) {
	c := m[k]
	c.add(o)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters { return s.snapshot(s.byRoute) }
func (s *MemoryStatsStore) ByRule() map[string]Counters  { return s.snapshot(s.byRule) }
func (s *MemoryStatsStore) ByKey() map[string]Counters   { return s.snapshot(s.byKey) }

func (s *MemoryStatsStore) snapshot(m map[string]Counters) map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
