package infra

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const storeShards = 64

// Store é um mapa concorrente chave -> bucket, dividido em shards para que
// identidades diferentes não disputem o mesmo lock.
//
// GetOrCreate é atômico: criações concorrentes da mesma chave resultam em um único bucket.
type Store[B any] struct {
	shards [storeShards]storeShard[B]

	created atomic.Int64
	removed atomic.Int64
}

type storeShard[B any] struct {
	mu      sync.RWMutex
	entries map[string]B
}

// StoreStats é um retrato para observabilidade.
type StoreStats struct {
	Created int64 `json:"created"`
	Removed int64 `json:"removed"`
	Active  int   `json:"active"`
}

func NewStore[B any]() *Store[B] {
	s := &Store[B]{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]B)
	}
	return s
}

func (s *Store[B]) shard(key string) *storeShard[B] {
	return &s.shards[xxhash.Sum64String(key)%storeShards]
}

// Get devolve o bucket existente da chave.
func (s *Store[B]) Get(key string) (B, bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	b, ok := sh.entries[key]
	sh.mu.RUnlock()
	return b, ok
}

// GetOrCreate devolve o bucket da chave, criando-o com create se ainda não existir.
// O segundo retorno indica se o bucket foi criado nesta chamada.
func (s *Store[B]) GetOrCreate(key string, create func() B) (B, bool) {
	sh := s.shard(key)

	sh.mu.RLock()
	b, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		return b, false
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if b, ok := sh.entries[key]; ok {
		return b, false
	}
	b = create()
	sh.entries[key] = b
	s.created.Add(1)
	return b, true
}

// Sweep remove os buckets para os quais evict devolve true.
// evict roda com o shard travado: pode travar o bucket, mas não pode chamar o Store.
func (s *Store[B]) Sweep(evict func(key string, b B) bool) int {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, b := range sh.entries {
			if evict(k, b) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	s.removed.Add(int64(removed))
	return removed
}

func (s *Store[B]) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store[B]) Stats() StoreStats {
	return StoreStats{
		Created: s.created.Load(),
		Removed: s.removed.Load(),
		Active:  s.Len(),
	}
}
