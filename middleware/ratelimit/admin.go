package ratelimit

import (
	"encoding/json"
	"net/http"

	"gatekeeper/middleware/ratelimit/domain"
	"gatekeeper/middleware/ratelimit/infra"
)

// AlgorithmLister expõe as instâncias ativas (implementado por *application.Factory).
type AlgorithmLister interface {
	Algorithms() []domain.Algorithm
}

type bucketStats interface {
	Stats() infra.StoreStats
}

type StatsSnapshot struct {
	Total   infra.Counters              `json:"total"`
	Routes  map[string]infra.Counters   `json:"routes"`
	Rules   map[string]infra.Counters   `json:"rules"`
	Keys    map[string]infra.Counters   `json:"keys,omitempty"`
	Buckets map[string]infra.StoreStats `json:"buckets,omitempty"`
}

// StatsHandler serve em JSON os contadores do MemoryStatsStore e, se algs não for nil,
// o número de buckets vivos por regra.
func StatsHandler(stats *infra.MemoryStatsStore, algs AlgorithmLister) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		snap := StatsSnapshot{
			Total:  stats.Total(),
			Routes: stats.ByRoute(),
			Rules:  stats.ByRule(),
			Keys:   stats.ByKey(),
		}
		if algs != nil {
			snap.Buckets = make(map[string]infra.StoreStats)
			for _, alg := range algs.Algorithms() {
				if bs, ok := alg.(bucketStats); ok {
					snap.Buckets[alg.Rule().ID] = bs.Stats()
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(snap)
	})
}
