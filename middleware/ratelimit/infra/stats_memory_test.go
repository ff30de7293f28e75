package infra

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_Record(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Key: "ip=1", Outcome: domain.Admitted, RuleID: "api", Method: "GET", Path: "/api/x"},
		{Key: "ip=1", Outcome: domain.Rejected, RuleID: "api", Method: "GET", Path: "/api/x"},
		{Key: "ip=2", Outcome: domain.Cancelled, RuleID: "slow", Method: "POST", Path: "/slow"},
		{Outcome: domain.Admitted, Method: "GET", Path: "/"},
	}
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	assert.Equal(t, Counters{Allowed: 2, Denied: 1, Cancelled: 1}, s.Total())
	assert.Equal(t, map[string]Counters{
		"GET /api/x": {Allowed: 1, Denied: 1},
		"POST /slow": {Cancelled: 1},
		"GET /":      {Allowed: 1},
	}, s.ByRoute())
	assert.Equal(t, map[string]Counters{
		"api":  {Allowed: 1, Denied: 1},
		"slow": {Cancelled: 1},
	}, s.ByRule())
	assert.Equal(t, map[string]Counters{
		"ip=1": {Allowed: 1, Denied: 1},
		"ip=2": {Cancelled: 1},
	}, s.ByKey())
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "ip=1", Outcome: domain.Admitted}))
	assert.Empty(t, s.ByKey())

	snap := s.ByRoute()
	snap["mutated"] = Counters{Allowed: 100}
	assert.NotContains(t, s.ByRoute(), "mutated", "accessors return copies")
}
