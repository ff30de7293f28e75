package infra

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/middleware/ratelimit/domain"
)

func leakyRule(capacity, outFlow int, limitBy ...string) domain.Rule {
	return domain.Rule{
		ID:           "lb",
		ResourcePath: "/**",
		LimitBy:      limitBy,
		Algorithm:    domain.AlgorithmLeakyBucket,
		Config: domain.AlgorithmConfig{
			LeakyBucket: domain.LeakyBucketConfig{Capacity: capacity, OutFlowPerSec: outFlow},
		},
	}
}

// runScheduler roda o Scheduler até o fim do teste.
func runScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

type release struct {
	id      int
	outcome domain.Outcome
	at      time.Time
}

// park chama Admit em uma goroutine e espera a requisição aparecer na fila.
func park(t *testing.T, lb *LeakyBucket, ctx context.Context, ex *fakeExchange, key string, id int, out chan<- release) {
	t.Helper()
	before := lb.Pending(key)
	go func() {
		o := lb.Admit(ctx, ex)
		out <- release{id: id, outcome: o, at: time.Now()}
	}()
	require.Eventually(t, func() bool { return lb.Pending(key) == before+1 }, time.Second, time.Millisecond)
}

func TestNewLeakyBucket_InvalidConfig(t *testing.T) {
	h := &countingHandler{}
	sched := NewScheduler()
	for _, r := range []domain.Rule{
		leakyRule(0, 1),
		leakyRule(1, 0),
		leakyRule(-3, 2),
	} {
		_, err := NewLeakyBucket(h, r, sched)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	}

	_, err := NewLeakyBucket(h, leakyRule(1, 1), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	_, err = NewLeakyBucket(nil, leakyRule(1, 1), sched)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestLeakyBucket_FullQueueRejectsAndDrainsInOrder(t *testing.T) {
	sched := NewScheduler()
	h := &countingHandler{}
	lb, err := NewLeakyBucket(h, leakyRule(2, 10), sched)
	require.NoError(t, err)

	out := make(chan release, 2)
	park(t, lb, context.Background(), newExchange("a"), domain.DefaultDimension, 1, out)
	park(t, lb, context.Background(), newExchange("a"), domain.DefaultDimension, 2, out)

	for range 2 {
		ex := newExchange("a")
		assert.Equal(t, domain.Rejected, lb.Admit(context.Background(), ex))
		assert.Equal(t, []int{http.StatusTooManyRequests}, ex.Replies())
	}
	assert.Equal(t, int32(2), h.calls.Load())
	assert.Equal(t, 2, lb.Pending(domain.DefaultDimension))

	runScheduler(t, sched)

	first := <-out
	second := <-out
	assert.Equal(t, 1, first.id)
	assert.Equal(t, 2, second.id)
	assert.Equal(t, domain.Admitted, first.outcome)
	assert.Equal(t, domain.Admitted, second.outcome)
	assert.GreaterOrEqual(t, second.at.Sub(first.at), 80*time.Millisecond, "releases are spaced by 1/outFlowPerSec")
	assert.Equal(t, 0, lb.Pending(domain.DefaultDimension))
	assert.Equal(t, int32(2), h.calls.Load())
}

func TestLeakyBucket_ReleaseRate(t *testing.T) {
	sched := NewScheduler()
	runScheduler(t, sched)
	lb, err := NewLeakyBucket(&countingHandler{}, leakyRule(5, 20), sched)
	require.NoError(t, err)

	var wg sync.WaitGroup
	times := make(chan time.Time, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lb.Admit(context.Background(), newExchange("a")) == domain.Admitted {
				times <- time.Now()
			}
		}()
	}
	wg.Wait()
	close(times)

	var first, last time.Time
	n := 0
	for ts := range times {
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
		n++
	}
	require.Equal(t, 5, n)
	assert.GreaterOrEqual(t, last.Sub(first), 180*time.Millisecond)
}

func TestLeakyBucket_CancelledWhileParked(t *testing.T) {
	sched := NewScheduler()
	h := &countingHandler{}
	lb, err := NewLeakyBucket(h, leakyRule(1, 10), sched)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ex := newExchange("a")
	out := make(chan release, 1)
	park(t, lb, ctx, ex, domain.DefaultDimension, 1, out)

	cancel()
	r := <-out
	assert.Equal(t, domain.Cancelled, r.outcome)
	assert.Equal(t, 0, lb.Pending(domain.DefaultDimension), "cancelled entry leaves the queue")
	assert.Empty(t, ex.Replies())
	assert.Zero(t, h.calls.Load())

	// a vaga liberada pode ser usada de novo
	runScheduler(t, sched)
	assert.Equal(t, domain.Admitted, lb.Admit(context.Background(), newExchange("a")))
}

func TestLeakyBucket_IndependentIdentities(t *testing.T) {
	sched := NewScheduler()
	lb, err := NewLeakyBucket(&countingHandler{}, leakyRule(1, 10, "ip"), sched)
	require.NoError(t, err)

	out := make(chan release, 2)
	park(t, lb, context.Background(), newExchange("10.0.0.1"), "ip=10.0.0.1", 1, out)
	park(t, lb, context.Background(), newExchange("10.0.0.2"), "ip=10.0.0.2", 2, out)

	assert.Equal(t, domain.Rejected, lb.Admit(context.Background(), newExchange("10.0.0.1")))

	runScheduler(t, sched)
	got := map[int]domain.Outcome{}
	for range 2 {
		r := <-out
		got[r.id] = r.outcome
	}
	assert.Equal(t, map[int]domain.Outcome{1: domain.Admitted, 2: domain.Admitted}, got)
}

func TestLeakyBucket_CompositeKey(t *testing.T) {
	sched := NewScheduler()
	lb, err := NewLeakyBucket(&countingHandler{}, leakyRule(1, 10, "ip", "userId"), sched)
	require.NoError(t, err)

	ex := newExchange("10.0.0.1")
	ex.headers[domain.UserIDHeader] = "u1"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan release, 1)
	park(t, lb, ctx, ex, "ip=10.0.0.1:userId=u1", 1, out)

	assert.Equal(t, 0, lb.Pending("ip=10.0.0.1:userId=anonymous"))
}

func TestLeakyBucket_SweepKeepsBusyBuckets(t *testing.T) {
	clock := newFakeClock()
	sched := NewScheduler()
	lb, err := NewLeakyBucket(&countingHandler{}, leakyRule(1, 10, "ip"), sched,
		WithClock(clock.Now), WithIdleTTL(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan release, 1)
	park(t, lb, ctx, newExchange("busy"), "ip=busy", 1, out)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, lb.Sweep(clock.Now()), "queued bucket survives")
	assert.Equal(t, 1, lb.Pending("ip=busy"))

	cancel()
	assert.Equal(t, domain.Cancelled, (<-out).outcome)

	// fila vazia mas a tarefa de dreno segue agendada até o Scheduler rodar
	assert.Equal(t, 0, lb.Sweep(clock.Now()))

	runScheduler(t, sched)
	require.Eventually(t, func() bool { return lb.Sweep(clock.Now()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, lb.Stats().Active)
}
