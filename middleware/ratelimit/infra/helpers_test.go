package infra

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"gatekeeper/middleware/ratelimit/domain"
)

type fakeExchange struct {
	addr    string
	headers map[string]string
	path    string

	mu      sync.Mutex
	replies []int
}

func newExchange(addr string) *fakeExchange {
	return &fakeExchange{addr: addr, headers: map[string]string{}, path: "/"}
}

func (e *fakeExchange) ClientAddr() string        { return e.addr }
func (e *fakeExchange) Header(name string) string { return e.headers[name] }
func (e *fakeExchange) Path() string              { return e.path }

func (e *fakeExchange) Reply(status int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = append(e.replies, status)
	return len(e.replies) == 1
}

func (e *fakeExchange) Replies() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.replies...)
}

type countingHandler struct {
	calls atomic.Int32
}

func (h *countingHandler) Handle(ex domain.Exchange) {
	h.calls.Add(1)
	ex.Reply(http.StatusTooManyRequests)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
