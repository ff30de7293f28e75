package application

import (
	"context"
	"sync/atomic"
	"time"

	"gatekeeper/middleware/ratelimit/domain"
)

type fakeRequest struct {
	path string
}

func (r fakeRequest) ClientAddr() string    { return "10.0.0.1" }
func (r fakeRequest) Header(string) string  { return "" }
func (r fakeRequest) Path() string          { return r.path }
func (r fakeRequest) Reply(status int) bool { return true }

type fakeAlgorithm struct {
	name    string
	rule    domain.Rule
	outcome domain.Outcome
	calls   atomic.Int32
	swept   atomic.Int32
}

func (a *fakeAlgorithm) Name() string      { return a.name }
func (a *fakeAlgorithm) Rule() domain.Rule { return a.rule }
func (a *fakeAlgorithm) Admit(context.Context, domain.Exchange) domain.Outcome {
	a.calls.Add(1)
	return a.outcome
}

type sweepingAlgorithm struct {
	*fakeAlgorithm
}

func (a sweepingAlgorithm) Sweep(time.Time) int {
	a.swept.Add(1)
	return 1
}

type nopHandler struct{}

func (nopHandler) Handle(domain.Exchange) {}

// fakeRegistry cria fakeAlgorithm para "fake" e sweepingAlgorithm para "sweeping".
func fakeRegistry() map[string]domain.AlgorithmConstructor {
	return map[string]domain.AlgorithmConstructor{
		"fake": func(_ domain.RejectionHandler, r domain.Rule) (domain.Algorithm, error) {
			return &fakeAlgorithm{name: "fake", rule: r}, nil
		},
		"sweeping": func(_ domain.RejectionHandler, r domain.Rule) (domain.Algorithm, error) {
			return sweepingAlgorithm{&fakeAlgorithm{name: "sweeping", rule: r}}, nil
		},
		"broken": func(domain.RejectionHandler, domain.Rule) (domain.Algorithm, error) {
			return nil, domain.ErrInvalidConfig
		},
	}
}
