package application

import (
	"context"

	"gatekeeper/middleware/ratelimit/domain"
)

// AlgorithmSource devolve o algoritmo aplicável a uma requisição.
// *Factory é a implementação usada pelo gateway.
type AlgorithmSource interface {
	Get(req domain.Request) domain.Algorithm
}

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas devolve uma decisão.
type Service struct {
	Algorithms AlgorithmSource
}

// Select devolve o algoritmo da requisição; nil significa "sem limite".
func (s Service) Select(req domain.Request) domain.Algorithm {
	if s.Algorithms == nil {
		return nil
	}
	return s.Algorithms.Get(req)
}

// Decide executa a verificação de admissão. Sem algoritmo, tudo é admitido.
func (s Service) Decide(ctx context.Context, alg domain.Algorithm, ex domain.Exchange) domain.Decision {
	if alg == nil {
		return domain.Decision{Outcome: domain.Admitted}
	}
	return domain.Decision{
		Outcome:   alg.Admit(ctx, ex),
		RuleID:    alg.Rule().ID,
		Algorithm: alg.Name(),
	}
}
