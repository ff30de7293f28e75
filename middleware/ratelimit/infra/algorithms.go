package infra

import "gatekeeper/middleware/ratelimit/domain"

// Registry devolve os construtores de algoritmo por nome, prontos para a Factory.
// Para adicionar um algoritmo, registre-o aqui; o resto do gateway não muda.
func Registry(sched *Scheduler, opts ...Option) map[string]domain.AlgorithmConstructor {
	return map[string]domain.AlgorithmConstructor{
		domain.AlgorithmTokenBucket: func(h domain.RejectionHandler, rule domain.Rule) (domain.Algorithm, error) {
			tb, err := NewTokenBucket(h, rule, opts...)
			if err != nil {
				return nil, err
			}
			return tb, nil
		},
		domain.AlgorithmLeakyBucket: func(h domain.RejectionHandler, rule domain.Rule) (domain.Algorithm, error) {
			lb, err := NewLeakyBucket(h, rule, sched, opts...)
			if err != nil {
				return nil, err
			}
			return lb, nil
		},
	}
}
