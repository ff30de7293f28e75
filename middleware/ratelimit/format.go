// utilitário pequeno para formatação dos valores numéricos dos headers X-RateLimit-*.

package ratelimit

import (
	"strconv"

	"gatekeeper/middleware/ratelimit/domain"
)

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

// limitOf devolve a capacidade configurada da regra, conforme o algoritmo.
func limitOf(rule domain.Rule) (string, bool) {
	switch rule.Algorithm {
	case domain.AlgorithmTokenBucket:
		return formatInt(rule.Config.TokenBucket.Capacity), true
	case domain.AlgorithmLeakyBucket:
		return formatInt(int64(rule.Config.LeakyBucket.Capacity)), true
	}
	return "", false
}
