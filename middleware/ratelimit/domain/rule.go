package domain

import (
	"fmt"
	"strings"
	"time"
)

// Nomes registrados dos algoritmos de admissão.
const (
	AlgorithmTokenBucket = "tokenBucket"
	AlgorithmLeakyBucket = "leakyBucket"
)

// Valores padrão da regra global quando a configuração não traz o bloco tokenBucket.
const (
	DefaultTokenCapacity   int64 = 1000
	DefaultTokenRefillRate int64 = 100
	DefaultRefillUnit            = UnitSecond
)

// RefillUnit é a unidade de tempo do reabastecimento do token bucket.
type RefillUnit string

const (
	UnitSecond RefillUnit = "S"
	UnitMinute RefillUnit = "M"
	UnitHour   RefillUnit = "H"
	UnitDay    RefillUnit = "D"
)

var unitSeconds = map[RefillUnit]int64{
	UnitSecond: 1,
	UnitMinute: 60,
	UnitHour:   60 * 60,
	UnitDay:    60 * 60 * 24,
}

// ParseRefillUnit aceita S/M/H/D (sem diferenciar maiúsculas). Vazio vira segundo.
func ParseRefillUnit(s string) (RefillUnit, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultRefillUnit, nil
	}
	u := RefillUnit(s)
	if _, ok := unitSeconds[u]; !ok {
		return "", fmt.Errorf("%w: refill unit %q (want S, M, H or D)", ErrInvalidConfig, s)
	}
	return u, nil
}

// Interval é o comprimento de um intervalo de reabastecimento.
func (u RefillUnit) Interval() time.Duration {
	return time.Duration(unitSeconds[u]) * time.Second
}

// TokenBucketConfig parametriza o algoritmo token bucket.
type TokenBucketConfig struct {
	Capacity   int64
	RefillRate int64
	RefillUnit RefillUnit
}

func (c TokenBucketConfig) Validate() error {
	if c.Capacity <= 0 || c.RefillRate <= 0 {
		return fmt.Errorf("%w: token bucket capacity=%d refillRate=%d must be > 0", ErrInvalidConfig, c.Capacity, c.RefillRate)
	}
	if _, ok := unitSeconds[c.RefillUnit]; !ok {
		return fmt.Errorf("%w: token bucket refill unit %q", ErrInvalidConfig, c.RefillUnit)
	}
	return nil
}

// LeakyBucketConfig parametriza o algoritmo leaky bucket.
type LeakyBucketConfig struct {
	Capacity      int
	OutFlowPerSec int
}

func (c LeakyBucketConfig) Validate() error {
	if c.Capacity <= 0 || c.OutFlowPerSec <= 0 {
		return fmt.Errorf("%w: leaky bucket capacity=%d outFlowPerSec=%d must be > 0", ErrInvalidConfig, c.Capacity, c.OutFlowPerSec)
	}
	return nil
}

// Interval é o espaçamento entre duas liberações consecutivas da fila.
func (c LeakyBucketConfig) Interval() time.Duration {
	return time.Second / time.Duration(c.OutFlowPerSec)
}

// AlgorithmConfig agrupa os blocos específicos de cada algoritmo.
// Só o bloco do algoritmo escolhido pela regra é lido.
type AlgorithmConfig struct {
	TokenBucket TokenBucketConfig
	LeakyBucket LeakyBucketConfig
}

// Rule associa um padrão de caminho a um algoritmo e seus parâmetros.
// É imutável depois de carregada.
type Rule struct {
	ID           string
	ResourcePath string
	// LimitBy lista as dimensões de identidade, em ordem. Vazio = apenas global.
	LimitBy   []string
	Algorithm string
	Config    AlgorithmConfig
}

// DefaultRule devolve a regra global padrão (token bucket 1000/100 por segundo).
func DefaultRule() Rule {
	return Rule{
		ID:           "default",
		ResourcePath: "/**",
		Algorithm:    AlgorithmTokenBucket,
		Config: AlgorithmConfig{
			TokenBucket: TokenBucketConfig{
				Capacity:   DefaultTokenCapacity,
				RefillRate: DefaultTokenRefillRate,
				RefillUnit: DefaultRefillUnit,
			},
		},
	}
}
