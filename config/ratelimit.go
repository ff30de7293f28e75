package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"gatekeeper/middleware/ratelimit/domain"
)

type TokenBucket struct {
	Capacity   int64  `yaml:"capacity"`
	RefillRate int64  `yaml:"refillRate"`
	RefillUnit string `yaml:"refillUnit"`
}

type LeakyBucket struct {
	Capacity      int `yaml:"capacity"`
	OutFlowPerSec int `yaml:"outFlowPerSec"`
}

// AlgorithmConfig traz os blocos opcionais de cada algoritmo. Bloco ausente = nil.
type AlgorithmConfig struct {
	TokenBucket *TokenBucket `yaml:"tokenBucket"`
	LeakyBucket *LeakyBucket `yaml:"leakyBucket"`
}

type RuleConfig struct {
	ID           string           `yaml:"id"`
	ResourcePath string           `yaml:"resourcePath"`
	LimitBy      []string         `yaml:"limitBy"`
	Algorithm    string           `yaml:"algorithm"`
	Config       *AlgorithmConfig `yaml:"config"`
}

// RateLimit é o documento YAML de rate limit.
type RateLimit struct {
	Enabled   *bool           `yaml:"enabled"`
	Strategy  string          `yaml:"strategy"`
	Algorithm string          `yaml:"algorithm"`
	Config    AlgorithmConfig `yaml:"config"`
	Rules     []RuleConfig    `yaml:"rules"`
}

// LoadRateLimit lê o documento em path. Caminho vazio ou arquivo inexistente
// devolvem a configuração padrão (habilitado, drop, token bucket 1000/100/S).
func LoadRateLimit(path string) (*RateLimit, error) {
	if strings.TrimSpace(path) == "" {
		return &RateLimit{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &RateLimit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rate limit config: %w", err)
	}
	rl, err := ParseRateLimit(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rl, nil
}

// ParseRateLimit decodifica o YAML. Campos desconhecidos são erro.
func ParseRateLimit(data []byte) (*RateLimit, error) {
	var rl RateLimit
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rl); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return &rl, nil
}

// IsEnabled vale true quando o campo enabled está ausente.
func (rl *RateLimit) IsEnabled() bool {
	return rl.Enabled == nil || *rl.Enabled
}

func (rl *RateLimit) algorithm() string {
	if a := strings.TrimSpace(rl.Algorithm); a != "" {
		return a
	}
	return domain.AlgorithmTokenBucket
}

// DefaultRule monta a regra global a partir do algoritmo e do bloco config do topo.
func (rl *RateLimit) DefaultRule() (domain.Rule, error) {
	rule := domain.DefaultRule()
	rule.Algorithm = rl.algorithm()
	cfg, err := rl.algorithmConfig(nil)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("default rule: %w", err)
	}
	rule.Config = cfg
	return rule, nil
}

// DomainRules converte as regras na ordem do arquivo. Uma regra sem algorithm ou
// sem bloco config herda os do topo; sem id, recebe um UUID.
func (rl *RateLimit) DomainRules() ([]domain.Rule, error) {
	out := make([]domain.Rule, 0, len(rl.Rules))
	for i, rc := range rl.Rules {
		path := strings.TrimSpace(rc.ResourcePath)
		if path == "" {
			return nil, fmt.Errorf("%w: rules[%d] has no resourcePath", domain.ErrInvalidConfig, i)
		}
		id := strings.TrimSpace(rc.ID)
		if id == "" {
			id = uuid.NewString()
		}
		alg := strings.TrimSpace(rc.Algorithm)
		if alg == "" {
			alg = rl.algorithm()
		}
		cfg, err := rl.algorithmConfig(rc.Config)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", id, err)
		}
		out = append(out, domain.Rule{
			ID:           id,
			ResourcePath: path,
			LimitBy:      append([]string(nil), rc.LimitBy...),
			Algorithm:    alg,
			Config:       cfg,
		})
	}
	return out, nil
}

// algorithmConfig resolve cada bloco: o da regra, senão o do topo, senão o padrão
// (só o token bucket tem padrão).
func (rl *RateLimit) algorithmConfig(own *AlgorithmConfig) (domain.AlgorithmConfig, error) {
	tb := rl.Config.TokenBucket
	lb := rl.Config.LeakyBucket
	if own != nil {
		if own.TokenBucket != nil {
			tb = own.TokenBucket
		}
		if own.LeakyBucket != nil {
			lb = own.LeakyBucket
		}
	}

	out := domain.DefaultRule().Config
	if tb != nil {
		unit, err := domain.ParseRefillUnit(tb.RefillUnit)
		if err != nil {
			return domain.AlgorithmConfig{}, err
		}
		out.TokenBucket = domain.TokenBucketConfig{
			Capacity:   tb.Capacity,
			RefillRate: tb.RefillRate,
			RefillUnit: unit,
		}
	}
	if lb != nil {
		out.LeakyBucket = domain.LeakyBucketConfig{
			Capacity:      lb.Capacity,
			OutFlowPerSec: lb.OutFlowPerSec,
		}
	}
	return out, nil
}
