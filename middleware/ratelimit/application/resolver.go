package application

import (
	"fmt"

	"gatekeeper/middleware/ratelimit/domain"
	"gatekeeper/middleware/ratelimit/pathpattern"
)

type compiledRule struct {
	pattern *pathpattern.Pattern
	rule    domain.Rule
}

// RuleResolver escolhe a regra aplicável a um caminho.
//
// As regras são avaliadas na ordem da configuração; a primeira que casa vence.
// Sem nenhuma, vale a regra padrão.
type RuleResolver struct {
	rules []compiledRule
	def   domain.Rule
}

// NewRuleResolver compila todos os padrões. Um padrão inválido é erro de configuração.
func NewRuleResolver(rules []domain.Rule, def domain.Rule) (*RuleResolver, error) {
	r := &RuleResolver{def: def, rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		p, err := pathpattern.Compile(rule.ResourcePath)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", domain.ErrInvalidPattern, rule.ID, err)
		}
		r.rules = append(r.rules, compiledRule{pattern: p, rule: rule})
	}
	return r, nil
}

// Resolve devolve a regra do caminho e se ela veio de uma regra configurada.
func (r *RuleResolver) Resolve(path string) (domain.Rule, bool) {
	if i := r.index(path); i >= 0 {
		return r.rules[i].rule, true
	}
	return r.def, false
}

// index devolve a posição da primeira regra que casa, ou -1.
func (r *RuleResolver) index(path string) int {
	for i, cr := range r.rules {
		if cr.pattern.Match(path) {
			return i
		}
	}
	return -1
}

func (r *RuleResolver) Default() domain.Rule { return r.def }
