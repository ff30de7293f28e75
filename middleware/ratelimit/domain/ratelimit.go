package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica o cliente (chave composta das dimensões) nas estatísticas.
type Key string

// Request é a visão mínima de uma requisição de entrada que o limitador precisa.
type Request interface {
	// ClientAddr devolve o endereço do cliente (sem porta) ou "" se desconhecido.
	ClientAddr() string
	Header(name string) string
	Path() string
}

// Exchange é uma requisição em andamento que ainda pode receber uma resposta terminal.
type Exchange interface {
	Request
	// Reply escreve uma resposta terminal com corpo vazio.
	// Só a primeira chamada tem efeito; ela devolve true.
	Reply(status int) bool
}

// RejectionHandler produz o desfecho "limite excedido" para uma requisição negada.
//
// É uma estratégia plugável (drop hoje; delay/redirect no futuro) sem mudar quem chama.
type RejectionHandler interface {
	Handle(ex Exchange)
}

// Outcome é o resultado de uma verificação de admissão.
type Outcome int

const (
	// Admitted: o chamador deve seguir para o encaminhamento, exatamente uma vez.
	Admitted Outcome = iota
	// Rejected: o RejectionHandler já respondeu; nada mais a fazer.
	Rejected
	// Cancelled: o chamador desistiu (contexto encerrado) antes de ser liberado.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Admitted:
		return "admitted"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Algorithm é a capacidade de verificação de admissão de uma regra.
//
// Admit pode suspender o chamador (leaky bucket) até a liberação, a rejeição ou o fim de ctx.
// Em caso de rejeição, o próprio algoritmo já acionou o RejectionHandler.
type Algorithm interface {
	Name() string
	Rule() Rule
	Admit(ctx context.Context, ex Exchange) Outcome
}

// AlgorithmConstructor constrói uma instância de algoritmo para uma regra.
type AlgorithmConstructor func(h RejectionHandler, rule Rule) (Algorithm, error)

// Sweeper é implementado por algoritmos que mantêm estado por identidade
// e sabem descartar buckets ociosos.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Decision é o que o caso de uso devolve ao adapter HTTP.
type Decision struct {
	Outcome   Outcome
	RuleID    string
	Algorithm string
}

func (d Decision) Allowed() bool { return d.Outcome == Admitted }
