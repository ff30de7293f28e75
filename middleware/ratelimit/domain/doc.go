// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// (regras por rota, dimensões de identidade, algoritmos) de detalhes de infraestrutura.
package domain
