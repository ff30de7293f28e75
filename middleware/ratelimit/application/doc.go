// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain (e do compilador de padrões de caminho) e não conhece net/http.
// Ex.: RuleResolver escolhe a regra de um caminho, Factory mantém uma instância de
// algoritmo por regra e Service.Decide devolve uma Decision (admitido/rejeitado/cancelado).
package application
