// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (resolução de regra, fábrica de algoritmos, decisão, acquire/timeout)
//   - pathpattern: padrões de caminho das regras (*, **, {var})
//   - infra: implementações concretas (token bucket, leaky bucket + scheduler de dreno, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP, exchange HTTP, estratégias de rejeição
//
// Fluxo no gateway:
//
//  1. A Factory escolhe o algoritmo da primeira regra cujo caminho casa (ou o padrão)
//  2. O algoritmo verifica a admissão pelas dimensões da regra (ip, userId, apiKey)
//  3. Se negado, o RejectionHandler responde 429 sem corpo, uma única vez
//  4. Se admitido (talvez depois de esperar na fila do leaky bucket), chama o próximo handler
//
// A configuração do binário gateway (cmd/gateway) vem de variáveis de ambiente
// (LISTEN_ADDR, UPSTREAM_URL, CONCURRENCY_MAX, ...) e do arquivo YAML de regras
// apontado por RATE_CONFIG_FILE.
package ratelimit
