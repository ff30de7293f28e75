// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Store: mapa concorrente de buckets por identidade, em shards (xxhash)
//   - TokenBucket / LeakyBucket: os algoritmos de admissão
//   - Scheduler: fila por vencimento que dirige o dreno de todos os leaky buckets
//   - SemaphorePool: vagas para limite de concorrência (x/sync/semaphore)
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões
package infra
