// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - BucketStore: token bucket por chave com refill proporcional ao tempo
//   - WindowStore: contador de janela fixa, para rotas que pedem limite mais estrito
//   - ChanPool: semáforo simples para limite de streams concorrentes
//   - MemoryStatsStore / RedisStatsStore: contadores de allow/deny
//
// Todo o estado vive no processo. Não há coordenação entre instâncias.
package infra
