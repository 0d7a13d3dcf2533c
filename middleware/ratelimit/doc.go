// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência
// das rotas de proxy do gateway (lookup, web-search, chat).
//
// Visão geral (camadas):
//
//   - domain: contratos, tipos e sanitização de chave (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: token bucket, contador de janela, semáforo e stats (memória/Redis)
//   - ratelimit (este pacote): middlewares HTTP + derivação de identidade + tradução para status/headers
//
// Fluxo no gateway:
//
//   1) Deriva a identidade do cliente (header de edge, RemoteAddr ou fingerprint)
//   2) Chama a camada application para obter o Result da rota
//   3) Escreve X-RateLimit-Limit/Remaining/Reset em toda resposta
//   4) Se bloqueado, responde 429 com Retry-After; se não houver vaga de stream, 503
//   5) Se permitido, chama o handler de proxy
//
// O estado é por instância: com N réplicas o limite efetivo é N vezes o configurado.
package ratelimit
