// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de streams concorrentes.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(key) retorna um domain.Result (allow/deny, remaining, reset, retry-after).
package application
