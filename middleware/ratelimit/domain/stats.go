package domain

import (
	"context"
	"time"
)

// StatsEvent registra uma decisão do limiter para uma rota de proxy.
//
// Route é o nome lógico da rota ("lookup", "web-search", "chat"), nunca o path
// bruto, para manter a cardinalidade sob controle no Redis.
type StatsEvent struct {
	Key       Key
	Route     string
	Allowed   bool
	Remaining int

	At time.Time
}

// StatsStore persiste estatísticas de decisão.
//
// O middleware trata erro como best-effort: falha aqui não derruba a requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
