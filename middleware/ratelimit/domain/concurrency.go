package domain

import "context"

// SlotPool limita quantos streams de upstream ficam abertos ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna um release que deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	// InUse informa quantas vagas estão ocupadas agora.
	InUse() int
}
