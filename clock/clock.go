// Package clock abstrai o tempo para que limiter, cache e orquestrador
// possam ser testados com um relógio controlado.
package clock

import "time"

// Clock é o mínimo de operações de tempo usadas pelo projeto.
type Clock interface {
	Now() time.Time
	// AfterFunc agenda f após d. O Timer retornado cancela a chamada pendente.
	AfterFunc(d time.Duration, f func()) Timer
	// After entrega o horário atual no canal após d.
	After(d time.Duration) <-chan time.Time
	// NewTicker entrega ticks a cada d. d precisa ser positivo.
	NewTicker(d time.Duration) Ticker
}

// Ticker é um agendamento periódico. Ticks não lidos são descartados.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer é um agendamento cancelável.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// Real retorna o relógio do sistema.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }

func (r realTicker) Stop() { r.t.Stop() }
