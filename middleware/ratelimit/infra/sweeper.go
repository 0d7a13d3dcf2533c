package infra

import (
	"time"

	"lookup-gateway/clock"
)

const (
	defaultIdleTTL    = 15 * time.Minute
	defaultSweepEvery = 2 * time.Minute
)

// sweeper guarda o que os dois stores têm em comum: relógio injetado,
// TTL de inatividade e o throttle da limpeza oportunista.
type sweeper struct {
	clock      clock.Clock
	idleTTL    time.Duration
	sweepEvery time.Duration
	lastSweep  time.Time
}

type StoreOption func(*sweeper)

func WithClock(c clock.Clock) StoreOption {
	return func(s *sweeper) { s.clock = c }
}

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *sweeper) { s.idleTTL = d }
}

// WithSweepEvery define o intervalo mínimo entre duas limpezas oportunistas.
// Zero faz a limpeza rodar em toda chamada.
func WithSweepEvery(d time.Duration) StoreOption {
	return func(s *sweeper) { s.sweepEvery = d }
}

func newSweeper(opts []StoreOption) sweeper {
	s := sweeper{
		clock:      clock.Real(),
		idleTTL:    defaultIdleTTL,
		sweepEvery: defaultSweepEvery,
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.lastSweep = s.clock.Now()
	return s
}

// due informa se já passou sweepEvery desde a última limpeza. Chamar com o lock do store.
func (s *sweeper) due(now time.Time) bool {
	if now.Sub(s.lastSweep) < s.sweepEvery {
		return false
	}
	s.lastSweep = now
	return true
}

func (s *sweeper) SweepEvery() time.Duration { return s.sweepEvery }

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

// startJanitor roda cleanup a cada sweepEvery, no relógio do store, até ctx encerrar.
func (s *sweeper) startJanitor(ctx DoneContext, cleanup func()) {
	if s.sweepEvery <= 0 {
		return
	}

	t := s.clock.NewTicker(s.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C():
				cleanup()
			}
		}
	}()
}
