package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake é um relógio manual. O tempo só avança via Advance/Set, e os
// callbacks vencidos rodam de forma síncrona dentro de Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeTimer
}

type fakeTimer struct {
	clock   *Fake
	at      time.Time
	fn      func()
	ch      chan time.Time
	stopped bool
}

// NewFake cria um relógio parado em start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{clock: f, fn: fn}
	f.schedule(t, d)
	return t
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	t := &fakeTimer{clock: f, ch: make(chan time.Time, 1)}
	f.schedule(t, d)
	return t.ch
}

// NewTicker agenda ticks a cada d de tempo falso. Cada Advance entrega no
// máximo um tick, como um ticker real cujo leitor atrasou.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	var tick func()
	tick = func() {
		now := f.Now()
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.stopped {
			return
		}
		select {
		case t.ch <- now:
		default:
		}
		t.next = f.AfterFunc(d, tick)
	}
	t.mu.Lock()
	t.next = f.AfterFunc(d, tick)
	t.mu.Unlock()
	return t
}

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	next    Timer
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.next != nil {
		t.next.Stop()
	}
}

// Pending retorna quantos timers ainda não dispararam.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// Advance move o relógio e dispara, em ordem, os timers vencidos.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	var due []*fakeTimer
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.at.After(now) {
			due = append(due, w)
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
	f.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, w := range due {
		w.fire(now)
	}
}

func (f *Fake) schedule(t *fakeTimer, d time.Duration) {
	f.mu.Lock()
	t.at = f.now.Add(d)
	if d > 0 {
		f.waiters = append(f.waiters, t)
		f.mu.Unlock()
		return
	}
	now := f.now
	f.mu.Unlock()
	t.fire(now)
}

func (t *fakeTimer) fire(now time.Time) {
	if t.fn != nil {
		t.fn()
		return
	}
	t.ch <- now
}

func (t *fakeTimer) Stop() bool {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.stopped {
		return false
	}
	for i, w := range f.waiters {
		if w == t {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}
