package clock

import (
	"sync"
	"time"
)

// Ticker is a cancellable periodic signal. After Stop no further value may be
// observed through C.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a ticker for a period.
type TickerFactory func(period time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.Ticker.
func NewTicker(period time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(period)}
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ManualTicker is driven by hand from tests.
type ManualTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

// NewManualTicker returns a ticker that only fires on Fire.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time, 16)}
}

// Factory returns a TickerFactory handing out this ticker.
func (m *ManualTicker) Factory() TickerFactory {
	return func(time.Duration) Ticker {
		m.mu.Lock()
		m.stopped = false
		m.mu.Unlock()
		return m
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }

func (m *ManualTicker) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Stopped reports whether Stop was called since the last Factory use.
func (m *ManualTicker) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Fire delivers one tick unless the ticker is stopped.
func (m *ManualTicker) Fire(now time.Time) bool {
	if m.Stopped() {
		return false
	}
	m.ch <- now
	return true
}
