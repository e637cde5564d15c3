package media

import (
	"context"
	"sync"
	"time"
)

// Sim is an in-memory Element. The CLI uses it for headless playback and tests
// use it as a double; its time advances with the injected Now while playing.
type Sim struct {
	mu sync.Mutex

	duration float64
	ready    bool
	playing  bool
	ended    bool
	base     float64
	since    time.Time
	volume   float64
	muted    bool
	closed   bool
	events   chan Event

	// Now defaults to time.Now.
	Now func() time.Time
	// PlayFunc overrides Play's outcome (latency, rejections).
	PlayFunc func(ctx context.Context) error
	// LoadFunc overrides Load's outcome.
	LoadFunc func(ctx context.Context) error

	Seeks  []float64
	Plays  int
	Pauses int
}

// NewSim returns a sim with the given decoded duration; ready controls whether
// metadata is already loaded.
func NewSim(duration float64, ready bool) *Sim {
	return &Sim{
		duration: duration,
		ready:    ready,
		volume:   1,
		events:   make(chan Event, 64),
		Now:      time.Now,
	}
}

func (s *Sim) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Sim) Play(ctx context.Context) error {
	s.mu.Lock()
	s.Plays++
	fn := s.PlayFunc
	s.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		s.playing = true
		s.ended = false
		s.since = s.now()
	}
	return nil
}

func (s *Sim) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pauses++
	if s.playing {
		s.base = s.positionLocked()
		s.playing = false
	}
}

func (s *Sim) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.positionLocked()
	if s.playing && s.duration > 0 && t >= s.duration {
		s.playing = false
		s.base = s.duration
		if !s.ended {
			s.ended = true
			s.emitLocked(Event{Kind: EventEnded, Time: s.duration})
		}
		return s.duration
	}
	return t
}

func (s *Sim) positionLocked() float64 {
	t := s.base
	if s.playing {
		t += s.now().Sub(s.since).Seconds()
	}
	if s.duration > 0 && t > s.duration {
		t = s.duration
	}
	return t
}

func (s *Sim) SetCurrentTime(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Seeks = append(s.Seeks, t)
	s.base = t
	s.since = s.now()
	s.ended = false
	s.emitLocked(Event{Kind: EventTimeUpdate, Time: t})
}

func (s *Sim) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return 0
	}
	return s.duration
}

func (s *Sim) HasCurrentData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Sim) Load(ctx context.Context) error {
	s.mu.Lock()
	fn := s.LoadFunc
	s.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	s.MarkReady()
	return nil
}

// MarkReady flips the sim to ready and emits the readiness events.
func (s *Sim) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.emitLocked(Event{Kind: EventMetadataLoaded, Time: s.base})
	s.emitLocked(Event{Kind: EventCanPlay, Time: s.base})
}

// Fail emits an error event and stops playback.
func (s *Sim) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = s.positionLocked()
	s.playing = false
	s.emitLocked(Event{Kind: EventError, Time: s.base, Err: err})
}

func (s *Sim) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *Sim) SetMuted(m bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = m
}

// Volume returns the last volume set.
func (s *Sim) Volume() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, s.muted
}

// PauseCount returns Pauses under the lock, for readers racing the player.
func (s *Sim) PauseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Pauses
}

// Playing reports whether the sim is currently playing.
func (s *Sim) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Sim) Events() <-chan Event { return s.events }

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.playing = false
	return nil
}

// Closed reports whether Close was called.
func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// emitLocked never blocks; a full buffer drops the event.
func (s *Sim) emitLocked(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
