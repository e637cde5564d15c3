package clock

import (
	"math"
	"time"

	"github.com/ivlev/shotline/internal/storyboard"
)

// DefaultPeriod is the playback tick period.
const DefaultPeriod = 50 * time.Millisecond

// State of the playback clock. Pausing and stopping are the same thing.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// Step is the outcome of one clock movement.
type Step struct {
	Time     float64
	Index    int // flat index into the timeline, -1 when empty
	Position storyboard.Position
	Crossed  bool // active shot changed
	Ended    bool // reached the end and stopped
}

// Clock advances shot-timeline time while playing.
type Clock struct {
	period    time.Duration
	newTicker TickerFactory

	ticker  Ticker
	state   State
	last    time.Time
	current float64
	index   int
	shots   []storyboard.Position
}

// New returns a stopped clock. A nil factory uses real tickers.
func New(period time.Duration, factory TickerFactory) *Clock {
	if period <= 0 {
		period = DefaultPeriod
	}
	if factory == nil {
		factory = NewTicker
	}
	return &Clock{period: period, newTicker: factory, index: -1}
}

// State returns the current state.
func (c *Clock) State() State { return c.state }

// Current returns the shot-timeline time.
func (c *Clock) Current() float64 { return c.current }

// Index returns the flat index of the active shot, or -1.
func (c *Clock) Index() int { return c.index }

// Total returns the timeline length.
func (c *Clock) Total() float64 { return storyboard.Span(c.shots) }

// C exposes tick events; nil while stopped so a select never fires.
func (c *Clock) C() <-chan time.Time {
	if c.ticker == nil {
		return nil
	}
	return c.ticker.C()
}

// SetTimeline swaps in a freshly derived timeline and keeps time and index
// consistent with it.
func (c *Clock) SetTimeline(shots []storyboard.Position) Step {
	c.shots = shots
	if len(shots) == 0 {
		c.Stop()
		c.current = 0
		c.index = -1
		return Step{Index: -1}
	}
	if c.current > c.Total() {
		c.current = c.Total()
	}
	return c.locate(c.current)
}

// Play starts the ticker. It returns false when there is nothing to play.
func (c *Clock) Play(now time.Time) bool {
	if len(c.shots) == 0 || c.Total() <= 0 {
		return false
	}
	if c.state == Playing {
		return true
	}
	if c.current >= c.Total() {
		c.current = 0
		c.locate(0)
	}
	c.state = Playing
	c.last = now
	c.ticker = c.newTicker(c.period)
	return true
}

// Stop cancels the ticker. Time stays where it is.
func (c *Clock) Stop() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	c.state = Stopped
}

// Seek jumps to t and resets the wall-clock reference.
func (c *Clock) Seek(now time.Time, t float64) Step {
	c.last = now
	return c.moveTo(t)
}

// Tick advances by the wall-clock delta since the previous tick.
func (c *Clock) Tick(now time.Time) Step {
	if c.state != Playing {
		return c.snapshot(false)
	}
	delta := now.Sub(c.last).Seconds()
	c.last = now
	if delta < 0 {
		delta = 0
	}
	return c.moveTo(c.current + delta)
}

// Projected returns where Tick(now) would move, without moving.
func (c *Clock) Projected(now time.Time) float64 {
	if c.state != Playing {
		return c.current
	}
	delta := now.Sub(c.last).Seconds()
	if delta < 0 {
		delta = 0
	}
	return c.current + delta
}

// TickTo follows an external clock (the audio element) instead of elapsed time.
func (c *Clock) TickTo(now time.Time, t float64) Step {
	if c.state != Playing {
		return c.snapshot(false)
	}
	c.last = now
	return c.moveTo(t)
}

func (c *Clock) moveTo(t float64) Step {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return c.snapshot(false)
	}
	total := c.Total()
	if t < 0 {
		t = 0
	}
	if t >= total {
		c.current = total
		step := c.locate(total)
		if c.state == Playing {
			c.Stop()
			step.Ended = true
		}
		return step
	}
	c.current = t
	return c.locate(t)
}

// locate resolves the active shot for t; the end of the timeline maps to the
// last shot.
func (c *Clock) locate(t float64) Step {
	prev := c.index
	if len(c.shots) == 0 {
		c.index = -1
		return Step{Time: t, Index: -1}
	}
	idx := len(c.shots) - 1
	if p, ok := storyboard.FindShotAtTime(c.shots, t); ok {
		idx = storyboard.IndexOf(c.shots, p.SceneIndex, p.ShotIndex)
	}
	c.index = idx
	return Step{
		Time:     t,
		Index:    idx,
		Position: c.shots[idx],
		Crossed:  idx != prev,
	}
}

func (c *Clock) snapshot(crossed bool) Step {
	s := Step{Time: c.current, Index: c.index, Crossed: crossed}
	if c.index >= 0 && c.index < len(c.shots) {
		s.Position = c.shots[c.index]
	}
	return s
}
