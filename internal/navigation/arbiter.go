// Package navigation decides which navigation intent wins when manual
// selection, scrubbing, playback and drift correction compete for the
// active shot.
package navigation

import (
	"math"
	"time"

	"github.com/ivlev/shotline/internal/storyboard"
)

// DefaultLockWindow is how long a manual navigation holds off others.
const DefaultLockWindow = 300 * time.Millisecond

// Source identifies who asked to move.
type Source int

const (
	SourceDrift Source = iota
	SourcePlayback
	SourceScrub
	SourceSceneClick
	SourceShotClick
)

func (s Source) String() string {
	switch s {
	case SourceDrift:
		return "drift"
	case SourcePlayback:
		return "playback"
	case SourceScrub:
		return "scrub"
	case SourceSceneClick:
		return "scene-click"
	case SourceShotClick:
		return "shot-click"
	}
	return "unknown"
}

// Priority orders sources: click > scrub > playback > drift.
func (s Source) Priority() int {
	switch s {
	case SourceShotClick, SourceSceneClick:
		return 3
	case SourceScrub:
		return 2
	case SourcePlayback:
		return 1
	}
	return 0
}

// Manual reports whether the source is a user gesture.
func (s Source) Manual() bool { return s.Priority() >= 2 }

// Mode is the arbiter's state.
type Mode int

const (
	Idle Mode = iota
	Syncing
	ManualOverride
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case ManualOverride:
		return "manual-override"
	}
	return "unknown"
}

// Intent is a request to move the playhead. Clicks use the indices; scrub,
// playback and drift use Time.
type Intent struct {
	Source     Source
	SceneIndex int
	ShotIndex  int
	Time       float64
}

// Target is the (scene, shot, time) triple applied as one step.
type Target struct {
	SceneIndex int
	ShotIndex  int
	Time       float64
}

// Rejection reasons.
const (
	ReasonEmpty    = "empty timeline"
	ReasonLocked   = "navigation in progress"
	ReasonOverride = "manual selection active"
	ReasonNotFound = "shot not found"
)

// Decision is the outcome of Submit.
type Decision struct {
	Accepted bool
	Target   Target
	Reason   string
}

// Arbiter serializes navigation. It is not safe for concurrent use.
type Arbiter struct {
	window     time.Duration
	mode       Mode
	lockSource Source
	lockUntil  time.Time
}

// New returns an idle arbiter; window <= 0 uses DefaultLockWindow.
func New(window time.Duration) *Arbiter {
	if window <= 0 {
		window = DefaultLockWindow
	}
	return &Arbiter{window: window}
}

func (a *Arbiter) Mode() Mode { return a.mode }

// ManualSelection reports whether a manual choice is suppressing drift
// correction.
func (a *Arbiter) ManualSelection() bool { return a.mode == ManualOverride }

// Changing reports whether the lock window of the last manual move is open.
func (a *Arbiter) Changing(now time.Time) bool { return now.Before(a.lockUntil) }

// DriftAllowed reports whether periodic correction may run.
func (a *Arbiter) DriftAllowed() bool { return a.mode != ManualOverride }

// Resume is called on an explicit play command; it clears the override.
func (a *Arbiter) Resume() { a.mode = Syncing }

// Halt is called when playback stops. A manual override survives it.
func (a *Arbiter) Halt() {
	if a.mode == Syncing {
		a.mode = Idle
	}
}

// Submit resolves in against the current shot positions.
func (a *Arbiter) Submit(now time.Time, shots []storyboard.Position, in Intent) Decision {
	if len(shots) == 0 {
		return Decision{Reason: ReasonEmpty}
	}
	if a.Changing(now) && !a.passesLock(in.Source) {
		return Decision{Reason: ReasonLocked}
	}
	if in.Source == SourceDrift && a.mode == ManualOverride {
		return Decision{Reason: ReasonOverride}
	}

	target, ok := resolve(shots, in)
	if !ok {
		return Decision{Reason: ReasonNotFound}
	}

	switch {
	case in.Source.Manual():
		a.mode = ManualOverride
		a.lockSource = in.Source
		a.lockUntil = now.Add(a.window)
	case a.mode != ManualOverride:
		a.mode = Syncing
	}
	return Decision{Accepted: true, Target: target}
}

// passesLock: higher priority interrupts, scrubs stream, everything else
// (including a second click) is dropped.
func (a *Arbiter) passesLock(src Source) bool {
	if src.Priority() > a.lockSource.Priority() {
		return true
	}
	return src == SourceScrub && a.lockSource == SourceScrub
}

func resolve(shots []storyboard.Position, in Intent) (Target, bool) {
	switch in.Source {
	case SourceShotClick:
		return targetAt(shots, storyboard.IndexOf(shots, in.SceneIndex, in.ShotIndex))
	case SourceSceneClick:
		return targetAt(shots, storyboard.IndexOf(shots, in.SceneIndex, 0))
	}
	return TargetAtTime(shots, in.Time)
}

func targetAt(shots []storyboard.Position, idx int) (Target, bool) {
	if idx < 0 {
		return Target{}, false
	}
	p := shots[idx]
	return Target{SceneIndex: p.SceneIndex, ShotIndex: p.ShotIndex, Time: p.StartTime}, true
}

// TargetAtTime clamps t into the timeline and locates its shot. The exact end
// of the timeline belongs to the last shot.
func TargetAtTime(shots []storyboard.Position, t float64) (Target, bool) {
	if len(shots) == 0 || math.IsNaN(t) {
		return Target{}, false
	}
	end := storyboard.Span(shots)
	if t < shots[0].StartTime {
		t = shots[0].StartTime
	}
	if t > end {
		t = end
	}
	p, ok := storyboard.FindShotAtTime(shots, t)
	if !ok {
		// at the end, or within half a grid point of it
		p = shots[len(shots)-1]
	}
	return Target{SceneIndex: p.SceneIndex, ShotIndex: p.ShotIndex, Time: t}, true
}
