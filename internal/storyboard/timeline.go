package storyboard

import (
	"math"

	"github.com/ivlev/shotline/internal/grid"
)

// Position places one shot on the absolute project timeline.
type Position struct {
	SceneIndex int
	ShotIndex  int
	ShotID     string
	StartTime  float64
	Duration   float64
}

// End returns the exclusive end of the shot interval.
func (p Position) End() float64 {
	return p.StartTime + p.Duration
}

// Contains reports whether t falls inside [StartTime, End), compared on the grid.
// Boundaries round to the nearest point; t is floored so an instant just before
// a boundary stays in the earlier shot.
func (p Position) Contains(t float64) bool {
	if math.IsNaN(t) || t < 0 {
		return false
	}
	pt := grid.GridPointAtOrBefore(t)
	start := grid.SecondsToGridPoints(p.StartTime)
	end := grid.SecondsToGridPoints(p.End())
	return pt >= start && pt < end
}

func safeDuration(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0
	}
	return d
}

// SceneDuration sums the durations of a scene's shots.
func SceneDuration(scene Scene) float64 {
	total := 0.0
	for _, sh := range scene.Shots {
		total += safeDuration(sh.Duration)
	}
	return total
}

// TotalDuration sums every shot of every scene.
func TotalDuration(scenes []Scene) float64 {
	total := 0.0
	for _, sc := range scenes {
		total += SceneDuration(sc)
	}
	return total
}

// ShotStartTime returns where a shot begins in project time. Indices past the
// end only count what exists.
func ShotStartTime(scenes []Scene, sceneIndex, shotIndex int) float64 {
	start := 0.0
	for s := 0; s < sceneIndex && s < len(scenes); s++ {
		start += SceneDuration(scenes[s])
	}
	if sceneIndex < 0 || sceneIndex >= len(scenes) {
		return start
	}
	shots := scenes[sceneIndex].Shots
	for i := 0; i < shotIndex && i < len(shots); i++ {
		start += safeDuration(shots[i].Duration)
	}
	return start
}

// AllShots flattens the scenes into time order. The result is a derived view
// and must be rebuilt whenever the scenes change.
func AllShots(scenes []Scene) []Position {
	var out []Position
	start := 0.0
	for s, sc := range scenes {
		for i, sh := range sc.Shots {
			d := safeDuration(sh.Duration)
			out = append(out, Position{
				SceneIndex: s,
				ShotIndex:  i,
				ShotID:     sh.ID,
				StartTime:  start,
				Duration:   d,
			})
			start += d
		}
	}
	return out
}

// FindShotAtTime returns the shot whose interval contains t. The earlier shot
// wins at a shared boundary; t at or past the end is not found.
func FindShotAtTime(shots []Position, t float64) (Position, bool) {
	if math.IsNaN(t) || t < 0 || len(shots) == 0 {
		return Position{}, false
	}
	pt := grid.GridPointAtOrBefore(t)
	// binary search on start points: last shot starting at or before t
	lo, hi := 0, len(shots)-1
	idx := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if grid.SecondsToGridPoints(shots[mid].StartTime) <= pt {
			idx = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	// zero-width shots share a start point with their successor, so the last
	// candidate is the only one that can hold a non-empty interval around t
	if idx < 0 || !shots[idx].Contains(t) {
		return Position{}, false
	}
	return shots[idx], true
}

// IndexOf returns the flat index of (sceneIndex, shotIndex) or -1.
func IndexOf(shots []Position, sceneIndex, shotIndex int) int {
	for i, p := range shots {
		if p.SceneIndex == sceneIndex && p.ShotIndex == shotIndex {
			return i
		}
	}
	return -1
}

// Span returns the total duration covered by a flattened view.
func Span(shots []Position) float64 {
	if len(shots) == 0 {
		return 0
	}
	return shots[len(shots)-1].End()
}
