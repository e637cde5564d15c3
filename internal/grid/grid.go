package grid

import (
	"fmt"
	"math"
)

// PointsPerSecond is the grid resolution. 120 divides evenly by 24, 30, 60 and 120 fps.
const PointsPerSecond = 120

// DefaultFrameRate is the cinema rate used when no frame rate is configured.
const DefaultFrameRate = 24.0

// SecondsToGridPoints quantizes a time value to the nearest grid point.
func SecondsToGridPoints(s float64) int64 {
	if !finite(s) {
		return 0
	}
	return int64(math.Round(s * PointsPerSecond))
}

// GridPointAtOrBefore returns the last grid point not after s. Float noise a
// hair below a point still lands on it.
func GridPointAtOrBefore(s float64) int64 {
	if !finite(s) {
		return 0
	}
	return int64(math.Floor(s*PointsPerSecond + 1e-9))
}

// GridPointsToSeconds converts grid points back to seconds.
func GridPointsToSeconds(p int64) float64 {
	return float64(p) / PointsPerSecond
}

// Quantize snaps s onto the grid.
func Quantize(s float64) float64 {
	return GridPointsToSeconds(SecondsToGridPoints(s))
}

// NominalRate returns the integer timecode base for a frame rate (29.97 -> 30).
func NominalRate(fps float64) int {
	if !finite(fps) || fps <= 0 {
		fps = DefaultFrameRate
	}
	n := int(math.Round(fps))
	if n < 1 {
		n = 1
	}
	return n
}

// SecondsToSMPTE formats s as HH:MM:SS:FF (non-drop frame).
func SecondsToSMPTE(s, fps float64) string {
	rate := NominalRate(fps)
	if !finite(s) || s < 0 {
		s = 0
	}
	// tolerate float noise just below a frame boundary
	totalFrames := int64(math.Floor(s*float64(rate) + 1e-3))

	frames := totalFrames % int64(rate)
	totalSeconds := totalFrames / int64(rate)
	seconds := totalSeconds % 60
	minutes := (totalSeconds / 60) % 60
	hours := totalSeconds / 3600

	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}

// SyncTimeBasedOnGrid rescales t from a timeline of length fromTotal onto one of
// length toTotal. The result sits on the grid and inside [0, toTotal]; degenerate
// totals yield 0.
func SyncTimeBasedOnGrid(t, fromTotal, toTotal float64) float64 {
	if !finite(t) || !finite(fromTotal) || !finite(toTotal) {
		return 0
	}
	if fromTotal <= 0 || toTotal <= 0 {
		return 0
	}
	return Clamp(Quantize(t/fromTotal*toTotal), 0, toTotal)
}

// FrameDuration returns the length of one frame in seconds.
func FrameDuration(fps float64) float64 {
	if !finite(fps) || fps <= 0 {
		fps = DefaultFrameRate
	}
	return 1 / fps
}

// StepFrames moves t by the given number of frames, clamped to [0, total].
func StepFrames(t float64, frames int, fps, total float64) float64 {
	if !finite(t) {
		t = 0
	}
	next := t + float64(frames)*FrameDuration(fps)
	if total <= 0 || !finite(total) {
		return math.Max(0, next)
	}
	return Clamp(next, 0, total)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
