package audiosync

import (
	"math"

	"github.com/ivlev/shotline/internal/grid"
)

// The ratio always uses the whole-project shot duration, never a single
// scene's, so multi-scene projects stay aligned end to end.

// ShotToAudio maps shot-timeline time onto the audio track, clamped to
// [0, audioDuration]. ok is false when either total is unusable.
func ShotToAudio(shotTime, totalShots, audioDuration float64) (float64, bool) {
	if !usable(shotTime, totalShots, audioDuration) {
		return 0, false
	}
	return grid.Clamp(shotTime*(audioDuration/totalShots), 0, audioDuration), true
}

// AudioToShot maps audio time onto the shot timeline, clamped to
// [0, totalShots].
func AudioToShot(audioTime, totalShots, audioDuration float64) (float64, bool) {
	if !usable(audioTime, totalShots, audioDuration) {
		return 0, false
	}
	return grid.Clamp(audioTime*(totalShots/audioDuration), 0, totalShots), true
}

// SeekTarget is ShotToAudio with the end pulled back by epsilon; seeking onto
// the very end of the media makes elements fire "ended" or reject the seek.
func SeekTarget(shotTime, totalShots, audioDuration, epsilon float64) (float64, bool) {
	t, ok := ShotToAudio(shotTime, totalShots, audioDuration)
	if !ok {
		return 0, false
	}
	return ClampSeek(t, audioDuration, epsilon), true
}

// ClampSeek limits an audio position to [0, audioDuration-epsilon].
func ClampSeek(t, audioDuration, epsilon float64) float64 {
	limit := audioDuration - epsilon
	if limit < 0 {
		limit = 0
	}
	return grid.Clamp(t, 0, limit)
}

func usable(t, totalShots, audioDuration float64) bool {
	for _, v := range []float64{t, totalShots, audioDuration} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return totalShots > 0 && audioDuration > 0
}
