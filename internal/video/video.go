// Package video renders an animatic: every shot still held for its duration,
// laid over the master audio with ffmpeg.
package video

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/ivlev/shotline/internal/grid"
	"github.com/ivlev/shotline/internal/storyboard"
)

var ErrNoMedia = errors.New("shot has no media")

// Segment is one still on the animatic timeline.
type Segment struct {
	Position storyboard.Position
	Media    string
	Duration float64 // frame aligned
}

// Plan is the frame-aligned cut list handed to the encoder.
type Plan struct {
	Segments  []Segment
	FrameRate float64
	Total     float64
	Audio     string
}

type PlanOptions struct {
	FrameRate float64
	// FitToAudio rescales shot durations so the cut ends with the audio.
	FitToAudio bool
	// Fallback supplies an image for shots without media, e.g. their slate.
	Fallback func(storyboard.Position) string
}

// NewPlan lays the project's shots on whole frames. Boundaries are rounded
// from the cumulative timeline, so rounding never accumulates into drift.
func NewPlan(p storyboard.Project, opts PlanOptions) (Plan, error) {
	fps := opts.FrameRate
	if fps <= 0 {
		fps = p.FrameRate
	}
	if fps <= 0 {
		fps = grid.DefaultFrameRate
	}

	shots := storyboard.AllShots(p.Scenes)
	total := storyboard.Span(shots)
	target := total

	plan := Plan{FrameRate: fps}
	if p.Audio != nil {
		plan.Audio = p.Audio.URL
		if opts.FitToAudio && p.Audio.Duration > 0 {
			target = p.Audio.Duration
		}
	}

	prev := 0
	for _, pos := range shots {
		media := mediaFor(p, pos)
		if media == "" && opts.Fallback != nil {
			media = opts.Fallback(pos)
		}
		if media == "" {
			return Plan{}, fmt.Errorf("%w: scene %d shot %d", ErrNoMedia, pos.SceneIndex+1, pos.ShotIndex+1)
		}

		end := pos.End()
		if target != total {
			end = grid.SyncTimeBasedOnGrid(end, total, target)
		}
		frames := int(math.Round(end * fps))
		if frames <= prev {
			frames = prev + 1
		}
		plan.Segments = append(plan.Segments, Segment{
			Position: pos,
			Media:    media,
			Duration: float64(frames-prev) / fps,
		})
		prev = frames
	}
	plan.Total = float64(prev) / fps
	return plan, nil
}

func mediaFor(p storyboard.Project, pos storyboard.Position) string {
	if pos.SceneIndex >= len(p.Scenes) || pos.ShotIndex >= len(p.Scenes[pos.SceneIndex].Shots) {
		return ""
	}
	sh := p.Scenes[pos.SceneIndex].Shots[pos.ShotIndex]
	if sh.MediaType == storyboard.MediaVideo {
		return ""
	}
	return sh.Media
}

// WriteConcatList writes the plan in ffmpeg concat-demuxer format. The last
// file is listed twice because the demuxer ignores the final duration.
func WriteConcatList(w io.Writer, plan Plan) error {
	for _, seg := range plan.Segments {
		abs, err := filepath.Abs(seg.Media)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "file '%s'\nduration %.6f\n", escape(abs), seg.Duration); err != nil {
			return err
		}
	}
	if n := len(plan.Segments); n > 0 {
		abs, err := filepath.Abs(plan.Segments[n-1].Media)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "file '%s'\n", escape(abs)); err != nil {
			return err
		}
	}
	return nil
}

func escape(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
