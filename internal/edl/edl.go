// Package edl writes CMX 3600 style edit decision lists for a storyboard.
package edl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ivlev/shotline/internal/grid"
	"github.com/ivlev/shotline/internal/storyboard"
)

const (
	DefaultReel  = "AX"
	DefaultTrack = "V"
)

// Options overrides what the project itself provides.
type Options struct {
	Title     string
	FrameRate float64
	Reel      string
	Track     string
}

func (o Options) resolve(p storyboard.Project) Options {
	if o.Title == "" {
		o.Title = p.Title
	}
	if o.Title == "" {
		o.Title = "UNTITLED"
	}
	if o.FrameRate <= 0 {
		o.FrameRate = p.FrameRate
	}
	if o.FrameRate <= 0 {
		o.FrameRate = grid.DefaultFrameRate
	}
	if o.Reel == "" {
		o.Reel = DefaultReel
	}
	if o.Track == "" {
		o.Track = DefaultTrack
	}
	return o
}

// Write emits one cut per shot. Record timecodes come from the shot timeline;
// source timecodes run from zero over each still.
func Write(w io.Writer, p storyboard.Project, opts Options) error {
	opts = opts.resolve(p)
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "TITLE: %s\n", opts.Title)
	fmt.Fprintf(bw, "FCM: NON-DROP FRAME\n\n")

	tc := func(s float64) string { return grid.SecondsToSMPTE(s, opts.FrameRate) }
	for n, pos := range storyboard.AllShots(p.Scenes) {
		shot := p.Scenes[pos.SceneIndex].Shots[pos.ShotIndex]
		fmt.Fprintf(bw, "%03d  %-8s %-5s C        %s %s %s %s\n",
			n+1, opts.Reel, opts.Track,
			tc(0), tc(pos.Duration),
			tc(pos.StartTime), tc(pos.End()),
		)
		fmt.Fprintf(bw, "* FROM CLIP NAME: %s\n\n", clipName(pos, shot))
	}
	return bw.Flush()
}

// WriteFile writes the list to path, creating parent directories.
func WriteFile(path string, p storyboard.Project, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create edl dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create edl: %w", err)
	}
	if err := Write(f, p, opts); err != nil {
		f.Close()
		return fmt.Errorf("write edl: %w", err)
	}
	return f.Close()
}

func clipName(pos storyboard.Position, shot storyboard.Shot) string {
	if shot.Media != "" {
		return filepath.Base(shot.Media)
	}
	if d := strings.TrimSpace(shot.Description); d != "" {
		// one line per comment
		return strings.Join(strings.Fields(d), " ")
	}
	return fmt.Sprintf("SCENE %d SHOT %d", pos.SceneIndex+1, pos.ShotIndex+1)
}
