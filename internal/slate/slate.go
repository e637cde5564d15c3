// Package slate renders one identification card per shot: a QR code carrying
// project, scene, shot and record timecode, plus a short caption.
package slate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/shotline/internal/grid"
	"github.com/ivlev/shotline/internal/storyboard"
	"github.com/ivlev/shotline/internal/system"
)

const (
	DefaultWidth  = 640
	DefaultHeight = 240
	margin        = 16
	lineHeight    = 18
)

type Options struct {
	Width     int
	Height    int
	FrameRate float64
	Workers   int
}

func (o Options) withDefaults(p storyboard.Project) Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.FrameRate <= 0 {
		o.FrameRate = p.FrameRate
	}
	if o.FrameRate <= 0 {
		o.FrameRate = 24
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Payload is the QR content: "project|S01|T02|HH:MM:SS:FF". Scene and shot
// numbers are one-based.
func Payload(project string, pos storyboard.Position, fps float64) string {
	return strings.Join([]string{
		strings.ReplaceAll(project, "|", "/"),
		fmt.Sprintf("S%02d", pos.SceneIndex+1),
		fmt.Sprintf("T%02d", pos.ShotIndex+1),
		grid.SecondsToSMPTE(pos.StartTime, fps),
	}, "|")
}

// FileName is the sheet file for a shot.
func FileName(pos storyboard.Position) string {
	return fmt.Sprintf("slate_S%02d_T%02d.png", pos.SceneIndex+1, pos.ShotIndex+1)
}

// Render draws the slate for one shot onto a pooled canvas. Callers return
// it with system.PutImage.
func Render(p storyboard.Project, pos storyboard.Position, opts Options) (*image.RGBA, error) {
	opts = opts.withDefaults(p)

	qrSize := opts.Height - 2*margin
	if qrSize <= 0 {
		return nil, fmt.Errorf("slate height %d too small", opts.Height)
	}
	q, err := qrcode.New(Payload(p.Title, pos, opts.FrameRate), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	canvas := system.GetImage(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(canvas, canvas.Rect, image.White, image.Point{}, draw.Src)

	code := q.Image(qrSize)
	at := image.Rect(margin, margin, margin+qrSize, margin+qrSize)
	draw.Draw(canvas, at, code, code.Bounds().Min, draw.Src)

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	x := at.Max.X + margin
	for i, line := range caption(p, pos, opts.FrameRate) {
		d.Dot = fixed.P(x, margin+lineHeight*(i+1))
		d.DrawString(line)
	}
	return canvas, nil
}

func caption(p storyboard.Project, pos storyboard.Position, fps float64) []string {
	lines := []string{
		p.Title,
		fmt.Sprintf("SCENE %d  SHOT %d", pos.SceneIndex+1, pos.ShotIndex+1),
		"IN  " + grid.SecondsToSMPTE(pos.StartTime, fps),
		"OUT " + grid.SecondsToSMPTE(pos.End(), fps),
		fmt.Sprintf("DUR %.2fs", pos.Duration),
	}
	if pos.SceneIndex < len(p.Scenes) && pos.ShotIndex < len(p.Scenes[pos.SceneIndex].Shots) {
		if desc := strings.Join(strings.Fields(p.Scenes[pos.SceneIndex].Shots[pos.ShotIndex].Description), " "); desc != "" {
			if len(desc) > 48 {
				desc = desc[:45] + "..."
			}
			lines = append(lines, desc)
		}
	}
	return lines
}

// WriteSheet writes one PNG per shot into dir and returns the paths in
// timeline order.
func WriteSheet(ctx context.Context, p storyboard.Project, dir string, opts Options) ([]string, error) {
	opts = opts.withDefaults(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	shots := storyboard.AllShots(p.Scenes)
	paths := make([]string, len(shots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, pos := range shots {
		i, pos := i, pos
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, FileName(pos))
			if err := writeSlate(path, p, pos, opts); err != nil {
				return fmt.Errorf("slate %s: %w", FileName(pos), err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writeSlate(path string, p storyboard.Project, pos storyboard.Position, opts Options) error {
	img, err := Render(p, pos, opts)
	if err != nil {
		return err
	}
	defer system.PutImage(img)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
