package source

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/shotline/internal/storyboard"
	"github.com/ivlev/shotline/internal/system"
)

const (
	DefaultDPI        = 150
	DefaultThumbWidth = 480
)

// ImportOptions controls how pages become shots.
type ImportOptions struct {
	OutDir        string  // thumbnails land here
	Prefix        string  // thumbnail file prefix, "shot" when empty
	DPI           int     // PDF render resolution
	ThumbWidth    int     // thumbnail width in pixels; height keeps the aspect
	Duration      float64 // per-shot duration, DefaultShotDuration when zero
	ShotsPerScene int     // 0 puts every page in one scene
	Workers       int
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.Prefix == "" {
		o.Prefix = "shot"
	}
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.ThumbWidth <= 0 {
		o.ThumbWidth = DefaultThumbWidth
	}
	if d, err := storyboard.ClampDuration(o.Duration); err != nil || o.Duration == 0 {
		o.Duration = storyboard.DefaultShotDuration
	} else {
		o.Duration = d
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Import renders every page of src into a thumbnail and returns one shot per
// page, in page order.
func Import(ctx context.Context, src Source, opts ImportOptions) ([]storyboard.Shot, error) {
	opts = opts.withDefaults()
	n := src.PageCount()
	if n == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrUnsupported)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, err
	}

	shots := make([]storyboard.Shot, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := src.RenderPage(i, opts.DPI)
			if err != nil {
				return fmt.Errorf("render page %d: %w", i+1, err)
			}
			path := filepath.Join(opts.OutDir, fmt.Sprintf("%s_%03d.png", opts.Prefix, i+1))
			if err := writeThumbnail(path, img, opts.ThumbWidth); err != nil {
				return fmt.Errorf("thumbnail page %d: %w", i+1, err)
			}

			shot := storyboard.NewShot(path)
			shot.Duration = opts.Duration
			shot.Description = fmt.Sprintf("Page %d", i+1)
			shots[i] = shot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shots, nil
}

// ImportProject builds a whole project from src.
func ImportProject(ctx context.Context, src Source, title string, opts ImportOptions) (storyboard.Project, error) {
	shots, err := Import(ctx, src, opts)
	if err != nil {
		return storyboard.Project{}, err
	}

	p := storyboard.NewProject(title)
	p.Scenes = nil
	per := opts.ShotsPerScene
	if per <= 0 {
		per = len(shots)
	}
	for start := 0; start < len(shots); start += per {
		end := min(start+per, len(shots))
		sc := storyboard.NewScene(fmt.Sprintf("Scene %d", len(p.Scenes)+1))
		sc.Shots = shots[start:end:end]
		p.Scenes = append(p.Scenes, sc)
	}
	return storyboard.Normalize(p), nil
}

// Thumbnail scales img to width pixels wide onto a pooled canvas. Callers
// return the canvas with system.PutImage.
func Thumbnail(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	height := 1
	if b.Dx() > 0 {
		height = max(1, b.Dy()*width/b.Dx())
	}
	canvas := system.GetImage(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(canvas, canvas.Rect, img, b, draw.Over, nil)
	return canvas
}

func writeThumbnail(path string, img image.Image, width int) error {
	thumb := Thumbnail(img, width)
	defer system.PutImage(thumb)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, thumb); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
