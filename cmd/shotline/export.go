package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ivlev/shotline/internal/config"
	"github.com/ivlev/shotline/internal/edl"
	"github.com/ivlev/shotline/internal/slate"
	"github.com/ivlev/shotline/internal/storyboard"
	"github.com/ivlev/shotline/internal/system"
	"github.com/ivlev/shotline/internal/video"
)

// exporter writes the artifacts requested on the command line.
type exporter struct {
	opts   options
	cfg    config.Config
	logger *slog.Logger
}

func (e exporter) export(ctx context.Context, p storyboard.Project) error {
	if e.opts.edl != "" {
		if err := e.writeEDL(p); err != nil {
			return err
		}
	}
	if e.opts.slates != "" {
		paths, err := slate.WriteSheet(ctx, p, e.opts.slates, slate.Options{
			FrameRate: p.FrameRate,
			Workers:   e.cfg.Import.Workers,
		})
		if err != nil {
			return fmt.Errorf("slates: %w", err)
		}
		fmt.Printf("[*] Slates: %d written to %s\n", len(paths), e.opts.slates)
	}
	if e.opts.animatic != "" {
		if err := e.renderAnimatic(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (e exporter) writeEDL(p storyboard.Project) error {
	if err := edl.WriteFile(e.opts.edl, p, edl.Options{FrameRate: p.FrameRate}); err != nil {
		return fmt.Errorf("edl: %w", err)
	}
	fmt.Printf("[+++] EDL: %s\n", e.opts.edl)
	return nil
}

func (e exporter) renderAnimatic(ctx context.Context, p storyboard.Project) error {
	var fallback func(storyboard.Position) string
	if e.opts.slates != "" {
		fallback = func(pos storyboard.Position) string {
			return filepath.Join(e.opts.slates, slate.FileName(pos))
		}
	}
	plan, err := video.NewPlan(p, video.PlanOptions{
		FrameRate:  p.FrameRate,
		FitToAudio: e.opts.fitAudio,
		Fallback:   fallback,
	})
	if err != nil {
		return fmt.Errorf("animatic: %w", err)
	}

	codec := e.cfg.Video.Encoder
	if codec == "" {
		codec = system.GetBestH264Encoder(ctx)
		if codec != "libx264" {
			fmt.Printf("[*] Hardware acceleration: %s\n", codec)
		}
	}
	quality := e.cfg.Video.Quality
	switch codec {
	case "h264_videotoolbox":
		quality = max(quality, 75)
	case "h264_nvenc":
		quality = max(quality, 28)
	}

	enc := &video.FFmpegEncoder{
		Codec:   codec,
		Quality: quality,
		Width:   e.cfg.Video.Width,
		Height:  e.cfg.Video.Height,
	}
	e.logger.Info("rendering animatic", "segments", len(plan.Segments), "total", plan.Total, "codec", codec)
	if err := enc.Render(ctx, plan, e.opts.animatic); err != nil {
		return err
	}
	fmt.Printf("[+++] Animatic: %s (%.2fs)\n", e.opts.animatic, plan.Total)
	return nil
}
