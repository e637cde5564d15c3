package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/shotline/internal/audiosync"
	"github.com/ivlev/shotline/internal/config"
	"github.com/ivlev/shotline/internal/grid"
	"github.com/ivlev/shotline/internal/media"
	"github.com/ivlev/shotline/internal/player"
	"github.com/ivlev/shotline/internal/store"
	"github.com/ivlev/shotline/internal/storyboard"
)

// serve runs a player session: headless playback, file watching, or both.
func serve(ctx context.Context, o options, cfg config.Config, logger *slog.Logger, p storyboard.Project, port store.Port, ex exporter) error {
	if o.watch && o.project == "" {
		return errors.New("-watch needs -project")
	}
	magnet, err := cfg.MagnetSpec()
	if err != nil {
		return err
	}

	// In watch mode the YAML file is the source of truth, so snapshots only
	// go to the store; writing the file back would retrigger the watcher.
	path := o.project
	if o.watch {
		path = ""
	}
	persist := saver(ctx, path, port, logger)

	sess := player.New(p, player.Options{
		Logger:      logger.With("component", "player"),
		FrameRate:   p.FrameRate,
		TickPeriod:  cfg.TickPeriod(),
		DriftPeriod: cfg.DriftPeriod(),
		LockWindow:  cfg.LockWindow(),
		Sync: audiosync.Options{
			Epsilon:        cfg.Playback.SeekEpsilon,
			DriftTolerance: cfg.Playback.DriftTolerance,
			MaxRetries:     cfg.Playback.MaxRetries,
			ReadyTimeout:   cfg.ReadyTimeout(),
		},
		Magnet:          magnet,
		DisableAutoSync: !cfg.Playback.AutoSync,
		OnProjectChange: func(p storyboard.Project) {
			if err := persist(p); err != nil {
				logger.Warn("save failed", "error", err)
			}
		},
		Exporter: func(p storyboard.Project) error {
			if o.edl == "" {
				return player.ErrNoExporter
			}
			return ex.writeEDL(p)
		},
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(ctx) })

	if p.Audio != nil && p.Audio.Duration > 0 {
		// No audio device in a terminal; the simulated element keeps wall-clock
		// time like a real one would.
		el := media.NewSim(p.Audio.Duration, true)
		if err := sess.Dispatch(ctx, player.AttachAudio{Element: el, Track: *p.Audio}); err != nil {
			return err
		}
	}

	if o.watch {
		w, err := store.NewWatcher(o.project, store.DefaultDebounce, logger.With("component", "watch"))
		if err != nil {
			return err
		}
		fmt.Printf("[*] Watching %s\n", o.project)
		g.Go(func() error {
			return w.Run(ctx, func(next storyboard.Project) {
				if err := sess.Dispatch(ctx, player.ReplaceProject{Project: next}); err != nil {
					logger.Warn("reload rejected", "error", err)
					return
				}
				next = storyboard.Normalize(next)
				if next.FrameRate <= 0 {
					next.FrameRate = p.FrameRate
				}
				fmt.Printf("[*] Reloaded: %d shots, %.2fs\n", next.ShotCount(), storyboard.TotalDuration(next.Scenes))
				if err := ex.export(ctx, next); err != nil {
					logger.Warn("export failed", "error", err)
				}
			})
		})
	}

	if o.play {
		if err := sess.Dispatch(ctx, player.Play{}); err != nil {
			return err
		}
		g.Go(func() error {
			report(ctx, sess, cfg.TickPeriod(), p.FrameRate)
			if !o.watch {
				cancel()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// report prints every shot change until playback stops.
func report(ctx context.Context, sess *player.Session, period time.Duration, fps float64) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	last := -1
	for {
		st := sess.State()
		if idx := flat(st); idx != last {
			last = idx
			fmt.Printf("[*] %s  S%02d T%02d\n", st.Timecode, st.SceneIndex+1, st.ShotIndex+1)
		}
		if !st.Playing {
			if st.AudioError != nil {
				fmt.Printf("[!] Audio: %s\n", st.AudioError.Message)
			}
			fmt.Printf("[+++] Stopped at %s of %s\n", st.Timecode, grid.SecondsToSMPTE(st.TotalDuration, fps))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func flat(st player.State) int {
	return st.SceneIndex<<16 | st.ShotIndex
}
