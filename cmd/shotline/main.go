package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/shotline/internal/config"
	"github.com/ivlev/shotline/internal/media"
	"github.com/ivlev/shotline/internal/source"
	"github.com/ivlev/shotline/internal/store"
	"github.com/ivlev/shotline/internal/storyboard"
	"github.com/ivlev/shotline/internal/system"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	envFile    string
	project    string
	id         string
	db         string
	list       bool
	importPath string
	title      string
	audio      string
	edl        string
	slates     string
	animatic   string
	fitAudio   bool
	play       bool
	watch      bool
	stats      bool
	fps        float64
}

func main() {
	system.InitResourceLimits()

	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML config file")
	flag.StringVar(&o.envFile, "env", ".env", "dotenv file with SHOTLINE_* overrides")
	flag.StringVar(&o.project, "project", "", "project YAML file (read and written back)")
	flag.StringVar(&o.id, "id", "", "project id in the store (with -db or the store dir)")
	flag.StringVar(&o.db, "db", "", "SQLite database path (default: file store)")
	flag.BoolVar(&o.list, "list", false, "list stored projects and exit")
	flag.StringVar(&o.importPath, "import", "", "storyboard PDF or image folder to import (default: newest in input/boards/ when no project is given)")
	flag.StringVar(&o.title, "title", "", "title for imported projects")
	flag.StringVar(&o.audio, "audio", "", "master audio file")
	flag.StringVar(&o.edl, "edl", "", "write an EDL to this path")
	flag.StringVar(&o.slates, "slates", "", "write slate PNGs into this directory")
	flag.StringVar(&o.animatic, "animatic", "", "render an animatic video to this path")
	flag.BoolVar(&o.fitAudio, "fit-audio", true, "stretch the animatic cut to the audio length")
	flag.BoolVar(&o.play, "play", false, "play the timeline headless and print shot changes")
	flag.BoolVar(&o.watch, "watch", false, "re-export whenever -project changes on disk")
	flag.BoolVar(&o.stats, "stats", false, "print a performance report")
	flag.Float64Var(&o.fps, "fps", 0, "frame rate override")
	flag.Parse()

	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	if o.fps > 0 {
		cfg.FrameRate = o.fps
	}
	cfg.BuildVersion = version

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := run(ctx, o, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[-] %v", err)
	}

	if o.stats {
		s, err := system.CollectStats(context.Background())
		if err != nil {
			log.Printf("[!] Stats unavailable: %v", err)
			return
		}
		fmt.Print(s.Report(cfg.BuildVersion, time.Since(start)))
	}
}

func run(ctx context.Context, o options, cfg config.Config, logger *slog.Logger) error {
	port, closeStore, err := openStore(o, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if o.list {
		return listProjects(ctx, port)
	}

	p, err := loadProject(ctx, o, cfg, port)
	if err != nil {
		return err
	}

	if o.audio != "" {
		track, err := media.ProbeTrack(ctx, o.audio, system.GetAudioDuration)
		if err != nil {
			return fmt.Errorf("audio: %w", err)
		}
		p.Audio = &track
		fmt.Printf("[*] Audio: %s (%.2fs)\n", track.Name, track.Duration)
	}
	if p.FrameRate <= 0 {
		p.FrameRate = cfg.FrameRate
	}
	if o.fps > 0 {
		p.FrameRate = o.fps
	}

	fmt.Println("--- [SHOTLINE] ---")
	fmt.Printf("[*] Project: %s | Scenes: %d | Shots: %d\n", p.Title, len(p.Scenes), p.ShotCount())
	fmt.Printf("[*] Duration: %.2fs @ %g FPS\n", storyboard.TotalDuration(p.Scenes), p.FrameRate)
	fmt.Println("------------------")

	save := saver(ctx, o.project, port, logger)
	if err := save(p); err != nil {
		return err
	}

	ex := exporter{opts: o, cfg: cfg, logger: logger}
	if err := ex.export(ctx, p); err != nil {
		return err
	}

	if o.play || o.watch {
		return serve(ctx, o, cfg, logger, p, port, ex)
	}
	return nil
}

func openStore(o options, cfg config.Config, logger *slog.Logger) (store.Port, func(), error) {
	if o.db != "" {
		db, err := store.OpenSQLite(o.db)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLite(db, logger.With("component", "store")), func() { db.Close() }, nil
	}
	if o.id == "" && !o.list {
		return nil, func() {}, nil
	}
	fs, err := store.NewFileStore(cfg.Store.Dir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

func listProjects(ctx context.Context, port store.Port) error {
	list, err := port.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("[*] No stored projects")
		return nil
	}
	for _, s := range list {
		fmt.Printf("%s  %-24s %2d scenes %3d shots %7.2fs  %s\n",
			s.ID, s.Title, s.Scenes, s.Shots, s.Duration, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func loadProject(ctx context.Context, o options, cfg config.Config, port store.Port) (storyboard.Project, error) {
	if o.project != "" {
		p, err := store.ReadProject(o.project)
		if errors.Is(err, store.ErrNotFound) && o.importPath != "" {
			return importProject(ctx, o, cfg)
		}
		return p, err
	}
	if o.id != "" && o.importPath == "" {
		return port.Load(ctx, o.id)
	}
	return importProject(ctx, o, cfg)
}

func importProject(ctx context.Context, o options, cfg config.Config) (storyboard.Project, error) {
	path := o.importPath
	if path == "" {
		latest, err := system.FindLatest("input/boards", slices.Concat(system.BoardExtensions, system.ImageExtensions))
		if err != nil {
			return storyboard.Project{}, fmt.Errorf("%v. Put a storyboard into input/boards/ or pass -import", err)
		}
		path = latest
		fmt.Printf("[*] Selected file: %s\n", path)
	}

	src, err := source.Open(path)
	if err != nil {
		return storyboard.Project{}, err
	}
	defer src.Close()

	title := o.title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	thumbs := filepath.Join("output", "thumbs", strings.ReplaceAll(title, " ", "_"))
	p, err := source.ImportProject(ctx, src, title, source.ImportOptions{
		OutDir:        thumbs,
		DPI:           cfg.Import.DPI,
		ThumbWidth:    cfg.Import.ThumbWidth,
		Duration:      cfg.Import.ShotDuration,
		ShotsPerScene: cfg.Import.ShotsPerScene,
		Workers:       cfg.Import.Workers,
	})
	if err != nil {
		return storyboard.Project{}, fmt.Errorf("import %s: %w", path, err)
	}
	if o.id != "" {
		p.ID = o.id
	}
	fmt.Printf("[*] Imported %d pages from %s\n", p.ShotCount(), path)
	return p, nil
}

// saver persists every snapshot to the YAML file and the store, whichever
// are configured.
func saver(ctx context.Context, path string, port store.Port, logger *slog.Logger) func(storyboard.Project) error {
	return func(p storyboard.Project) error {
		if path != "" {
			if err := store.WriteProject(p, path); err != nil {
				return fmt.Errorf("save %s: %w", path, err)
			}
		}
		if port != nil {
			if err := port.Save(ctx, p); err != nil {
				return err
			}
		}
		logger.Debug("project saved", "id", p.ID)
		return nil
	}
}
