// Package config loads shotline settings: defaults, then an optional YAML
// file, then a .env file, then SHOTLINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/shotline/internal/grid"
)

const envPrefix = "SHOTLINE_"

var ErrInvalid = errors.New("invalid config")

type Config struct {
	FrameRate float64        `yaml:"frame_rate"`
	Playback  PlaybackConfig `yaml:"playback"`
	Magnet    MagnetConfig   `yaml:"magnet"`
	Store     StoreConfig    `yaml:"store"`
	Import    ImportConfig   `yaml:"import"`
	Video     VideoConfig    `yaml:"video"`
	Log       LogConfig      `yaml:"log"`

	BuildVersion string `yaml:"-"`
}

type PlaybackConfig struct {
	TickMS         int     `yaml:"tick_ms"`
	DriftCheckMS   int     `yaml:"drift_check_ms"`
	DriftTolerance float64 `yaml:"drift_tolerance"`
	LockMS         int     `yaml:"lock_ms"`
	SeekEpsilon    float64 `yaml:"seek_epsilon"`
	MaxRetries     int     `yaml:"max_retries"`
	ReadyTimeoutMS int     `yaml:"ready_timeout_ms"`
	AutoSync       bool    `yaml:"auto_sync"`
}

type MagnetConfig struct {
	Type     string  `yaml:"type"`
	Interval float64 `yaml:"interval"`
	Strength float64 `yaml:"strength"`
}

type StoreConfig struct {
	DBPath string `yaml:"db_path"`
	Dir    string `yaml:"dir"`
}

type ImportConfig struct {
	DPI           int     `yaml:"dpi"`
	ThumbWidth    int     `yaml:"thumb_width"`
	ShotDuration  float64 `yaml:"shot_duration"`
	ShotsPerScene int     `yaml:"shots_per_scene"`
	Workers       int     `yaml:"workers"`
}

type VideoConfig struct {
	Encoder string `yaml:"encoder"`
	Quality int    `yaml:"quality"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		FrameRate: grid.DefaultFrameRate,
		Playback: PlaybackConfig{
			TickMS:         50,
			DriftCheckMS:   2000,
			DriftTolerance: 3.0,
			LockMS:         300,
			SeekEpsilon:    0.1,
			MaxRetries:     3,
			ReadyTimeoutMS: 10000,
			AutoSync:       true,
		},
		Magnet: MagnetConfig{Type: "frame", Strength: 0.5},
		Store:  StoreConfig{DBPath: "shotline.db", Dir: "projects"},
		Import: ImportConfig{DPI: 150, ThumbWidth: 480, ShotDuration: 3},
		Video:  VideoConfig{Quality: 23, Width: 1280, Height: 720},
		Log:    LogConfig{Level: "info"},
	}
}

// Load layers the sources. Empty paths are skipped; a missing .env file is
// not an error, a missing YAML file is.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = m
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("read env file: %w", err)
		}
	}
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			return v
		}
		return dotenv[envPrefix+key]
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) string) error {
	var errs []error
	setFloat := func(key string, dst *float64) {
		if v := lookup(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	setInt := func(key string, dst *int) {
		if v := lookup(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	setFloat("FPS", &cfg.FrameRate)
	setInt("TICK_MS", &cfg.Playback.TickMS)
	setFloat("DRIFT_TOLERANCE", &cfg.Playback.DriftTolerance)
	setInt("LOCK_MS", &cfg.Playback.LockMS)
	setInt("WORKERS", &cfg.Import.Workers)

	if v := lookup("DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := lookup("STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := lookup("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := lookup("ENCODER"); v != "" {
		cfg.Video.Encoder = v
	}
	if v := lookup("AUTOSYNC"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %sAUTOSYNC: %w", envPrefix, err))
		} else {
			cfg.Playback.AutoSync = b
		}
	}
	return errors.Join(errs...)
}

// Validate rejects values the player cannot run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.FrameRate > 0 && c.FrameRate <= 240, "frame_rate %v out of (0, 240]", c.FrameRate)
	check(c.Playback.TickMS >= 1 && c.Playback.TickMS <= 1000, "tick_ms %d out of [1, 1000]", c.Playback.TickMS)
	check(c.Playback.DriftCheckMS >= 100, "drift_check_ms %d below 100", c.Playback.DriftCheckMS)
	check(c.Playback.DriftTolerance > 0, "drift_tolerance must be positive")
	check(c.Playback.LockMS >= 0, "lock_ms must not be negative")
	check(c.Playback.SeekEpsilon >= 0 && c.Playback.SeekEpsilon < 1, "seek_epsilon %v out of [0, 1)", c.Playback.SeekEpsilon)
	check(c.Playback.MaxRetries >= 1, "max_retries must be at least 1")
	check(c.Playback.ReadyTimeoutMS > 0, "ready_timeout_ms must be positive")
	check(c.Magnet.Strength >= 0 && c.Magnet.Strength <= 1, "magnet strength %v out of [0, 1]", c.Magnet.Strength)
	if _, err := c.MagnetSpec(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalid, err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) TickPeriod() time.Duration {
	return time.Duration(c.Playback.TickMS) * time.Millisecond
}

func (c Config) DriftPeriod() time.Duration {
	return time.Duration(c.Playback.DriftCheckMS) * time.Millisecond
}

func (c Config) LockWindow() time.Duration {
	return time.Duration(c.Playback.LockMS) * time.Millisecond
}

func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Playback.ReadyTimeoutMS) * time.Millisecond
}

// MagnetSpec builds the scrub magnet at the configured frame rate.
func (c Config) MagnetSpec() (grid.Magnet, error) {
	pt, err := grid.ParsePointType(c.Magnet.Type)
	if err != nil {
		return grid.Magnet{}, err
	}
	return grid.Magnet{
		Type:      pt,
		Interval:  c.Magnet.Interval,
		Strength:  c.Magnet.Strength,
		FrameRate: c.FrameRate,
	}, nil
}

// LogLevel parses the configured slog level.
func (c Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	return lvl, nil
}
