// Package store persists project snapshots. The core only sees Port; hosts
// choose between YAML files and a SQLite database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ivlev/shotline/internal/storyboard"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrInvalidID = errors.New("invalid project id")
)

// Port is the persistence boundary.
type Port interface {
	Load(ctx context.Context, id string) (storyboard.Project, error)
	Save(ctx context.Context, p storyboard.Project) error
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
}

// Summary describes a stored project without its shots.
type Summary struct {
	ID        string
	Title     string
	Scenes    int
	Shots     int
	Duration  float64
	UpdatedAt time.Time
}

func summarize(p storyboard.Project) Summary {
	return Summary{
		ID:        p.ID,
		Title:     p.Title,
		Scenes:    len(p.Scenes),
		Shots:     p.ShotCount(),
		Duration:  storyboard.TotalDuration(p.Scenes),
		UpdatedAt: p.UpdatedAt,
	}
}

func checkID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	for _, r := range id {
		if r == '/' || r == '\\' || r == 0 {
			return ErrInvalidID
		}
	}
	if id == "." || id == ".." {
		return ErrInvalidID
	}
	return nil
}
