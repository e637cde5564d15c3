package storyboard

import (
	"fmt"
	"math"
	"time"
)

// Every edit below works on a clone and returns the new snapshot; the input
// project is never modified.

// ShotPatch carries optional field updates for a shot.
type ShotPatch struct {
	Media       *string
	MediaType   *MediaType
	Description *string
	Camera      *CameraInfo
}

// ScenePatch carries optional field updates for a scene.
type ScenePatch struct {
	Title       *string
	Description *string
}

// ClampDuration turns user input into a valid shot duration.
func ClampDuration(d float64) (float64, error) {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}
	if d < MinShotDuration {
		return MinShotDuration, nil
	}
	return d, nil
}

// SetShotDuration changes one shot's duration, clamping to MinShotDuration.
func SetShotDuration(p Project, sceneIndex, shotIndex int, d float64) (Project, error) {
	d, err := ClampDuration(d)
	if err != nil {
		return p, err
	}
	if err := checkShot(p, sceneIndex, shotIndex); err != nil {
		return p, err
	}
	out := p.Clone()
	out.Scenes[sceneIndex].Shots[shotIndex].Duration = d
	return touch(out), nil
}

// UpdateShot applies a patch to one shot.
func UpdateShot(p Project, sceneIndex, shotIndex int, patch ShotPatch) (Project, error) {
	if err := checkShot(p, sceneIndex, shotIndex); err != nil {
		return p, err
	}
	out := p.Clone()
	sh := &out.Scenes[sceneIndex].Shots[shotIndex]
	if patch.Media != nil {
		sh.Media = *patch.Media
	}
	if patch.MediaType != nil {
		sh.MediaType = *patch.MediaType
	}
	if patch.Description != nil {
		sh.Description = *patch.Description
	}
	if patch.Camera != nil {
		c := *patch.Camera
		sh.Camera = &c
	}
	return touch(out), nil
}

// AddShot inserts a shot at position at (len appends).
func AddShot(p Project, sceneIndex, at int, shot Shot) (Project, error) {
	if err := checkScene(p, sceneIndex); err != nil {
		return p, err
	}
	shots := p.Scenes[sceneIndex].Shots
	if at < 0 || at > len(shots) {
		return p, fmt.Errorf("%w: insert index %d", ErrShotNotFound, at)
	}
	if shot.ID == "" {
		shot.ID = NewID()
	}
	if shot.MediaType == "" {
		shot.MediaType = MediaImage
	}
	if shot.Duration == 0 {
		shot.Duration = DefaultShotDuration
	}
	d, err := ClampDuration(shot.Duration)
	if err != nil {
		return p, err
	}
	shot.Duration = d

	out := p.Clone()
	sc := &out.Scenes[sceneIndex]
	sc.Shots = append(sc.Shots, Shot{})
	copy(sc.Shots[at+1:], sc.Shots[at:])
	sc.Shots[at] = shot
	return touch(out), nil
}

// RemoveShot deletes a shot; the last shot of a scene cannot be removed.
func RemoveShot(p Project, sceneIndex, shotIndex int) (Project, error) {
	if err := checkShot(p, sceneIndex, shotIndex); err != nil {
		return p, err
	}
	if len(p.Scenes[sceneIndex].Shots) == 1 {
		return p, ErrLastShot
	}
	out := p.Clone()
	sc := &out.Scenes[sceneIndex]
	sc.Shots = append(sc.Shots[:shotIndex], sc.Shots[shotIndex+1:]...)
	return touch(out), nil
}

// MoveShot reorders a shot within its scene.
func MoveShot(p Project, sceneIndex, from, to int) (Project, error) {
	if err := checkShot(p, sceneIndex, from); err != nil {
		return p, err
	}
	if err := checkShot(p, sceneIndex, to); err != nil {
		return p, err
	}
	if from == to {
		return p, nil
	}
	out := p.Clone()
	out.Scenes[sceneIndex].Shots = move(out.Scenes[sceneIndex].Shots, from, to)
	return touch(out), nil
}

// AddScene inserts a scene at position at. A scene without shots gets one
// default shot.
func AddScene(p Project, at int, scene Scene) (Project, error) {
	if at < 0 || at > len(p.Scenes) {
		return p, fmt.Errorf("%w: insert index %d", ErrSceneNotFound, at)
	}
	if scene.ID == "" {
		scene.ID = NewID()
	}
	if len(scene.Shots) == 0 {
		scene.Shots = []Shot{NewShot("")}
	}
	out := p.Clone()
	out.Scenes = append(out.Scenes, Scene{})
	copy(out.Scenes[at+1:], out.Scenes[at:])
	out.Scenes[at] = scene.clone()
	for i := range out.Scenes[at].Shots {
		sh := &out.Scenes[at].Shots[i]
		if sh.ID == "" {
			sh.ID = NewID()
		}
		d, err := ClampDuration(sh.Duration)
		if err != nil {
			return p, err
		}
		sh.Duration = d
	}
	return touch(renumber(out)), nil
}

// UpdateScene applies a metadata patch.
func UpdateScene(p Project, sceneIndex int, patch ScenePatch) (Project, error) {
	if err := checkScene(p, sceneIndex); err != nil {
		return p, err
	}
	out := p.Clone()
	sc := &out.Scenes[sceneIndex]
	if patch.Title != nil {
		sc.Title = *patch.Title
	}
	if patch.Description != nil {
		sc.Description = *patch.Description
	}
	return touch(out), nil
}

// RemoveScene deletes a scene together with its shots.
func RemoveScene(p Project, sceneIndex int) (Project, error) {
	if err := checkScene(p, sceneIndex); err != nil {
		return p, err
	}
	out := p.Clone()
	out.Scenes = append(out.Scenes[:sceneIndex], out.Scenes[sceneIndex+1:]...)
	return touch(renumber(out)), nil
}

// MoveScene reorders scenes and renumbers their order fields.
func MoveScene(p Project, from, to int) (Project, error) {
	if err := checkScene(p, from); err != nil {
		return p, err
	}
	if err := checkScene(p, to); err != nil {
		return p, err
	}
	if from == to {
		return p, nil
	}
	out := p.Clone()
	out.Scenes = move(out.Scenes, from, to)
	return touch(renumber(out)), nil
}

// Normalize renumbers scene orders and clamps shot durations, for snapshots
// loaded from outside.
func Normalize(p Project) Project {
	out := renumber(p.Clone())
	for s := range out.Scenes {
		for i := range out.Scenes[s].Shots {
			sh := &out.Scenes[s].Shots[i]
			if d, err := ClampDuration(sh.Duration); err == nil {
				sh.Duration = d
			} else {
				sh.Duration = DefaultShotDuration
			}
		}
	}
	return out
}

// Validate checks the snapshot invariants.
func Validate(p Project) error {
	for s, sc := range p.Scenes {
		if sc.Order != s {
			return fmt.Errorf("%w: scene %d has order %d", ErrInvalidOrder, s, sc.Order)
		}
		if len(sc.Shots) == 0 {
			return fmt.Errorf("scene %d: %w", s, ErrLastShot)
		}
		for i, sh := range sc.Shots {
			if math.IsNaN(sh.Duration) || sh.Duration < MinShotDuration {
				return fmt.Errorf("scene %d shot %d: %w: %v", s, i, ErrInvalidDuration, sh.Duration)
			}
		}
	}
	return nil
}

func checkScene(p Project, sceneIndex int) error {
	if sceneIndex < 0 || sceneIndex >= len(p.Scenes) {
		return fmt.Errorf("%w: %d", ErrSceneNotFound, sceneIndex)
	}
	return nil
}

func checkShot(p Project, sceneIndex, shotIndex int) error {
	if err := checkScene(p, sceneIndex); err != nil {
		return err
	}
	if shotIndex < 0 || shotIndex >= len(p.Scenes[sceneIndex].Shots) {
		return fmt.Errorf("%w: scene %d shot %d", ErrShotNotFound, sceneIndex, shotIndex)
	}
	return nil
}

func renumber(p Project) Project {
	for i := range p.Scenes {
		p.Scenes[i].Order = i
	}
	return p
}

func touch(p Project) Project {
	p.UpdatedAt = time.Now().UTC()
	return p
}

func move[T any](items []T, from, to int) []T {
	item := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]T{item}, items[to:]...)...)
	return items
}
