package storyboard

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultShotDuration is used for new shots and for imported pages.
	DefaultShotDuration = 3.0
	// MinShotDuration is the shortest interval a shot may occupy.
	MinShotDuration = 0.1
)

// MediaType discriminates still frames from video clips.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Project is the persisted snapshot a host loads and saves.
type Project struct {
	ID        string      `yaml:"id" json:"id"`
	Title     string      `yaml:"title" json:"title"`
	FrameRate float64     `yaml:"frame_rate,omitempty" json:"frameRate,omitempty"`
	Scenes    []Scene     `yaml:"scenes" json:"scenes"`
	Audio     *AudioTrack `yaml:"audio,omitempty" json:"audio,omitempty"`
	UpdatedAt time.Time   `yaml:"updated_at" json:"updatedAt"`
}

// Scene is an ordered group of shots.
type Scene struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Order       int    `yaml:"order" json:"order"`
	Shots       []Shot `yaml:"shots" json:"shots"`
}

// Shot is a single storyboard frame or clip.
type Shot struct {
	ID          string      `yaml:"id" json:"id"`
	Media       string      `yaml:"media,omitempty" json:"media,omitempty"`
	MediaType   MediaType   `yaml:"media_type,omitempty" json:"mediaType,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Duration    float64     `yaml:"duration" json:"duration"` // seconds
	Camera      *CameraInfo `yaml:"camera,omitempty" json:"camera,omitempty"`
}

// CameraInfo holds optional technical notes for a shot.
type CameraInfo struct {
	Model        string `yaml:"model,omitempty" json:"model,omitempty"`
	Lens         string `yaml:"lens,omitempty" json:"lens,omitempty"`
	Aperture     string `yaml:"aperture,omitempty" json:"aperture,omitempty"`
	ShutterSpeed string `yaml:"shutter_speed,omitempty" json:"shutterSpeed,omitempty"`
	ISO          int    `yaml:"iso,omitempty" json:"iso,omitempty"`
	Notes        string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// AudioTrack is the project's master audio. Duration is only authoritative once
// the media has been decoded.
type AudioTrack struct {
	URL       string  `yaml:"url" json:"url"`
	Name      string  `yaml:"name" json:"name"`
	Duration  float64 `yaml:"duration" json:"duration"`
	Volume    float64 `yaml:"volume" json:"volume"`
	Muted     bool    `yaml:"muted,omitempty" json:"muted,omitempty"`
	Ephemeral bool    `yaml:"-" json:"-"`
}

// NewID returns a fresh identifier for scenes, shots and projects.
func NewID() string {
	return uuid.NewString()
}

// NewProject creates an empty project with one scene.
func NewProject(title string) Project {
	return Project{
		ID:        NewID(),
		Title:     title,
		Scenes:    []Scene{NewScene("Scene 1")},
		UpdatedAt: time.Now().UTC(),
	}
}

// NewScene creates a scene holding one default shot.
func NewScene(title string) Scene {
	return Scene{
		ID:    NewID(),
		Title: title,
		Shots: []Shot{NewShot("")},
	}
}

// NewShot creates a still shot with the default duration.
func NewShot(media string) Shot {
	return Shot{
		ID:        NewID(),
		Media:     media,
		MediaType: MediaImage,
		Duration:  DefaultShotDuration,
	}
}

// Clone returns a deep copy so edits never leak into a shared snapshot.
func (p Project) Clone() Project {
	out := p
	out.Scenes = make([]Scene, len(p.Scenes))
	for i, sc := range p.Scenes {
		out.Scenes[i] = sc.clone()
	}
	if p.Audio != nil {
		a := *p.Audio
		out.Audio = &a
	}
	return out
}

func (s Scene) clone() Scene {
	out := s
	out.Shots = make([]Shot, len(s.Shots))
	for i, sh := range s.Shots {
		out.Shots[i] = sh
		if sh.Camera != nil {
			c := *sh.Camera
			out.Shots[i].Camera = &c
		}
	}
	return out
}

// ShotCount returns the number of shots across all scenes.
func (p Project) ShotCount() int {
	n := 0
	for _, sc := range p.Scenes {
		n += len(sc.Shots)
	}
	return n
}
