package player

import (
	"github.com/ivlev/shotline/internal/media"
	"github.com/ivlev/shotline/internal/storyboard"
)

// Command is a message for Session.Update.
type Command interface {
	command()
}

type (
	Play       struct{}
	Pause      struct{}
	TogglePlay struct{}

	SelectShot struct {
		SceneIndex int
		ShotIndex  int
	}
	SelectScene struct {
		SceneIndex int
	}
	// Scrub moves the playhead to Time, snapped by the session magnet.
	Scrub struct {
		Time float64
	}
	// StepFrame moves by whole frames; negative steps go back.
	StepFrame struct {
		Frames int
	}

	ToggleMute struct{}
	SetVolume  struct {
		Volume float64
	}

	SetShotDuration struct {
		SceneIndex int
		ShotIndex  int
		Duration   float64
	}
	UpdateShot struct {
		SceneIndex int
		ShotIndex  int
		Patch      storyboard.ShotPatch
	}
	// AddShot inserts Shot before index At; At equal to the shot count appends.
	AddShot struct {
		SceneIndex int
		At         int
		Shot       storyboard.Shot
	}
	RemoveShot struct {
		SceneIndex int
		ShotIndex  int
	}
	MoveShot struct {
		SceneIndex int
		From       int
		To         int
	}

	UpdateScene struct {
		SceneIndex int
		Patch      storyboard.ScenePatch
	}
	AddScene struct {
		At    int
		Scene storyboard.Scene
	}
	RemoveScene struct {
		SceneIndex int
	}
	MoveScene struct {
		From int
		To   int
	}

	// ReplaceProject installs a new snapshot, e.g. after an external edit.
	ReplaceProject struct {
		Project storyboard.Project
	}

	AttachAudio struct {
		Element media.Element
		Track   storyboard.AudioTrack
	}
	DetachAudio struct{}
	RetryAudio  struct{}

	ExportEDL struct{}

	// Loop-internal messages. Run produces them; tests may feed them directly.
	Tick         struct{}
	DriftCheck   struct{}
	AudioEvent   struct{ Event media.Event }
	PlaySettled  struct{ Err error }
	RetrySettled struct{ Err error }
)

func (Play) command()            {}
func (Pause) command()           {}
func (TogglePlay) command()      {}
func (SelectShot) command()      {}
func (SelectScene) command()     {}
func (Scrub) command()           {}
func (StepFrame) command()       {}
func (ToggleMute) command()      {}
func (SetVolume) command()       {}
func (SetShotDuration) command() {}
func (UpdateShot) command()      {}
func (AddShot) command()         {}
func (RemoveShot) command()      {}
func (MoveShot) command()        {}
func (UpdateScene) command()     {}
func (AddScene) command()        {}
func (RemoveScene) command()     {}
func (MoveScene) command()       {}
func (ReplaceProject) command()  {}
func (AttachAudio) command()     {}
func (DetachAudio) command()     {}
func (RetryAudio) command()      {}
func (ExportEDL) command()       {}
func (Tick) command()            {}
func (DriftCheck) command()      {}
func (AudioEvent) command()      {}
func (PlaySettled) command()     {}
func (RetrySettled) command()    {}
