package media

import "context"

// EventKind names the element notifications the synchronizer consumes.
type EventKind int

const (
	EventMetadataLoaded EventKind = iota
	EventCanPlay
	EventTimeUpdate
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMetadataLoaded:
		return "loadedmetadata"
	case EventCanPlay:
		return "canplay"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is emitted by an Element.
type Event struct {
	Kind EventKind
	Time float64 // element time at emission
	Err  error   // set for EventError
}

// Element is the narrow audio/video control surface the core is written against.
type Element interface {
	// Play starts playback and returns once the pipeline accepted or rejected it.
	Play(ctx context.Context) error
	Pause()
	CurrentTime() float64
	SetCurrentTime(t float64)
	// Duration is the decoded media length, 0 until metadata is loaded.
	Duration() float64
	// HasCurrentData reports whether a seek can be applied right now.
	HasCurrentData() bool
	// Load (re)loads the source and returns when ready or failed.
	Load(ctx context.Context) error
	SetVolume(v float64)
	SetMuted(m bool)
	Events() <-chan Event
	// Close releases the element and any ephemeral source URL.
	Close() error
}
