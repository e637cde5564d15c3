package media

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel causes an Element implementation wraps into its errors.
var (
	ErrNotAllowed  = errors.New("playback not allowed")
	ErrDecode      = errors.New("media decode failed")
	ErrNetwork     = errors.New("media network error")
	ErrAborted     = errors.New("media load aborted")
	ErrUnsupported = errors.New("media source not supported")
	ErrNotReady    = errors.New("media not ready")
)

// Kind is the error taxonomy surfaced to the host.
type Kind int

const (
	KindUnknown Kind = iota
	KindLoadFailed
	KindPlayFailed
	KindNotAllowed
	KindDecodeFailed
	KindNetwork
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindLoadFailed:
		return "load_failed"
	case KindPlayFailed:
		return "play_failed"
	case KindNotAllowed:
		return "not_allowed"
	case KindDecodeFailed:
		return "decode_failed"
	case KindNetwork:
		return "network_error"
	case KindAborted:
		return "aborted"
	}
	return "unknown"
}

// Op tells Classify which operation failed.
type Op int

const (
	OpLoad Op = iota
	OpPlay
	OpRuntime
)

// Error is a classified media failure. It is held as state, never panicked.
type Error struct {
	Kind     Kind
	Message  string
	Attempts int  // retries spent so far
	Terminal bool // no retry left; new media required
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify maps a raw element error onto the taxonomy.
func Classify(err error, op Op) *Error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return me
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, ErrNotAllowed):
		kind = KindNotAllowed
	case errors.Is(err, ErrDecode):
		kind = KindDecodeFailed
	case errors.Is(err, ErrNetwork):
		kind = KindNetwork
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		kind = KindAborted
	case errors.Is(err, ErrUnsupported), errors.Is(err, context.DeadlineExceeded):
		kind = KindLoadFailed
	case op == OpPlay:
		kind = KindPlayFailed
	case op == OpLoad:
		kind = KindLoadFailed
	}

	return &Error{Kind: kind, Message: messageFor(kind), Err: err}
}

func messageFor(k Kind) string {
	switch k {
	case KindLoadFailed:
		return "the audio file could not be loaded"
	case KindPlayFailed:
		return "the audio could not be played"
	case KindNotAllowed:
		return "playback was blocked; interact with the page and try again"
	case KindDecodeFailed:
		return "the audio file is corrupt or in an unsupported format"
	case KindNetwork:
		return "a network error interrupted the audio download"
	case KindAborted:
		return "audio loading was aborted"
	}
	return "an unknown audio error occurred"
}
