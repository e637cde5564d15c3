package audiosync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/ivlev/shotline/internal/grid"
	"github.com/ivlev/shotline/internal/media"
	"github.com/ivlev/shotline/internal/storyboard"
)

const (
	DefaultEpsilon        = 0.1
	DefaultDriftTolerance = 3.0
	DefaultMaxRetries     = 3
	DefaultReadyTimeout   = 10 * time.Second
	DefaultSettleTimeout  = 2 * time.Second
)

// ErrNoAudio is returned when an operation needs a loaded track.
var ErrNoAudio = errors.New("no audio track loaded")

// Options tunes the synchronizer. Zero values take the defaults.
type Options struct {
	Epsilon        float64
	DriftTolerance float64
	MaxRetries     int
	ReadyTimeout   time.Duration
	// SettleTimeout bounds how long Detach waits for a pending play.
	SettleTimeout  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.DriftTolerance <= 0 {
		o.DriftTolerance = DefaultDriftTolerance
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = DefaultSettleTimeout
	}
	return o
}

// Update is what an element event means for the shot timeline.
type Update struct {
	ShotTime    float64
	HasShotTime bool
	Ready       bool
	Ended       bool
	Err         *media.Error
}

// Synchronizer is the single entry point for every seek, play and pause on the
// audio element. It is not safe for concurrent use; the player loop owns it.
type Synchronizer struct {
	opts   Options
	logger *slog.Logger

	el       media.Element
	track    storyboard.AudioTrack
	total    float64
	autoSync bool
	playing  bool

	pendingShot *float64
	inflight    chan error

	err         *media.Error
	attempts    int
	retryDone   chan error
	retryCancel context.CancelFunc
}

// New returns a synchronizer with auto-sync enabled and no media attached.
func New(opts Options, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Synchronizer{
		opts:     opts.withDefaults(),
		logger:   logger,
		autoSync: true,
	}
}

// Attach swaps in a new element. Anything tied to the previous one (pending
// seek, in-flight play, retry, error) is dropped and the old element closed.
func (s *Synchronizer) Attach(el media.Element, track storyboard.AudioTrack) {
	s.Detach()
	s.el = el
	s.track = track
	if s.track.Volume <= 0 && !s.track.Muted {
		s.track.Volume = 1
	}
	el.SetVolume(s.track.Volume)
	el.SetMuted(s.track.Muted)
	if d := el.Duration(); d > 0 {
		s.track.Duration = d
	}
	s.logger.Info("audio attached", "name", track.Name, "duration", s.track.Duration)
}

// Detach releases the current element. A play still in flight is given up to
// SettleTimeout to resolve, so the pause lands after it instead of before.
func (s *Synchronizer) Detach() {
	if s.inflight != nil {
		timer := time.NewTimer(s.opts.SettleTimeout)
		select {
		case <-s.inflight:
		case <-timer.C:
			s.logger.Warn("audio play still pending at detach")
		}
		timer.Stop()
	}
	if s.retryCancel != nil {
		s.retryCancel()
	}
	s.retryCancel = nil
	s.retryDone = nil
	s.pendingShot = nil
	s.inflight = nil
	s.err = nil
	s.attempts = 0
	s.playing = false

	if s.el != nil {
		s.el.Pause()
		if err := s.el.Close(); err != nil {
			s.logger.Warn("closing audio element", "error", err)
		}
	}
	s.el = nil
	s.track = storyboard.AudioTrack{}
}

// Loaded reports whether an element is attached.
func (s *Synchronizer) Loaded() bool { return s.el != nil }

// Events returns the element's event stream, nil without media.
func (s *Synchronizer) Events() <-chan media.Event {
	if s.el == nil {
		return nil
	}
	return s.el.Events()
}

// Track returns the attached track with its measured duration.
func (s *Synchronizer) Track() storyboard.AudioTrack { return s.track }

// SetTimelineDuration records the current whole-project shot duration.
func (s *Synchronizer) SetTimelineDuration(total float64) { s.total = total }

// SetAutoSync toggles whether navigation moves the audio.
func (s *Synchronizer) SetAutoSync(on bool) { s.autoSync = on }

// AutoSync reports the auto-sync flag.
func (s *Synchronizer) AutoSync() bool { return s.autoSync }

// Playing reports whether audio playback was requested and not stopped.
func (s *Synchronizer) Playing() bool { return s.playing }

// Err returns the current media error, nil when healthy.
func (s *Synchronizer) Err() *media.Error { return s.err }

// SettleTimeout returns how long a pending play may take to resolve on release.
func (s *Synchronizer) SettleTimeout() time.Duration { return s.opts.SettleTimeout }

// AudioDuration prefers the element's decoded duration over the stored one.
func (s *Synchronizer) AudioDuration() float64 {
	if s.el != nil {
		if d := s.el.Duration(); d > 0 && !math.IsNaN(d) {
			return d
		}
	}
	return s.track.Duration
}

// SeekShotTime moves the audio to the position matching shotTime. Until the
// element is ready the request is kept and replayed, never dropped. ok is
// false when nothing was sent to the element yet.
func (s *Synchronizer) SeekShotTime(shotTime float64) (float64, bool) {
	if s.el == nil || !s.autoSync {
		return 0, false
	}
	if !s.el.HasCurrentData() {
		s.pendingShot = &shotTime
		s.logger.Debug("audio not ready, seek deferred", "shot_time", shotTime)
		return 0, false
	}
	return s.applySeek(shotTime)
}

func (s *Synchronizer) applySeek(shotTime float64) (float64, bool) {
	s.pendingShot = nil
	target, ok := SeekTarget(shotTime, s.total, s.AudioDuration(), s.opts.Epsilon)
	if !ok {
		return 0, false
	}
	s.el.SetCurrentTime(target)
	return target, true
}

func (s *Synchronizer) flushPending() {
	if s.pendingShot != nil && s.el != nil && s.el.HasCurrentData() {
		t, _ := s.applySeek(*s.pendingShot)
		s.logger.Debug("deferred seek applied", "target", t)
	}
}

// HandleEvent folds one element event into the synchronizer.
func (s *Synchronizer) HandleEvent(ev media.Event) Update {
	if s.el == nil {
		return Update{}
	}
	switch ev.Kind {
	case media.EventMetadataLoaded, media.EventCanPlay:
		if d := s.el.Duration(); d > 0 {
			s.track.Duration = d
		}
		s.flushPending()
		return Update{Ready: true}
	case media.EventTimeUpdate:
		if !s.autoSync {
			return Update{}
		}
		t, ok := AudioToShot(ev.Time, s.total, s.AudioDuration())
		return Update{ShotTime: t, HasShotTime: ok}
	case media.EventEnded:
		s.playing = false
		return Update{Ended: true}
	case media.EventError:
		s.playing = false
		return Update{Err: s.fail(media.Classify(ev.Err, media.OpRuntime))}
	}
	return Update{}
}

// Play requests playback. A second call while a request is in flight is a
// no-op. The outcome arrives on PlayDone and must be passed to SettlePlay.
func (s *Synchronizer) Play(ctx context.Context) error {
	if s.el == nil {
		return ErrNoAudio
	}
	if s.err != nil {
		return s.err
	}
	if s.inflight != nil {
		return nil
	}
	s.flushPending()

	ch := make(chan error, 1)
	el := s.el
	go func() {
		ch <- el.Play(ctx)
	}()
	s.inflight = ch
	s.playing = true
	return nil
}

// PlayDone yields the in-flight play result; nil when nothing is pending.
func (s *Synchronizer) PlayDone() <-chan error { return s.inflight }

// SettlePlay records the outcome of the in-flight play.
func (s *Synchronizer) SettlePlay(err error) *media.Error {
	s.inflight = nil
	if err == nil {
		return nil
	}
	s.playing = false
	if s.el != nil {
		s.el.Pause()
	}
	return s.fail(media.Classify(err, media.OpPlay))
}

// Pause waits for any in-flight play to settle, then pauses.
func (s *Synchronizer) Pause(ctx context.Context) error {
	if s.el == nil {
		s.playing = false
		return nil
	}
	if s.inflight != nil {
		select {
		case err := <-s.inflight:
			s.inflight = nil
			if err != nil {
				s.fail(media.Classify(err, media.OpPlay))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.el.Pause()
	s.playing = false
	return nil
}

// Driving reports whether the audio clock should drive the shot timeline.
func (s *Synchronizer) Driving() bool {
	return s.el != nil && s.autoSync && s.err == nil && s.playing &&
		s.inflight == nil && s.el.HasCurrentData() && s.total > 0
}

// ShotTime returns the audio position expressed in shot-timeline time.
func (s *Synchronizer) ShotTime() (float64, bool) {
	if s.el == nil || s.err != nil || !s.el.HasCurrentData() {
		return 0, false
	}
	return AudioToShot(s.el.CurrentTime(), s.total, s.AudioDuration())
}

// AudioTime returns the element position, 0 without media.
func (s *Synchronizer) AudioTime() float64 {
	if s.el == nil {
		return 0
	}
	return s.el.CurrentTime()
}

// CheckDrift compares shotTime against the audio clock. When they disagree by
// more than the tolerance it returns the audio-derived time to adopt.
func (s *Synchronizer) CheckDrift(shotTime float64) (float64, bool) {
	if !s.autoSync || !s.playing {
		return 0, false
	}
	audioShot, ok := s.ShotTime()
	if !ok {
		return 0, false
	}
	if math.Abs(audioShot-shotTime) <= s.opts.DriftTolerance {
		return 0, false
	}
	s.logger.Debug("drift detected", "shot_time", shotTime, "audio_shot_time", audioShot)
	return audioShot, true
}

// Retry reloads the element after an error. The outcome arrives on RetryDone
// and must be passed to SettleRetry.
func (s *Synchronizer) Retry(ctx context.Context) error {
	if s.el == nil {
		return ErrNoAudio
	}
	if s.err == nil || s.retryDone != nil {
		return nil
	}
	if s.err.Terminal {
		return s.err
	}

	s.attempts++
	rctx, cancel := context.WithTimeout(ctx, s.opts.ReadyTimeout)
	ch := make(chan error, 1)
	el := s.el
	go func() {
		ch <- el.Load(rctx)
	}()
	s.retryDone = ch
	s.retryCancel = cancel
	s.logger.Info("retrying audio", "attempt", s.attempts, "max", s.opts.MaxRetries)
	return nil
}

// RetryDone yields the pending retry result; nil when none is running.
func (s *Synchronizer) RetryDone() <-chan error { return s.retryDone }

// SettleRetry records a retry outcome. Success clears the error state.
func (s *Synchronizer) SettleRetry(err error) *media.Error {
	if s.retryCancel != nil {
		s.retryCancel()
	}
	s.retryCancel = nil
	s.retryDone = nil

	if err == nil {
		s.err = nil
		s.attempts = 0
		if d := s.el.Duration(); d > 0 {
			s.track.Duration = d
		}
		s.flushPending()
		s.logger.Info("audio recovered")
		return nil
	}
	return s.fail(media.Classify(err, media.OpLoad))
}

func (s *Synchronizer) fail(me *media.Error) *media.Error {
	if me == nil {
		return nil
	}
	out := *me
	out.Attempts = s.attempts
	out.Terminal = s.attempts >= s.opts.MaxRetries
	s.err = &out
	s.playing = false
	s.logger.Warn("audio error", "kind", out.Kind.String(), "attempts", out.Attempts, "terminal", out.Terminal, "error", out.Err)
	return s.err
}

// SetVolume clamps to [0, 1].
func (s *Synchronizer) SetVolume(v float64) {
	s.track.Volume = grid.Clamp(v, 0, 1)
	if s.el != nil {
		s.el.SetVolume(s.track.Volume)
	}
}

// ToggleMute flips the mute flag and returns the new value.
func (s *Synchronizer) ToggleMute() bool {
	s.track.Muted = !s.track.Muted
	if s.el != nil {
		s.el.SetMuted(s.track.Muted)
	}
	return s.track.Muted
}

// Muted reports the mute flag.
func (s *Synchronizer) Muted() bool { return s.track.Muted }
