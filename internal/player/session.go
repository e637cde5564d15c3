// Package player wires the playback clock, the audio synchronizer and the
// navigation arbiter behind one reducer. All state changes go through
// Session.Update, called from a single goroutine (Run).
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ivlev/shotline/internal/audiosync"
	"github.com/ivlev/shotline/internal/clock"
	"github.com/ivlev/shotline/internal/grid"
	"github.com/ivlev/shotline/internal/media"
	"github.com/ivlev/shotline/internal/navigation"
	"github.com/ivlev/shotline/internal/storyboard"
)

// DefaultDriftPeriod is how often the drift check runs while playing.
const DefaultDriftPeriod = 2 * time.Second

var (
	ErrNoExporter     = errors.New("no EDL exporter configured")
	ErrUnknownCommand = errors.New("unknown command")
)

// Options configures a Session. Zero values take defaults.
type Options struct {
	Logger *slog.Logger

	FrameRate   float64
	TickPeriod  time.Duration
	DriftPeriod time.Duration
	LockWindow  time.Duration
	Sync        audiosync.Options
	Magnet      grid.Magnet

	DisableAutoSync bool

	// Tickers default to real ones.
	TickerFactory      clock.TickerFactory
	DriftTickerFactory clock.TickerFactory
	// Now is used for commands arriving through Dispatch.
	Now func() time.Time

	// OnProjectChange receives every new snapshot for persistence.
	OnProjectChange func(storyboard.Project)
	// Exporter runs on ExportEDL.
	Exporter func(storyboard.Project) error
}

// State is the published view of the session.
type State struct {
	SceneIndex      int
	ShotIndex       int
	CurrentTime     float64
	AudioTime       float64
	TotalDuration   float64
	Timecode        string
	Playing         bool
	ManualSelection bool
	Changing        bool
	Muted           bool
	Volume          float64
	AudioLoaded     bool
	AudioError      *media.Error
}

type envelope struct {
	cmd   Command
	reply chan error
}

// Session owns one project's playback.
type Session struct {
	opts   Options
	logger *slog.Logger
	ctx    context.Context

	project storyboard.Project
	shots   []storyboard.Position

	clock *clock.Clock
	sync  *audiosync.Synchronizer
	nav   *navigation.Arbiter
	drift clock.Ticker

	cmds chan envelope

	mu    sync.RWMutex
	state State
}

// New builds a stopped session positioned at the start of p.
func New(p storyboard.Project, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = p.FrameRate
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = grid.DefaultFrameRate
	}
	if opts.DriftPeriod <= 0 {
		opts.DriftPeriod = DefaultDriftPeriod
	}
	if opts.DriftTickerFactory == nil {
		opts.DriftTickerFactory = clock.NewTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		opts:   opts,
		logger: opts.Logger,
		ctx:    context.Background(),
		clock:  clock.New(opts.TickPeriod, opts.TickerFactory),
		sync:   audiosync.New(opts.Sync, opts.Logger.With("component", "audiosync")),
		nav:    navigation.New(opts.LockWindow),
		cmds:   make(chan envelope),
	}
	s.sync.SetAutoSync(!opts.DisableAutoSync)
	s.installProject(storyboard.Normalize(p))
	s.publish(opts.Now())
	return s
}

// State returns the last published state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Project returns a copy of the current snapshot. Only safe from the loop
// goroutine or before Run starts.
func (s *Session) Project() storyboard.Project { return s.project.Clone() }

// Update applies one command. It must only be called from one goroutine.
func (s *Session) Update(now time.Time, cmd Command) error {
	err := s.update(now, cmd)
	s.publish(now)
	return err
}

func (s *Session) update(now time.Time, cmd Command) error {
	switch c := cmd.(type) {
	case Play:
		return s.play(now)
	case Pause:
		return s.stop()
	case TogglePlay:
		if s.clock.State() == clock.Playing {
			return s.stop()
		}
		return s.play(now)

	case SelectShot:
		return s.navigate(now, navigation.Intent{Source: navigation.SourceShotClick, SceneIndex: c.SceneIndex, ShotIndex: c.ShotIndex})
	case SelectScene:
		return s.navigate(now, navigation.Intent{Source: navigation.SourceSceneClick, SceneIndex: c.SceneIndex})
	case Scrub:
		return s.navigate(now, navigation.Intent{Source: navigation.SourceScrub, Time: s.opts.Magnet.Snap(c.Time)})
	case StepFrame:
		t := grid.StepFrames(s.clock.Current(), c.Frames, s.opts.FrameRate, s.clock.Total())
		return s.navigate(now, navigation.Intent{Source: navigation.SourceScrub, Time: t})

	case ToggleMute:
		if !s.sync.Loaded() {
			return nil
		}
		s.sync.ToggleMute()
		s.storeTrack()
		return nil
	case SetVolume:
		if !s.sync.Loaded() {
			return nil
		}
		s.sync.SetVolume(c.Volume)
		s.storeTrack()
		return nil

	case SetShotDuration:
		p, err := storyboard.SetShotDuration(s.project, c.SceneIndex, c.ShotIndex, c.Duration)
		return s.edit(now, p, err)
	case UpdateShot:
		p, err := storyboard.UpdateShot(s.project, c.SceneIndex, c.ShotIndex, c.Patch)
		return s.edit(now, p, err)
	case AddShot:
		p, err := storyboard.AddShot(s.project, c.SceneIndex, c.At, c.Shot)
		return s.edit(now, p, err)
	case RemoveShot:
		p, err := storyboard.RemoveShot(s.project, c.SceneIndex, c.ShotIndex)
		return s.edit(now, p, err)
	case MoveShot:
		p, err := storyboard.MoveShot(s.project, c.SceneIndex, c.From, c.To)
		return s.edit(now, p, err)
	case UpdateScene:
		p, err := storyboard.UpdateScene(s.project, c.SceneIndex, c.Patch)
		return s.edit(now, p, err)
	case AddScene:
		p, err := storyboard.AddScene(s.project, c.At, c.Scene)
		return s.edit(now, p, err)
	case RemoveScene:
		p, err := storyboard.RemoveScene(s.project, c.SceneIndex)
		return s.edit(now, p, err)
	case MoveScene:
		p, err := storyboard.MoveScene(s.project, c.From, c.To)
		return s.edit(now, p, err)
	case ReplaceProject:
		p := storyboard.Normalize(c.Project)
		if err := storyboard.Validate(p); err != nil {
			return err
		}
		return s.replace(now, p)

	case AttachAudio:
		return s.attach(now, c.Element, c.Track)
	case DetachAudio:
		err := s.stop()
		if err != nil {
			s.logger.Warn("pausing audio before detach", "error", err)
		}
		s.sync.Detach()
		if s.project.Audio != nil {
			p := s.project.Clone()
			p.Audio = nil
			s.commit(p)
		}
		return err
	case RetryAudio:
		return s.sync.Retry(s.ctx)

	case ExportEDL:
		if s.opts.Exporter == nil {
			return ErrNoExporter
		}
		return s.opts.Exporter(s.project.Clone())

	case Tick:
		return s.tick(now)
	case DriftCheck:
		return s.checkDrift(now)
	case AudioEvent:
		return s.audioEvent(now, c.Event)
	case PlaySettled:
		if me := s.sync.SettlePlay(c.Err); me != nil {
			s.halt()
		}
		return nil
	case RetrySettled:
		if me := s.sync.SettleRetry(c.Err); me != nil {
			return nil
		}
		s.storeTrack()
		if s.clock.State() == clock.Playing {
			// the shot clock kept going without audio; bring it back in
			return s.startAudio()
		}
		return nil
	}
	return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

func (s *Session) play(now time.Time) error {
	if s.clock.State() == clock.Playing {
		return nil
	}
	if !s.clock.Play(now) {
		s.logger.Debug("play ignored, empty timeline")
		return nil
	}
	s.nav.Resume()

	if me := s.sync.Err(); me != nil {
		s.logger.Warn("playing without audio", "kind", me.Kind.String())
	} else if err := s.startAudio(); err != nil {
		s.halt()
		return err
	}
	s.drift = s.opts.DriftTickerFactory(s.opts.DriftPeriod)
	s.logger.Debug("playing", "time", s.clock.Current())
	return nil
}

// startAudio aligns the element with the shot clock and requests playback.
func (s *Session) startAudio() error {
	if !s.sync.Loaded() {
		return nil
	}
	s.sync.SeekShotTime(s.clock.Current())
	return s.sync.Play(s.ctx)
}

// stop pauses both clocks, waiting for an in-flight audio play to settle.
func (s *Session) stop() error {
	s.halt()
	if !s.sync.Loaded() {
		return nil
	}
	return s.sync.Pause(s.ctx)
}

// halt stops the shot clock and drift checks without touching the element.
func (s *Session) halt() {
	s.clock.Stop()
	if s.drift != nil {
		s.drift.Stop()
		s.drift = nil
	}
	s.nav.Halt()
}

func (s *Session) navigate(now time.Time, in navigation.Intent) error {
	d := s.nav.Submit(now, s.shots, in)
	if !d.Accepted {
		s.logger.Debug("navigation dropped", "source", in.Source.String(), "reason", d.Reason)
		return nil
	}
	s.moveTo(now, d.Target.Time)
	s.sync.SeekShotTime(s.clock.Current())
	return nil
}

// moveTo relocates the clock; reaching the end while playing stops playback.
func (s *Session) moveTo(now time.Time, t float64) {
	step := s.clock.Seek(now, t)
	if step.Ended {
		if err := s.stop(); err != nil {
			s.logger.Warn("pausing audio at end of timeline", "error", err)
		}
	}
}

func (s *Session) tick(now time.Time) error {
	if s.clock.State() != clock.Playing {
		return nil
	}
	t := s.clock.Projected(now)
	if s.sync.Driving() {
		if at, ok := s.sync.ShotTime(); ok {
			t = at
		}
	}
	return s.advance(now, t)
}

// advance applies an automatic playback move.
func (s *Session) advance(now time.Time, t float64) error {
	d := s.nav.Submit(now, s.shots, navigation.Intent{Source: navigation.SourcePlayback, Time: t})
	if !d.Accepted {
		// hold at the manual target until the lock opens
		s.clock.Seek(now, s.clock.Current())
		return nil
	}
	step := s.clock.TickTo(now, d.Target.Time)
	if step.Ended {
		s.logger.Debug("reached end of timeline")
		return s.stop()
	}
	return nil
}

func (s *Session) checkDrift(now time.Time) error {
	if s.clock.State() != clock.Playing || !s.nav.DriftAllowed() {
		return nil
	}
	at, ok := s.sync.CheckDrift(s.clock.Current())
	if !ok {
		return nil
	}
	d := s.nav.Submit(now, s.shots, navigation.Intent{Source: navigation.SourceDrift, Time: at})
	if !d.Accepted {
		return nil
	}
	s.logger.Info("drift corrected", "from", s.clock.Current(), "to", d.Target.Time)
	s.moveTo(now, d.Target.Time)
	return nil
}

func (s *Session) audioEvent(now time.Time, ev media.Event) error {
	u := s.sync.HandleEvent(ev)
	switch {
	case u.Err != nil:
		s.halt()
		s.logger.Warn("playback stopped by audio error", "kind", u.Err.Kind.String())
	case u.Ended:
		if s.clock.State() == clock.Playing {
			s.moveTo(now, s.clock.Total())
		}
	case u.Ready:
		s.storeTrack()
	case u.HasShotTime:
		if s.clock.State() == clock.Playing && s.sync.Driving() {
			return s.advance(now, u.ShotTime)
		}
	}
	return nil
}

func (s *Session) attach(now time.Time, el media.Element, track storyboard.AudioTrack) error {
	if el == nil {
		return audiosync.ErrNoAudio
	}
	if err := s.stop(); err != nil {
		return fmt.Errorf("pausing previous audio: %w", err)
	}
	s.sync.Attach(el, track)
	s.sync.SeekShotTime(s.clock.Current())

	p := s.project.Clone()
	t := s.sync.Track()
	p.Audio = &t
	s.commit(p)
	return nil
}

// storeTrack copies volume, mute and measured duration into the snapshot.
func (s *Session) storeTrack() {
	if s.project.Audio == nil || !s.sync.Loaded() {
		return
	}
	cur := *s.project.Audio
	t := s.sync.Track()
	next := cur
	next.Volume, next.Muted = t.Volume, t.Muted
	if t.Duration > 0 {
		next.Duration = t.Duration
	}
	if next == cur {
		return
	}
	p := s.project.Clone()
	p.Audio = &next
	s.commit(p)
}

func (s *Session) edit(now time.Time, p storyboard.Project, err error) error {
	if err != nil {
		return err
	}
	return s.replace(now, p)
}

// replace installs an edited snapshot and keeps clock and audio aligned. The
// playhead follows the active shot by ID, keeping its offset inside the shot.
func (s *Session) replace(now time.Time, p storyboard.Project) error {
	id, offset, anchored := s.anchor()
	s.installProject(p)

	var err error
	if len(s.shots) == 0 {
		err = s.stop()
	} else if anchored {
		s.follow(now, id, offset)
	}
	s.sync.SeekShotTime(s.clock.Current())
	s.emit()
	return err
}

// anchor returns the active shot and the playhead offset inside it. The end
// of the timeline has no anchor.
func (s *Session) anchor() (string, float64, bool) {
	idx := s.clock.Index()
	if idx < 0 || idx >= len(s.shots) {
		return "", 0, false
	}
	p := s.shots[idx]
	if !p.Contains(s.clock.Current()) {
		return "", 0, false
	}
	return p.ShotID, s.clock.Current() - p.StartTime, true
}

// follow moves the clock to the shot's new place. A removed shot leaves the
// time where SetTimeline put it.
func (s *Session) follow(now time.Time, id string, offset float64) {
	for _, p := range s.shots {
		if p.ShotID != id {
			continue
		}
		if offset >= p.Duration {
			// shortened under the playhead: stay on its last grid point
			offset = math.Max(0, p.Duration-1.0/grid.PointsPerSecond)
		}
		if t := p.StartTime + offset; math.Abs(t-s.clock.Current()) > 1e-9 {
			s.clock.Seek(now, t)
		}
		return
	}
}

func (s *Session) installProject(p storyboard.Project) {
	s.project = p
	s.shots = storyboard.AllShots(p.Scenes)
	s.clock.SetTimeline(s.shots)
	s.sync.SetTimelineDuration(storyboard.Span(s.shots))
}

func (s *Session) commit(p storyboard.Project) {
	p.UpdatedAt = time.Now().UTC()
	s.project = p
	s.emit()
}

func (s *Session) emit() {
	if s.opts.OnProjectChange != nil {
		s.opts.OnProjectChange(s.project.Clone())
	}
}

func (s *Session) publish(now time.Time) {
	st := State{
		SceneIndex:      -1,
		ShotIndex:       -1,
		CurrentTime:     s.clock.Current(),
		AudioTime:       s.sync.AudioTime(),
		TotalDuration:   s.clock.Total(),
		Timecode:        grid.SecondsToSMPTE(s.clock.Current(), s.opts.FrameRate),
		Playing:         s.clock.State() == clock.Playing,
		ManualSelection: s.nav.ManualSelection(),
		Changing:        s.nav.Changing(now),
		Muted:           s.sync.Muted(),
		Volume:          s.sync.Track().Volume,
		AudioLoaded:     s.sync.Loaded(),
		AudioError:      s.sync.Err(),
	}
	if idx := s.clock.Index(); idx >= 0 && idx < len(s.shots) {
		st.SceneIndex = s.shots[idx].SceneIndex
		st.ShotIndex = s.shots[idx].ShotIndex
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Dispatch hands cmd to the running loop and waits for its result.
func (s *Session) Dispatch(ctx context.Context, cmd Command) error {
	env := envelope{cmd: cmd, reply: make(chan error, 1)}
	select {
	case s.cmds <- env:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-env.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the session loop. It returns when ctx is done, releasing the audio
// element.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	defer func() {
		// ctx is done; a pending play still gets a bounded chance to settle
		// before the pause
		stopCtx, cancel := context.WithTimeout(context.Background(), s.sync.SettleTimeout())
		defer cancel()
		s.ctx = stopCtx
		if err := s.stop(); err != nil {
			s.logger.Warn("stopping audio on shutdown", "error", err)
		}
		s.sync.Detach()
		s.publish(s.opts.Now())
	}()

	for {
		var driftC <-chan time.Time
		if s.drift != nil {
			driftC = s.drift.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-s.cmds:
			env.reply <- s.Update(s.opts.Now(), env.cmd)
		case now := <-s.clock.C():
			s.Update(now, Tick{})
		case now := <-driftC:
			s.Update(now, DriftCheck{})
		case ev := <-s.sync.Events():
			s.Update(s.opts.Now(), AudioEvent{Event: ev})
		case err := <-s.sync.PlayDone():
			s.Update(s.opts.Now(), PlaySettled{Err: err})
		case err := <-s.sync.RetryDone():
			s.Update(s.opts.Now(), RetrySettled{Err: err})
		}
	}
}
