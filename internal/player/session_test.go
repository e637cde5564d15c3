package player

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotline/internal/audiosync"
	"github.com/ivlev/shotline/internal/clock"
	"github.com/ivlev/shotline/internal/grid"
	"github.com/ivlev/shotline/internal/media"
	"github.com/ivlev/shotline/internal/storyboard"
)

var t0 = time.Unix(10_000, 0)

func at(d time.Duration) time.Time { return t0.Add(d) }

// scenes [3, 5] and [2]; total 10
func testProject() storyboard.Project {
	return storyboard.Project{
		ID:        "p1",
		Title:     "Night Shift",
		FrameRate: 24,
		Scenes: []storyboard.Scene{
			{ID: "s1", Title: "INT. DINER", Shots: []storyboard.Shot{{ID: "a", Duration: 3}, {ID: "b", Duration: 5}}},
			{ID: "s2", Title: "EXT. LOT", Shots: []storyboard.Shot{{ID: "c", Duration: 2}}},
		},
	}
}

type harness struct {
	s     *Session
	tick  *clock.ManualTicker
	drift *clock.ManualTicker
	saved []storyboard.Project
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{tick: clock.NewManualTicker(), drift: clock.NewManualTicker()}
	opts.TickerFactory = h.tick.Factory()
	opts.DriftTickerFactory = h.drift.Factory()
	opts.OnProjectChange = func(p storyboard.Project) { h.saved = append(h.saved, p) }
	h.s = New(testProject(), opts)
	return h
}

func (h *harness) last() storyboard.Project { return h.saved[len(h.saved)-1] }

// playWithAudio attaches a 20 s sim whose clock is frozen at t0, then starts
// playback and settles the play request.
func (h *harness) playWithAudio(t *testing.T, sim *media.Sim) {
	t.Helper()
	require.NoError(t, h.s.Update(t0, AttachAudio{Element: sim, Track: storyboard.AudioTrack{Name: "score", Duration: 20}}))
	require.NoError(t, h.s.Update(t0, Play{}))
	require.NoError(t, h.s.Update(t0, PlaySettled{Err: <-h.s.sync.PlayDone()}))
}

func frozenSim() *media.Sim {
	sim := media.NewSim(20, true)
	sim.Now = func() time.Time { return t0 }
	return sim
}

func TestPlaybackAdvancesAndStopsAtEnd(t *testing.T) {
	h := newHarness(t, Options{})

	require.NoError(t, h.s.Update(t0, Play{}))
	assert.True(t, h.s.State().Playing)

	require.NoError(t, h.s.Update(at(4*time.Second), Tick{}))
	st := h.s.State()
	assert.InDelta(t, 4.0, st.CurrentTime, 1e-9)
	assert.Equal(t, 0, st.SceneIndex)
	assert.Equal(t, 1, st.ShotIndex)

	require.NoError(t, h.s.Update(at(11*time.Second), Tick{}))
	st = h.s.State()
	assert.False(t, st.Playing)
	assert.Equal(t, 10.0, st.CurrentTime)
	assert.Equal(t, 1, st.SceneIndex)
	assert.Equal(t, 0, st.ShotIndex)
	assert.True(t, h.tick.Stopped())
	assert.True(t, h.drift.Stopped())
	assert.False(t, h.tick.Fire(at(12*time.Second)))
}

func TestPauseResumesFromCurrentTime(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.s.Update(t0, Play{}))
	require.NoError(t, h.s.Update(at(2*time.Second), Tick{}))
	require.NoError(t, h.s.Update(at(2*time.Second), TogglePlay{}))
	assert.False(t, h.s.State().Playing)

	require.NoError(t, h.s.Update(at(time.Minute), TogglePlay{}))
	require.NoError(t, h.s.Update(at(time.Minute+time.Second), Tick{}))
	assert.InDelta(t, 3.0, h.s.State().CurrentTime, 1e-9)
}

func TestEmptyProjectNeverPlays(t *testing.T) {
	s := New(storyboard.Project{Title: "empty"}, Options{TickerFactory: clock.NewManualTicker().Factory()})
	require.NoError(t, s.Update(t0, Play{}))
	st := s.State()
	assert.False(t, st.Playing)
	assert.Equal(t, -1, st.ShotIndex)
	assert.Equal(t, 0.0, st.TotalDuration)
}

func TestManualClickWinsOverDriftCheck(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	h.playWithAudio(t, sim)

	require.NoError(t, h.s.Update(at(time.Second), SelectShot{SceneIndex: 1, ShotIndex: 0}))
	require.NotEmpty(t, sim.Seeks)
	assert.InDelta(t, 16.0, sim.Seeks[len(sim.Seeks)-1], 1e-9)

	// the audio element lags far behind, drift check fires 50 ms after the click
	sim.SetCurrentTime(2)
	require.NoError(t, h.s.Update(at(time.Second+50*time.Millisecond), DriftCheck{}))

	st := h.s.State()
	assert.Equal(t, 1, st.SceneIndex)
	assert.Equal(t, 0, st.ShotIndex)
	assert.Equal(t, 8.0, st.CurrentTime)
	assert.True(t, st.ManualSelection)
	assert.True(t, st.Changing)
}

func TestDriftCheckAdoptsAudioClock(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	h.playWithAudio(t, sim)

	sim.SetCurrentTime(12)
	require.NoError(t, h.s.Update(at(100*time.Millisecond), DriftCheck{}))
	st := h.s.State()
	assert.InDelta(t, 6.0, st.CurrentTime, 1e-9)
	assert.Equal(t, 1, st.ShotIndex)
	assert.False(t, st.ManualSelection)
}

func TestTickFollowsAudioWhenDriving(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	h.playWithAudio(t, sim)

	sim.SetCurrentTime(5)
	require.NoError(t, h.s.Update(at(10*time.Second), Tick{}))
	assert.InDelta(t, 2.5, h.s.State().CurrentTime, 1e-9)
	assert.InDelta(t, 5.0, h.s.State().AudioTime, 1e-9)
}

func TestAudioErrorStopsPlaybackButNotNavigation(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	h.playWithAudio(t, sim)

	require.NoError(t, h.s.Update(at(time.Second), AudioEvent{Event: media.Event{Kind: media.EventError, Err: media.ErrNetwork}}))
	st := h.s.State()
	assert.False(t, st.Playing)
	require.NotNil(t, st.AudioError)
	assert.Equal(t, media.KindNetwork, st.AudioError.Kind)

	require.NoError(t, h.s.Update(at(2*time.Second), SelectShot{SceneIndex: 0, ShotIndex: 1}))
	assert.Equal(t, 3.0, h.s.State().CurrentTime)

	// an explicit play runs the shots silently while the error stands
	require.NoError(t, h.s.Update(at(3*time.Second), Play{}))
	st = h.s.State()
	assert.True(t, st.Playing)
	assert.NotNil(t, st.AudioError)
	assert.Nil(t, h.s.sync.PlayDone())
	assert.Equal(t, 1, sim.Plays)

	require.NoError(t, h.s.Update(at(4*time.Second), Tick{}))
	assert.InDelta(t, 4.0, h.s.State().CurrentTime, 1e-9)
}

func TestRetryResumesAudioUnderSilentPlayback(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	h.playWithAudio(t, sim)
	require.NoError(t, h.s.Update(t0, AudioEvent{Event: media.Event{Kind: media.EventError, Err: media.ErrNetwork}}))
	require.NoError(t, h.s.Update(t0, Play{}))
	require.NoError(t, h.s.Update(at(2*time.Second), Tick{}))

	require.NoError(t, h.s.Update(at(2*time.Second), RetryAudio{}))
	require.NoError(t, h.s.Update(at(2*time.Second), RetrySettled{Err: <-h.s.sync.RetryDone()}))
	done := h.s.sync.PlayDone()
	require.NotNil(t, done, "recovered audio must rejoin the running clock")
	require.NoError(t, h.s.Update(at(2*time.Second), PlaySettled{Err: <-done}))

	st := h.s.State()
	assert.Nil(t, st.AudioError)
	assert.True(t, st.Playing)
	assert.Equal(t, 2, sim.Plays)
	assert.InDelta(t, 4.0, sim.Seeks[len(sim.Seeks)-1], 1e-9)
}

func TestRejectedPlayStopsPlayback(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	sim.PlayFunc = func(context.Context) error { return media.ErrNotAllowed }
	h.playWithAudio(t, sim)

	st := h.s.State()
	assert.False(t, st.Playing)
	require.NotNil(t, st.AudioError)
	assert.Equal(t, media.KindNotAllowed, st.AudioError.Kind)
}

func TestRetryClearsAudioError(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	h.playWithAudio(t, sim)
	require.NoError(t, h.s.Update(t0, AudioEvent{Event: media.Event{Kind: media.EventError, Err: media.ErrDecode}}))

	require.NoError(t, h.s.Update(t0, RetryAudio{}))
	require.NoError(t, h.s.Update(t0, RetrySettled{Err: <-h.s.sync.RetryDone()}))
	assert.Nil(t, h.s.State().AudioError)
	require.NoError(t, h.s.Update(t0, Play{}))
	assert.True(t, h.s.State().Playing)
}

func TestSetShotDurationClampsAndEmits(t *testing.T) {
	h := newHarness(t, Options{})

	require.NoError(t, h.s.Update(t0, SetShotDuration{SceneIndex: 0, ShotIndex: 0, Duration: 0}))
	require.NotEmpty(t, h.saved)
	assert.Equal(t, storyboard.MinShotDuration, h.last().Scenes[0].Shots[0].Duration)
	assert.InDelta(t, 7.1, h.s.State().TotalDuration, 1e-9)

	err := h.s.Update(t0, SetShotDuration{SceneIndex: 5, ShotIndex: 0, Duration: 2})
	assert.ErrorIs(t, err, storyboard.ErrSceneNotFound)
}

func TestEditRealignsAudio(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	require.NoError(t, h.s.Update(t0, AttachAudio{Element: sim, Track: storyboard.AudioTrack{Duration: 20}}))
	require.NoError(t, h.s.Update(t0, Scrub{Time: 5}))
	assert.InDelta(t, 10.0, sim.Seeks[len(sim.Seeks)-1], 1e-9)

	// total goes from 10 to 15: shot time 5 now sits at a third of the track
	require.NoError(t, h.s.Update(at(time.Second), SetShotDuration{SceneIndex: 1, ShotIndex: 0, Duration: 7}))
	assert.InDelta(t, 20.0/3, sim.Seeks[len(sim.Seeks)-1], 1e-9)
}

func TestMoveActiveShotCarriesPlayhead(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	require.NoError(t, h.s.Update(t0, AttachAudio{Element: sim, Track: storyboard.AudioTrack{Duration: 20}}))
	require.NoError(t, h.s.Update(t0, Scrub{Time: 4}))
	saved := len(h.saved)

	// b moves to the front of its scene; the playhead stays one second into it
	require.NoError(t, h.s.Update(at(time.Second), MoveShot{SceneIndex: 0, From: 1, To: 0}))
	st := h.s.State()
	assert.Equal(t, 0, st.SceneIndex)
	assert.Equal(t, 0, st.ShotIndex)
	assert.InDelta(t, 1.0, st.CurrentTime, 1e-9)
	assert.InDelta(t, 2.0, sim.Seeks[len(sim.Seeks)-1], 1e-9)
	require.Len(t, h.saved, saved+1)
	assert.Equal(t, "b", h.last().Scenes[0].Shots[0].ID)

	require.NoError(t, h.s.Update(at(2*time.Second), MoveScene{From: 1, To: 0}))
	st = h.s.State()
	assert.Equal(t, 1, st.SceneIndex)
	assert.Equal(t, 0, st.ShotIndex)
	assert.InDelta(t, 3.0, st.CurrentTime, 1e-9)
	assert.InDelta(t, 6.0, sim.Seeks[len(sim.Seeks)-1], 1e-9)
	require.Len(t, h.saved, saved+2)
	assert.Equal(t, "s2", h.last().Scenes[0].ID)
	assert.Equal(t, 1, h.last().Scenes[1].Order)
}

func TestMoveActiveShotWhilePlaying(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.s.Update(t0, Play{}))
	require.NoError(t, h.s.Update(at(4*time.Second), Tick{}))

	require.NoError(t, h.s.Update(at(4*time.Second), MoveShot{SceneIndex: 0, From: 1, To: 0}))
	require.NoError(t, h.s.Update(at(5*time.Second), Tick{}))
	st := h.s.State()
	assert.True(t, st.Playing)
	assert.Equal(t, 0, st.ShotIndex)
	assert.InDelta(t, 2.0, st.CurrentTime, 1e-9)
}

func TestInsertionsShiftPlayhead(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.s.Update(t0, Scrub{Time: 4}))

	require.NoError(t, h.s.Update(t0, AddShot{SceneIndex: 0, At: 0, Shot: storyboard.Shot{ID: "n", Duration: 2}}))
	st := h.s.State()
	assert.Equal(t, 2, st.ShotIndex)
	assert.InDelta(t, 6.0, st.CurrentTime, 1e-9)

	require.NoError(t, h.s.Update(t0, AddScene{At: 0, Scene: storyboard.Scene{ID: "s0", Title: "COLD OPEN"}}))
	st = h.s.State()
	assert.Equal(t, 1, st.SceneIndex)
	assert.Equal(t, 2, st.ShotIndex)
	assert.InDelta(t, 9.0, st.CurrentTime, 1e-9)
	assert.InDelta(t, 15.0, st.TotalDuration, 1e-9)
	assert.Equal(t, "COLD OPEN", h.last().Scenes[0].Title)
	require.Len(t, h.last().Scenes[0].Shots, 1)

	require.NoError(t, h.s.Update(t0, RemoveScene{SceneIndex: 0}))
	st = h.s.State()
	assert.Equal(t, 0, st.SceneIndex)
	assert.InDelta(t, 6.0, st.CurrentTime, 1e-9)
}

func TestRemoveActiveShotKeepsTime(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()
	require.NoError(t, h.s.Update(t0, AttachAudio{Element: sim, Track: storyboard.AudioTrack{Duration: 20}}))
	require.NoError(t, h.s.Update(t0, Scrub{Time: 4}))

	require.NoError(t, h.s.Update(t0, RemoveShot{SceneIndex: 0, ShotIndex: 1}))
	st := h.s.State()
	assert.Equal(t, 1, st.SceneIndex)
	assert.Equal(t, 0, st.ShotIndex)
	assert.InDelta(t, 4.0, st.CurrentTime, 1e-9)
	assert.InDelta(t, 5.0, st.TotalDuration, 1e-9)
	assert.InDelta(t, 16.0, sim.Seeks[len(sim.Seeks)-1], 1e-9)

	saved := len(h.saved)
	assert.ErrorIs(t, h.s.Update(t0, RemoveShot{SceneIndex: 1, ShotIndex: 0}), storyboard.ErrLastShot)
	assert.Len(t, h.saved, saved)
}

func TestShrinkingActiveShotKeepsItActive(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.s.Update(t0, Scrub{Time: 4.5}))

	require.NoError(t, h.s.Update(t0, SetShotDuration{SceneIndex: 0, ShotIndex: 1, Duration: 1}))
	st := h.s.State()
	assert.Equal(t, 0, st.SceneIndex)
	assert.Equal(t, 1, st.ShotIndex)
	assert.InDelta(t, 4-1.0/grid.PointsPerSecond, st.CurrentTime, 1e-9)
}

func TestMetadataEditsEmitWithoutMoving(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.s.Update(t0, Scrub{Time: 4}))

	desc := "close on the coffee cup"
	require.NoError(t, h.s.Update(t0, UpdateShot{SceneIndex: 0, ShotIndex: 1, Patch: storyboard.ShotPatch{Description: &desc}}))
	assert.Equal(t, desc, h.last().Scenes[0].Shots[1].Description)

	title := "INT. DINER - LATER"
	require.NoError(t, h.s.Update(t0, UpdateScene{SceneIndex: 0, Patch: storyboard.ScenePatch{Title: &title}}))
	assert.Equal(t, title, h.last().Scenes[0].Title)
	assert.Equal(t, 4.0, h.s.State().CurrentTime)

	assert.ErrorIs(t, h.s.Update(t0, UpdateShot{SceneIndex: 0, ShotIndex: 9}), storyboard.ErrShotNotFound)
}

func TestStepFrame(t *testing.T) {
	h := newHarness(t, Options{})

	require.NoError(t, h.s.Update(t0, StepFrame{Frames: 1}))
	st := h.s.State()
	assert.InDelta(t, 1.0/24, st.CurrentTime, 1e-9)
	assert.Equal(t, "00:00:00:01", st.Timecode)

	require.NoError(t, h.s.Update(t0, StepFrame{Frames: -5}))
	assert.Equal(t, 0.0, h.s.State().CurrentTime)
}

func TestScrubSnapsToMagnet(t *testing.T) {
	h := newHarness(t, Options{Magnet: grid.Magnet{Type: grid.PointSecond, Strength: 1}})
	require.NoError(t, h.s.Update(t0, Scrub{Time: 4.8}))
	assert.Equal(t, 5.0, h.s.State().CurrentTime)
}

func TestAttachAndDetachAudio(t *testing.T) {
	h := newHarness(t, Options{})
	sim := frozenSim()

	require.NoError(t, h.s.Update(t0, AttachAudio{Element: sim, Track: storyboard.AudioTrack{Name: "score", URL: "score.mp3"}}))
	require.NotNil(t, h.last().Audio)
	assert.Equal(t, 20.0, h.last().Audio.Duration)
	assert.True(t, h.s.State().AudioLoaded)

	require.NoError(t, h.s.Update(t0, ToggleMute{}))
	assert.True(t, h.last().Audio.Muted)
	assert.True(t, h.s.State().Muted)

	require.NoError(t, h.s.Update(t0, SetVolume{Volume: 0.4}))
	assert.Equal(t, 0.4, h.last().Audio.Volume)

	require.NoError(t, h.s.Update(t0, DetachAudio{}))
	assert.Nil(t, h.last().Audio)
	assert.True(t, sim.Closed())
	assert.False(t, h.s.State().AudioLoaded)

	assert.ErrorIs(t, h.s.Update(t0, AttachAudio{}), audiosync.ErrNoAudio)
}

func TestAudioSwapReportsStuckPause(t *testing.T) {
	h := newHarness(t, Options{Sync: audiosync.Options{SettleTimeout: 10 * time.Millisecond}})
	sim := frozenSim()
	release := make(chan struct{})
	defer close(release)
	sim.PlayFunc = func(context.Context) error {
		<-release
		return nil
	}
	require.NoError(t, h.s.Update(t0, AttachAudio{Element: sim, Track: storyboard.AudioTrack{Name: "score", Duration: 20}}))
	require.NoError(t, h.s.Update(t0, Play{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.s.ctx = ctx

	next := frozenSim()
	err := h.s.Update(t0, AttachAudio{Element: next, Track: storyboard.AudioTrack{Name: "alt"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "score", h.last().Audio.Name)
	assert.False(t, next.Closed())

	assert.ErrorIs(t, h.s.Update(t0, DetachAudio{}), context.Canceled)
	assert.True(t, sim.Closed())
	assert.Nil(t, h.last().Audio)
	assert.False(t, h.s.State().AudioLoaded)
}

func TestRunShutdownWaitsForPendingPlay(t *testing.T) {
	h := newHarness(t, Options{Now: func() time.Time { return t0 }})
	sim := frozenSim()
	started := make(chan struct{})
	release := make(chan struct{})
	sim.PlayFunc = func(context.Context) error {
		close(started)
		<-release
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.s.Run(ctx) }()

	require.NoError(t, h.s.Dispatch(ctx, AttachAudio{Element: sim, Track: storyboard.AudioTrack{Duration: 20}}))
	require.NoError(t, h.s.Dispatch(ctx, Play{}))
	<-started
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sim.PauseCount(), "pause issued before the play resolved")
	assert.False(t, sim.Closed())

	close(release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
	assert.GreaterOrEqual(t, sim.PauseCount(), 1)
	assert.True(t, sim.Closed())
	assert.False(t, sim.Playing())
	assert.False(t, h.s.State().Playing)
}

func TestExportEDL(t *testing.T) {
	h := newHarness(t, Options{})
	assert.ErrorIs(t, h.s.Update(t0, ExportEDL{}), ErrNoExporter)

	var got storyboard.Project
	s := New(testProject(), Options{Exporter: func(p storyboard.Project) error {
		got = p
		return nil
	}})
	require.NoError(t, s.Update(t0, ExportEDL{}))
	assert.Equal(t, "Night Shift", got.Title)
}

func TestRunLoop(t *testing.T) {
	h := newHarness(t, Options{Now: func() time.Time { return t0 }})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.s.Run(ctx) }()

	require.NoError(t, h.s.Dispatch(ctx, Play{}))
	require.True(t, h.tick.Fire(at(2*time.Second)))
	require.Eventually(t, func() bool {
		return h.s.State().CurrentTime == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.s.Dispatch(ctx, Pause{}))
	assert.False(t, h.s.State().Playing)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
