package navigation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotline/internal/storyboard"
)

// two scenes: [3, 5] and [2]; total 10
func positions() []storyboard.Position {
	return storyboard.AllShots([]storyboard.Scene{
		{Shots: []storyboard.Shot{{Duration: 3}, {Duration: 5}}},
		{Shots: []storyboard.Shot{{Duration: 2}}},
	})
}

var t0 = time.Unix(1_000, 0)

func TestManualClickBeatsDriftInSameWindow(t *testing.T) {
	a := New(0)
	a.Resume()
	shots := positions()

	d := a.Submit(t0, shots, Intent{Source: SourceShotClick, SceneIndex: 1, ShotIndex: 0})
	require.True(t, d.Accepted)
	assert.Equal(t, Target{SceneIndex: 1, ShotIndex: 0, Time: 8}, d.Target)

	drift := a.Submit(t0.Add(100*time.Millisecond), shots, Intent{Source: SourceDrift, Time: 1})
	assert.False(t, drift.Accepted)
	assert.Equal(t, ReasonLocked, drift.Reason)

	// after the lock the override still blocks periodic correction
	later := a.Submit(t0.Add(2*time.Second), shots, Intent{Source: SourceDrift, Time: 1})
	assert.False(t, later.Accepted)
	assert.Equal(t, ReasonOverride, later.Reason)
	assert.True(t, a.ManualSelection())
	assert.False(t, a.DriftAllowed())
}

func TestRepeatedClickWithinWindowIsDropped(t *testing.T) {
	a := New(300 * time.Millisecond)
	shots := positions()

	require.True(t, a.Submit(t0, shots, Intent{Source: SourceShotClick, SceneIndex: 0, ShotIndex: 1}).Accepted)
	second := a.Submit(t0.Add(50*time.Millisecond), shots, Intent{Source: SourceShotClick, SceneIndex: 1, ShotIndex: 0})
	assert.False(t, second.Accepted)
	assert.True(t, a.Changing(t0.Add(299*time.Millisecond)))
	assert.False(t, a.Changing(t0.Add(300*time.Millisecond)))

	third := a.Submit(t0.Add(400*time.Millisecond), shots, Intent{Source: SourceShotClick, SceneIndex: 1, ShotIndex: 0})
	assert.True(t, third.Accepted)
}

func TestLockPolicy(t *testing.T) {
	shots := positions()
	in := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }

	t.Run("scrubs stream", func(t *testing.T) {
		a := New(0)
		require.True(t, a.Submit(in(0), shots, Intent{Source: SourceScrub, Time: 2}).Accepted)
		d := a.Submit(in(20), shots, Intent{Source: SourceScrub, Time: 4})
		require.True(t, d.Accepted)
		assert.Equal(t, Target{SceneIndex: 0, ShotIndex: 1, Time: 4}, d.Target)
	})

	t.Run("click interrupts scrub", func(t *testing.T) {
		a := New(0)
		require.True(t, a.Submit(in(0), shots, Intent{Source: SourceScrub, Time: 2}).Accepted)
		d := a.Submit(in(10), shots, Intent{Source: SourceSceneClick, SceneIndex: 1})
		require.True(t, d.Accepted)
		assert.Equal(t, 8.0, d.Target.Time)
	})

	t.Run("scrub dropped during click", func(t *testing.T) {
		a := New(0)
		require.True(t, a.Submit(in(0), shots, Intent{Source: SourceShotClick}).Accepted)
		assert.False(t, a.Submit(in(10), shots, Intent{Source: SourceScrub, Time: 6}).Accepted)
	})

	t.Run("playback dropped during scrub", func(t *testing.T) {
		a := New(0)
		a.Resume()
		require.True(t, a.Submit(in(0), shots, Intent{Source: SourceScrub, Time: 2}).Accepted)
		assert.False(t, a.Submit(in(50), shots, Intent{Source: SourcePlayback, Time: 2.05}).Accepted)
		assert.True(t, a.Submit(in(350), shots, Intent{Source: SourcePlayback, Time: 2.35}).Accepted)
	})
}

func TestResumeClearsOverride(t *testing.T) {
	a := New(0)
	shots := positions()
	require.True(t, a.Submit(t0, shots, Intent{Source: SourceShotClick, SceneIndex: 0, ShotIndex: 1}).Accepted)
	assert.Equal(t, ManualOverride, a.Mode())

	a.Halt()
	assert.Equal(t, ManualOverride, a.Mode())

	a.Resume()
	assert.Equal(t, Syncing, a.Mode())
	d := a.Submit(t0.Add(time.Second), shots, Intent{Source: SourceDrift, Time: 9})
	require.True(t, d.Accepted)
	assert.Equal(t, Target{SceneIndex: 1, ShotIndex: 0, Time: 9}, d.Target)

	a.Halt()
	assert.Equal(t, Idle, a.Mode())
}

func TestTargetAtTimeEdges(t *testing.T) {
	shots := positions()

	end, ok := TargetAtTime(shots, 10)
	require.True(t, ok)
	assert.Equal(t, Target{SceneIndex: 1, ShotIndex: 0, Time: 10}, end)

	past, ok := TargetAtTime(shots, 42)
	require.True(t, ok)
	assert.Equal(t, 10.0, past.Time)

	before, ok := TargetAtTime(shots, -1)
	require.True(t, ok)
	assert.Equal(t, Target{}, before)

	boundary, ok := TargetAtTime(shots, 3)
	require.True(t, ok)
	assert.Equal(t, 1, boundary.ShotIndex)

	_, ok = TargetAtTime(nil, 1)
	assert.False(t, ok)
}

func TestSubmitRejectsUnknownAndEmpty(t *testing.T) {
	a := New(0)
	assert.Equal(t, ReasonEmpty, a.Submit(t0, nil, Intent{Source: SourceScrub}).Reason)

	d := a.Submit(t0, positions(), Intent{Source: SourceShotClick, SceneIndex: 4, ShotIndex: 0})
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonNotFound, d.Reason)
	assert.Equal(t, Idle, a.Mode())
}
