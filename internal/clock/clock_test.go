package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotline/internal/storyboard"
)

func timeline() []storyboard.Position {
	scenes := []storyboard.Scene{
		{Shots: []storyboard.Shot{{ID: "a", Duration: 3}, {ID: "b", Duration: 5}}},
		{Shots: []storyboard.Shot{{ID: "c", Duration: 2}}},
	}
	return storyboard.AllShots(scenes)
}

func TestPlayWithoutShotsIsNoop(t *testing.T) {
	ticker := NewManualTicker()
	c := New(50*time.Millisecond, ticker.Factory())
	c.SetTimeline(nil)

	assert.False(t, c.Play(time.Unix(0, 0)))
	assert.Equal(t, Stopped, c.State())
	assert.Nil(t, c.C())
}

func TestTickAdvancesAndCrossesBoundary(t *testing.T) {
	ticker := NewManualTicker()
	c := New(50*time.Millisecond, ticker.Factory())
	c.SetTimeline(timeline())

	start := time.Unix(100, 0)
	require.True(t, c.Play(start))
	require.NotNil(t, c.C())

	step := c.Tick(start.Add(2 * time.Second))
	assert.InDelta(t, 2.0, step.Time, 1e-9)
	assert.Equal(t, 0, step.Index)
	assert.False(t, step.Crossed)

	step = c.Tick(start.Add(3500 * time.Millisecond))
	assert.Equal(t, 1, step.Index)
	assert.True(t, step.Crossed)
	assert.Equal(t, "b", step.Position.ShotID)

	step = c.Tick(start.Add(8 * time.Second))
	assert.Equal(t, 2, step.Index)
	assert.Equal(t, 1, step.Position.SceneIndex)
}

func TestEndStopsAndClamps(t *testing.T) {
	ticker := NewManualTicker()
	c := New(50*time.Millisecond, ticker.Factory())
	c.SetTimeline(timeline())

	start := time.Unix(0, 0)
	c.Seek(start, 9.5)
	require.True(t, c.Play(start))

	step := c.Tick(start.Add(2 * time.Second))
	assert.True(t, step.Ended)
	assert.Equal(t, 10.0, step.Time)
	assert.Equal(t, 2, step.Index)
	assert.Equal(t, Stopped, c.State())
	assert.True(t, ticker.Stopped())
	assert.Nil(t, c.C())
	assert.False(t, ticker.Fire(start.Add(3*time.Second)), "no tick may fire after stop")

	step = c.Tick(start.Add(5 * time.Second))
	assert.Equal(t, 10.0, step.Time, "ticks while stopped are ignored")
}

func TestResumeKeepsPosition(t *testing.T) {
	ticker := NewManualTicker()
	c := New(0, ticker.Factory())
	c.SetTimeline(timeline())

	start := time.Unix(0, 0)
	c.Play(start)
	c.Tick(start.Add(4 * time.Second))
	c.Stop()

	resume := start.Add(time.Minute)
	c.Play(resume)
	step := c.Tick(resume.Add(time.Second))
	assert.InDelta(t, 5.0, step.Time, 1e-9)
}

func TestPlayAtEndRestarts(t *testing.T) {
	c := New(0, NewManualTicker().Factory())
	c.SetTimeline(timeline())
	c.Seek(time.Unix(0, 0), 10)

	require.True(t, c.Play(time.Unix(0, 0)))
	assert.Equal(t, 0.0, c.Current())
	assert.Equal(t, 0, c.Index())
}

func TestTickToFollowsExternalTime(t *testing.T) {
	c := New(0, NewManualTicker().Factory())
	c.SetTimeline(timeline())
	now := time.Unix(0, 0)
	c.Play(now)

	step := c.TickTo(now.Add(time.Millisecond), 8.25)
	assert.Equal(t, 8.25, step.Time)
	assert.Equal(t, 2, step.Index)
}

func TestSetTimelineClampsCurrent(t *testing.T) {
	c := New(0, NewManualTicker().Factory())
	c.SetTimeline(timeline())
	c.Seek(time.Unix(0, 0), 9)

	shorter := storyboard.AllShots([]storyboard.Scene{{Shots: []storyboard.Shot{{ID: "x", Duration: 4}}}})
	step := c.SetTimeline(shorter)
	assert.Equal(t, 4.0, step.Time)
	assert.Equal(t, 0, step.Index)
}
