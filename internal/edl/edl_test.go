package edl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotline/internal/storyboard"
)

func sample() storyboard.Project {
	return storyboard.Project{
		Title:     "Night Shift",
		FrameRate: 24,
		Scenes: []storyboard.Scene{
			{Shots: []storyboard.Shot{
				{Media: "boards/p001.png", Duration: 3},
				{Description: "Close on the\ncoffee cup", Duration: 5.5},
			}},
			{Shots: []storyboard.Shot{{Duration: 2}}},
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Options{}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "TITLE: Night Shift", lines[0])
	assert.Equal(t, "FCM: NON-DROP FRAME", lines[1])
	assert.Equal(t, "", lines[2])

	var events [][]string
	var clips []string
	for _, l := range lines[3:] {
		switch {
		case strings.HasPrefix(l, "* FROM CLIP NAME: "):
			clips = append(clips, strings.TrimPrefix(l, "* FROM CLIP NAME: "))
		case l != "":
			events = append(events, strings.Fields(l))
		}
	}

	require.Len(t, events, 3)
	assert.Equal(t, []string{"001", "AX", "V", "C", "00:00:00:00", "00:00:03:00", "00:00:00:00", "00:00:03:00"}, events[0])
	assert.Equal(t, []string{"002", "AX", "V", "C", "00:00:00:00", "00:00:05:12", "00:00:03:00", "00:00:08:12"}, events[1])
	assert.Equal(t, []string{"003", "AX", "V", "C", "00:00:00:00", "00:00:02:00", "00:00:08:12", "00:00:10:12"}, events[2])

	assert.Equal(t, []string{"p001.png", "Close on the coffee cup", "SCENE 2 SHOT 1"}, clips)
}

func TestWriteOptionsOverride(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), Options{Title: "CUT 2", FrameRate: 25, Reel: "B001", Track: "V1"}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "TITLE: CUT 2\n"))
	assert.Contains(t, out, "002  B001     V1    C        00:00:00:00 00:00:05:12 00:00:03:00 00:00:08:12")
}

func TestWriteEmptyProject(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, storyboard.Project{}, Options{}))
	assert.Equal(t, "TITLE: UNTITLED\nFCM: NON-DROP FRAME\n\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "cut.edl")
	require.NoError(t, WriteFile(path, sample(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "003  AX")
}
