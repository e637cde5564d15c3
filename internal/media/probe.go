package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	"github.com/ivlev/shotline/internal/storyboard"
	"github.com/ivlev/shotline/internal/system"
)

// DurationFunc measures formats the MP3 decoder does not handle.
type DurationFunc func(ctx context.Context, path string) (float64, error)

// ProbeTrack builds an AudioTrack from a local file. The duration comes from
// decoding the media, never from the container's claim alone.
func ProbeTrack(ctx context.Context, path string, fallback DurationFunc) (storyboard.AudioTrack, error) {
	if !system.HasExtension(path, system.AudioExtensions) {
		return storyboard.AudioTrack{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if fallback == nil {
		fallback = system.GetAudioDuration
	}

	var (
		duration float64
		err      error
	)
	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		duration, err = mp3Duration(path)
	} else {
		duration, err = fallback(ctx, path)
	}
	if err != nil {
		return storyboard.AudioTrack{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if duration <= 0 {
		return storyboard.AudioTrack{}, fmt.Errorf("%w: empty audio stream", ErrDecode)
	}

	return storyboard.AudioTrack{
		URL:      path,
		Name:     displayName(path),
		Duration: duration,
		Volume:   1,
	}, nil
}

func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}
	return total, nil
}

// displayName prefers the title tag and falls back to the file stem.
func displayName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	f, err := os.Open(path)
	if err != nil {
		return stem
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return stem
	}
	title := strings.TrimSpace(meta.Title())
	if title == "" {
		return stem
	}
	if artist := strings.TrimSpace(meta.Artist()); artist != "" {
		return artist + " - " + title
	}
	return title
}
