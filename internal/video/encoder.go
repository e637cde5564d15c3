package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Encoder turns a plan into a video file.
type Encoder interface {
	Render(ctx context.Context, plan Plan, output string) error
}

// FFmpegEncoder renders through the ffmpeg concat demuxer.
type FFmpegEncoder struct {
	Codec   string // libx264, h264_nvenc, h264_videotoolbox
	Quality int
	Width   int
	Height  int
	TmpDir  string
}

func (e *FFmpegEncoder) Render(ctx context.Context, plan Plan, output string) error {
	if len(plan.Segments) == 0 {
		return fmt.Errorf("%w: empty plan", ErrNoMedia)
	}

	tmp, err := os.MkdirTemp(e.TmpDir, "shotline_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	listPath := filepath.Join(tmp, "inputs.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return err
	}
	if err := WriteConcatList(f, plan); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", e.args(plan, listPath, output)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg animatic error: %v, output: %s", err, string(out))
	}
	return nil
}

func (e *FFmpegEncoder) args(plan Plan, listPath, output string) []string {
	w, h := e.Width, e.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	codec := e.Codec
	if codec == "" {
		codec = "libx264"
	}

	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", listPath,
	}
	if plan.Audio != "" {
		args = append(args, "-i", plan.Audio)
	}

	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black", w, h, w, h)
	args = append(args,
		"-vf", filter,
		"-r", fmt.Sprintf("%g", plan.FrameRate),
		"-t", fmt.Sprintf("%f", plan.Total),
		"-map", "0:v",
	)
	if plan.Audio != "" {
		args = append(args, "-map", "1:a", "-c:a", "aac", "-shortest")
	}
	args = append(args, "-pix_fmt", "yuv420p", "-c:v", codec)
	args = append(args, qualityArgs(codec, e.Quality)...)
	return append(args, output)
}

func qualityArgs(codec string, quality int) []string {
	if quality <= 0 {
		quality = 23
	}
	switch codec {
	case "h264_videotoolbox":
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}
