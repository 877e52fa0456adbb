package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrFFmpegMissing is returned when the ffmpeg binary cannot be found.
var ErrFFmpegMissing = errors.New("audio: ffmpeg not found")

// Runner executes ffmpeg and ffprobe.
type Runner interface {
	// FFmpeg runs ffmpeg with args and returns its combined output.
	FFmpeg(ctx context.Context, args ...string) ([]byte, error)
	// Duration returns the length of the media file at path in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}

// ExecRunner runs the real binaries.
type ExecRunner struct {
	FFmpegPath  string
	FFprobePath string
}

// NewExecRunner returns a runner for ffmpegPath. ffprobe is looked up next
// to it.
func NewExecRunner(ffmpegPath string) *ExecRunner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	probe := "ffprobe"
	if dir := filepath.Dir(ffmpegPath); dir != "." {
		probe = filepath.Join(dir, "ffprobe")
	}
	return &ExecRunner{FFmpegPath: ffmpegPath, FFprobePath: probe}
}

// Available reports whether ffmpeg can be found.
func (r *ExecRunner) Available() bool {
	_, err := exec.LookPath(r.FFmpegPath)
	return err == nil
}

func (r *ExecRunner) FFmpeg(ctx context.Context, args ...string) ([]byte, error) {
	if !r.Available() {
		return nil, ErrFFmpegMissing
	}
	cmd := exec.CommandContext(ctx, r.FFmpegPath, append([]string{"-hide_banner", "-nostdin"}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("ffmpeg: %s: %w", tail(string(out), 512), err)
	}
	return out, nil
}

func (r *ExecRunner) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: parse duration: %w", path, err)
	}
	return d, nil
}

// tail returns the last n bytes of s; ffmpeg puts the useful error last.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
