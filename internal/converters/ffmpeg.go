package converters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FFmpegConverter probes and grabs frames from video files with
// ffprobe/ffmpeg.
type FFmpegConverter struct {
	runner  Runner
	ffmpeg  string
	ffprobe string
}

// NewFFmpegConverter creates a new FFmpeg-based video toolkit
func NewFFmpegConverter(runner Runner) *FFmpegConverter {
	return &FFmpegConverter{
		runner:  runner,
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
	}
}

// ProbeDuration returns the container duration reported by ffprobe.
func (f *FFmpegConverter) ProbeDuration(ctx context.Context, input string) (time.Duration, error) {
	info, err := f.Probe(ctx, input)
	if err != nil {
		return 0, err
	}
	if info.Duration <= 0 {
		return 0, fmt.Errorf("ffprobe %s: %w", input, ErrUnknownDuration)
	}
	return info.Duration, nil
}

// ExtractFrame writes the single frame at offset `at` to output.
func (f *FFmpegConverter) ExtractFrame(ctx context.Context, input string, at time.Duration, output string) error {
	// -ss before -i seeks on the demuxer, which is much faster on long files.
	args := []string{
		"-ss", formatSeconds(at),
		"-i", input,
		"-frames:v", "1",
		"-y",
		output,
	}

	res, err := f.runner.Run(ctx, f.ffmpeg, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("ffmpeg failed: exit status %d\nOutput: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

// Probe returns metadata about the video file
func (f *FFmpegConverter) Probe(ctx context.Context, input string) (*FileInfo, error) {
	res, err := f.runner.Run(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration,size",
		"-of", "default=noprint_wrappers=1",
		input,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("ffprobe failed: exit status %d\nOutput: %s", res.ExitCode, res.Stderr)
	}

	return parseProbeOutput(res.Stdout), nil
}

func parseProbeOutput(out string) *FileInfo {
	info := &FileInfo{}

	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		switch key {
		case "width":
			if w, err := strconv.Atoi(value); err == nil {
				info.Width = w
			}
		case "height":
			if h, err := strconv.Atoi(value); err == nil {
				info.Height = h
			}
		case "duration":
			if d, err := strconv.ParseFloat(value, 64); err == nil {
				info.Duration = time.Duration(d * float64(time.Second))
			}
		case "size":
			if s, err := strconv.ParseInt(value, 10, 64); err == nil {
				info.Size = s
			}
		}
	}

	return info
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
