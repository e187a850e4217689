// Package converters wraps the external media tools used during ingestion:
// exiftool for metadata stripping and ffmpeg/ffprobe for video stills.
package converters

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownDuration is returned by ProbeDuration when the container carries
// no duration, as with streamed webm recordings.
var ErrUnknownDuration = errors.New("duration unknown")

// Stripper removes embedded metadata from a file in place. It reports the
// tool's exit status; callers decide whether a non-zero status is fatal.
type Stripper interface {
	Strip(ctx context.Context, path string) int
}

// DurationProber reports the playback duration of a media file.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// FrameExtractor writes the frame at the given offset to output as an image.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, input string, at time.Duration, output string) error
}

// VideoToolkit is the probe + frame extraction pair needed for video stills.
type VideoToolkit interface {
	DurationProber
	FrameExtractor
}

// FileInfo contains metadata about a media file
type FileInfo struct {
	Width    int           // Width in pixels (videos)
	Height   int           // Height in pixels (videos)
	Duration time.Duration // Playback duration (videos/audio)
	Size     int64         // File size in bytes
}
