package img

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/tendant/simple-mediaboard/internal/converters"
	"github.com/tendant/simple-mediaboard/internal/testutil"
)

type fakeToolkit struct {
	fs       afero.Fs
	duration time.Duration
	probeErr error
	frameAt  time.Duration
	frame    []byte
}

func (f *fakeToolkit) ProbeDuration(context.Context, string) (time.Duration, error) {
	return f.duration, f.probeErr
}

func (f *fakeToolkit) ExtractFrame(_ context.Context, _ string, at time.Duration, output string) error {
	f.frameAt = at
	return afero.WriteFile(f.fs, output, f.frame, 0o644)
}

func TestVideoStillRender(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFile(t, fs, "/src/clip.webm", []byte("webm"))
	toolkit := &fakeToolkit{fs: fs, duration: 8 * time.Second, frame: testutil.PNG(t, 640, 360)}

	dims, err := NewVideoStill(toolkit, NewThumbnailer(fs)).Render(context.Background(), "/src/clip.webm", "/src/thumb_clip.webm.png", 250, 250)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if toolkit.frameAt != 2*time.Second {
		t.Errorf("frame extracted at %v, want 2s", toolkit.frameAt)
	}
	if dims.SourceWidth != 640 || dims.SourceHeight != 360 {
		t.Errorf("unexpected source size %dx%d", dims.SourceWidth, dims.SourceHeight)
	}
	if dims.Width != 250 || dims.Height != 140 {
		t.Errorf("unexpected thumb size %dx%d, want 250x140", dims.Width, dims.Height)
	}
}

func TestVideoStillProbeFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	toolkit := &fakeToolkit{fs: fs, probeErr: errors.New("ffprobe failed")}

	if _, err := NewVideoStill(toolkit, NewThumbnailer(fs)).Render(context.Background(), "/src/clip.webm", "/src/t.png", 250, 250); err == nil {
		t.Fatal("expected probe error")
	}
}

// streamRunner answers ffprobe like a MediaRecorder webm with no container
// duration and writes frame to ffmpeg's output path.
type streamRunner struct {
	fs     afero.Fs
	frame  []byte
	seekTo string
}

func (r *streamRunner) Run(_ context.Context, name string, args ...string) (converters.Result, error) {
	if name == "ffprobe" {
		return converters.Result{Stdout: "width=320\nheight=240\nduration=N/A\nsize=N/A\n"}, nil
	}
	r.seekTo = args[1]
	if err := afero.WriteFile(r.fs, args[len(args)-1], r.frame, 0o644); err != nil {
		return converters.Result{ExitCode: 1, Stderr: err.Error()}, nil
	}
	return converters.Result{}, nil
}

func TestVideoStillUnknownDurationUsesFirstFrame(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFile(t, fs, "/src/rec.webm", []byte("webm"))
	runner := &streamRunner{fs: fs, frame: testutil.PNG(t, 320, 240)}
	still := NewVideoStill(converters.NewFFmpegConverter(runner), NewThumbnailer(fs))

	dims, err := still.Render(context.Background(), "/src/rec.webm", "/src/thumb_rec.webm.png", 250, 250)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if runner.seekTo != "0.000" {
		t.Errorf("frame extracted at %q, want 0.000", runner.seekTo)
	}
	if dims.SourceWidth != 320 || dims.SourceHeight != 240 {
		t.Errorf("unexpected source size %dx%d", dims.SourceWidth, dims.SourceHeight)
	}
	if dims.Width != 250 || dims.Height != 187 {
		t.Errorf("unexpected thumb size %dx%d, want 250x187", dims.Width, dims.Height)
	}
}
