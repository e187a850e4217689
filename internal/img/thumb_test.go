package img

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/tendant/simple-mediaboard/internal/testutil"
)

func TestGenerateThumbnailCreatesOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFile(t, fs, "/src/source.png", testutil.PNG(t, 500, 1000))

	dims, err := NewThumbnailer(fs).Generate("/src/source.png", "png", "/src/nested/thumb.png", 250, 250)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if dims.SourceWidth != 500 || dims.SourceHeight != 1000 {
		t.Fatalf("unexpected source size: %dx%d", dims.SourceWidth, dims.SourceHeight)
	}
	if dims.Width != 125 || dims.Height != 250 {
		t.Fatalf("unexpected thumbnail size: got %dx%d, want 125x250", dims.Width, dims.Height)
	}

	w, h, err := NewThumbnailer(fs).DecodeSize("/src/nested/thumb.png")
	if err != nil {
		t.Fatalf("thumbnail not readable: %v", err)
	}
	if w != 125 || h != 250 {
		t.Fatalf("written thumbnail is %dx%d, want 125x250", w, h)
	}
}

func TestGenerateThumbnailInPlace(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFile(t, fs, "/src/frame.png", testutil.PNG(t, 400, 200))

	dims, err := NewThumbnailer(fs).Generate("/src/frame.png", "png", "/src/frame.png", 100, 100)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if dims.Width != 100 || dims.Height != 50 {
		t.Fatalf("unexpected thumbnail size: got %dx%d, want 100x50", dims.Width, dims.Height)
	}
}

func TestGenerateThumbnailMissingSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := NewThumbnailer(fs).Generate("/src/missing.png", "png", "/src/thumb.png", 10, 10)
	if err == nil {
		t.Fatalf("expected error for missing source image")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateThumbnailUnknownFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFile(t, fs, "/src/source.png", testutil.PNG(t, 10, 10))

	if _, err := NewThumbnailer(fs).Generate("/src/source.png", "xyz", "/src/thumb.xyz", 10, 10); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		boxW, boxH   int
		wantW, wantH int
	}{
		{"portrait", 500, 1000, 250, 250, 125, 250},
		{"landscape", 1000, 500, 250, 250, 250, 125},
		{"square", 800, 800, 250, 250, 250, 250},
		{"floors", 1000, 333, 250, 250, 250, 83},
		{"no upscale", 100, 50, 250, 250, 100, 50},
		{"exact fit", 250, 100, 250, 250, 250, 100},
		{"extreme ratio keeps 1px", 10000, 10, 250, 250, 250, 1},
		{"invalid source", 0, 10, 250, 250, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitDimensions(tt.w, tt.h, tt.boxW, tt.boxH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("FitDimensions(%d,%d) = %dx%d, want %dx%d", tt.w, tt.h, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFitDimensionsPreservesAspect(t *testing.T) {
	const box = 250
	for w := 1; w <= 3000; w += 137 {
		for h := 1; h <= 3000; h += 211 {
			tw, th := FitDimensions(w, h, box, box)
			if tw > box || th > box {
				t.Fatalf("%dx%d -> %dx%d exceeds box", w, h, tw, th)
			}
			if w > box || h > box {
				if max(tw, th) != box {
					t.Fatalf("%dx%d -> %dx%d: larger side should equal %d", w, h, tw, th, box)
				}
			}
			// the unconstrained side is floored, so it may be one pixel short
			switch {
			case tw == box && th != box:
				if exact := float64(h) * float64(tw) / float64(w); exact-float64(th) >= 1 && th != 1 {
					t.Fatalf("%dx%d -> %dx%d breaks aspect ratio", w, h, tw, th)
				}
			case th == box && tw != box:
				if exact := float64(w) * float64(th) / float64(h); exact-float64(tw) >= 1 && tw != 1 {
					t.Fatalf("%dx%d -> %dx%d breaks aspect ratio", w, h, tw, th)
				}
			}
		}
	}
}
