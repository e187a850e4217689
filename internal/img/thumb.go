// internal/img/thumb.go
package img

import (
	"fmt"
	"image"
	"path/filepath"

	// Registers image.Decode support beyond what imaging ships with.
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
)

// Dimensions reports the decoded source size and the size of the written
// thumbnail.
type Dimensions struct {
	SourceWidth  int
	SourceHeight int
	Width        int
	Height       int
}

// Thumbnailer derives bounded thumbnails from images stored on fs.
type Thumbnailer struct {
	fs afero.Fs
}

func NewThumbnailer(fs afero.Fs) *Thumbnailer {
	return &Thumbnailer{fs: fs}
}

// FitDimensions scales w×h uniformly so that it fits inside boxW×boxH. The
// scale never exceeds 1; the constrained side lands exactly on the box and the
// other side is floored, with a 1px minimum.
func FitDimensions(w, h, boxW, boxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= boxW && h <= boxH {
		return w, h
	}
	// boxW/w <= boxH/h, compared without division
	if boxW*h <= boxH*w {
		return boxW, max(h*boxW/w, 1)
	}
	return max(w*boxH/h, 1), boxH
}

// Generate loads the image at srcPath, scales it to fit boxW×boxH and writes
// it to dstPath encoded as format ("png", "jpg", ...). srcPath and dstPath may
// be the same file.
func (t *Thumbnailer) Generate(srcPath, format, dstPath string, boxW, boxH int) (Dimensions, error) {
	enc, err := imaging.FormatFromExtension(format)
	if err != nil {
		return Dimensions{}, fmt.Errorf("format: %w", err)
	}

	src, err := t.open(srcPath)
	if err != nil {
		return Dimensions{}, err
	}

	b := src.Bounds()
	dims := Dimensions{SourceWidth: b.Dx(), SourceHeight: b.Dy()}
	dims.Width, dims.Height = FitDimensions(dims.SourceWidth, dims.SourceHeight, boxW, boxH)

	thumb := src
	if dims.Width != dims.SourceWidth || dims.Height != dims.SourceHeight {
		thumb = imaging.Resize(src, dims.Width, dims.Height, imaging.Lanczos)
	}

	if err := t.fs.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return Dimensions{}, fmt.Errorf("mkdir: %w", err)
	}

	out, err := t.fs.Create(dstPath)
	if err != nil {
		return Dimensions{}, fmt.Errorf("create: %w", err)
	}
	if err := imaging.Encode(out, thumb, enc); err != nil {
		_ = out.Close()
		return Dimensions{}, fmt.Errorf("save: %w", err)
	}
	if err := out.Close(); err != nil {
		return Dimensions{}, fmt.Errorf("save: %w", err)
	}

	return dims, nil
}

// DecodeSize reads only the image header of path.
func (t *Thumbnailer) DecodeSize(path string) (int, int, error) {
	f, err := t.fs.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func (t *Thumbnailer) open(path string) (image.Image, error) {
	f, err := t.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	src, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return src, nil
}
