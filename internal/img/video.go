package img

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/simple-mediaboard/internal/converters"
)

// VideoStill renders a thumbnail from a representative frame of a video.
type VideoStill struct {
	toolkit converters.VideoToolkit
	thumbs  *Thumbnailer
}

func NewVideoStill(toolkit converters.VideoToolkit, thumbs *Thumbnailer) *VideoStill {
	return &VideoStill{toolkit: toolkit, thumbs: thumbs}
}

// Render grabs the frame at a quarter of the duration into dstPath and then
// scales it in place. Videos without a known duration use the first frame.
// The returned source dimensions are those of the frame.
func (v *VideoStill) Render(ctx context.Context, srcPath, dstPath string, boxW, boxH int) (Dimensions, error) {
	duration, err := v.toolkit.ProbeDuration(ctx, srcPath)
	if errors.Is(err, converters.ErrUnknownDuration) {
		duration, err = 0, nil
	}
	if err != nil {
		return Dimensions{}, fmt.Errorf("probe duration: %w", err)
	}

	if err := v.toolkit.ExtractFrame(ctx, srcPath, duration/4, dstPath); err != nil {
		return Dimensions{}, fmt.Errorf("extract frame: %w", err)
	}

	return v.thumbs.Generate(dstPath, "png", dstPath, boxW, boxH)
}
