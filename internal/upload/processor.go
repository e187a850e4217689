package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-mediaboard/internal/img"
	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// job is one stored file on its way through a media handler.
type job struct {
	mime        string
	name        string
	path        string
	thumbName   string
	stripStatus int
	boxW, boxH  int
}

// outcome is what a handler derived for the artifact.
type outcome struct {
	imageW, imageH int
	thumb          string
	thumbW, thumbH int
}

type handler func(ctx context.Context, j *job, logger *slog.Logger) (outcome, error)

func (p *Pipeline) handlerFor(mime string) (handler, bool) {
	switch mime {
	case "image/jpeg", "image/pjpeg", "image/png", "image/gif", "image/bmp", "image/webp":
		return p.processImage, true
	case "video/mp4":
		return p.processVideo(true), true
	case "video/webm":
		return p.processVideo(false), true
	case "audio/mpeg":
		return p.processAudio, true
	case "application/x-shockwave-flash":
		return p.processFlash, true
	}
	return nil, false
}

// process strips metadata from the stored file and runs the handler for its
// MIME type.
func (p *Pipeline) process(ctx context.Context, j *job, logger *slog.Logger) (outcome, error) {
	stripCtx, cancel := p.toolContext(ctx)
	j.stripStatus = p.stripper.Strip(stripCtx, j.path)
	cancel()
	logger.Debug("metadata stripped", "status", j.stripStatus)

	h, ok := p.handlerFor(j.mime)
	if !ok {
		return outcome{}, schema.NewProcessingError(schema.ErrUnsupportedStoredMediaType, "execute", "file ext type unsupported: "+j.mime, nil)
	}
	return h(ctx, j, logger)
}

func requireStripped(j *job) error {
	if j.stripStatus != 0 {
		return schema.NewProcessingError(schema.ErrMetadataStripFailed, "execute",
			fmt.Sprintf("exiftool returned an error status: %d", j.stripStatus), nil)
	}
	return nil
}

func (p *Pipeline) processImage(_ context.Context, j *job, _ *slog.Logger) (outcome, error) {
	if err := requireStripped(j); err != nil {
		return outcome{}, err
	}

	dims, err := p.thumbs.Generate(j.path, "png", p.store.Path(j.thumbName), j.boxW, j.boxH)
	if err != nil {
		return outcome{}, fmt.Errorf("generate thumbnail: %w", err)
	}
	return p.thumbOutcome(j, dims), nil
}

// processVideo handles mp4 and webm alike; only mp4 insists on a clean strip.
func (p *Pipeline) processVideo(mandatoryStrip bool) handler {
	return func(ctx context.Context, j *job, _ *slog.Logger) (outcome, error) {
		if mandatoryStrip {
			if err := requireStripped(j); err != nil {
				return outcome{}, err
			}
		}

		toolCtx, cancel := p.toolContext(ctx)
		defer cancel()

		dims, err := p.video.Render(toolCtx, j.path, p.store.Path(j.thumbName), j.boxW, j.boxH)
		if err != nil {
			return outcome{}, fmt.Errorf("video thumbnail: %w", err)
		}
		return p.thumbOutcome(j, dims), nil
	}
}

func (p *Pipeline) processAudio(_ context.Context, j *job, logger *slog.Logger) (outcome, error) {
	art, ok := img.ExtractAlbumArt(p.fs, j.path, p.store.Path("album_"+j.name))
	if !ok {
		logger.Debug("no album art")
		return outcome{}, nil
	}
	defer func() {
		if err := p.fs.Remove(art); err != nil {
			logger.Warn("remove album art failed", "path", art, "err", err)
		}
	}()

	dims, err := p.thumbs.Generate(art, "png", p.store.Path(j.thumbName), j.boxW, j.boxH)
	if err != nil {
		return outcome{}, fmt.Errorf("album art thumbnail: %w", err)
	}
	return p.thumbOutcome(j, dims), nil
}

func (p *Pipeline) processFlash(context.Context, *job, *slog.Logger) (outcome, error) {
	return p.placeholder(p.cfg.UnsupportedImage), nil
}

func (p *Pipeline) thumbOutcome(j *job, dims img.Dimensions) outcome {
	return outcome{
		imageW: dims.SourceWidth,
		imageH: dims.SourceHeight,
		thumb:  p.store.Public(j.thumbName),
		thumbW: dims.Width,
		thumbH: dims.Height,
	}
}
