// Package upload turns a validated post attachment into a stored, stripped
// and thumbnailed artifact.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tendant/simple-mediaboard/internal/converters"
	"github.com/tendant/simple-mediaboard/internal/img"
	"github.com/tendant/simple-mediaboard/internal/sniff"
	"github.com/tendant/simple-mediaboard/internal/storage"
	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// Config holds the pipeline policy.
type Config struct {
	MIMETypes        map[string][]string
	MaxBytes         int64
	StaticPrefix     string
	SpoilerImage     string
	UnsupportedImage string
	PlaceholderSize  int
	ToolTimeout      time.Duration
}

// DefaultConfig returns the placeholder settings used by the board.
func DefaultConfig(mimeTypes map[string][]string, maxBytes int64) Config {
	return Config{
		MIMETypes:        mimeTypes,
		MaxBytes:         maxBytes,
		StaticPrefix:     "/static/",
		SpoilerImage:     "spoiler.png",
		UnsupportedImage: "swf.png",
		PlaceholderSize:  250,
		ToolTimeout:      time.Minute,
	}
}

// Pipeline validates and executes uploads. It holds no per-request state and
// is safe for concurrent use.
type Pipeline struct {
	cfg      Config
	fs       afero.Fs
	store    *storage.Local
	sniffer  *sniff.Sniffer
	stripper converters.Stripper
	thumbs   *img.Thumbnailer
	video    *img.VideoStill
	logger   *slog.Logger
	newName  func(ext string) string
}

func New(cfg Config, store *storage.Local, stripper converters.Stripper, toolkit converters.VideoToolkit, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	fs := store.Fs()
	thumbs := img.NewThumbnailer(fs)
	return &Pipeline{
		cfg:      cfg,
		fs:       fs,
		store:    store,
		sniffer:  sniff.New(fs, cfg.MIMETypes),
		stripper: stripper,
		thumbs:   thumbs,
		video:    img.NewVideoStill(toolkit, thumbs),
		logger:   logger,
		newName:  newFileName,
	}
}

// Execute stores the upload described by v and derives its thumbnail. A nil
// v yields the zero artifact. When collisions is non-empty the first match is
// reused and nothing is written. Any failure after the file has been moved
// into storage removes it again; a thumbnail already written is left behind.
// Callers that fail to persist the returned artifact remove both files.
func (p *Pipeline) Execute(ctx context.Context, file File, v *Validation, collisions []schema.StoredArtifact, spoiler bool, maxW, maxH int) (schema.StoredArtifact, error) {
	if v == nil {
		return schema.StoredArtifact{}, nil
	}

	clientName := file.ClientFilename()
	if len(collisions) > 0 {
		return reuse(collisions[0], clientName), nil
	}

	name := p.newName(v.Ext)
	logger := p.logger.With("file", name, "mime", v.MIME)

	stored, err := p.store.Adopt(v.TempPath, name)
	if err != nil {
		return schema.StoredArtifact{}, fmt.Errorf("store upload: %w", err)
	}
	logger.Info("stored upload", "path", stored, "size", v.Size)

	art := schema.StoredArtifact{
		File:              p.store.Public(name),
		FileRendered:      p.store.Public(name),
		FileHex:           v.Hash,
		FileOriginal:      clientName,
		FileSize:          v.Size,
		FileSizeFormatted: humanize.Bytes(uint64(v.Size)),
	}

	var out outcome
	if spoiler {
		out = p.spoilerOutcome(stored, logger)
	} else {
		out, err = p.process(ctx, &job{
			mime:      v.MIME,
			name:      name,
			path:      stored,
			thumbName: thumbName(name),
			boxW:      maxW,
			boxH:      maxH,
		}, logger)
		if err != nil {
			p.discard(name, logger)
			return schema.StoredArtifact{}, err
		}
	}

	art.ImageWidth, art.ImageHeight = out.imageW, out.imageH
	art.Thumb, art.ThumbWidth, art.ThumbHeight = out.thumb, out.thumbW, out.thumbH
	return art, nil
}

// reuse copies a prior artifact's stored fields. Its paths are already public.
func reuse(c schema.StoredArtifact, clientName string) schema.StoredArtifact {
	return schema.StoredArtifact{
		File:              c.File,
		FileRendered:      c.File,
		FileHex:           c.FileHex,
		FileOriginal:      clientName,
		FileSize:          c.FileSize,
		FileSizeFormatted: c.FileSizeFormatted,
		ImageWidth:        c.ImageWidth,
		ImageHeight:       c.ImageHeight,
		Thumb:             c.Thumb,
		ThumbWidth:        c.ThumbWidth,
		ThumbHeight:       c.ThumbHeight,
	}
}

func (p *Pipeline) spoilerOutcome(stored string, logger *slog.Logger) outcome {
	out := p.placeholder(p.cfg.SpoilerImage)
	w, h, err := p.thumbs.DecodeSize(stored)
	if err != nil {
		logger.Debug("spoiler: dimensions unavailable", "err", err)
		return out
	}
	out.imageW, out.imageH = w, h
	return out
}

func (p *Pipeline) placeholder(image string) outcome {
	return outcome{
		thumb:  path.Join(p.cfg.StaticPrefix, image),
		thumbW: p.cfg.PlaceholderSize,
		thumbH: p.cfg.PlaceholderSize,
	}
}

func (p *Pipeline) discard(name string, logger *slog.Logger) {
	if err := p.store.Remove(name); err != nil {
		logger.Error("remove stored upload failed", "err", err)
		return
	}
	logger.Info("removed stored upload after failure")
}

func (p *Pipeline) toolContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.ToolTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.ToolTimeout)
}

// newFileName returns a time-ordered random name. UUIDv7 keeps names sortable
// by creation time without a shared sequence.
func newFileName(ext string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String() + "." + ext
}

func thumbName(name string) string {
	return "thumb_" + name + ".png"
}
