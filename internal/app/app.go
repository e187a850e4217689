// Package app wires the ingest service from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/afero"

	"github.com/tendant/simple-mediaboard/internal/collision"
	"github.com/tendant/simple-mediaboard/internal/config"
	"github.com/tendant/simple-mediaboard/internal/converters"
	"github.com/tendant/simple-mediaboard/internal/embed"
	"github.com/tendant/simple-mediaboard/internal/ingest"
	"github.com/tendant/simple-mediaboard/internal/metrics"
	"github.com/tendant/simple-mediaboard/internal/storage"
	"github.com/tendant/simple-mediaboard/internal/upload"
)

type App struct {
	Cfg      config.Config
	DB       *sqlx.DB
	Fs       afero.Fs
	Store    *storage.Local
	Runner   converters.Runner
	FFmpeg   *converters.FFmpegConverter
	Pipeline *upload.Pipeline
	Embeds   *embed.Processor
	Service  *ingest.Service
}

// NewLogger returns the text logger used by the commands.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// New opens the database, applies migrations and builds the service. The
// observer and opts are passed through to the service.
func New(ctx context.Context, cfg config.Config, observer metrics.Observer, logger *slog.Logger, opts ...ingest.Option) (*App, error) {
	db, err := collision.Open(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := collision.Migrate(db.DB, cfg.DBDriver); err != nil {
		_ = collision.Close(db)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	fs := afero.NewOsFs()
	store := storage.NewLocal(fs, cfg.SrcDir, cfg.SrcPrefix)

	runner := converters.NewExecRunner(logger)
	ffmpeg := converters.NewFFmpegConverter(runner)
	var stripper converters.Stripper = converters.NewExifTool(runner, logger)
	if observer != nil {
		stripper = metrics.InstrumentStripper(stripper, observer)
		opts = append(opts, ingest.WithObserver(observer))
	}

	pcfg := upload.DefaultConfig(cfg.MIMETypes, cfg.MaxBytes)
	pcfg.StaticPrefix = cfg.StaticPrefix
	pcfg.ToolTimeout = cfg.ToolTimeout
	pipeline := upload.New(pcfg, store, stripper, ffmpeg, logger)

	client := &http.Client{Timeout: 30 * time.Second}
	embeds := embed.New(cfg.EmbedTypes, store, client, logger)

	if cfg.MirrorEnabled() {
		mirror, err := storage.NewS3Mirror(ctx, fs, cfg.S3)
		if err != nil {
			_ = collision.Close(db)
			return nil, fmt.Errorf("failed to initialize s3 mirror: %w", err)
		}
		opts = append(opts, ingest.WithMirror(mirror))
		logger.Info("s3 mirror enabled", "bucket", cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
	}

	svc := ingest.New(pipeline, embeds, store, collision.NewRepository(db), cfg.ThumbWidth, cfg.ThumbHeight, logger, opts...)

	return &App{
		Cfg:      cfg,
		DB:       db,
		Fs:       fs,
		Store:    store,
		Runner:   runner,
		FFmpeg:   ffmpeg,
		Pipeline: pipeline,
		Embeds:   embeds,
		Service:  svc,
	}, nil
}

func (a *App) Close() error {
	return collision.Close(a.DB)
}
