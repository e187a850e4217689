// Package ingest is the request-facing entry point: it runs an upload or
// embed through validation, deduplication and processing and records the
// result.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/tendant/simple-mediaboard/internal/embed"
	"github.com/tendant/simple-mediaboard/internal/metrics"
	"github.com/tendant/simple-mediaboard/internal/process"
	"github.com/tendant/simple-mediaboard/internal/storage"
	"github.com/tendant/simple-mediaboard/internal/upload"
	"github.com/tendant/simple-mediaboard/pkg/schema"
)

const (
	KindUpload = "upload"
	KindEmbed  = "embed"
)

// Artifacts persists artifacts and answers collision lookups.
type Artifacts interface {
	FindByHash(ctx context.Context, hash string) ([]schema.StoredArtifact, error)
	Save(ctx context.Context, art schema.StoredArtifact) (string, error)
}

// Notifier receives lifecycle events as they happen.
type Notifier interface {
	Notify(event schema.IngestLifecycleEvent)
}

type Service struct {
	pipeline   *upload.Pipeline
	embeds     *embed.Processor
	store      *storage.Local
	artifacts  Artifacts
	mirror     storage.Mirror
	notifier   Notifier
	observer   metrics.Observer
	boxW, boxH int
	logger     *slog.Logger
}

type Option func(*Service)

// WithMirror copies newly stored files and thumbnails to m.
func WithMirror(m storage.Mirror) Option { return func(s *Service) { s.mirror = m } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithObserver(o metrics.Observer) Option { return func(s *Service) { s.observer = o } }

func New(pipeline *upload.Pipeline, embeds *embed.Processor, store *storage.Local, artifacts Artifacts, boxW, boxH int, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		pipeline:  pipeline,
		embeds:    embeds,
		store:     store,
		artifacts: artifacts,
		observer:  metrics.Nop(),
		boxW:      boxW,
		boxH:      boxH,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadRequest is one file slot of a post.
type UploadRequest struct {
	ID         string
	File       upload.File
	Spoiler    bool
	AllowEmpty bool
}

// Result is the outcome of a finished request. Job holds its lifecycle.
type Result struct {
	Artifact schema.StoredArtifact
	Reused   bool
	Job      *process.Job
}

// Upload validates, deduplicates and stores the file in req. An empty slot
// accepted through AllowEmpty yields the zero artifact.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (Result, error) {
	job := process.NewJob(KindUpload, req.ID)
	logger := s.logger.With("job_id", req.ID, "kind", KindUpload)
	start := time.Now()

	res, size, err := s.upload(ctx, job, req, logger)
	s.observer.RecordIngest(KindUpload, time.Since(start), size, res.Reused, err)
	if err != nil {
		s.notify(job.Fail(err))
		logger.Warn("upload failed", "err", err, "failure_type", job.FailureType)
		return Result{Job: job}, err
	}

	s.notify(job.Succeed())
	logger.Info("upload completed", "file", res.Artifact.File, "reused", res.Reused, "processing_time_ms", job.Duration())
	res.Job = job
	return res, nil
}

func (s *Service) upload(ctx context.Context, job *process.Job, req UploadRequest, logger *slog.Logger) (Result, int64, error) {
	s.notify(job.Enter(schema.StageValidation))
	v, err := s.pipeline.Validate(req.File, req.AllowEmpty)
	if err != nil {
		return Result{}, 0, err
	}
	if v == nil {
		logger.Debug("empty file slot")
		return Result{}, 0, nil
	}

	s.notify(job.Enter(schema.StageCollision))
	matches, err := s.artifacts.FindByHash(ctx, v.Hash)
	if err != nil {
		return Result{}, 0, fmt.Errorf("collision lookup: %w", err)
	}
	reused := len(matches) > 0
	if reused {
		logger.Info("reusing stored file", "hash", v.Hash, "file", matches[0].File, "matches", len(matches))
	}

	s.notify(job.Enter(schema.StageProcessing))
	art, err := s.pipeline.Execute(ctx, req.File, v, matches, req.Spoiler, s.boxW, s.boxH)
	if err != nil {
		return Result{}, 0, err
	}

	if _, err := s.artifacts.Save(ctx, art); err != nil {
		// A reused artifact's files belong to the earlier row.
		if !reused {
			s.discard(art.File, logger)
			s.discard(art.Thumb, logger)
		}
		return Result{}, 0, fmt.Errorf("save artifact: %w", err)
	}
	if !reused {
		s.mirrorFile(ctx, art.File, v.MIME, logger)
		s.mirrorFile(ctx, art.Thumb, "image/png", logger)
	}
	return Result{Artifact: art, Reused: reused}, v.Size, nil
}

// Embed resolves rawURL through the embed allow-list and stores its thumbnail.
func (s *Service) Embed(ctx context.Context, id, rawURL string) (Result, error) {
	job := process.NewJob(KindEmbed, id)
	logger := s.logger.With("job_id", id, "kind", KindEmbed)
	start := time.Now()

	art, err := s.embed(ctx, job, rawURL, logger)
	s.observer.RecordIngest(KindEmbed, time.Since(start), 0, false, err)
	if err != nil {
		s.notify(job.Fail(err))
		logger.Warn("embed failed", "err", err, "failure_type", job.FailureType)
		return Result{Job: job}, err
	}

	s.notify(job.Succeed())
	logger.Info("embed completed", "thumb", art.Thumb, "processing_time_ms", job.Duration())
	return Result{Artifact: art, Job: job}, nil
}

func (s *Service) embed(ctx context.Context, job *process.Job, rawURL string, logger *slog.Logger) (schema.StoredArtifact, error) {
	s.notify(job.Enter(schema.StageValidation))
	if _, err := s.embeds.Resolve(rawURL); err != nil {
		return schema.StoredArtifact{}, err
	}

	s.notify(job.Enter(schema.StageProcessing))
	art, err := s.embeds.Execute(ctx, rawURL, s.boxW, s.boxH)
	if err != nil {
		return schema.StoredArtifact{}, err
	}
	if _, err := s.artifacts.Save(ctx, art); err != nil {
		s.discard(art.Thumb, logger)
		return schema.StoredArtifact{}, fmt.Errorf("save artifact: %w", err)
	}
	s.mirrorFile(ctx, art.Thumb, "image/png", logger)
	return art, nil
}

// Handle runs a bus request and returns its result event. Requests with an
// EmbedURL are embeds; the rest are uploads of the file at Path.
func (s *Service) Handle(ctx context.Context, req schema.IngestRequest) schema.IngestDone {
	var (
		res Result
		err error
	)

	if req.EmbedURL != "" {
		res, err = s.Embed(ctx, req.ID, req.EmbedURL)
	} else {
		file := upload.EmptySlot()
		if req.Path != "" {
			name := req.Filename
			if name == "" {
				name = path.Base(req.Path)
			}
			file = upload.NewTempFile(req.Path, name)
		}
		res, err = s.Upload(ctx, UploadRequest{ID: req.ID, File: file, Spoiler: req.Spoiler, AllowEmpty: req.AllowEmpty})
	}

	var art *schema.StoredArtifact
	if err == nil && !res.Artifact.IsZero() {
		art = &res.Artifact
	}
	return res.Job.Done(art, res.Reused)
}

// mirrorFile copies a stored file to the mirror. Placeholders and empty paths
// are skipped; failures are logged since the local copy is authoritative.
func (s *Service) mirrorFile(ctx context.Context, public, contentType string, logger *slog.Logger) {
	if s.mirror == nil {
		return
	}
	name, ok := s.stored(public)
	if !ok {
		return
	}
	if err := s.mirror.Put(ctx, public, s.store.Path(name), contentType); err != nil {
		logger.Error("mirror upload failed", "file", public, "err", err)
	}
}

// discard removes a file written for an artifact that was never saved.
func (s *Service) discard(public string, logger *slog.Logger) {
	name, ok := s.stored(public)
	if !ok {
		return
	}
	if err := s.store.Remove(name); err != nil {
		logger.Warn("failed to remove unsaved file", "file", public, "err", err)
	}
}

// stored maps a public path back to its store name. Placeholders and embed
// markup live outside the store and report false.
func (s *Service) stored(public string) (string, bool) {
	if public == "" {
		return "", false
	}
	name := path.Base(public)
	return name, s.store.Public(name) == public
}

func (s *Service) notify(event schema.IngestLifecycleEvent) {
	if s.notifier != nil {
		s.notifier.Notify(event)
	}
}
