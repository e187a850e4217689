package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-mediaboard/internal/collision"
	"github.com/tendant/simple-mediaboard/internal/config"
	"github.com/tendant/simple-mediaboard/internal/embed"
	"github.com/tendant/simple-mediaboard/internal/storage"
	"github.com/tendant/simple-mediaboard/internal/testutil"
	"github.com/tendant/simple-mediaboard/internal/upload"
	"github.com/tendant/simple-mediaboard/pkg/schema"
)

type countingStripper struct{ calls int }

func (s *countingStripper) Strip(context.Context, string) int {
	s.calls++
	return 0
}

type noVideo struct{}

func (noVideo) ProbeDuration(context.Context, string) (time.Duration, error) {
	return 0, errors.New("no video in this test")
}

func (noVideo) ExtractFrame(context.Context, string, time.Duration, string) error {
	return errors.New("no video in this test")
}

type memArtifacts struct {
	saved   []schema.StoredArtifact
	err     error
	saveErr error
}

func (m *memArtifacts) FindByHash(_ context.Context, hash string) ([]schema.StoredArtifact, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []schema.StoredArtifact
	for _, a := range m.saved {
		if a.FileHex == hash && !a.Embed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memArtifacts) Save(_ context.Context, art schema.StoredArtifact) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = append(m.saved, art)
	return "id", nil
}

type recordingNotifier struct{ stages []schema.ProcessingStage }

func (r *recordingNotifier) Notify(e schema.IngestLifecycleEvent) { r.stages = append(r.stages, e.Stage) }

type putCall struct{ key, local, contentType string }

type fakeMirror struct {
	mu    sync.Mutex
	calls []putCall
}

func (f *fakeMirror) Put(_ context.Context, key, local, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{key, local, contentType})
	return nil
}

type fixture struct {
	fs        afero.Fs
	store     *storage.Local
	stripper  *countingStripper
	artifacts Artifacts
	notifier  *recordingNotifier
	mirror    *fakeMirror
	svc       *Service
}

func newFixture(t *testing.T, artifacts Artifacts, embedTargets map[string]string, client *http.Client) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	store := storage.NewLocal(fs, "/data/src", "/src/")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stripper := &countingStripper{}

	pipeline := upload.New(upload.DefaultConfig(config.DefaultMIMETypes, 1<<20), store, stripper, noVideo{}, logger)
	embeds := embed.New(embedTargets, store, client, logger)

	f := &fixture{
		fs:        fs,
		store:     store,
		stripper:  stripper,
		artifacts: artifacts,
		notifier:  &recordingNotifier{},
		mirror:    &fakeMirror{},
	}
	f.svc = New(pipeline, embeds, store, artifacts, 250, 250, logger,
		WithNotifier(f.notifier), WithMirror(f.mirror))
	return f
}

func (f *fixture) tempUpload(t *testing.T, tmp string, data []byte) {
	t.Helper()
	testutil.WriteFile(t, f.fs, tmp, data)
}

func TestUploadStoresNewFile(t *testing.T) {
	f := newFixture(t, &memArtifacts{}, nil, nil)
	f.tempUpload(t, "/tmp/upload-1", testutil.PNG(t, 500, 1000))

	res, err := f.svc.Upload(context.Background(), UploadRequest{ID: "job-1", File: upload.NewTempFile("/tmp/upload-1", "tall.png")})
	require.NoError(t, err)

	assert.False(t, res.Reused)
	assert.Equal(t, 125, res.Artifact.ThumbWidth)
	assert.Equal(t, 250, res.Artifact.ThumbHeight)
	assert.Equal(t, "tall.png", res.Artifact.FileOriginal)
	assert.Equal(t, []schema.ProcessingStage{
		schema.StageValidation, schema.StageCollision, schema.StageProcessing, schema.StageCompleted,
	}, f.notifier.stages)

	require.Len(t, f.mirror.calls, 2)
	assert.Equal(t, res.Artifact.File, f.mirror.calls[0].key)
	assert.Equal(t, "image/png", f.mirror.calls[0].contentType)
	assert.Equal(t, res.Artifact.Thumb, f.mirror.calls[1].key)
	assert.Equal(t, filepath.Join("/data/src", filepath.Base(res.Artifact.Thumb)), f.mirror.calls[1].local)
}

func TestUploadReusesCollision(t *testing.T) {
	f := newFixture(t, &memArtifacts{}, nil, nil)
	data := testutil.PNG(t, 300, 300)
	ctx := context.Background()

	f.tempUpload(t, "/tmp/upload-1", data)
	first, err := f.svc.Upload(ctx, UploadRequest{ID: "job-1", File: upload.NewTempFile("/tmp/upload-1", "one.png")})
	require.NoError(t, err)

	f.tempUpload(t, "/tmp/upload-2", data)
	second, err := f.svc.Upload(ctx, UploadRequest{ID: "job-2", File: upload.NewTempFile("/tmp/upload-2", "two.png")})
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Equal(t, first.Artifact.File, second.Artifact.File)
	assert.Equal(t, first.Artifact.Thumb, second.Artifact.Thumb)
	assert.Equal(t, "two.png", second.Artifact.FileOriginal)
	assert.Equal(t, 1, f.stripper.calls)
	assert.Len(t, f.mirror.calls, 2, "reused files are not mirrored again")

	entries, err := afero.ReadDir(f.fs, "/data/src")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only one stored file and one thumbnail")
}

func TestUploadWithCollisionRepository(t *testing.T) {
	db, err := collision.Open("sqlite", filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = collision.Close(db) })
	require.NoError(t, collision.Migrate(db.DB, "sqlite"))

	f := newFixture(t, collision.NewRepository(db), nil, nil)
	data := testutil.PNG(t, 64, 32)
	ctx := context.Background()

	for i, name := range []string{"a.png", "b.png", "c.png"} {
		tmp := filepath.Join("/tmp", name)
		f.tempUpload(t, tmp, data)
		res, err := f.svc.Upload(ctx, UploadRequest{ID: name, File: upload.NewTempFile(tmp, name)})
		require.NoError(t, err)
		assert.Equal(t, i > 0, res.Reused, name)
		assert.Equal(t, 64, res.Artifact.ThumbWidth)
	}
	assert.Equal(t, 1, f.stripper.calls)
}

func TestUploadValidationFailure(t *testing.T) {
	f := newFixture(t, &memArtifacts{}, nil, nil)
	f.tempUpload(t, "/tmp/upload-1", []byte("plain text is not accepted"))

	res, err := f.svc.Upload(context.Background(), UploadRequest{ID: "job-1", File: upload.NewTempFile("/tmp/upload-1", "notes.png")})
	require.ErrorIs(t, err, schema.ErrUnsupportedMediaType)
	require.NotNil(t, res.Job)
	assert.Equal(t, schema.FailureTypeValidation, res.Job.FailureType)
	assert.Equal(t, []schema.ProcessingStage{schema.StageValidation, schema.StageFailed}, f.notifier.stages)
	assert.Empty(t, f.mirror.calls)
}

func TestUploadLookupFailure(t *testing.T) {
	f := newFixture(t, &memArtifacts{err: errors.New("database is locked")}, nil, nil)
	f.tempUpload(t, "/tmp/upload-1", testutil.PNG(t, 10, 10))

	res, err := f.svc.Upload(context.Background(), UploadRequest{ID: "job-1", File: upload.NewTempFile("/tmp/upload-1", "a.png")})
	require.Error(t, err)
	assert.Equal(t, schema.FailureTypeRetryable, res.Job.FailureType)
	assert.Zero(t, f.stripper.calls)
}

func TestUploadSaveFailureRemovesStoredFiles(t *testing.T) {
	f := newFixture(t, &memArtifacts{saveErr: errors.New("db down")}, nil, nil)
	f.tempUpload(t, "/tmp/upload-1", testutil.PNG(t, 500, 1000))

	res, err := f.svc.Upload(context.Background(), UploadRequest{ID: "job-1", File: upload.NewTempFile("/tmp/upload-1", "tall.png")})
	require.Error(t, err)
	assert.Equal(t, schema.FailureTypeRetryable, res.Job.FailureType)
	assert.Empty(t, f.mirror.calls)

	entries, err := afero.ReadDir(f.fs, "/data/src")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadSaveFailureKeepsReusedFiles(t *testing.T) {
	arts := &memArtifacts{}
	f := newFixture(t, arts, nil, nil)
	data := testutil.PNG(t, 300, 300)
	ctx := context.Background()

	f.tempUpload(t, "/tmp/upload-1", data)
	_, err := f.svc.Upload(ctx, UploadRequest{ID: "job-1", File: upload.NewTempFile("/tmp/upload-1", "one.png")})
	require.NoError(t, err)

	arts.saveErr = errors.New("db down")
	f.tempUpload(t, "/tmp/upload-2", data)
	_, err = f.svc.Upload(ctx, UploadRequest{ID: "job-2", File: upload.NewTempFile("/tmp/upload-2", "two.png")})
	require.Error(t, err)

	entries, err := afero.ReadDir(f.fs, "/data/src")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "the earlier artifact's files stay")
}

func TestUploadEmptySlot(t *testing.T) {
	arts := &memArtifacts{}
	f := newFixture(t, arts, nil, nil)

	res, err := f.svc.Upload(context.Background(), UploadRequest{ID: "job-1", File: upload.EmptySlot(), AllowEmpty: true})
	require.NoError(t, err)
	assert.True(t, res.Artifact.IsZero())
	assert.Empty(t, arts.saved)
}

func newOEmbed(t *testing.T) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oembed":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"title":         "A video",
				"html":          "<iframe></iframe>",
				"thumbnail_url": srv.URL + "/thumb",
			})
		case "/thumb":
			_, _ = w.Write(testutil.PNG(t, 480, 360))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleEmbed(t *testing.T) {
	srv := newOEmbed(t)
	arts := &memArtifacts{}
	f := newFixture(t, arts, map[string]string{"www.youtube.com": srv.URL + "/oembed?url="}, srv.Client())

	done := f.svc.Handle(context.Background(), schema.IngestRequest{ID: "job-9", EmbedURL: "https://www.youtube.com/watch?v=abc"})

	require.Empty(t, done.Error)
	require.NotNil(t, done.Artifact)
	assert.Equal(t, KindEmbed, done.Kind)
	assert.True(t, done.Artifact.Embed)
	assert.Equal(t, "A video", done.Artifact.FileOriginal)
	assert.Len(t, arts.saved, 1)
	assert.Len(t, done.Lifecycle, 3)
	require.Len(t, f.mirror.calls, 1)
	assert.Equal(t, done.Artifact.Thumb, f.mirror.calls[0].key)
}

func TestEmbedSaveFailureRemovesThumbnail(t *testing.T) {
	srv := newOEmbed(t)
	f := newFixture(t, &memArtifacts{saveErr: errors.New("db down")}, map[string]string{"www.youtube.com": srv.URL + "/oembed?url="}, srv.Client())

	_, err := f.svc.Embed(context.Background(), "job-12", "https://www.youtube.com/watch?v=abc")
	require.Error(t, err)

	entries, err := afero.ReadDir(f.fs, "/data/src")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleEmbedDisallowedHost(t *testing.T) {
	f := newFixture(t, &memArtifacts{}, map[string]string{}, nil)

	done := f.svc.Handle(context.Background(), schema.IngestRequest{ID: "job-10", EmbedURL: "https://evil.example/x"})

	assert.Nil(t, done.Artifact)
	assert.Contains(t, done.Error, "embed url host unsupported")
	assert.Equal(t, schema.FailureTypeValidation, done.FailureType)
}

func TestHandleUpload(t *testing.T) {
	f := newFixture(t, &memArtifacts{}, nil, nil)
	f.tempUpload(t, "/incoming/cat.png", testutil.PNG(t, 40, 40))

	done := f.svc.Handle(context.Background(), schema.IngestRequest{ID: "job-11", Path: "/incoming/cat.png"})

	require.Empty(t, done.Error)
	require.NotNil(t, done.Artifact)
	assert.Equal(t, KindUpload, done.Kind)
	assert.Equal(t, "cat.png", done.Artifact.FileOriginal)
	assert.Equal(t, 40, done.Artifact.ThumbWidth)
}
