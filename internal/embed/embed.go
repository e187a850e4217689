// Package embed turns a link to an allow-listed video host into an embedded
// artifact using the host's oEmbed endpoint.
package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/tendant/simple-mediaboard/internal/img"
	"github.com/tendant/simple-mediaboard/internal/storage"
	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// maxResponseBytes bounds both the oEmbed document and the remote thumbnail.
const maxResponseBytes = 16 << 20

// Target is an allow-listed host and the oEmbed API the link is sent to.
type Target struct {
	Host string
	API  string
}

// Endpoint returns the oEmbed request URL for rawURL.
func (t Target) Endpoint(rawURL string) string {
	return t.API + url.QueryEscape(rawURL)
}

type oEmbed struct {
	Title        string `json:"title"`
	HTML         string `json:"html"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Processor resolves embed links. It is safe for concurrent use.
type Processor struct {
	targets map[string]string
	client  *http.Client
	store   *storage.Local
	thumbs  *img.Thumbnailer
	logger  *slog.Logger
	newID   func() string
}

// New returns a Processor for the host → API template allow-list. A nil
// client uses http.DefaultClient.
func New(targets map[string]string, store *storage.Local, client *http.Client, logger *slog.Logger) *Processor {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		targets: targets,
		client:  client,
		store:   store,
		thumbs:  img.NewThumbnailer(store.Fs()),
		logger:  logger,
		newID:   newID,
	}
}

// Resolve checks rawURL's host against the allow-list without any network I/O.
func (p *Processor) Resolve(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Target{}, schema.NewValidationError(schema.ErrUnsupportedEmbedHost, "embed", "embed url invalid: "+rawURL)
	}
	api, ok := p.targets[u.Host]
	if !ok {
		return Target{}, schema.NewValidationError(schema.ErrUnsupportedEmbedHost, "embed", "embed url host unsupported: "+u.Host)
	}
	return Target{Host: u.Host, API: api}, nil
}

// Execute fetches the oEmbed document for rawURL, thumbnails its preview
// image into the store and returns the embed artifact.
func (p *Processor) Execute(ctx context.Context, rawURL string, boundW, boundH int) (schema.StoredArtifact, error) {
	target, err := p.Resolve(rawURL)
	if err != nil {
		return schema.StoredArtifact{}, err
	}
	logger := p.logger.With("host", target.Host)

	var doc oEmbed
	if err := p.fetchJSON(ctx, target.Endpoint(rawURL), &doc); err != nil {
		return schema.StoredArtifact{}, fmt.Errorf("oembed: %w", err)
	}
	if doc.ThumbnailURL == "" {
		return schema.StoredArtifact{}, errors.New("oembed: response has no thumbnail_url")
	}

	tmp, err := p.download(ctx, doc.ThumbnailURL)
	if err != nil {
		return schema.StoredArtifact{}, fmt.Errorf("embed thumbnail: %w", err)
	}
	defer func() {
		if err := p.store.Fs().Remove(tmp); err != nil {
			logger.Warn("failed to remove downloaded thumbnail", "path", tmp, "err", err)
		}
	}()

	thumb := "thumb_" + p.newID() + ".png"
	dims, err := p.thumbs.Generate(tmp, "png", p.store.Path(thumb), boundW, boundH)
	if err != nil {
		return schema.StoredArtifact{}, fmt.Errorf("embed thumbnail: %w", err)
	}
	logger.Info("embed resolved", "thumb", thumb, "width", dims.Width, "height", dims.Height)

	return schema.StoredArtifact{
		File:         doc.HTML,
		FileRendered: rawURLEncode(doc.HTML),
		FileHex:      html.EscapeString(rawURL),
		FileOriginal: html.EscapeString(doc.Title),
		ImageWidth:   dims.SourceWidth,
		ImageHeight:  dims.SourceHeight,
		Thumb:        p.store.Public(thumb),
		ThumbWidth:   dims.Width,
		ThumbHeight:  dims.Height,
		Embed:        true,
	}, nil
}

func (p *Processor) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", u, resp.StatusCode)
	}
	return resp, nil
}

func (p *Processor) fetchJSON(ctx context.Context, u string, v any) error {
	resp, err := p.get(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// download saves the body of u to a temp file on the store's filesystem and
// returns its path.
func (p *Processor) download(ctx context.Context, u string) (string, error) {
	resp, err := p.get(ctx, u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	fs := p.store.Fs()
	f, err := afero.TempFile(fs, "", "embed-thumb-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	name := f.Name()

	_, err = io.Copy(f, io.LimitReader(resp.Body, maxResponseBytes))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = fs.Remove(name)
		return "", fmt.Errorf("write temp: %w", err)
	}
	return name, nil
}

// rawURLEncode percent-encodes s per RFC 3986, spaces as %20.
func rawURLEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
