// Package config loads the ingest settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-mediaboard/internal/storage"
)

// DefaultMIMETypes is the accepted upload table: content MIME type to
// extensions, preferred extension first.
var DefaultMIMETypes = map[string][]string{
	"image/jpeg":                    {"jpg", "jpeg"},
	"image/pjpeg":                   {"jpg", "jpeg"},
	"image/png":                     {"png"},
	"image/gif":                     {"gif"},
	"image/bmp":                     {"bmp"},
	"image/webp":                    {"webp"},
	"video/mp4":                     {"mp4"},
	"video/webm":                    {"webm"},
	"audio/mpeg":                    {"mp3"},
	"application/x-shockwave-flash": {"swf"},
}

// DefaultEmbedTypes maps embeddable hosts to their oEmbed API template. The
// escaped link is appended to the template.
var DefaultEmbedTypes = map[string]string{
	"www.youtube.com": "https://www.youtube.com/oembed?format=json&url=",
	"youtube.com":     "https://www.youtube.com/oembed?format=json&url=",
	"youtu.be":        "https://www.youtube.com/oembed?format=json&url=",
	"vimeo.com":       "https://vimeo.com/api/oembed.json?url=",
}

type Config struct {
	SrcDir       string
	SrcPrefix    string
	StaticPrefix string
	MaxBytes     int64
	ThumbWidth   int
	ThumbHeight  int
	MIMETypes    map[string][]string
	EmbedTypes   map[string]string
	ToolTimeout  time.Duration

	DBDriver     string
	DBConnection string

	NATSURL       string
	IngestSubject string
	IngestQueue   string
	ResultSubject string
	MetricsAddr   string

	S3       storage.S3Config
	LogLevel slog.Level
}

// MirrorEnabled reports whether stored files are copied to S3.
func (c Config) MirrorEnabled() bool { return c.S3.Bucket != "" }

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		SrcDir:        getenv("SRC_DIR", "./data/src"),
		SrcPrefix:     getenv("SRC_PREFIX", "/src/"),
		StaticPrefix:  getenv("STATIC_PREFIX", "/static/"),
		MIMETypes:     DefaultMIMETypes,
		EmbedTypes:    DefaultEmbedTypes,
		DBDriver:      getenv("DB_DRIVER", "sqlite"),
		DBConnection:  getenv("DB_CONNECTION", "./data/mediaboard.db"),
		NATSURL:       getenv("NATS_URL", "nats://127.0.0.1:4222"),
		IngestSubject: getenv("INGEST_SUBJECT", "mediaboard.ingest"),
		IngestQueue:   getenv("INGEST_QUEUE", "ingest-workers"),
		ResultSubject: getenv("RESULT_SUBJECT", "mediaboard.ingest.done"),
		MetricsAddr:   getenv("METRICS_ADDR", ":9090"),
		S3: storage.S3Config{
			Region:    getenv("S3_REGION", "us-east-1"),
			Bucket:    getenv("S3_BUCKET", ""),
			AccessKey: getenv("S3_ACCESS_KEY", ""),
			SecretKey: getenv("S3_SECRET_KEY", ""),
			Endpoint:  getenv("S3_ENDPOINT", ""),
			KeyPrefix: getenv("S3_KEY_PREFIX", ""),
		},
	}

	maxBytes, err := parsePositiveInt(getenv("MAX_BYTES", "10485760"), "MAX_BYTES")
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBytes = int64(maxBytes)

	if cfg.ThumbWidth, err = parsePositiveInt(getenv("THUMB_WIDTH", "250"), "THUMB_WIDTH"); err != nil {
		return Config{}, err
	}
	if cfg.ThumbHeight, err = parsePositiveInt(getenv("THUMB_HEIGHT", "250"), "THUMB_HEIGHT"); err != nil {
		return Config{}, err
	}

	if cfg.ToolTimeout, err = time.ParseDuration(getenv("TOOL_TIMEOUT", "1m")); err != nil {
		return Config{}, fmt.Errorf("invalid TOOL_TIMEOUT: %w", err)
	}

	if v := getenv("MIME_TYPES", ""); v != "" {
		if cfg.MIMETypes, err = ParseMIMETypes(v); err != nil {
			return Config{}, fmt.Errorf("parse MIME_TYPES: %w", err)
		}
	}
	if v := getenv("EMBED_TYPES", ""); v != "" {
		if cfg.EmbedTypes, err = ParseEmbedTypes(v); err != nil {
			return Config{}, fmt.Errorf("parse EMBED_TYPES: %w", err)
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// ParseMIMETypes parses "mime=ext|ext,mime=ext".
func ParseMIMETypes(v string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, pair := range strings.Split(v, ",") {
		mime, exts, ok := strings.Cut(strings.TrimSpace(pair), "=")
		mime = strings.TrimSpace(mime)
		if !ok || mime == "" {
			return nil, fmt.Errorf("invalid entry '%s', expected 'mime=ext|ext'", pair)
		}

		var list []string
		for _, ext := range strings.Split(exts, "|") {
			if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
				list = append(list, ext)
			}
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("no extensions for '%s'", mime)
		}
		out[mime] = list
	}
	return out, nil
}

// ParseEmbedTypes parses "host=template,host=template". Templates may
// contain '=' themselves; only the first one separates.
func ParseEmbedTypes(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		host, tmpl, ok := strings.Cut(strings.TrimSpace(pair), "=")
		host, tmpl = strings.TrimSpace(host), strings.TrimSpace(tmpl)
		if !ok || host == "" || tmpl == "" {
			return nil, fmt.Errorf("invalid entry '%s', expected 'host=template'", pair)
		}
		out[host] = tmpl
	}
	return out, nil
}

// Hosts returns the embed hosts in sorted order.
func (c Config) Hosts() []string {
	hosts := make([]string, 0, len(c.EmbedTypes))
	for h := range c.EmbedTypes {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
