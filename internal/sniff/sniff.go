// Package sniff determines the real MIME type of an uploaded file from its
// content, never from the name the client sent.
package sniff

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/tendant/simple-mediaboard/pkg/schema"
)

const (
	mimeOctetStream = "application/octet-stream"
	mimeAudioMPEG   = "audio/mpeg"
)

// Confidence records which detector produced a Result.
type Confidence string

const (
	ConfidenceMagic Confidence = "magic"
	ConfidenceID3   Confidence = "id3"
)

// Result is a resolved MIME type and its extensions from the MIME table.
type Result struct {
	MIME       string
	Extensions []string
	Confidence Confidence
}

// Ext returns the preferred extension for the type.
func (r Result) Ext() string {
	if len(r.Extensions) == 0 {
		return ""
	}
	return r.Extensions[0]
}

// Sniffer resolves uploads against a MIME → extensions table.
type Sniffer struct {
	fs    afero.Fs
	types map[string][]string
}

func New(fs afero.Fs, types map[string][]string) *Sniffer {
	return &Sniffer{fs: fs, types: types}
}

// Detect returns the content-derived MIME type of path without consulting
// the MIME table.
func (s *Sniffer) Detect(path, clientName string) (string, Confidence, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", "", fmt.Errorf("detect: %w", err)
	}
	detected, _, _ := strings.Cut(mt.String(), ";")
	detected = strings.TrimSpace(detected)

	// MP3 files without an early frame sync come back as octet-stream.
	if detected == mimeOctetStream && clientExt(clientName) == "mp3" {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", "", fmt.Errorf("seek: %w", err)
		}
		if hasID3(f) {
			return mimeAudioMPEG, ConfidenceID3, nil
		}
	}

	return detected, ConfidenceMagic, nil
}

// Sniff detects the MIME type of path and checks it against the table.
func (s *Sniffer) Sniff(path, clientName string) (Result, error) {
	detected, confidence, err := s.Detect(path, clientName)
	if err != nil {
		return Result{}, err
	}

	exts, ok := s.types[detected]
	if !ok || len(exts) == 0 {
		return Result{}, schema.NewValidationError(schema.ErrUnsupportedMediaType, "sniff", "file mime type invalid: "+detected)
	}

	return Result{MIME: detected, Extensions: exts, Confidence: confidence}, nil
}

func hasID3(r io.ReadSeeker) bool {
	format, _, err := tag.Identify(r)
	if err != nil {
		return false
	}
	switch format {
	case tag.ID3v1, tag.ID3v2_2, tag.ID3v2_3, tag.ID3v2_4:
		return true
	}
	return false
}

func clientExt(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}
