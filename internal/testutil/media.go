// Package testutil builds small media fixtures for package tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

// PNG returns an encoded w×h opaque PNG.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to path on fs, creating parent directories.
func WriteFile(t testing.TB, fs afero.Fs, path string, data []byte) {
	t.Helper()

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ID3v2WithPicture returns an MP3-like payload starting with an ID3v2.3 tag
// holding a single APIC frame.
func ID3v2WithPicture(mime string, picture []byte) []byte {
	var body bytes.Buffer
	body.WriteByte(0x00) // ISO-8859-1
	body.WriteString(mime)
	body.WriteByte(0x00)
	body.WriteByte(0x03) // front cover
	body.WriteByte(0x00) // empty description
	body.Write(picture)

	var frame bytes.Buffer
	frame.WriteString("APIC")
	_ = binary.Write(&frame, binary.BigEndian, uint32(body.Len()))
	frame.Write([]byte{0x00, 0x00})
	frame.Write(body.Bytes())

	var out bytes.Buffer
	out.WriteString("ID3")
	out.Write([]byte{0x03, 0x00, 0x00})
	out.Write(syncsafe(frame.Len()))
	out.Write(frame.Bytes())
	out.Write(audioFiller())
	return out.Bytes()
}

// ID3v1Only returns opaque binary content followed by a 128-byte ID3v1 tag.
// Magic-byte sniffing classifies it as application/octet-stream.
func ID3v1Only() []byte {
	data := Opaque()
	tag := make([]byte, 128)
	copy(tag, "TAG")
	copy(tag[3:], "Untitled")
	return append(data, tag...)
}

// Opaque returns binary content with no recognisable signature.
func Opaque() []byte {
	data := make([]byte, 0, 1024)
	for i := 0; i < 1024; i++ {
		data = append(data, byte(i%7)+1, 0x00)
	}
	return data[:1024]
}

func audioFiller() []byte {
	return bytes.Repeat([]byte{0x00, 0x01, 0x02, 0x03}, 64)
}

func syncsafe(n int) []byte {
	return []byte{
		byte(n>>21) & 0x7f,
		byte(n>>14) & 0x7f,
		byte(n>>7) & 0x7f,
		byte(n) & 0x7f,
	}
}
