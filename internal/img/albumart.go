package img

import (
	"log/slog"

	"github.com/dhowden/tag"
	"github.com/spf13/afero"
)

// ExtractAlbumArt writes the embedded cover picture of the audio file at path
// to "<prefix>.<ext>". Only JPEG and PNG pictures are extracted. The second
// return value is false when there is no usable picture or it could not be
// written; missing art is not an error.
func ExtractAlbumArt(fs afero.Fs, path, prefix string) (string, bool) {
	f, err := fs.Open(path)
	if err != nil {
		slog.Debug("album art: open failed", "path", path, "err", err)
		return "", false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return "", false
	}

	pic := m.Picture()
	if pic == nil {
		return "", false
	}

	var ext string
	switch pic.MIMEType {
	case "image/jpeg", "image/pjpeg":
		ext = "jpg"
	case "image/png":
		ext = "png"
	default:
		return "", false
	}

	out := prefix + "." + ext
	if err := afero.WriteFile(fs, out, pic.Data, 0o644); err != nil {
		slog.Warn("album art: write failed", "path", out, "err", err)
		return "", false
	}
	return out, true
}
