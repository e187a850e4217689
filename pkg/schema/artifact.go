// pkg/schema/artifact.go
package schema

// StoredArtifact describes a file (or embed) attached to a post. Paths are
// public paths, already prefixed with the directory they are served from.
type StoredArtifact struct {
	File              string `json:"file" db:"file"`
	FileRendered      string `json:"file_rendered" db:"file_rendered"`
	FileHex           string `json:"file_hex" db:"file_hex"`
	FileOriginal      string `json:"file_original" db:"file_original"`
	FileSize          int64  `json:"file_size" db:"file_size"`
	FileSizeFormatted string `json:"file_size_formatted" db:"file_size_formatted"`
	ImageWidth        int    `json:"image_width" db:"image_width"`
	ImageHeight       int    `json:"image_height" db:"image_height"`
	Thumb             string `json:"thumb" db:"thumb"`
	ThumbWidth        int    `json:"thumb_width" db:"thumb_width"`
	ThumbHeight       int    `json:"thumb_height" db:"thumb_height"`
	Embed             bool   `json:"embed" db:"embed"`
}

// IsZero reports whether the artifact represents "no file attached".
func (a StoredArtifact) IsZero() bool {
	return a == StoredArtifact{}
}
