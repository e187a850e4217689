// Package collision persists stored artifacts and finds earlier uploads with
// the same content hash.
package collision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tendant/simple-mediaboard/pkg/schema"
)

const artifactColumns = `file, file_rendered, file_hex, file_original, file_size, file_size_formatted,
	image_width, image_height, thumb, thumb_width, thumb_height, embed`

// Repository stores artifacts in the artifacts table. Row ids are UUIDv7, so
// ordering by id is ordering by insertion.
type Repository struct {
	db    *sqlx.DB
	newID func() string
	now   func() time.Time
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, newID: newID, now: time.Now}
}

// FindByHash returns every artifact stored from a file with the given hex
// digest, oldest first. Embeds never match.
func (r *Repository) FindByHash(ctx context.Context, hash string) ([]schema.StoredArtifact, error) {
	var out []schema.StoredArtifact
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE file_hex = $1 AND embed = $2 ORDER BY id ASC`

	if err := r.db.SelectContext(ctx, &out, query, hash, false); err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return out, nil
}

// Save inserts art and returns its row id.
func (r *Repository) Save(ctx context.Context, art schema.StoredArtifact) (string, error) {
	id := r.newID()
	query := `INSERT INTO artifacts (id, ` + artifactColumns + `, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		id,
		art.File,
		art.FileRendered,
		art.FileHex,
		art.FileOriginal,
		art.FileSize,
		art.FileSizeFormatted,
		art.ImageWidth,
		art.ImageHeight,
		art.Thumb,
		art.ThumbWidth,
		art.ThumbHeight,
		art.Embed,
		r.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return id, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
