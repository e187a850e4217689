package upload

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/tendant/simple-mediaboard/pkg/schema"
)

// Validation is the accepted upload candidate produced by Validate.
type Validation struct {
	TempPath   string
	ClientName string
	MIME       string
	Ext        string
	Size       int64
	Hash       string
}

// Validate checks the upload slot, its real content type and size, and hashes
// it. It returns (nil, nil) for an empty slot when allowEmpty is set. Nothing
// is written to permanent storage.
func (p *Pipeline) Validate(file File, allowEmpty bool) (*Validation, error) {
	code := file.Err()
	if code == TransportNoFile && allowEmpty {
		return nil, nil
	}
	if code != TransportOK {
		return nil, schema.NewValidationError(schema.ErrUploadTransport, "validate", fmt.Sprintf("file upload error: %d", code))
	}

	tmp := file.TempPath()
	res, err := p.sniffer.Sniff(tmp, file.ClientFilename())
	if err != nil {
		return nil, err
	}

	info, err := p.fs.Stat(tmp)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	size := info.Size()
	if size > p.cfg.MaxBytes {
		return nil, schema.NewValidationError(schema.ErrPayloadTooLarge, "validate",
			fmt.Sprintf("file size exceeds limit: %d bytes > %d bytes", size, p.cfg.MaxBytes))
	}

	hash, err := p.hashFile(tmp)
	if err != nil {
		return nil, err
	}

	return &Validation{
		TempPath:   tmp,
		ClientName: file.ClientFilename(),
		MIME:       res.MIME,
		Ext:        res.Ext(),
		Size:       size,
		Hash:       hash,
	}, nil
}

// hashFile returns the hex MD5 of the whole file. It keys deduplication only.
func (p *Pipeline) hashFile(path string) (string, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash upload: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
