// Package storage owns the permanent location of stored files.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// Local stores files in a single directory on fs and serves them under a
// public prefix (for example "/src/").
type Local struct {
	fs     afero.Fs
	dir    string
	prefix string
}

func NewLocal(fs afero.Fs, dir, publicPrefix string) *Local {
	return &Local{fs: fs, dir: dir, prefix: publicPrefix}
}

// Fs returns the filesystem the store writes to.
func (l *Local) Fs() afero.Fs { return l.fs }

// Path returns the filesystem path of name.
func (l *Local) Path(name string) string {
	return filepath.Join(l.dir, name)
}

// Public returns the path name is served under.
func (l *Local) Public(name string) string {
	return path.Join(l.prefix, name)
}

// Adopt moves the file at src into the store as name. After a successful
// call the caller no longer owns src.
func (l *Local) Adopt(src, name string) (string, error) {
	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	dst := l.Path(name)
	if _, err := l.fs.Stat(dst); err == nil {
		return "", fmt.Errorf("adopt %s: %w", name, os.ErrExist)
	}

	if err := l.fs.Rename(src, dst); err != nil {
		// Rename fails across devices, e.g. a tmpfs upload dir.
		if cerr := l.copyFile(src, dst); cerr != nil {
			return "", fmt.Errorf("move %s: %w", name, errors.Join(err, cerr))
		}
		_ = l.fs.Remove(src)
	}
	return dst, nil
}

// Remove deletes name from the store. Missing files are not an error.
func (l *Local) Remove(name string) error {
	err := l.fs.Remove(l.Path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Exists reports whether name is present in the store.
func (l *Local) Exists(name string) bool {
	ok, err := afero.Exists(l.fs, l.Path(name))
	return err == nil && ok
}

func (l *Local) copyFile(src, dst string) error {
	in, err := l.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := l.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = l.fs.Remove(dst)
		return err
	}
	return out.Close()
}
