package filestore

import (
	"context"
	"errors"
	"io/fs"
	"path"

	"github.com/and161185/otpguard/internal/errs"
	"github.com/spf13/afero"
)

// Local stores blobs on a filesystem rooted at a directory.
type Local struct {
	fs afero.Fs
}

// NewLocal roots the store at dir on the OS filesystem.
func NewLocal(dir string) *Local {
	return NewLocalFs(afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// NewLocalFs uses fsys as the store root. Tests pass afero.NewMemMapFs().
func NewLocalFs(fsys afero.Fs) *Local { return &Local{fs: fsys} }

// Put writes data, creating parent directories.
func (l *Local) Put(_ context.Context, key string, data []byte) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.MkdirAll(path.Dir(k), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(l.fs, k, data, 0o644)
}

// Get reads the blob under key.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	b, err := afero.ReadFile(l.fs, k)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrNotFound
	}
	return b, err
}

// Delete removes the blob under key.
func (l *Local) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = l.fs.Remove(k)
	if errors.Is(err, fs.ErrNotExist) {
		return errs.ErrNotFound
	}
	return err
}
