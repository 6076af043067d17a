// Package filestore keeps script templates and disposable dispatch artifacts.
// Keys are slash-separated relative paths such as "scripts/<id>_bot.py".
package filestore

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/and161185/otpguard/internal/errs"
)

// Store is a flat key/value blob store.
type Store interface {
	// Put writes data under key, replacing any previous content.
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the content under key; errs.ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key; errs.ErrNotFound if absent.
	Delete(ctx context.Context, key string) error
}

// ScriptKey is where an uploaded template is kept.
func ScriptKey(id, fileName string) string {
	return "scripts/" + id + "_" + path.Base(fileName)
}

// TempKey is where a personalized artifact is kept until cleanup.
func TempKey(id string) string { return "temp/" + id + ".py" }

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean(strings.TrimPrefix(key, "/"))
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("bad key %q: %w", key, errs.ErrValidation)
	}
	return k, nil
}
