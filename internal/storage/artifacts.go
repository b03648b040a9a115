package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/timmy/helloreadme/internal/logger"
)

// Artifact kinds, used as key segments under the configured prefix.
const (
	KindBackup = "backups"
	KindExport = "exports"
)

// ErrArtifactNotFound is returned when a key has no stored object.
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifacts stores backup and export files under <prefix>/<kind>/<name>.
type Artifacts struct {
	store  ObjectStorage
	prefix string
}

// NewArtifacts wraps store. A nil store yields nil.
func NewArtifacts(store ObjectStorage, prefix string) *Artifacts {
	if store == nil {
		return nil
	}
	return &Artifacts{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a local file of the given kind.
func (a *Artifacts) Key(kind, localPath string) string {
	return path.Join(a.prefix, kind, filepath.Base(localPath))
}

// UploadFile uploads the file at localPath and returns its object key.
func (a *Artifacts) UploadFile(ctx context.Context, kind, localPath, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	key := a.Key(kind, localPath)
	if err := a.store.Upload(ctx, key, f, info.Size(), contentType); err != nil {
		return "", err
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		"key":  key,
		"size": info.Size(),
	}).Info("Artifact uploaded")
	return key, nil
}

// DownloadFile writes the object at key to localPath, replacing it.
// localPath is left untouched when key does not exist.
func (a *Artifacts) DownloadFile(ctx context.Context, key, localPath string) error {
	ok, err := a.store.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
	}

	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if dir := filepath.Dir(localPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return f.Close()
}

// Location returns where key lives, for display.
func (a *Artifacts) Location(key string) string {
	return a.store.GetURL(key)
}
