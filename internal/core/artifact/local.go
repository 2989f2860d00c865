// Package artifact manages the shared directory converted files land in.
// Readiness checks go through here, never through job status: a completed
// status is only trustworthy for download once the file is visible on disk.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrInvalidRef = errors.New("invalid artifact reference")

// Metadata describes a stored artifact for transfer headers.
type Metadata struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Dir is a local-filesystem artifact store rooted at a single directory.
type Dir struct {
	basePath string
}

func NewDir(basePath string) (*Dir, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Dir{basePath: abs}, nil
}

func (d *Dir) BasePath() string { return d.basePath }

// Exists is the readiness probe: a direct stat against storage, independent
// of whatever the job record claims.
func (d *Dir) Exists(_ context.Context, ref string) (bool, error) {
	path, err := d.resolve(ref)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// Open returns a readable stream plus transfer metadata. Content type is
// derived from the file extension, octet-stream when unknown.
func (d *Dir) Open(_ context.Context, ref string) (*os.File, Metadata, error) {
	path, err := d.resolve(ref)
	if err != nil {
		return nil, Metadata{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("open artifact: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Metadata{}, fmt.Errorf("stat artifact: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return f, Metadata{
		Size:        stat.Size(),
		ContentType: contentType,
		ModTime:     stat.ModTime(),
	}, nil
}

func (d *Dir) Remove(_ context.Context, ref string) error {
	path, err := d.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve maps a ref to an absolute path inside the base directory.
// Refs are bare filenames; separators or dot-dot sequences are rejected
// before the filesystem is touched.
func (d *Dir) resolve(ref string) (string, error) {
	if ref == "" || strings.ContainsAny(ref, "/\\") || strings.Contains(ref, "..") {
		return "", ErrInvalidRef
	}
	path := filepath.Join(d.basePath, ref)
	if !strings.HasPrefix(path, d.basePath+string(filepath.Separator)) {
		return "", ErrInvalidRef
	}
	return path, nil
}
