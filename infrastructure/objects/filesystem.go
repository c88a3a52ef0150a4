// Package objects reads uploaded attachment objects and extracts the text
// used as coaching context.
package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/clarvoy/clarvoy/internal/domain"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// ObjectPrefix is the path prefix clients use for uploaded objects.
const ObjectPrefix = "/objects/"

var _ ports.ObjectReader = (*FilesystemReader)(nil)

// FilesystemReader serves objects from a directory. Object paths are
// resolved inside the directory and can never escape it.
type FilesystemReader struct {
	root *os.Root
}

// NewFilesystemReader opens dir as the object root.
func NewFilesystemReader(dir string) (*FilesystemReader, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open object root %q: %w", dir, err)
	}
	return &FilesystemReader{root: root}, nil
}

// Open returns the object at objectPath. Both "/objects/<key>" and a bare
// key are accepted.
func (r *FilesystemReader) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := objectKey(objectPath)
	if err != nil {
		return nil, err
	}

	f, err := r.root.Open(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %q: %w", objectPath, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open object %q: %w", objectPath, err)
	}
	return f, nil
}

// Close releases the root directory handle.
func (r *FilesystemReader) Close() error {
	return r.root.Close()
}

func objectKey(objectPath string) (string, error) {
	key := strings.TrimPrefix(objectPath, ObjectPrefix)
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("object path %q: %w", objectPath, domain.ErrNotFound)
	}
	return key, nil
}
