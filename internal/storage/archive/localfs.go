package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newthinker/memcycle/internal/core"
)

// LocalFS stores archive objects as plain files under a base directory.
type LocalFS struct {
	baseDir string
}

// NewLocalFS creates a LocalFS backend rooted at baseDir.
func NewLocalFS(baseDir string) (*LocalFS, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating archive dir: %w", err))
	}
	return &LocalFS{baseDir: baseDir}, nil
}

func (l *LocalFS) path(key string) string {
	return filepath.Join(l.baseDir, filepath.FromSlash(key))
}

func (l *LocalFS) Put(ctx context.Context, key string, data []byte) error {
	p := l.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (l *LocalFS) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(l.path(key))
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return data, nil
}

func (l *LocalFS) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	root := l.path(prefix)

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(l.baseDir, p)
			keys = append(keys, filepath.ToSlash(rel))
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return keys, nil
}

func (l *LocalFS) Delete(ctx context.Context, key string) error {
	if err := os.Remove(l.path(key)); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

func (l *LocalFS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(l.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, core.WrapError(core.ErrStorageFailed, err)
	}
	return true, nil
}
