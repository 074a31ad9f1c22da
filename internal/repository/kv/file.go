package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileDriver keeps each key in <dir>/<key>.json.
type FileDriver struct {
	dir string
}

func NewFileDriver(dir string) (*FileDriver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileDriver{dir: dir}, nil
}

func (d *FileDriver) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *FileDriver) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set writes to a temporary file first so readers never see a partial document.
func (d *FileDriver) Set(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(d.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.path(key))
}

func (d *FileDriver) Close() error { return nil }
