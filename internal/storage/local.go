// Package storage provides a directory-backed file store for uploaded
// product images, 3D model assets, and profile images.
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"
)

// LocalStore writes uploaded files into a single local directory. Names
// generated by Save are unique under single-writer conditions; the
// directory is expected to be served verbatim by a static mount.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the backing directory if needed and returns a
// store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes the uploaded file under a generated unique name of the
// form {unixMilli}-{originalName} and returns the stored name.
func (s *LocalStore) Save(fh *multipart.FileHeader) (string, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(fh.Filename))
	if err := s.SaveAs(fh, name); err != nil {
		return "", err
	}
	return name, nil
}

// SaveAs writes the uploaded file under the given name, replacing any
// existing file with that name.
func (s *LocalStore) SaveAs(fh *multipart.FileHeader, name string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file %s: %w", fh.Filename, err)
	}
	defer src.Close()

	dst, err := os.Create(s.Path(name))
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", name, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write file %s: %w", name, err)
	}
	return nil
}

// Path resolves a stored name to its on-disk path. The name is reduced
// to its base so callers cannot escape the store directory.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Exists reports whether a stored file is present on disk.
func (s *LocalStore) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Remove deletes a stored file. Removing a missing file is an error so
// callers can log it.
func (s *LocalStore) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil {
		return fmt.Errorf("failed to remove file %s: %w", name, err)
	}
	return nil
}
