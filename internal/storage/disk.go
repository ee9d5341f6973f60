package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DiskURLPrefix is where DiskStore objects are served.
const DiskURLPrefix = "/storage/"

// DiskStore keeps objects under a local directory, for development.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates root if needed. baseURL is the absolute URL the directory is served at.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", root, err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *DiskStore) path(bucket, key string) string {
	return filepath.Join(d.root, bucket, filepath.FromSlash(key))
}

func (d *DiskStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) (string, error) {
	if err := checkKey(bucket, key); err != nil {
		return "", err
	}
	p := d.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: write %s/%s: %w", bucket, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	return d.PublicURL(bucket, key), nil
}

func (d *DiskStore) Remove(_ context.Context, bucket, key string) error {
	if err := checkKey(bucket, key); err != nil {
		return err
	}
	if err := os.Remove(d.path(bucket, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (d *DiskStore) PublicURL(bucket, key string) string {
	return d.baseURL + "/" + bucket + "/" + key
}

// Handler serves the stored files; mount it at DiskURLPrefix.
// Responses carry nosniff so browsers keep to the extension's content type.
func (d *DiskStore) Handler() http.Handler {
	files := http.StripPrefix(DiskURLPrefix, http.FileServer(http.Dir(d.root)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
