// Package storage is the photo bucket. Objects are addressed by slash
// separated keys; the first segment is the owning user id.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrInvalidKey = errors.New("invalid object key")
	ErrNotFound   = errors.New("object not found")
)

// Bucket is the object store used for profile photos.
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) error
	URL(key string) string
}

// FSBucket stores objects as files under a root directory.
type FSBucket struct {
	root    string
	baseURL string
}

func NewFSBucket(root, publicBaseURL string) (*FSBucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bucket dir: %w", err)
	}
	return &FSBucket{root: root, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// CleanKey normalizes key and rejects anything that would escape the bucket.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

// Owner returns the user id prefix of key.
func Owner(key string) string {
	owner, _, _ := strings.Cut(key, "/")
	return owner
}

func (b *FSBucket) file(key string) (string, error) {
	clean, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

func (b *FSBucket) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	name, err := b.file(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(name), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create object: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, readerWithContext{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return 0, fmt.Errorf("failed to commit object: %w", err)
	}
	return n, nil
}

func (b *FSBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	name, err := b.file(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err == nil && st.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return f, nil
}

// List returns the keys directly under prefix (one level, sorted).
func (b *FSBucket) List(_ context.Context, prefix string) ([]string, error) {
	dir, err := b.file(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		keys = append(keys, path.Join(strings.TrimSuffix(prefix, "/"), e.Name()))
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *FSBucket) DeletePrefix(_ context.Context, prefix string) error {
	dir, err := b.file(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (b *FSBucket) URL(key string) string {
	return b.baseURL + "/" + key
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
