package storage

import (
	"context"
	"io"
	"strings"
)

// LocalFilesRoute is where the HTTP server exposes the local blob directory.
const LocalFilesRoute = "/files"

// LocalBlobStore keeps blobs on disk; used for development and single node
// deployments.
type LocalBlobStore struct {
	disk    *LocalStorage
	baseURL string
}

// NewLocalBlobStore wraps disk, building URLs from baseURL.
func NewLocalBlobStore(disk *LocalStorage, baseURL string) *LocalBlobStore {
	return &LocalBlobStore{disk: disk, baseURL: strings.TrimRight(baseURL, "/")}
}

// Dir exposes the backing directory for static serving.
func (s *LocalBlobStore) Dir() string {
	return s.disk.Dir()
}

// Put implements BlobStore.
func (s *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	written, err := s.disk.SaveStream(key, r)
	if err != nil {
		return nil, err
	}
	return &Object{Key: key, URL: s.baseURL + "/" + key, Size: written, ContentType: contentType}, nil
}

// Delete implements BlobStore.
func (s *LocalBlobStore) Delete(_ context.Context, key string) error {
	return s.disk.Delete(key)
}
