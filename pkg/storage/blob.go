package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/dairy-portal-api/pkg/config"
)

// Object describes a stored blob.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// BlobStore stores template, upload and draft files and hands back a URL
// clients can fetch them from.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds a collision free key under folder, keeping a sanitised
// copy of the original file name for readability.
func ObjectKey(folder, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "_"), "._")
	if base == "" {
		base = "file"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	name := fmt.Sprintf("%s_%s_%s", time.Now().UTC().Format("20060102"), uuid.NewString()[:8], base)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// NewBlobStore returns the store selected by cfg.Driver.
func NewBlobStore(ctx context.Context, cfg config.StorageConfig, publicBaseURL string) (BlobStore, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		local, err := NewLocalStorage(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return NewLocalBlobStore(local, publicBaseURL+LocalFilesRoute), nil
	case config.StorageDriverMinio:
		return NewMinioStore(ctx, cfg.Minio)
	case config.StorageDriverS3:
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
