package service

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/dairy-portal-api/pkg/errors"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

// FileUpload is a file received from a multipart request.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// FilePolicy bounds accepted files. An empty AllowedMIMEs accepts any type.
type FilePolicy struct {
	MaxSizeBytes int64
	AllowedMIMEs []string
}

func (p FilePolicy) check(file *FileUpload) error {
	if file == nil || file.Reader == nil || strings.TrimSpace(file.Name) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if file.Size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if p.MaxSizeBytes > 0 && file.Size > p.MaxSizeBytes {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "file exceeds maximum size")
	}
	if len(p.AllowedMIMEs) == 0 {
		return nil
	}
	contentType := normaliseContentType(file)
	for _, allowed := range p.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation, "file type "+contentType+" is not allowed")
}

// normaliseContentType strips parameters and falls back to the extension
// when the client sent a generic type.
func normaliseContentType(file *FileUpload) string {
	contentType := file.ContentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = parsed
	}
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.Name))); byExt != "" {
			if parsed, _, err := mime.ParseMediaType(byExt); err == nil {
				return parsed
			}
		}
	}
	if contentType == "" {
		return "application/octet-stream"
	}
	return strings.ToLower(contentType)
}

// storeFile checks the file against policy and writes it under folder.
func storeFile(ctx context.Context, blobs storage.BlobStore, policy FilePolicy, folder string, file *FileUpload) (*storage.Object, error) {
	if err := policy.check(file); err != nil {
		return nil, err
	}
	if blobs == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "file storage is not configured")
	}
	obj, err := blobs.Put(ctx, storage.ObjectKey(folder, file.Name), file.Reader, file.Size, normaliseContentType(file))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	return obj, nil
}

// discardFile removes an object whose database row was never written.
func discardFile(ctx context.Context, blobs storage.BlobStore, logger *zap.Logger, obj *storage.Object) {
	if obj == nil || blobs == nil {
		return
	}
	if err := blobs.Delete(context.WithoutCancel(ctx), obj.Key); err != nil {
		logger.Warn("failed to remove orphaned file", zap.String("key", obj.Key), zap.Error(err))
	}
}
