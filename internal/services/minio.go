package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"souq_back_end/internal/config"
	"souq_back_end/internal/models"
)

// ObjectStore is the part of the MinIO client media storage needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// MediaStorage stores product images and videos in one bucket under
// products/<productID>/.
type MediaStorage struct {
	client    ObjectStore
	bucket    string
	publicURL string
}

func NewMediaStorage(client ObjectStore, cfg config.MinIOConfig) *MediaStorage {
	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &MediaStorage{client: client, bucket: cfg.Bucket, publicURL: strings.TrimRight(public, "/")}
}

// ObjectPath builds a unique object name that keeps the file extension.
func ObjectPath(productID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("products/%s/%s%s", productID, uuid.NewString(), ext)
}

// Upload stores the blob and returns its object path and public URL.
func (ms *MediaStorage) Upload(ctx context.Context, productID, filename string, r io.Reader, size int64, contentType string) (string, string, error) {
	objectPath := ObjectPath(productID, filename)

	_, err := ms.client.PutObject(ctx, ms.bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return objectPath, ms.PublicURL(objectPath), nil
}

// PublicURL is the stable URL a browser can load the object from.
func (ms *MediaStorage) PublicURL(objectPath string) string {
	return ms.publicURL + "/" + strings.TrimLeft(objectPath, "/")
}

// SignedURL returns a time-limited download link for private buckets.
func (ms *MediaStorage) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	u, err := ms.client.PresignedGetObject(ctx, ms.bucket, objectPath, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (ms *MediaStorage) Delete(ctx context.Context, objectPath string) error {
	if err := ms.client.RemoveObject(ctx, ms.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", objectPath, err)
	}
	return nil
}

// MediaTypeOf classifies an upload by its content type.
func MediaTypeOf(contentType string) (models.MediaType, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage, true
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo, true
	}
	return "", false
}
