// Package storage хранит изображения в MinIO / S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store объектное хранилище
type Store struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	log           *logger.Logger
}

// Connect подключается к MinIO и создает бакет при необходимости
func Connect(ctx context.Context, cfg *config.StorageConfig, log *logger.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		log.WithField("bucket", cfg.Bucket).Info("MinIO bucket created")
	}

	log.WithField("endpoint", cfg.Endpoint).Info("Successfully connected to MinIO")
	return &Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: PublicBaseURL(cfg),
		log:           log,
	}, nil
}

// PublicBaseURL базовый адрес для публичных ссылок
func PublicBaseURL(cfg *config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
}

// ObjectName имя объекта вида <prefix>/<uuid><ext>
func ObjectName(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), uuid.NewString(), ext)
}

// ObjectURL публичный адрес объекта
func ObjectURL(baseURL, bucket, object string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), bucket, object)
}

// Upload загружает blob и возвращает публичный URL
func (s *Store) Upload(ctx context.Context, prefix, filename, contentType string, data []byte) (string, error) {
	object := ObjectName(prefix, filename)
	_, err := s.client.PutObject(ctx, s.bucket, object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s: %w", object, err)
	}

	s.log.WithFields(map[string]interface{}{
		"bucket": s.bucket,
		"object": object,
		"size":   len(data),
	}).Info("Object uploaded")

	return ObjectURL(s.publicBaseURL, s.bucket, object), nil
}

// PresignedURL выдает временную ссылку на чтение
func (s *Store) PresignedURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", object, err)
	}
	return u.String(), nil
}

// Delete удаляет объект
func (s *Store) Delete(ctx context.Context, object string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", object, err)
	}
	return nil
}

// ObjectFromURL извлекает имя объекта из публичного URL
func (s *Store) ObjectFromURL(rawURL string) (string, bool) {
	prefix := s.publicBaseURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, prefix), true
}

// DeleteByURL удаляет объект по его публичному URL
func (s *Store) DeleteByURL(ctx context.Context, rawURL string) error {
	object, ok := s.ObjectFromURL(rawURL)
	if !ok {
		return fmt.Errorf("url %s does not belong to bucket %s", rawURL, s.bucket)
	}
	return s.Delete(ctx, object)
}

// PresignByURL выдает временную ссылку для объекта, заданного публичным URL
func (s *Store) PresignByURL(ctx context.Context, rawURL string, expiry time.Duration) (string, error) {
	object, ok := s.ObjectFromURL(rawURL)
	if !ok {
		return "", fmt.Errorf("url %s does not belong to bucket %s", rawURL, s.bucket)
	}
	return s.PresignedURL(ctx, object, expiry)
}
