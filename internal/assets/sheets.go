// Package assets stores product technical sheets in an S3-compatible bucket.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ingredient-catalog-service/internal/domain"
)

// ErrDisabled is returned by every operation when sheet storage is not configured.
var ErrDisabled = errors.New("assets: sheet storage disabled")

const sheetContentType = "application/pdf"

// SheetStore uploads sheets and hands out short-lived download links.
type SheetStore interface {
	Upload(ctx context.Context, partition domain.Partition, code string, r io.Reader, size int64) (string, error)
	PresignedURL(ctx context.Context, key string) (*url.URL, error)
	Delete(ctx context.Context, key string) error
}

// SheetKey is the object key of a product's sheet.
func SheetKey(partition domain.Partition, code string) string {
	return fmt.Sprintf("sheets/%s/%s.pdf", partition, url.PathEscape(code))
}

// MinioOptions configures the MinIO client.
type MinioOptions struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	Region     string
	Bucket     string
	PresignTTL time.Duration
}

// MinioSheets is a SheetStore backed by MinIO.
type MinioSheets struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinioSheets creates the client. Call EnsureBucket before serving traffic.
func NewMinioSheets(opts MinioOptions) (*MinioSheets, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("assets: failed to create minio client: %w", err)
	}
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MinioSheets{client: client, bucket: opts.Bucket, ttl: ttl}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (m *MinioSheets) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("assets: failed to check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("assets: failed to create bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

func (m *MinioSheets) Upload(ctx context.Context, partition domain.Partition, code string, r io.Reader, size int64) (string, error) {
	key := SheetKey(partition, code)
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: sheetContentType,
	})
	if err != nil {
		return "", fmt.Errorf("assets: failed to upload %s: %w", key, err)
	}
	return info.Key, nil
}

func (m *MinioSheets) PresignedURL(ctx context.Context, key string) (*url.URL, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.ttl, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("assets: failed to presign %s: %w", key, err)
	}
	return u, nil
}

func (m *MinioSheets) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("assets: failed to delete %s: %w", key, err)
	}
	return nil
}

// Disabled is the SheetStore used when MinIO is not configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, domain.Partition, string, io.Reader, int64) (string, error) {
	return "", ErrDisabled
}

func (Disabled) PresignedURL(context.Context, string) (*url.URL, error) { return nil, ErrDisabled }
func (Disabled) Delete(context.Context, string) error                   { return ErrDisabled }
