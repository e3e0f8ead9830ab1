package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/docflow/docflow/client/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOPresigner signs upload URLs locally with MinIO credentials.
type MinIOPresigner struct {
	client *minio.Client
	bucket string
}

// NewMinIOPresigner builds the client without contacting the server.
func NewMinIOPresigner(cfg config.MinIOConfig) (*MinIOPresigner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &MinIOPresigner{client: mc, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *MinIOPresigner) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := p.client.BucketExists(ctx, p.bucket)
		if xerr != nil || !exist {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return nil
}

func (p *MinIOPresigner) UploadURL(ctx context.Context, uid, filename string) (string, error) {
	key, err := ObjectKey(uid, filename)
	if err != nil {
		return "", err
	}
	u, err := p.client.PresignedPutObject(ctx, p.bucket, key, PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}

// ReadURL returns a presigned GET URL for an existing object key.
func (p *MinIOPresigner) ReadURL(ctx context.Context, key string) (string, error) {
	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, PresignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return u.String(), nil
}
