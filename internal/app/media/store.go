package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	sb "github.com/R3E-Network/studio_layer/supabase/client"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ImageStore saves images and returns a URL they can be fetched from.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds "<studio>/<folder>/<uuid><ext>".
func ObjectKey(studioID, folder, ext string) string {
	return path.Join(studioID, folder, uuid.NewString()+ext)
}

// UploadDataURL validates an image data URL and stores it under folder.
// Plain http(s) URLs are returned untouched.
func UploadDataURL(ctx context.Context, store ImageStore, studioID, folder, src string) (string, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return src, nil
	}
	img, ext, err := DecodeImage(src)
	if err != nil {
		return "", err
	}
	if store == nil {
		return ToDataURL(img.MIMEType, img.Data), nil
	}
	return store.Put(ctx, ObjectKey(studioID, folder, ext), img.Data, img.MIMEType)
}

// BucketStore stores images in a Supabase storage bucket.
type BucketStore struct {
	bucket *sb.BucketClient
}

// NewBucketStore wraps a Supabase bucket.
func NewBucketStore(db *sb.Client, bucket string) *BucketStore {
	return &BucketStore{bucket: db.Storage().From(bucket)}
}

func (b *BucketStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := b.bucket.Upload(ctx, key, data, contentType, true); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return b.bucket.GetPublicURL(key), nil
}

func (b *BucketStore) Delete(ctx context.Context, key string) error {
	return b.bucket.Delete(ctx, []string{key})
}

// MinioConfig configures an S3-compatible image store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore stores images in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	base   *url.URL
}

// NewMinioStore connects to the endpoint and creates the bucket if needed.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: cli, bucket: cfg.Bucket, base: cli.EndpointURL()}, nil
}

func (m *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	u := *m.base
	u.Path = path.Join("/", m.bucket, key)
	return u.String(), nil
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}
