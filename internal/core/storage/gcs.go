// Package storage 封装封面图等静态对象的存储。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var ErrNotConfigured = errors.New("object storage not configured")

// ImageStore 上传与删除公开可读的对象
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (url string, err error)
	Delete(ctx context.Context, key string) error
	// KeyOf 反解由本存储生成的 URL；外部链接返回 false
	KeyOf(url string) (string, bool)
}

type GCSStore struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

type GCSOptions struct {
	Bucket          string
	PublicBaseURL   string
	CredentialsFile string
}

func NewGCS(ctx context.Context, o GCSOptions) (*GCSStore, error) {
	if o.Bucket == "" {
		return nil, ErrNotConfigured
	}
	var opts []option.ClientOption
	if o.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	base := strings.TrimRight(o.PublicBaseURL, "/")
	if base == "" {
		base = "https://storage.googleapis.com"
	}
	return &GCSStore{client: client, bucket: o.Bucket, baseURL: base}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", key, err)
	}
	return s.URL(key), nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (s *GCSStore) URL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}

func (s *GCSStore) KeyOf(url string) (string, bool) {
	prefix := s.baseURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func (s *GCSStore) Close() error { return s.client.Close() }

// Unconfigured 未配置 bucket 时使用，上传直接失败
type Unconfigured struct{}

func (Unconfigured) Put(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrNotConfigured
}

func (Unconfigured) Delete(context.Context, string) error { return nil }

func (Unconfigured) KeyOf(string) (string, bool) { return "", false }
