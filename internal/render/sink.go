package render

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"maml/internal/config"
	"maml/internal/logging"
)

// Sink stores rendered artifacts and returns where each one landed.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// NewSink builds the sink selected in config.
func NewSink(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch cfg.Artifacts.Sink {
	case "", "local":
		return NewLocalSink(cfg.Artifacts.Dir), nil
	case "minio":
		return NewMinIOSink(ctx, cfg.Artifacts.MinIO)
	default:
		return nil, fmt.Errorf("unknown artifact sink %q", cfg.Artifacts.Sink)
	}
}

// LocalSink writes artifacts under a directory.
type LocalSink struct {
	Dir string
}

// NewLocalSink creates a sink rooted at dir.
func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{Dir: dir}
}

// Put implements Sink. name is slash-separated and may not leave Dir.
func (s *LocalSink) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	full := filepath.Join(s.Dir, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	logging.Render("Wrote %s (%d bytes)", full, len(data))
	return full, nil
}

const minioPutTimeout = 15 * time.Second

// MinIOSink uploads artifacts to an S3-compatible bucket.
type MinIOSink struct {
	client *minio.Client
	bucket string
}

// NewMinIOSink connects to the object store and creates the bucket if needed.
func NewMinIOSink(ctx context.Context, cfg config.MinIOConfig) (*MinIOSink, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio sink needs an endpoint and a bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    "us-east-1",
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOSink{client: client, bucket: cfg.Bucket}, nil
}

// Put implements Sink.
func (s *MinIOSink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	key := strings.TrimPrefix(path.Clean("/"+name), "/")
	if key == "" {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	putCtx, cancel := context.WithTimeout(ctx, minioPutTimeout)
	defer cancel()
	_, err := s.client.PutObject(
		putCtx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	where := "s3://" + s.bucket + "/" + key
	logging.Render("Uploaded %s (%d bytes)", where, len(data))
	return where, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
