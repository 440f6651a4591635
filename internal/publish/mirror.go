package publish

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures the MinIO mirror.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// Validate checks required fields.
func (c MinioConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("objectstore endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("objectstore endpoint must not include scheme: %q", c.Endpoint)
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("objectstore credentials are required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("objectstore bucket is required")
	}
	return nil
}

// MinioMirror uploads artifacts to a MinIO or S3-compatible bucket.
type MinioMirror struct {
	client *minio.Client
	bucket string
	region string

	mu          sync.Mutex
	bucketReady bool
}

// NewMinioMirror creates the client; no request is made until the first upload.
func NewMinioMirror(cfg MinioConfig) (*MinioMirror, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioMirror{client: client, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// Upload implements ObjectMirror. Objects are keyed by file name.
func (m *MinioMirror) Upload(ctx context.Context, a *Artifact) (string, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", m.bucket, err)
	}
	_, err := m.client.FPutObject(ctx, m.bucket, a.FileName, a.Path, minio.PutObjectOptions{
		ContentType:  "application/vnd.android.package-archive",
		UserMetadata: map[string]string{"sha256": a.SHA256},
	})
	if err != nil {
		return "", err
	}
	return a.FileName, nil
}

func (m *MinioMirror) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucketReady {
		return nil
	}
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
			return err
		}
	}
	m.bucketReady = true
	return nil
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
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
