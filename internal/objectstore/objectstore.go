// Package objectstore uploads task screenshots to S3-compatible storage.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"collabsauce/api/internal/util"
)

const (
	ShotWindow  = "window"
	ShotElement = "element"
)

type Store interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// PresignPut returns a URL a browser can PUT the object to directly.
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// NewFileKey returns the random part shared by the screenshots of one task.
func NewFileKey() string {
	return util.RandomKey(32)
}

// ScreenshotKey names a screenshot object:
// {organization}/{project}/{fileKey}-{shot}.png.
func ScreenshotKey(organizationID, projectID int64, fileKey, shot string) string {
	return fmt.Sprintf("%d/%d/%s-%s.png", organizationID, projectID, fileKey, shot)
}

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type S3 struct {
	client *minio.Client
	bucket string
}

var _ Store = (*S3)(nil)

func NewS3(cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int64("size", info.Size).Msg("object uploaded")
	return s.objectURL(key), nil
}

func (s *S3) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, expiry)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return u.String(), nil
}

func (s *S3) objectURL(key string) string {
	endpoint := s.client.EndpointURL()
	return (&url.URL{Scheme: endpoint.Scheme, Host: endpoint.Host, Path: "/" + s.bucket + "/" + key}).String()
}

// Memory keeps objects in process. It serves development setups without S3.
type Memory struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: strings.TrimRight(baseURL, "/"), objects: map[string][]byte{}}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(data)
	return m.baseURL + "/" + key, nil
}

func (m *Memory) PresignPut(_ context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("%s/%s?expires=%d", m.baseURL, key, int(expiry.Seconds())), nil
}

// Get returns a stored object.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
