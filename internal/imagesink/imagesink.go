// Package imagesink implements the inline-image sink the Stream Relay hands
// generated images to: an S3-compatible object-storage backend when
// configured, falling back to a local-disk directory served by the gateway
// itself.
package imagesink

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink persists one base64-encoded inline image and returns a caller-facing
// URL for it.
type Sink interface {
	SaveImage(ctx context.Context, mimeType, base64Data string) (string, error)
}

// New builds the sink configured by imageBaseURL: "s3://bucket[/prefix]"
// routes to ParseS3, anything else (including empty) uses a local-disk
// sink rooted at localDir, served from publicBaseURL.
func New(imageBaseURL, localDir, publicBaseURL string) (Sink, error) {
	if strings.HasPrefix(imageBaseURL, "s3://") {
		return newS3SinkFromURL(imageBaseURL)
	}
	return newLocalSink(localDir, publicBaseURL)
}

// LocalSink writes images under a directory served by the gateway's own
// /images/ route.
type LocalSink struct {
	dir           string
	publicBaseURL string
}

func newLocalSink(dir, publicBaseURL string) (*LocalSink, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "codeassist-gateway-images")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("imagesink: create local image dir: %w", err)
	}
	return &LocalSink{dir: dir, publicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

func (s *LocalSink) SaveImage(_ context.Context, mimeType, base64Data string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return "", fmt.Errorf("imagesink: decode base64 image: %w", err)
	}
	name, err := randomFileName(mimeType)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("imagesink: write local image: %w", err)
	}
	if s.publicBaseURL == "" {
		return "/images/" + name, nil
	}
	return s.publicBaseURL + "/images/" + name, nil
}

// Dir exposes the local image directory so the HTTP server can serve it.
func (s *LocalSink) Dir() string { return s.dir }

// S3Sink uploads images to an S3-compatible bucket via minio-go.
type S3Sink struct {
	client        *minio.Client
	bucket        string
	prefix        string
	publicBaseURL string
}

// S3Config configures an S3Sink explicitly, for callers that already parsed
// their own endpoint/credentials rather than going through an s3:// URL.
type S3Config struct {
	Endpoint      string
	Bucket        string
	Prefix        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
}

func newS3SinkFromURL(imageBaseURL string) (*S3Sink, error) {
	rest := strings.TrimPrefix(imageBaseURL, "s3://")
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, fmt.Errorf("imagesink: s3 URL missing bucket: %q", imageBaseURL)
	}
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	return NewS3Sink(S3Config{
		Endpoint:      endpoint,
		Bucket:        bucket,
		Prefix:        strings.Trim(prefix, "/"),
		AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("S3_SECRET_KEY"),
		UseSSL:        os.Getenv("S3_USE_SSL") != "false",
		PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
	})
}

// NewS3Sink builds an S3-backed sink from explicit configuration.
func NewS3Sink(cfg S3Config) (*S3Sink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("imagesink: create minio client: %w", err)
	}
	return &S3Sink{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

func (s *S3Sink) SaveImage(ctx context.Context, mimeType, base64Data string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return "", fmt.Errorf("imagesink: decode base64 image: %w", err)
	}
	name, err := randomFileName(mimeType)
	if err != nil {
		return "", err
	}
	key := name
	if s.prefix != "" {
		key = s.prefix + "/" + name
	}

	if ok, errExists := s.client.BucketExists(ctx, s.bucket); errExists == nil && !ok {
		if errMake := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); errMake != nil {
			return "", fmt.Errorf("imagesink: create bucket: %w", errMake)
		}
	}

	reader := bytes.NewReader(data)
	_, err = s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{ContentType: mimeType})
	if err != nil {
		return "", fmt.Errorf("imagesink: upload image: %w", err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key, nil
	}
	return fmt.Sprintf("https://%s/%s/%s", s.client.EndpointURL().Host, s.bucket, key), nil
}

func randomFileName(mimeType string) (string, error) {
	ext := "png"
	if _, sub, ok := strings.Cut(mimeType, "/"); ok && sub != "" {
		ext = sub
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("imagesink: generate file name: %w", err)
	}
	return hex.EncodeToString(buf) + "." + ext, nil
}
