// Package filestore serves file artifacts out of an S3-compatible object
// store. The gateway uses it to proxy previews of uploaded wellbore files
// and to hand out presigned URLs for downloads too large to proxy.
package filestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
)

// defaultPreviewLimit bounds objects served inline through the gateway.
// Larger objects are redirected to a presigned URL instead.
const defaultPreviewLimit = 32 << 20

// Store reads artifacts from a single configured bucket
type Store struct {
	client       *minio.Client
	bucket       string
	region       string
	logger       *slog.Logger
	previewLimit int64
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPreviewLimit overrides the maximum object size served inline
func WithPreviewLimit(limit int64) Option {
	return func(s *Store) {
		if limit > 0 {
			s.previewLimit = limit
		}
	}
}

// New builds a store from storage configuration
func New(cfg config.StorageConfig, opts ...Option) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("storage endpoint is required"),
			"Store", "New", "validate")
	}
	if cfg.Bucket == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("storage bucket is required"),
			"Store", "New", "validate")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("storage credentials are required"),
			"Store", "New", "validate")
	}

	// Endpoint may be host:port or a full URL. minio wants the bare host.
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.WrapInvalid(err, "Store", "New", "create client")
	}

	s := &Store{
		client:       client,
		bucket:       cfg.Bucket,
		region:       cfg.Region,
		logger:       slog.Default().With("component", "filestore"),
		previewLimit: defaultPreviewLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Object is a fetched artifact. Body must be closed by the caller.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Fetch opens an object for inline preview. Objects above the preview
// limit are rejected; callers should fall back to PresignedURL.
func (s *Store) Fetch(ctx context.Context, key string) (*Object, error) {
	if key == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty key", errors.ErrKeyNotFound),
			"Store", "Fetch", "validate")
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify(err, "Fetch", key)
	}

	// GetObject is lazy; Stat issues the request and surfaces NoSuchKey
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, s.classify(err, "Fetch", key)
	}

	if s.previewLimit > 0 && info.Size > s.previewLimit {
		obj.Close()
		return nil, errors.WrapInvalid(
			fmt.Errorf("object %s is %d bytes, preview limit is %d", key, info.Size, s.previewLimit),
			"Store", "Fetch", "size check")
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size,
		Body:        obj,
	}, nil
}

// PresignedURL returns a time-limited direct download link
func (s *Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if key == "" {
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: empty key", errors.ErrKeyNotFound),
			"Store", "PresignedURL", "validate")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", s.classify(err, "PresignedURL", key)
	}
	return u.String(), nil
}

// List returns object keys under a prefix
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, s.classify(obj.Err, "List", prefix)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Put writes an object. Used by tests and seed tooling; the gateway
// itself is read-only against the artifact bucket.
func (s *Store) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if key == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: empty key", errors.ErrKeyNotFound),
			"Store", "Put", "validate")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return s.classify(err, "Put", key)
	}
	return nil
}

// EnsureBucket creates the configured bucket when it does not exist
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return s.classify(err, "EnsureBucket", s.bucket)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return s.classify(err, "EnsureBucket", s.bucket)
	}
	s.logger.Info("created artifact bucket", "bucket", s.bucket)
	return nil
}

// HealthCheck probes the configured bucket. Satisfies health.Checker.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return s.classify(err, "HealthCheck", s.bucket)
	}
	if !exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrBucketNotFound, s.bucket),
			"Store", "HealthCheck", "bucket probe")
	}
	return nil
}

// Bucket returns the configured bucket name
func (s *Store) Bucket() string {
	return s.bucket
}

// classify maps minio errors onto severity classes. Missing objects and
// buckets are invalid, credential failures are fatal, network and
// timeout failures are transient.
func (s *Store) classify(err error, method, key string) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrBucketNotFound, s.bucket),
			"Store", method, "object store")
	case "NoSuchKey":
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrKeyNotFound, key),
			"Store", method, "object store")
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.WrapFatal(
			fmt.Errorf("%w: %s", errors.ErrUnauthorized, resp.Code),
			"Store", method, "object store")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "does not exist"), strings.Contains(msg, "not found"):
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrArtifactNotFound, key),
			"Store", method, "object store")
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "signature"):
		return errors.WrapFatal(err, "Store", method, "object store")
	}

	return errors.WrapTransient(err, "Store", method, "object store")
}
