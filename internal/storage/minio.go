package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/verimedia/verimedia/internal/interfaces"
	"github.com/verimedia/verimedia/internal/logging"
)

// MinioConfig holds the object storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore stores blobs in a MinIO (or any S3-compatible) bucket. When the
// backend is unreachable it degrades to the fallback filesystem store, whose
// file:// URLs it transparently honors on Get and Delete.
type MinioStore struct {
	client   *minio.Client
	cfg      MinioConfig
	fallback interfaces.BlobStore
	logger   logging.Logger
}

// NewMinioStore connects the client and makes sure the bucket exists. Bucket
// setup failures are logged, not fatal: the store stays usable through its
// fallback.
func NewMinioStore(cfg MinioConfig, fallback interfaces.BlobStore, logger logging.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage: empty minio endpoint")
	}
	if fallback == nil {
		return nil, fmt.Errorf("storage: nil fallback store")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	s := &MinioStore{
		client:   client,
		cfg:      cfg,
		fallback: fallback,
		logger:   logger.With(logging.Field{Key: "component", Value: "minio-store"}),
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		s.logger.Warn("minio not reachable, falling back to local storage",
			logging.Field{Key: "endpoint", Value: cfg.Endpoint},
			logging.Field{Key: "error", Value: err.Error()})
		return s, nil
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			s.logger.Warn("creating bucket failed",
				logging.Field{Key: "bucket", Value: cfg.Bucket},
				logging.Field{Key: "error", Value: err.Error()})
		} else {
			s.logger.Info("created bucket", logging.Field{Key: "bucket", Value: cfg.Bucket})
		}
	}
	return s, nil
}

func (s *MinioStore) Put(ctx context.Context, data []byte, key string, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Warn("object upload failed, using local fallback",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: err.Error()})
		return s.fallback.Put(ctx, data, key, contentType)
	}

	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/%s/%s", scheme, s.cfg.Endpoint, s.cfg.Bucket, key)
	s.logger.Debug("uploaded object",
		logging.Field{Key: "key", Value: key},
		logging.Field{Key: "size", Value: len(data)})
	return url, nil
}

func (s *MinioStore) Get(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, fileScheme) {
		return s.fallback.Get(ctx, url)
	}
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, s.objectName(url), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, url string) (bool, error) {
	if strings.HasPrefix(url, fileScheme) {
		return s.fallback.Delete(ctx, url)
	}
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, s.objectName(url), minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("remove object: %w", err)
	}
	return true, nil
}

// objectName strips everything up to and including the bucket segment.
func (s *MinioStore) objectName(url string) string {
	marker := "/" + s.cfg.Bucket + "/"
	if i := strings.LastIndex(url, marker); i >= 0 {
		return url[i+len(marker):]
	}
	return url
}
