// Package source opens persisted vector and metadata collections for sequential reading.
//
// A location is a local path or an s3://bucket/key URL served by any S3-compatible
// object store. A .gz, .zst or .lz4 suffix selects streaming decompression, so a
// collection is never materialised in memory as a whole.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const s3Scheme = "s3://"

// Opener opens a location for sequential reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// Store opens local files and, when configured, objects in S3-compatible storage.
type Store struct {
	s3     *minio.Client
	logger *zap.Logger
}

// NewStore creates a Store. The object storage client is only created when cfg has an endpoint.
func NewStore(cfg *config.S3Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger}
	if cfg == nil || cfg.Endpoint == "" {
		return s, nil
	}
	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		})
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSLOrDefault(),
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}
	s.s3 = client
	return s, nil
}

// Open opens location and wraps it with the decompressor its suffix asks for.
// Missing or unreadable sources return an error matching models.ErrSourceUnavailable.
func (s *Store) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if location == "" {
		return nil, models.SourceError("open", location, errors.New("no location configured"))
	}
	raw, err := s.openRaw(ctx, location)
	if err != nil {
		return nil, models.SourceError("open", location, err)
	}
	rc, err := decompress(raw, DetectCompression(location))
	if err != nil {
		_ = raw.Close()
		return nil, models.SourceError("open", location, err)
	}
	s.logger.Debug("source opened",
		zap.String("location", location),
		zap.String("compression", string(DetectCompression(location))),
	)
	return rc, nil
}

func (s *Store) openRaw(ctx context.Context, location string) (io.ReadCloser, error) {
	if !IsRemote(location) {
		return os.Open(location)
	}
	bucket, key, err := ParseS3Location(location)
	if err != nil {
		return nil, err
	}
	if s.s3 == nil {
		return nil, errors.New("object storage is not configured (sources.s3.endpoint)")
	}
	obj, err := s.s3.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapObjectError(err)
	}
	return obj, nil
}

func mapObjectError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s", os.ErrNotExist, resp.Message)
	}
	return err
}

// IsRemote reports whether location refers to object storage.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

// ParseS3Location splits s3://bucket/key into its parts.
func ParseS3Location(location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 location: %s", location)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 location must be s3://bucket/key: %s", location)
	}
	return bucket, key, nil
}
