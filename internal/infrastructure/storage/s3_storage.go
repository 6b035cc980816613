// Package storage keeps write-once artifacts on the local filesystem or in
// S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/speakASAP/allegro-service/internal/domain/offer"
	"github.com/speakASAP/allegro-service/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ offer.ArtifactStorage = (*S3ArtifactStorage)(nil)

// S3ArtifactStorage stores artifacts in an S3 bucket (AWS S3, MinIO, ...).
// Writes are conditional so an existing object is never replaced.
type S3ArtifactStorage struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3Option is a functional option for configuring S3ArtifactStorage
type S3Option func(*S3ArtifactStorage)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3Option {
	return func(s *S3ArtifactStorage) {
		s.logger = logger
	}
}

// WithHTTPClient replaces the SDK's HTTP client
func WithHTTPClient(hc *http.Client) S3Option {
	return func(s *S3ArtifactStorage) {
		s.client = s3.New(s.client.Options(), func(o *s3.Options) {
			o.HTTPClient = hc
		})
	}
}

// NewS3ArtifactStorage creates an S3-backed artifact store. Static
// credentials are used when given; otherwise the default AWS chain applies.
func NewS3ArtifactStorage(ctx context.Context, cfg config.S3Config, opts ...S3Option) (*S3ArtifactStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	s := &S3ArtifactStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *S3ArtifactStorage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads a new object. An existing key yields offer.ErrArtifactExists.
func (s *S3ArtifactStorage) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if name == "" {
		return errors.New("storage: artifact name is required")
	}

	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "PreconditionFailed" || apiErr.ErrorCode() == "ConditionalRequestConflict") {
			return fmt.Errorf("%w: s3://%s/%s", offer.ErrArtifactExists, s.bucket, key)
		}
		return fmt.Errorf("storage: failed to upload artifact: %w", err)
	}

	s.logger.Info("Artifact uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Exists checks whether an object is present
func (s *S3ArtifactStorage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return false, nil
	}
	// some S3-compatible services only report the code
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
		return false, nil
	}
	return false, fmt.Errorf("storage: failed to check artifact: %w", err)
}

// Bucket returns the bucket name
func (s *S3ArtifactStorage) Bucket() string {
	return s.bucket
}
