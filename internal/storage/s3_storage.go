package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/Davzs/adezz/internal/config"
)

var (
	// ErrObjectNotFound is returned by GetObject for a missing key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectTooLarge is returned by GetObject when the object exceeds the limit.
	ErrObjectTooLarge = errors.New("object too large")
)

// Object is a downloaded object body with its metadata.
type Object struct {
	Data        []byte
	ContentType string
}

// IS3Storage defines the interface for S3 operations.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, prefix, ownerID, filename, contentType string) (url string, key string, err error)
	GetObject(ctx context.Context, key string, maxBytes int64) (*Object, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	PublicURL(key string) string
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(ctx context.Context, cfg *config.Config) (IS3Storage, error) {
	opts := []func(*aws_config.LoadOptions) error{aws_config.WithRegion(cfg.AwsRegion)}
	if cfg.AwsAccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)))
	}
	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
	}, nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename keeps the base name and replaces anything outside
// [a-zA-Z0-9._-] so the key cannot escape its prefix.
func SanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeFilename.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return base
}

// ObjectKey builds the key an upload is stored under.
func ObjectKey(prefix, ownerID, filename string) string {
	return fmt.Sprintf("%s/%s/%s_%s", prefix, ownerID, uuid.NewString(), SanitizeFilename(filename))
}

// GeneratePresignedPutURL creates a pre-signed URL for uploading an object.
// It returns the URL and the generated object key.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, prefix, ownerID, filename, contentType string) (string, string, error) {
	objectKey := ObjectKey(prefix, ownerID, filename)

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.cfg.UploadURLTTL))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}
	return presignedReq.URL, objectKey, nil
}

// GetObject downloads an object. Objects larger than maxBytes are rejected
// without reading them fully.
func (s *s3Storage) GetObject(ctx context.Context, key string, maxBytes int64) (*Object, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("object %s exceeds %d bytes: %w", key, maxBytes, ErrObjectTooLarge)
	}
	return &Object{Data: data, ContentType: aws.ToString(out.ContentType)}, nil
}

func (s *s3Storage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *s3Storage) DeleteObject(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the URL an object is served from.
func (s *s3Storage) PublicURL(key string) string {
	return PublicURL(s.cfg.ImageBaseS3URL, key)
}

// PublicURL joins base and key with exactly one slash.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
