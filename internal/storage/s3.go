package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
)

// Mirror copies stored files to a secondary location.
type Mirror interface {
	Put(ctx context.Context, key, localPath, contentType string) error
}

// S3Config holds configuration for the S3 mirror
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string // Optional: for S3-compatible services (MinIO, R2, ...)
	KeyPrefix string
}

// s3API is the subset of the S3 client the mirror needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror uploads stored files to an S3-compatible bucket.
type S3Mirror struct {
	client s3API
	fs     afero.Fs
	bucket string
	prefix string
}

// NewS3Mirror builds an S3 client from cfg.
func NewS3Mirror(ctx context.Context, fs afero.Fs, cfg S3Config) (*S3Mirror, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	slog.Info("s3 mirror ready", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint)
	return newS3Mirror(client, fs, cfg.Bucket, cfg.KeyPrefix), nil
}

func newS3Mirror(client s3API, fs afero.Fs, bucket, prefix string) *S3Mirror {
	return &S3Mirror{client: client, fs: fs, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Put uploads the file at localPath as key.
func (m *S3Mirror) Put(ctx context.Context, key, localPath, contentType string) error {
	f, err := m.fs.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.objectKey(key)),
		Body:   f,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := m.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (m *S3Mirror) objectKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	if m.prefix == "" {
		return key
	}
	return path.Join(m.prefix, key)
}
