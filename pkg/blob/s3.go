package blob

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
)

// S3Signer presigns PUT/GET requests against S3 or an S3-compatible
// endpoint (MinIO and friends via path-style addressing).
type S3Signer struct {
	bucket  string
	presign *s3.PresignClient
}

// NewS3Signer builds a presigner from static credentials.
func NewS3Signer(cfg config.S3Config) (*S3Signer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	awsCfg := aws.Config{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, opts...)
	logger.Info("s3_signer_initialized", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return &S3Signer{bucket: cfg.Bucket, presign: s3.NewPresignClient(client)}, nil
}

// SignUpload implements Signer.
func (s *S3Signer) SignUpload(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign upload: %w", err)
	}
	return req.URL, nil
}

// SignRead implements Signer.
func (s *S3Signer) SignRead(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign read: %w", err)
	}
	return req.URL, nil
}

// Bucket implements Signer.
func (s *S3Signer) Bucket() string { return s.bucket }
