package sink

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"image2md/internal/logging"
)

// s3API is the subset of the S3 client the sink uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink archives artifacts in an S3 bucket, keyed by date so objects from
// different days never collide.
type S3Sink struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Sink creates a sink backed by the given bucket. Credentials come from
// the standard AWS configuration chain.
func NewS3Sink(ctx context.Context, bucket, region, prefix string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Sink{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *S3Sink) Write(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	now := time.Now().UTC()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s", s.prefix, now.Year(), now.Month(), now.Day(), name)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	logging.Log.Debug().Str("bucket", s.bucket).Str("key", key).Int("bytes", len(data)).Msg("uploaded artifact")
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
