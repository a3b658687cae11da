package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds configuration for an S3-hosted dataset.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// S3 reads a dataset object from S3. Its fingerprint comes from HeadObject
// (LastModified, ContentLength, ETag), so a re-uploaded object invalidates
// cached snapshots.
type S3 struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3 creates an S3 source for one bucket/key using the default AWS
// credential chain.
func NewS3(ctx context.Context, bucket, key string, cfg S3Config) (*S3, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: bucket,
		key:    key,
	}, nil
}

// NewS3WithClient creates an S3 source with a pre-configured client.
func NewS3WithClient(client *s3.Client, bucket, key string) *S3 {
	return &S3{client: client, bucket: bucket, key: key}
}

func (s *S3) Name() string {
	return "s3://" + s.bucket + "/" + s.key
}

func (s *S3) Fingerprint(ctx context.Context) (Fingerprint, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return Fingerprint{}, fmt.Errorf("%w: %s", ErrNotFound, s.Name())
		}
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	fp := Fingerprint{ETag: cleanETag(aws.ToString(head.ETag))}
	if head.LastModified != nil {
		fp.ModTime = head.LastModified.UTC()
	}
	if head.ContentLength != nil {
		fp.Size = *head.ContentLength
	}
	return fp, nil
}

func (s *S3) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Name())
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return out.Body, nil
}

// cleanETag strips the quotes S3 wraps around ETag values.
func cleanETag(etag string) string {
	return strings.Trim(etag, `"`)
}
