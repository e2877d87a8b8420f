package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Engine implements Engine on an S3 bucket, mapping keys to objects under
// a root prefix. S3 lists keys in lexicographic order, which gives Scan its
// ordering for free.
type S3Engine struct {
	client     *s3.Client
	bucket     string
	root       string
	maxRetries int
}

// S3Config holds configuration for the S3 engine.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// Root is the object key prefix all engine keys live under.
	Root string
}

// NewS3Engine creates a new S3-backed engine.
func NewS3Engine(ctx context.Context, bucket string, cfg S3Config) (*S3Engine, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load AWS config: %w", err)
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

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return NewS3EngineWithClient(client, bucket, cfg), nil
}

// NewS3EngineWithClient creates a new S3 engine with a pre-configured client.
func NewS3EngineWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Engine {
	root := cfg.Root
	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &S3Engine{
		client:     client,
		bucket:     bucket,
		root:       root,
		maxRetries: 3,
	}
}

// Get returns the value stored under key.
func (e *S3Engine) Get(ctx context.Context, key string) ([]byte, error) {
	var resp *s3.GetObjectOutput
	err := e.retryWithBackoff(ctx, func() error {
		var getErr error
		resp, getErr = e.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(e.root + key),
		})
		if getErr != nil {
			var noSuchKey *types.NoSuchKey
			if errors.As(getErr, &noSuchKey) {
				return ErrKeyNotFound
			}
		}
		return getErr
	})
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("engine: failed to get %s: %w", key, err)
	}
	defer resp.Body.Close()

	value, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to read %s: %w", key, err)
	}
	return value, nil
}

// Put durably stores value under key.
func (e *S3Engine) Put(ctx context.Context, key string, value []byte) error {
	err := e.retryWithBackoff(ctx, func() error {
		_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(e.root + key),
			Body:   bytes.NewReader(value),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("engine: failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key. S3 deletes are idempotent, so
// absent keys are not an error.
func (e *S3Engine) Delete(ctx context.Context, key string) error {
	err := e.retryWithBackoff(ctx, func() error {
		_, err := e.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(e.root + key),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("engine: failed to delete %s: %w", key, err)
	}
	return nil
}

// Scan returns entries under prefix in ascending key order.
func (e *S3Engine) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(e.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
		Prefix: aws.String(e.root + prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: failed to list prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), e.root))
		}
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		value, err := e.Get(ctx, key)
		if err != nil {
			// Deleted between list and get; skip.
			if errors.Is(err, ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}

// Close is a no-op; the S3 client holds no local resources.
func (e *S3Engine) Close() error {
	return nil
}

// retryWithBackoff executes the operation with exponential backoff retry.
func (e *S3Engine) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		// Missing keys are a result, not a fault
		if errors.Is(lastErr, ErrKeyNotFound) {
			return lastErr
		}

		if attempt < e.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
