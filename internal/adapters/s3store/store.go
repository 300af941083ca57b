package s3store

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options configures the object store.
type Options struct {
	Bucket string
	Region string
	// Endpoint selects an S3-compatible service (MinIO, R2, Supabase storage)
	// and switches to path-style addressing.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// PublicBaseURL is prepended to object keys to build public URLs.
	PublicBaseURL string
	CacheControl  string
}

// putObjectAPI is the slice of the S3 client the store uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store implements ports.BlobStore on S3.
type Store struct {
	client putObjectAPI
	opts   Options
}

// New loads AWS configuration and builds an S3 client. Static credentials
// are used when both keys are set; otherwise the default chain applies.
// The SDK's own retries are disabled: callers retry through the executor.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3store: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 1
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, opts), nil
}

func newStore(client putObjectAPI, opts Options) *Store {
	if opts.CacheControl == "" {
		opts.CacheControl = "public, max-age=31536000, immutable"
	}
	return &Store{client: client, opts: opts}
}

// Put uploads body under key and returns its public URL.
func (s *Store) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		CacheControl:  aws.String(s.opts.CacheControl),
	})
	if err != nil {
		return "", classify("s3.put_object", err)
	}
	return s.PublicURL(key), nil
}

// PublicURL returns the URL under which key is served.
func (s *Store) PublicURL(key string) string {
	switch {
	case s.opts.PublicBaseURL != "":
		return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + key
	case s.opts.Endpoint != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.opts.Endpoint, "/"), s.opts.Bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
	}
}
