// Package s3ds reads the dataset archive from an S3-compatible object store
// (AWS S3 or MinIO).
package s3ds

import (
	"context"
	"fmt"
	"io"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"echoair/internal/datasource"
)

// Config holds the object location and client settings. Credentials come
// from the default AWS chain (env, shared config, instance role).
type Config struct {
	Bucket    string
	Key       string
	Member    string // CSV entry when the object is a zip archive
	Region    string // default us-east-1
	Endpoint  string // optional; enables a custom endpoint such as MinIO
	PathStyle bool
}

// Source implements datasource.Source over a single S3 object.
type Source struct {
	client *s3.Client
	cfg    Config
}

// New builds an S3 client from the default AWS configuration chain.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("s3ds: bucket and key required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("s3ds: load aws config: %w", err)
	}
	return NewWithClient(NewClient(awsCfg, cfg), cfg), nil
}

// NewClient returns an *s3.Client honoring cfg's endpoint and addressing
// style.
func NewClient(awsCfg aws.Config, cfg Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, cfg Config) *Source {
	return &Source{client: client, cfg: cfg}
}

// Open fetches the object and unwraps it when it is a zip archive.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.cfg.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3ds: get s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Key, err)
	}
	rc, err := datasource.Unzip(out.Body, s.cfg.Member)
	if err != nil {
		return nil, fmt.Errorf("s3ds: s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Key, err)
	}
	return rc, nil
}

var _ datasource.Source = (*Source)(nil)
