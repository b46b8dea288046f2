// Package s3blob implements the domain blob interfaces on S3-compatible
// object storage. The engine uses it for cold archives of settled trades,
// detected opportunities, and performance snapshots; any provider speaking
// the S3 API (AWS, MinIO, R2) works via the Endpoint field.
package s3blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds the connection parameters for the archive bucket.
type ClientConfig struct {
	// Endpoint overrides the S3 endpoint for compatible providers. Empty
	// means standard AWS S3. A bare host is allowed; the scheme is filled in
	// from UseSSL.
	Endpoint string

	// Region is the bucket region, or the provider's equivalent.
	Region string

	// Bucket holds every archive object.
	Bucket string

	// Prefix is prepended to every object key, so several engines or
	// environments can share one bucket ("prod/", "staging/"). May be empty.
	Prefix string

	// AccessKey and SecretKey are the static credentials.
	AccessKey string
	SecretKey string

	// UseSSL picks https when Endpoint carries no scheme.
	UseSSL bool

	// ForcePathStyle puts the bucket in the URL path instead of the
	// subdomain. Most self-hosted providers require it.
	ForcePathStyle bool
}

// Client wraps the AWS SDK S3 client together with the bucket and key prefix
// every reader and writer in this package operates under.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// New builds a Client from cfg. Bucket and Region are required; everything
// else has a usable zero value.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

// Health verifies the bucket is reachable and the credentials can see it.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: health check failed for bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op kept for symmetry with the other storage clients.
func (c *Client) Close() error {
	return nil
}

// S3 exposes the underlying SDK client to the reader and writer types.
func (c *Client) S3() *s3.Client {
	return c.s3
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Key maps a logical blob path to its object key under the client's prefix.
func (c *Client) Key(path string) string {
	return c.prefix + strings.TrimPrefix(path, "/")
}

// Path maps an object key back to the logical blob path.
func (c *Client) Path(key string) string {
	return strings.TrimPrefix(key, c.prefix)
}

// normalizePrefix guarantees a non-empty prefix ends in exactly one slash.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// withScheme fills in the URL scheme when the configured endpoint is a bare
// host, honoring useSSL. Endpoints that already carry a scheme pass through.
func withScheme(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
