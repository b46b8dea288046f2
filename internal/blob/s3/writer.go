package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3MinPartSize is the smallest part size S3 accepts for multipart uploads.
const s3MinPartSize int64 = 5 * 1024 * 1024

// defaultContentType is applied when the caller passes none. Archive uploads
// are newline-delimited JSON.
const defaultContentType = "application/x-ndjson"

// Writer implements domain.BlobWriter against the archive bucket.
type Writer struct {
	client *Client
}

// NewWriter creates a Writer uploading under the client's bucket and prefix.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c}
}

// Put uploads data in a single PutObject call. Fine for archive files, which
// stay well under the single-request ceiling; use PutMultipart for anything
// bigger.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := w.client.S3().PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.Bucket()),
		Key:         aws.String(w.client.Key(path)),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

// PutMultipart streams data through the SDK upload manager, which splits it
// into parts and uploads them concurrently. partSize below the S3 minimum of
// 5 MiB is clamped up to it.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	if partSize < s3MinPartSize {
		partSize = s3MinPartSize
	}
	uploader := manager.NewUploader(w.client.S3(), func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.Bucket()),
		Key:         aws.String(w.client.Key(path)),
		Body:        data,
		ContentType: aws.String(defaultContentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", path, err)
	}
	return nil
}
