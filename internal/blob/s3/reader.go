package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Reader implements domain.BlobReader and domain.BlobDeleter against the
// archive bucket. Paths are logical: the client's key prefix is applied on
// the way out and stripped from listings on the way back.
type Reader struct {
	client *Client
}

// NewReader creates a Reader over the client's bucket and prefix.
func NewReader(c *Client) *Reader {
	return &Reader{client: c}
}

// Get opens the object at path. The caller owns the returned body and must
// close it. A missing object maps to domain.ErrNotFound.
func (r *Reader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := r.client.S3().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.client.Bucket()),
		Key:    aws.String(r.client.Key(path)),
	})
	if err != nil {
		if isObjectMissing(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", path, err)
	}
	return out.Body, nil
}

// List returns metadata for every object under the given logical prefix,
// following continuation tokens until the listing is complete. Returned
// paths have the client prefix stripped, so they round-trip through Get.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	pager := s3.NewListObjectsV2Paginator(r.client.S3(), &s3.ListObjectsV2Input{
		Bucket: aws.String(r.client.Bucket()),
		Prefix: aws.String(r.client.Key(prefix)),
	})

	var infos []domain.BlobInfo
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list prefix %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{
				Path: r.client.Path(aws.ToString(obj.Key)),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			// ContentType is not part of ListObjectsV2 output.
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Exists reports whether an object is present at path via HeadObject.
func (r *Reader) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.client.S3().HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.client.Bucket()),
		Key:    aws.String(r.client.Key(path)),
	})
	switch {
	case err == nil:
		return true, nil
	case isObjectMissing(err):
		return false, nil
	default:
		return false, fmt.Errorf("s3blob: exists %s: %w", path, err)
	}
}

// Delete removes the object at path. Deleting an absent object is not an
// error, matching S3 semantics.
func (r *Reader) Delete(ctx context.Context, path string) error {
	_, err := r.client.S3().DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.client.Bucket()),
		Key:    aws.String(r.client.Key(path)),
	})
	if err != nil {
		return fmt.Errorf("s3blob: delete %s: %w", path, err)
	}
	return nil
}

// isObjectMissing recognizes the three shapes a missing object comes back
// as: NoSuchKey from GetObject, NotFound from HeadObject, and a bare 404
// from providers that skip the typed error codes.
func isObjectMissing(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}

	var httpErr interface{ HTTPStatusCode() int }
	return errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404
}

var (
	_ domain.BlobReader  = (*Reader)(nil)
	_ domain.BlobDeleter = (*Reader)(nil)
)
