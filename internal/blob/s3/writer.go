package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MultipartThreshold is the payload size from which uploads are split into
// parts. It is also the S3 minimum part size.
const MultipartThreshold = 5 * 1024 * 1024

// Writer puts objects into the client's bucket.
type Writer struct {
	s3     *s3.Client
	bucket string
}

func NewWriter(c *Client) *Writer {
	return &Writer{s3: c.s3, bucket: c.bucket}
}

// Upload stores data under key, switching to a multipart upload once data
// reaches MultipartThreshold.
func (w *Writer) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if len(data) >= MultipartThreshold {
		return w.putMultipart(ctx, key, data, contentType)
	}
	_, err := w.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

func (w *Writer) putMultipart(ctx context.Context, key string, data []byte, contentType string) error {
	up := manager.NewUploader(w.s3, func(u *manager.Uploader) {
		u.PartSize = MultipartThreshold
	})
	_, err := up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
	}
	return nil
}
