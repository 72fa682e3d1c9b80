package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-license-orderflow/internal/aws"
)

// S3Store streams objects from a single bucket.
type S3Store struct {
	client  aws.S3API
	presign aws.S3PresignAPI
	bucket  string
}

// NewS3Store reads from bucket. Links need WithPresigner.
func NewS3Store(client aws.S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// WithPresigner enables Link.
func (s *S3Store) WithPresigner(p aws.S3PresignAPI) *S3Store {
	s.presign = p
	return s
}

func (s *S3Store) Open(ctx context.Context, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}

	obj := &Object{
		Body:          out.Body,
		ContentLength: -1,
		ContentType:   ContentTypeFor(key),
	}
	if out.ContentLength != nil {
		obj.ContentLength = *out.ContentLength
	}
	return obj, nil
}

// Link checks that key exists and presigns a GetObject that S3 serves as an attachment.
func (s *S3Store) Link(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	if s.presign == nil {
		return "", errors.New("s3 store has no presigner")
	}
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		if isNoSuchKey(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("head object: %w", err)
	}

	disposition := fmt.Sprintf("attachment; filename=%q", filename)
	contentType := ContentTypeFor(key)
	noStore := "no-store"
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     &s.bucket,
		Key:                        &key,
		ResponseContentDisposition: &disposition,
		ResponseContentType:        &contentType,
		ResponseCacheControl:       &noStore,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound")
}
