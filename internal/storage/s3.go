package storage

import (
	"context"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/allisson/backydb/internal/errors"
)

// S3Store stores artifacts in an S3 bucket via s3blob, which performs a
// multipart upload and only makes the final object visible once the
// upload completes, so a reader never observes a partial object.
type S3Store struct {
	bucket   *blob.Bucket
	client   *s3.Client
	bucketID string
	prefix   string
}

// OpenS3Store opens bucket (in region) as an S3Store. prefix, if non-empty,
// scopes every object name under it.
func OpenS3Store(ctx context.Context, bucketName, region, prefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(ErrStorageUnavailable, "storage: load aws config: "+err.Error())
	}

	client := s3.NewFromConfig(cfg)

	bucket, err := s3blob.OpenBucketV2(ctx, client, bucketName, nil)
	if err != nil {
		return nil, errors.Wrap(ErrStorageUnavailable, "storage: open s3 bucket: "+err.Error())
	}

	return &S3Store{bucket: bucket, client: client, bucketID: bucketName, prefix: prefix}, nil
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	w, err := s.bucket.NewWriter(ctx, s.key(name), nil)
	if err != nil {
		return "", classifyBlobErr(err)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", classifyBlobErr(err)
	}
	if err := w.Close(); err != nil {
		return "", classifyBlobErr(err)
	}
	return "s3://" + s.bucketID + "/" + s.key(name), nil
}

func (s *S3Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, s.key(name), nil)
	if err != nil {
		return nil, classifyBlobErr(err)
	}
	return r, nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.key(prefix)})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyBlobErr(err)
		}
		names = append(names, obj.Key)
	}
	return names, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Delete(ctx, s.key(name)); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return classifyBlobErr(err)
	}
	return nil
}

func (s *S3Store) Close() error {
	return s.bucket.Close()
}

// AbortAll aborts every in-progress multipart upload under prefix, used by
// cancellation to guarantee no partial object is ever visible (§5, §8
// scenario 5).
func (s *S3Store) AbortAll(ctx context.Context, prefix string) error {
	out, err := s.client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: &s.bucketID,
		Prefix: strPtr(s.key(prefix)),
	})
	if err != nil {
		return errors.Wrap(ErrStorageUnavailable, "storage: list multipart uploads: "+err.Error())
	}

	for _, upload := range out.Uploads {
		_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   &s.bucketID,
			Key:      upload.Key,
			UploadId: upload.UploadId,
		})
		if err != nil {
			return errors.Wrap(ErrStorageUnavailable, "storage: abort multipart upload: "+err.Error())
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }
