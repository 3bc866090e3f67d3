package storage

import (
	"context"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"github.com/allisson/backydb/internal/errors"
)

// LocalStore stores artifacts on the local filesystem via fileblob, which
// writes to a temporary file and renames it into place on Close so a
// reader never observes a partially written object.
type LocalStore struct {
	bucket *blob.Bucket
}

// OpenLocalStore opens dir (created if necessary) as a LocalStore.
func OpenLocalStore(dir string) (*LocalStore, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
	})
	if err != nil {
		return nil, errors.Wrap(ErrStorageUnavailable, "storage: open local bucket: "+err.Error())
	}
	return &LocalStore{bucket: bucket}, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	w, err := s.bucket.NewWriter(ctx, name, nil)
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
	return name, nil
}

func (s *LocalStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, name, nil)
	if err != nil {
		return nil, classifyBlobErr(err)
	}
	return r, nil
}

func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
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

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Delete(ctx, name); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil
		}
		return classifyBlobErr(err)
	}
	return nil
}

func (s *LocalStore) Close() error {
	return s.bucket.Close()
}

func classifyBlobErr(err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return errors.Wrap(ErrStorageNotFound, err.Error())
	default:
		if strings.Contains(err.Error(), "not found") {
			return errors.Wrap(ErrStorageNotFound, err.Error())
		}
		return errors.Wrap(ErrStorageUnavailable, err.Error())
	}
}
