package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/plectr/reconcile/internal/s3client"
)

// ObjectClient is the S3 surface S3Store needs. *s3client.Client satisfies it.
type ObjectClient interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	HeadObject(ctx context.Context, bucket, key string) (*s3client.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, key string, data []byte) error
}

// S3Store keeps each blob as one object named prefix+hash.
type S3Store struct {
	client ObjectClient
	bucket string
	prefix string
	hasher Hasher
}

func NewS3Store(client ObjectClient, bucket, prefix string, hasher Hasher) *S3Store {
	if hasher == nil {
		hasher = Blake3Hasher{}
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		hasher: hasher,
	}
}

func (s *S3Store) key(hash string) string {
	return s.prefix + hash
}

func (s *S3Store) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := validateHash(hash); err != nil {
		return nil, err
	}

	data, err := s.client.GetObject(ctx, s.bucket, s.key(hash))
	if err != nil {
		if errors.Is(err, s3client.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return nil, fmt.Errorf("failed to get blob %s: %w", hash, err)
	}
	return data, nil
}

// Put uploads data unless an object with the same hash already exists.
func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	hash, err := s.hasher.Sum(data)
	if err != nil {
		return "", err
	}

	_, err = s.client.HeadObject(ctx, s.bucket, s.key(hash))
	switch {
	case err == nil:
		return hash, nil
	case !errors.Is(err, s3client.ErrNotFound):
		return "", fmt.Errorf("failed to check blob %s: %w", hash, err)
	}

	if err := s.client.PutObject(ctx, s.bucket, s.key(hash), data); err != nil {
		return "", fmt.Errorf("failed to upload blob %s: %w", hash, err)
	}
	return hash, nil
}
