package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/plectr/reconcile/internal/s3client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockObjectClient is a mock implementation of ObjectClient for testing
type mockObjectClient struct {
	getObjectFunc  func(ctx context.Context, bucket, key string) ([]byte, error)
	headObjectFunc func(ctx context.Context, bucket, key string) (*s3client.ObjectInfo, error)
	putObjectFunc  func(ctx context.Context, bucket, key string, data []byte) error
}

func (m *mockObjectClient) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if m.getObjectFunc != nil {
		return m.getObjectFunc(ctx, bucket, key)
	}
	return nil, fmt.Errorf("GetObject not implemented")
}

func (m *mockObjectClient) HeadObject(ctx context.Context, bucket, key string) (*s3client.ObjectInfo, error) {
	if m.headObjectFunc != nil {
		return m.headObjectFunc(ctx, bucket, key)
	}
	return nil, fmt.Errorf("HeadObject not implemented")
}

func (m *mockObjectClient) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, bucket, key, data)
	}
	return fmt.Errorf("PutObject not implemented")
}

func TestStoreRoundTrip(t *testing.T) {
	fsStore, err := NewFSStore(t.TempDir(), nil)
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(nil),
		"fs":     fsStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			hash, err := store.Put(ctx, []byte("hello"))
			require.NoError(t, err)

			again, err := store.Put(ctx, []byte("hello"))
			require.NoError(t, err)
			assert.Equal(t, hash, again, "put must be deterministic")

			data, err := store.Get(ctx, hash)
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), data)

			_, err = store.Get(ctx, "0000")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFSStoreRejectsMalformedHash(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), nil)
	require.NoError(t, err)

	for _, hash := range []string{"", "../etc/passwd", "a/b"} {
		_, err := store.Get(context.Background(), hash)
		assert.Error(t, err, "hash %q", hash)
		assert.NotErrorIs(t, err, ErrNotFound)
	}
}

func TestFSStoreNoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, XXH3Hasher{})
	require.NoError(t, err)

	hash, err := store.Put(context.Background(), []byte("content"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, hash, entries[0].Name())

	info, err := os.Stat(filepath.Join(dir, hash))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestS3StoreGet(t *testing.T) {
	tests := []struct {
		name    string
		getErr  error
		wantErr error
	}{
		{name: "found"},
		{name: "missing", getErr: fmt.Errorf("%w: s3://b/k", s3client.ErrNotFound), wantErr: ErrNotFound},
		{name: "transport failure", getErr: errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotKey string
			client := &mockObjectClient{
				getObjectFunc: func(ctx context.Context, bucket, key string) ([]byte, error) {
					gotKey = bucket + "/" + key
					if tt.getErr != nil {
						return nil, tt.getErr
					}
					return []byte("data"), nil
				},
			}
			store := NewS3Store(client, "blobs", "objects/", nil)

			data, err := store.Get(context.Background(), "abc")
			assert.Equal(t, "blobs/objects/abc", gotKey)

			switch {
			case tt.getErr == nil:
				require.NoError(t, err)
				assert.Equal(t, []byte("data"), data)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrNotFound)
			}
		})
	}
}

func TestS3StorePut(t *testing.T) {
	want, _ := Blake3Hasher{}.Sum([]byte("payload"))

	t.Run("uploads new blob", func(t *testing.T) {
		var uploaded string
		client := &mockObjectClient{
			headObjectFunc: func(ctx context.Context, bucket, key string) (*s3client.ObjectInfo, error) {
				return nil, s3client.ErrNotFound
			},
			putObjectFunc: func(ctx context.Context, bucket, key string, data []byte) error {
				uploaded = key
				return nil
			},
		}
		hash, err := NewS3Store(client, "blobs", "", nil).Put(context.Background(), []byte("payload"))
		require.NoError(t, err)
		assert.Equal(t, want, hash)
		assert.Equal(t, want, uploaded)
	})

	t.Run("skips existing blob", func(t *testing.T) {
		client := &mockObjectClient{
			headObjectFunc: func(ctx context.Context, bucket, key string) (*s3client.ObjectInfo, error) {
				return &s3client.ObjectInfo{Size: 7}, nil
			},
		}
		hash, err := NewS3Store(client, "blobs", "", nil).Put(context.Background(), []byte("payload"))
		require.NoError(t, err)
		assert.Equal(t, want, hash)
	})

	t.Run("head failure aborts", func(t *testing.T) {
		client := &mockObjectClient{
			headObjectFunc: func(ctx context.Context, bucket, key string) (*s3client.ObjectInfo, error) {
				return nil, errors.New("access denied")
			},
		}
		_, err := NewS3Store(client, "blobs", "", nil).Put(context.Background(), []byte("payload"))
		assert.Error(t, err)
	})
}
