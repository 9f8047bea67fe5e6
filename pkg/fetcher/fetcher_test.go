package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plectr/reconcile/pkg/blobstore"
)

type countingReader struct {
	inner blobstore.Reader
	calls atomic.Int32
	err   error
}

func (r *countingReader) Get(ctx context.Context, hash string) ([]byte, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.inner.Get(ctx, hash)
}

func seed(t *testing.T, store *blobstore.MemoryStore, contents ...string) []string {
	t.Helper()
	hashes := make([]string, 0, len(contents))
	for _, c := range contents {
		h, err := store.Put(context.Background(), []byte(c))
		require.NoError(t, err)
		hashes = append(hashes, h)
	}
	return hashes
}

func TestFetchPair(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore(blobstore.Blake3Hasher{})
	hashes := seed(t, store, "local\n", "remote\n")

	f := New(store)
	pair, err := f.FetchPair(ctx, "a.txt", hashes[0], hashes[1])
	require.NoError(t, err)

	assert.Equal(t, "a.txt", pair.Path)
	assert.Equal(t, []byte("local\n"), pair.Local)
	assert.Equal(t, []byte("remote\n"), pair.Remote)
	assert.Equal(t, hashes[0], pair.LocalHash)
	assert.Equal(t, hashes[1], pair.RemoteHash)
}

func TestFetchPairIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore(blobstore.Blake3Hasher{})
	hashes := seed(t, store, "one", "two")

	f := New(store)
	first, err := f.FetchPair(ctx, "p", hashes[0], hashes[1])
	require.NoError(t, err)
	second, err := f.FetchPair(ctx, "p", hashes[0], hashes[1])
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFetchPairMissingBlob(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore(blobstore.Blake3Hasher{})
	hashes := seed(t, store, "present")

	f := New(store)

	tests := []struct {
		name   string
		local  string
		remote string
	}{
		{name: "local missing", local: "deadbeef", remote: hashes[0]},
		{name: "remote missing", local: hashes[0], remote: "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := f.FetchPair(ctx, "p", tt.local, tt.remote)
			assert.Nil(t, pair)
			assert.ErrorIs(t, err, ErrBlobUnavailable)
			assert.ErrorIs(t, err, blobstore.ErrNotFound)
		})
	}
}

func TestFetchPairVerifiesContent(t *testing.T) {
	ctx := context.Background()
	hasher := blobstore.Blake3Hasher{}
	store := blobstore.NewMemoryStore(hasher)
	hashes := seed(t, store, "good")
	store.PutRaw("0000", []byte("tampered"))

	t.Run("without verification", func(t *testing.T) {
		pair, err := New(store).FetchPair(ctx, "p", hashes[0], "0000")
		require.NoError(t, err)
		assert.Equal(t, []byte("tampered"), pair.Remote)
	})

	t.Run("with verification", func(t *testing.T) {
		_, err := New(store, WithVerification(hasher)).FetchPair(ctx, "p", hashes[0], "0000")
		assert.ErrorIs(t, err, ErrBlobUnavailable)
	})
}

func TestFetchPairTransportError(t *testing.T) {
	transport := errors.New("connection reset")
	reader := &countingReader{err: transport}

	_, err := New(reader).FetchPair(context.Background(), "p", "a", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, transport)
	assert.NotErrorIs(t, err, ErrBlobUnavailable)
}

func TestFetchAll(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore(blobstore.Blake3Hasher{})

	var requests []Request
	for i := 0; i < 20; i++ {
		hashes := seed(t, store, fmt.Sprintf("local %d", i), fmt.Sprintf("remote %d", i))
		requests = append(requests, Request{
			Path:       fmt.Sprintf("file-%02d", i),
			LocalHash:  hashes[0],
			RemoteHash: hashes[1],
		})
	}
	requests = append(requests, Request{Path: "missing", LocalHash: "nope", RemoteHash: "nope"})

	reader := &countingReader{inner: store}
	results := New(reader).FetchAll(ctx, requests, 3)

	require.Len(t, results, len(requests))
	for i, r := range results[:20] {
		require.NoError(t, r.Error)
		assert.Equal(t, requests[i], r.Request)
		assert.Equal(t, fmt.Sprintf("local %d", i), string(r.Pair.Local))
		assert.Equal(t, fmt.Sprintf("remote %d", i), string(r.Pair.Remote))
	}
	assert.ErrorIs(t, results[20].Error, ErrBlobUnavailable)
	assert.Nil(t, results[20].Pair)
}

func TestFetchAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := blobstore.NewMemoryStore(blobstore.Blake3Hasher{})
	results := New(store).FetchAll(ctx, []Request{{Path: "a", LocalHash: "x", RemoteHash: "y"}}, 0)

	require.Len(t, results, 1)
	assert.Error(t, results[0].Error)
}
