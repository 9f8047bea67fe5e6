// Package fetcher retrieves the two sides of a conflicted path from the blob
// store so they can be compared and resolved.
package fetcher

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/plectr/reconcile/pkg/blobstore"
)

// ErrBlobUnavailable means a hash recorded in a tree cannot be resolved to
// matching stored content. The hash is immutable, so retrying will not help.
var ErrBlobUnavailable = errors.New("blob unavailable")

// Pair holds both sides of one conflict.
type Pair struct {
	Path       string
	LocalHash  string
	RemoteHash string
	Local      []byte
	Remote     []byte
}

type Option func(*Fetcher)

// WithVerification makes the fetcher re-hash fetched bytes and treat a
// mismatch as ErrBlobUnavailable.
func WithVerification(hasher blobstore.Hasher) Option {
	return func(f *Fetcher) {
		f.hasher = hasher
	}
}

// Fetcher fetches blob pairs by hash. It holds no mutable state and may be
// used concurrently.
type Fetcher struct {
	store  blobstore.Reader
	hasher blobstore.Hasher
}

func New(store blobstore.Reader, opts ...Option) *Fetcher {
	f := &Fetcher{store: store}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPair retrieves the local and remote blobs for path concurrently.
// Both are addressed by hash only; path is carried for reporting.
func (f *Fetcher) FetchPair(ctx context.Context, path, localHash, remoteHash string) (*Pair, error) {
	pair := &Pair{
		Path:       path,
		LocalHash:  localHash,
		RemoteHash: remoteHash,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := f.fetch(gctx, localHash)
		if err != nil {
			return fmt.Errorf("local side of %s: %w", path, err)
		}
		pair.Local = data
		return nil
	})
	g.Go(func() error {
		data, err := f.fetch(gctx, remoteHash)
		if err != nil {
			return fmt.Errorf("remote side of %s: %w", path, err)
		}
		pair.Remote = data
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pair, nil
}

func (f *Fetcher) fetch(ctx context.Context, hash string) ([]byte, error) {
	data, err := f.store.Get(ctx, hash)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrBlobUnavailable, hash, err)
		}
		return nil, fmt.Errorf("failed to fetch blob %s: %w", hash, err)
	}

	if f.hasher != nil {
		sum, err := f.hasher.Sum(data)
		if err != nil {
			return nil, fmt.Errorf("failed to hash blob %s: %w", hash, err)
		}
		if sum != hash {
			return nil, fmt.Errorf("%w: %s: stored content hashes to %s", ErrBlobUnavailable, hash, sum)
		}
	}
	return data, nil
}
