// Package blobstore provides content-addressable blob storage keyed by the
// hash of each blob's bytes.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no blob is stored under the hash.
var ErrNotFound = errors.New("blob not found")

// Reader resolves a content hash to its bytes.
type Reader interface {
	Get(ctx context.Context, hash string) ([]byte, error)
}

// Writer persists bytes and returns their deterministic hash.
type Writer interface {
	Put(ctx context.Context, data []byte) (string, error)
}

type Store interface {
	Reader
	Writer
}

// validateHash rejects hashes that cannot be safely used as a storage key.
func validateHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("empty hash")
	}
	if strings.ContainsAny(hash, "/\\") || strings.Contains(hash, "..") {
		return fmt.Errorf("malformed hash %q", hash)
	}
	return nil
}
