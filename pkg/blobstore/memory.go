package blobstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	hasher Hasher

	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore(hasher Hasher) *MemoryStore {
	if hasher == nil {
		hasher = Blake3Hasher{}
	}
	return &MemoryStore{
		hasher: hasher,
		blobs:  make(map[string][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.blobs[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := s.hasher.Sum(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if _, exists := s.blobs[hash]; !exists {
		s.blobs[hash] = append([]byte(nil), data...)
	}
	s.mu.Unlock()
	return hash, nil
}

// PutRaw stores data under an arbitrary hash without verifying it.
// Tests use it to simulate a store that disagrees with its trees.
func (s *MemoryStore) PutRaw(hash string, data []byte) {
	s.mu.Lock()
	s.blobs[hash] = append([]byte(nil), data...)
	s.mu.Unlock()
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
