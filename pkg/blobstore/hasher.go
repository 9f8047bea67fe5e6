package blobstore

import (
	"encoding/hex"
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/xxh3"
	"lukechampine.com/blake3"
)

const (
	HashBlake3 = "blake3"
	HashXXH3   = "xxh3"
	HashCID    = "cid"

	DefaultHash = HashBlake3
)

// Hasher computes the content address of a blob.
type Hasher interface {
	Name() string
	Sum(data []byte) (string, error)
}

// NewHasher returns the hasher registered under name.
func NewHasher(name string) (Hasher, error) {
	switch name {
	case HashBlake3, "":
		return Blake3Hasher{}, nil
	case HashXXH3:
		return XXH3Hasher{}, nil
	case HashCID:
		return CIDHasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// Blake3Hasher produces lowercase hex BLAKE3-256 digests.
type Blake3Hasher struct{}

func (Blake3Hasher) Name() string { return HashBlake3 }

func (Blake3Hasher) Sum(data []byte) (string, error) {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// XXH3Hasher produces hex XXH3-128 digests. Fast, not collision resistant
// against adversarial input.
type XXH3Hasher struct{}

func (XXH3Hasher) Name() string { return HashXXH3 }

func (XXH3Hasher) Sum(data []byte) (string, error) {
	sum := xxh3.Hash128(data).Bytes()
	return hex.EncodeToString(sum[:]), nil
}

// CIDHasher produces CIDv1 (raw codec, SHA2-256) strings.
type CIDHasher struct{}

func (CIDHasher) Name() string { return HashCID }

func (CIDHasher) Sum(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(gocid.Raw, mh).String(), nil
}
