package transform

import (
	"crypto/md5"  //nolint:gosec // content digest for S3 ETag compatibility, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// HashAlgo selects the digest HashingTransformer computes.
type HashAlgo int

const (
	HashSHA256 HashAlgo = iota
	HashMD5
)

// HashingTransformer is a passthrough stage that accumulates a digest
// over every byte seen and delivers it hex-encoded on Finish, matching
// spec.md §4.6's "HashingTransformer(algo) — passthrough; delivers hex
// digest on close."
type HashingTransformer struct {
	h      hash.Hash
	digest string
}

// NewHashingTransformer builds a HashingTransformer for algo.
func NewHashingTransformer(algo HashAlgo) *HashingTransformer {
	var h hash.Hash
	switch algo {
	case HashMD5:
		h = md5.New() //nolint:gosec
	default:
		h = sha256.New()
	}
	return &HashingTransformer{h: h}
}

// Push implements Transformer.
func (t *HashingTransformer) Push(chunk []byte) ([][]byte, error) {
	if len(chunk) > 0 {
		_, _ = t.h.Write(chunk)
	}
	return [][]byte{chunk}, nil
}

// Finish implements Transformer; it emits no trailing bytes.
func (t *HashingTransformer) Finish() ([][]byte, error) {
	t.digest = hex.EncodeToString(t.h.Sum(nil))
	return nil, nil
}

// Summary returns the hex digest. Valid only after Finish.
func (t *HashingTransformer) Summary() interface{} {
	return t.digest
}

var (
	_ Transformer = (*HashingTransformer)(nil)
	_ Summarizer  = (*HashingTransformer)(nil)
)
