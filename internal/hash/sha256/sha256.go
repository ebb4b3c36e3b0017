// Package sha256 checksums crawl artifacts.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Reader returns a reader that passes r through while hashing it. Sum is
// valid once the reader has been drained.
func Reader(r io.Reader) *HashingReader {
	h := sha256.New()
	return &HashingReader{r: io.TeeReader(r, h), sum: func() string {
		return hex.EncodeToString(h.Sum(nil))
	}}
}

// HashingReader hashes everything read through it.
type HashingReader struct {
	r   io.Reader
	n   int64
	sum func() string
}

func (h *HashingReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	h.n += int64(n)
	return n, err
}

// Sum returns the hex digest of the bytes read so far.
func (h *HashingReader) Sum() string {
	return h.sum()
}

// Size returns the number of bytes read so far.
func (h *HashingReader) Size() int64 {
	return h.n
}

// String formats the digest as "sha256:<hex>".
func (h *HashingReader) String() string {
	return fmt.Sprintf("sha256:%s", h.Sum())
}
