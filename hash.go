// Checksums for index snapshots.
//
// The header stores a 64-bit digest of the uncompressed body as 16 hex
// characters, together with the number of the algorithm that produced it,
// so a snapshot is always verified the way it was written.
package dsv

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Checksum algorithms, persisted in snapshot headers.
const (
	AlgXXHash3 = 1 // default
	AlgFNV1a   = 2
	AlgBlake2b = 3
)

func validAlgorithm(alg int) bool {
	return alg >= AlgXXHash3 && alg <= AlgBlake2b
}

// hash returns the hex digest of data, or "" for an unknown algorithm.
func hash(data []byte, alg int) string {
	var sum uint64
	switch alg {
	case AlgXXHash3:
		sum = xxh3.Hash(data)
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(data)
		sum = h.Sum64()
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil)
		h.Write(data)
		sum = binary.BigEndian.Uint64(h.Sum(nil))
	default:
		return ""
	}
	return fmt.Sprintf("%016x", sum)
}
