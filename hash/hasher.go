package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// Integer returns an xxhash-based hasher for integer keys.
func Integer[K constraints.Integer]() func(K) uint64 {
	return func(key K) uint64 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(key))
		return xxhash.Sum64(buf[:])
	}
}

// String hashes string keys with xxhash.
func String(key string) uint64 {
	return xxhash.Sum64String(key)
}
