// Package chunkid computes and formats chunk identifiers: the first 32
// bytes of SHA-512 over a chunk's uncompressed payload (the same
// truncation desync/casync uses, not the NIST SHA-512/256 variant with
// its own IV).
package chunkid

import (
	"crypto/sha512"
	"encoding/hex"
	"path/filepath"
)

// Compute returns the chunk id for data.
func Compute(data []byte) [32]byte {
	full := sha512.Sum512(data)
	var id [32]byte
	copy(id[:], full[:32])
	return id
}

// Hex lower-cases the id into the 64 hex characters used for filenames
// and index lookups.
func Hex(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

// Parse decodes a 64-character hex string back into an id.
func Parse(s string) ([32]byte, error) {
	var id [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// ShardedPath returns the on-disk path for id, sharded two levels deep by
// the first two hex byte-pairs: {aa}/{bb}/{64hex}.cacnk.
func ShardedPath(id [32]byte) string {
	h := Hex(id)
	return filepath.Join(h[0:2], h[2:4], h+".cacnk")
}

// FlatPath returns the unsharded on-disk filename: {64hex}.cacnk.
func FlatPath(id [32]byte) string {
	return Hex(id) + ".cacnk"
}
