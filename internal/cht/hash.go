package cht

import "github.com/dchest/siphash"

// hashKey is the stable keyed hash used to slice keys into branch-index
// chunks. A fixed 16-byte key keeps the hash stable across process
// restarts (needed since the trie is rebuilt from the journal on every
// open) while still being a keyed SipHash-2-4, unlike a bare FNV variant.
//
// Grounded on the teacher-adjacent opencoff-go-bbhash's use of
// siphash.New(key).Write(...).Sum64() for record checksums.
var hashKey = []byte{
	0x9e, 0x37, 0x79, 0xb9, 0x7f, 0x4a, 0x7c, 0x15,
	0xbf, 0x58, 0x47, 0x6d, 0x1c, 0xe4, 0xe5, 0xb9,
}

// HashBytes returns the stable 64-bit hash of b, used as a key's trie
// address.
func HashBytes(b []byte) uint64 {
	h := siphash.New(hashKey)
	h.Write(b)
	return h.Sum64()
}
