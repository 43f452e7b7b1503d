// Package rendezvous picks owners for keys by highest random weight hashing.
// Adding or removing a candidate only moves the keys that candidate wins or
// owned, so routing stays stable while a set of actors changes.
package rendezvous

import (
	"cmp"
	"encoding/binary"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// TopK returns up to k candidates with the highest scores for key, best first.
// seed is optional and separates independent routing tables.
func TopK(key string, candidates []string, k int, seed string) []string {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	k = min(k, len(candidates))

	type entry struct {
		score uint64
		name  string
	}
	scored := make([]entry, len(candidates))
	for i, c := range candidates {
		scored[i] = entry{score: Score(key, c, seed), name: c}
	}
	slices.SortFunc(scored, func(a, b entry) int {
		// ties are broken by name so the order never depends on the input order
		return cmp.Or(cmp.Compare(b.score, a.score), cmp.Compare(a.name, b.name))
	})

	out := make([]string, k)
	for i := range out {
		out[i] = scored[i].name
	}
	return out
}

// Owner returns the single best candidate for key. ok is false if candidates
// is empty.
func Owner(key string, candidates []string, seed string) (owner string, ok bool) {
	if len(candidates) == 0 {
		return "", false
	}
	return TopK(key, candidates, 1, seed)[0], true
}

// Score is the weight of candidate for key.
func Score(key, candidate, seed string) uint64 {
	// an 8 byte digest is the score
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write([]byte(key))
	h.Write([]byte{0})
	h.Write([]byte(candidate))
	return binary.BigEndian.Uint64(h.Sum(nil))
}
