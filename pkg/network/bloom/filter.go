// Package bloom implements the transaction bloom filter backing the
// filterload/filteradd/filterclear commands (§4.10): a client-side SPV
// peer narrows which transactions a full node relays to it by loading a
// filter here, matched against murmur3 hash rotations.
package bloom

import (
	"math"

	"github.com/twmb/murmur3"
)

// groestlConst is the tweak Bitcoin-derived bloom filters add to each
// hash-function seed so the k rotations don't collide trivially.
const groestlConst = 0xfba4c795

// Filter is a classic k-hash Bloom filter over a fixed bit array, sized
// and tuned the way filterload negotiates: a byte size and a hash-
// function count chosen for a target false-positive rate, plus a random
// tweak mixed into every hash so two filters with the same parameters
// don't collide the same way.
type Filter struct {
	bits  []byte
	k     uint32
	tweak uint32
}

// New allocates a Filter with the given bit-array size (bytes), k hash
// functions, and tweak (§4.10 filterload parameters).
func New(size int, k uint32, tweak uint32) *Filter {
	if size < 1 {
		size = 1
	}
	return &Filter{bits: make([]byte, size), k: k, tweak: tweak}
}

// Load reconstructs a Filter from an already-computed bit array, as
// carried in a filterload message's Data field.
func Load(data []byte, k uint32, tweak uint32) *Filter {
	bits := make([]byte, len(data))
	copy(bits, data)
	return &Filter{bits: bits, k: k, tweak: tweak}
}

// NewForElements sizes a Filter for n elements at false-positive rate p,
// using the standard Bloom filter capacity formulas.
func NewForElements(n int, p float64, tweak uint32) *Filter {
	if n < 1 {
		n = 1
	}
	m := -1 * float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	size := int(math.Ceil(m / 8))
	k := uint32(math.Round((m / float64(n)) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 50 {
		k = 50
	}
	return New(size, k, tweak)
}

func (f *Filter) hash(i uint32, data []byte) uint32 {
	seed := i*groestlConst + f.tweak
	return murmur3.SeedSum32(seed, data) % uint32(len(f.bits)*8)
}

// Add sets the bits data hashes to under every one of the filter's k
// hash functions.
func (f *Filter) Add(data []byte) {
	for i := uint32(0); i < f.k; i++ {
		bit := f.hash(i, data)
		f.bits[bit/8] |= 1 << (bit % 8)
	}
}

// Test reports whether data may be a member: true means "maybe", false
// means "definitely not" (standard Bloom filter semantics — no false
// negatives, possible false positives).
func (f *Filter) Test(data []byte) bool {
	for i := uint32(0); i < f.k; i++ {
		bit := f.hash(i, data)
		if f.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// Clear zeroes every bit, equivalent to a filterclear message.
func (f *Filter) Clear() {
	for i := range f.bits {
		f.bits[i] = 0
	}
}
