package sdruntime

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand/v2"
)

// NewRand returns a deterministic random source for seed. Two sources built
// from the same seed yield the same sequence.
func NewRand(seed uint64) *mathrand.Rand {
	return mathrand.New(mathrand.NewPCG(seed, seed))
}

// RandomSeed returns a seed in [0, MaxSeed] from crypto/rand, for engines
// that need an explicit seed when the user did not pick one.
func RandomSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return DefaultSeed
	}
	return binary.LittleEndian.Uint64(buf[:]) % (MaxSeed + 1)
}
