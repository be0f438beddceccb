package ecengine

import (
	"crypto/subtle"
	"fmt"
	"io"
	"math/bits"
	mrand "math/rand/v2"

	"github.com/pkg/errors"
)

// RandomBelow fills out with a uniformly random big-endian integer in
// (0, n). n is big-endian and len(out) must equal len(n).
//
// Each round samples len(n) bytes, masks the top byte down to the bit
// length of n and tests the candidate. A rejected candidate gets up to
// patches fresh most-significant bytes before the whole value is drawn
// again. After retries rounds the source is considered broken.
func RandomBelow(r io.Reader, n, out []byte, retries, patches int) error {
	if r == nil || len(n) == 0 || len(out) != len(n) {
		return makeError(ErrInvalidArgument, "random sampler needs a source "+
			"and an output as long as the bound")
	}
	lead := 0
	for lead < len(n)-1 && n[lead] == 0 {
		lead++
	}
	if lead == len(n)-1 && n[lead] <= 1 {
		return makeError(ErrInvalidArgument, "random bound leaves an empty range")
	}
	clearBytes(out[:lead])
	mask := byte(0xff >> bits.LeadingZeros8(n[lead]))

	var patch [1]byte
	for i := 0; i < retries; i++ {
		if _, err := io.ReadFull(r, out[lead:]); err != nil {
			clearBytes(out)
			return errors.Wrap(makeError(ErrRandomSource, err.Error()),
				"reading random bytes")
		}
		out[lead] &= mask
		if inRange(out, n) {
			return nil
		}
		for j := 0; j < patches; j++ {
			if _, err := io.ReadFull(r, patch[:]); err != nil {
				clearBytes(out)
				return errors.Wrap(makeError(ErrRandomSource, err.Error()),
					"reading random patch byte")
			}
			out[lead] = patch[0] & mask
			if inRange(out, n) {
				return nil
			}
		}
	}
	clearBytes(out)
	str := fmt.Sprintf("no candidate below the bound after %d rounds", retries)
	return makeError(ErrRandomSource, str)
}

// jitter randomizes the time spent before secret-dependent comparisons.
type jitter struct {
	rng  *mrand.Rand
	sink byte
}

func newJitter(seed [32]byte) *jitter {
	return &jitter{rng: mrand.New(mrand.NewChaCha8(seed))}
}

// barrier spins a random number of dummy constant-time rounds, at most max.
func (j *jitter) barrier(max int) {
	if j == nil || max <= 0 {
		return
	}
	rounds := j.rng.IntN(max + 1)
	acc := j.sink
	for i := 0; i < rounds; i++ {
		acc ^= byte(subtle.ConstantTimeByteEq(byte(i), acc))
		acc = bits.RotateLeft8(acc, 1)
	}
	j.sink = acc
}
