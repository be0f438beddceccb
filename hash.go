package ecengine

import (
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// HashAlgorithm selects the digest computed by the message-level signing
// and verification entry points.
type HashAlgorithm int

const (
	HashUnknown HashAlgorithm = iota
	HashSHA256
	HashSHA384
	HashSHA512
	HashSHA3_256
	HashSHA3_384
)

var hashNames = map[HashAlgorithm]string{
	HashSHA256:   "sha256",
	HashSHA384:   "sha384",
	HashSHA512:   "sha512",
	HashSHA3_256: "sha3-256",
	HashSHA3_384: "sha3-384",
}

func (h HashAlgorithm) String() string {
	if s, ok := hashNames[h]; ok {
		return s
	}
	return "unknown"
}

// ParseHashAlgorithm returns the algorithm named name, ignoring case.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for h, s := range hashNames {
		if s == name {
			return h, nil
		}
	}
	return HashUnknown, makeError(ErrUnsupported, fmt.Sprintf("unknown hash algorithm %q", name))
}

// New returns a fresh hash.Hash for h.
func (h HashAlgorithm) New() (hash.Hash, error) {
	switch h {
	case HashSHA256:
		return sha256simd.New(), nil
	case HashSHA384:
		return sha512.New384(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashSHA3_256:
		return sha3.New256(), nil
	case HashSHA3_384:
		return sha3.New384(), nil
	}
	return nil, makeError(ErrUnsupported, fmt.Sprintf("unsupported hash algorithm %d", int(h)))
}

// Size returns the digest length of h, or zero for an unknown algorithm.
func (h HashAlgorithm) Size() int {
	switch h {
	case HashSHA256, HashSHA3_256:
		return 32
	case HashSHA384, HashSHA3_384:
		return 48
	case HashSHA512:
		return 64
	}
	return 0
}

// Digest hashes msg with h.
func (h HashAlgorithm) Digest(msg []byte) ([]byte, error) {
	hasher, err := h.New()
	if err != nil {
		return nil, err
	}
	hasher.Write(msg)
	return hasher.Sum(nil), nil
}

// DefaultHash returns the digest conventionally paired with curve c.
func DefaultHash(c *Curve) HashAlgorithm {
	switch {
	case c == nil:
		return HashUnknown
	case c.NBytes > 48:
		return HashSHA512
	case c.NBytes > 32:
		return HashSHA384
	default:
		return HashSHA256
	}
}

// digestToScalar writes the leftmost bits of digest, as many as the group
// order has, into z as a little-endian integer of NBytes. z must be NBytes
// long and zeroed.
func digestToScalar(c *Curve, digest, z []byte) {
	e := digest
	if len(e) > c.NBytes {
		e = e[:c.NBytes]
	}
	// Left-align then copy, so z holds e big-endian before the shift.
	off := c.NBytes - len(e)
	copy(z[off:], e)
	if excess := len(e)*8 - bitLen(c.N); excess > 0 {
		shiftRight(z, uint(excess))
	}
	reverse(z)
}

// bitLen returns the bit length of big-endian b.
func bitLen(b []byte) int {
	for i, v := range b {
		if v != 0 {
			n := 8
			for v&0x80 == 0 {
				v <<= 1
				n--
			}
			return (len(b)-i-1)*8 + n
		}
	}
	return 0
}

// shiftRight shifts big-endian b right by s bits, s < 8.
func shiftRight(b []byte, s uint) {
	var carry byte
	for i := range b {
		v := b[i]
		b[i] = v>>s | carry
		carry = v << (8 - s)
	}
}
