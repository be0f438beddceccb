package ecengine

import (
	"crypto/subtle"
	"fmt"
)

// Point is an affine point as two coordinate buffers of NBytes each.
type Point struct {
	X, Y []byte

	// LittleEndian marks both coordinates as little-endian.
	LittleEndian bool

	// Undefined is set by the engine when the point has no affine
	// representation (the identity of a Weierstrass curve).
	Undefined bool
}

// NewPoint allocates a zero point for the curve in its native byte order.
func NewPoint(c *Curve) *Point {
	return &Point{
		X:            make([]byte, c.NBytes),
		Y:            make([]byte, c.NBytes),
		LittleEndian: c.LittleEndian,
	}
}

// Copy returns a deep copy of p.
func (p *Point) Copy() *Point {
	if p == nil {
		return nil
	}
	return &Point{
		X:            append([]byte(nil), p.X...),
		Y:            append([]byte(nil), p.Y...),
		LittleEndian: p.LittleEndian,
		Undefined:    p.Undefined,
	}
}

// Equal reports whether p and q encode the same coordinates, taking byte
// order into account.
func (p *Point) Equal(q *Point) bool {
	if p == nil || q == nil {
		return p == q
	}
	if p.Undefined || q.Undefined {
		return p.Undefined == q.Undefined
	}
	a, b := p.bigEndian(), q.bigEndian()
	return subtle.ConstantTimeCompare(a.X, b.X) == 1 &&
		subtle.ConstantTimeCompare(a.Y, b.Y) == 1
}

// String implements fmt.Stringer.
func (p *Point) String() string {
	if p == nil {
		return "<nil>"
	}
	if p.Undefined {
		return "(undefined)"
	}
	be := p.bigEndian()
	return fmt.Sprintf("(%x, %x)", be.X, be.Y)
}

// bigEndian returns p in big-endian order, copying only when needed.
func (p *Point) bigEndian() *Point {
	if !p.LittleEndian {
		return p
	}
	q := p.Copy()
	q.setEndianness(false)
	return q
}

// setEndianness reverses the coordinates in place when the order differs.
func (p *Point) setEndianness(littleEndian bool) {
	if p.LittleEndian == littleEndian {
		return
	}
	reverse(p.X)
	reverse(p.Y)
	p.LittleEndian = littleEndian
}

// isZero reports whether the affine coordinates are all zero. X25519 only
// carries the X coordinate.
func (p *Point) isZero(xOnly bool) bool {
	if !isZero(p.X) {
		return false
	}
	return xOnly || isZero(p.Y)
}

func (p *Point) clear() {
	if p == nil {
		return
	}
	clearBytes(p.X)
	clearBytes(p.Y)
	p.Undefined = false
}

// Scalar is a multiplier passed to the point multiplier. A Scalar with no
// bytes refers to the key already loaded into the accelerator key slot of
// the context.
type Scalar struct {
	Bytes        []byte
	LittleEndian bool
}

// KeySlotScalar is the sentinel scalar that selects the context key slot.
var KeySlotScalar = Scalar{}

// IsKeySlot reports whether s refers to the accelerator key slot.
func (s Scalar) IsKeySlot() bool {
	return len(s.Bytes) == 0
}

// BigEndianScalar wraps b as a big-endian scalar.
func BigEndianScalar(b []byte) Scalar {
	return Scalar{Bytes: b}
}

// LittleEndianScalar wraps b as a little-endian scalar.
func LittleEndianScalar(b []byte) Scalar {
	return Scalar{Bytes: b, LittleEndian: true}
}

// Signature is an ECDSA signature with fixed-width fields of NBytes.
type Signature struct {
	R, S []byte

	// LittleEndian marks R and S as little-endian.
	LittleEndian bool
}

// bigEndian returns copies of r and s in big-endian order.
func (sig *Signature) bigEndian() (r, s []byte) {
	r = append([]byte(nil), sig.R...)
	s = append([]byte(nil), sig.S...)
	if sig.LittleEndian {
		reverse(r)
		reverse(s)
	}
	return r, s
}

// validateScalar rejects zero scalars and, when the scalar is exactly NBytes
// long, scalars equal to the group order.
func validateScalar(c *Curve, s Scalar) error {
	if s.IsKeySlot() {
		return nil
	}
	if isZero(s.Bytes) {
		return makeError(ErrZeroScalar, "scalar is zero")
	}
	if len(s.Bytes) == c.NBytes {
		order := c.N
		if s.LittleEndian {
			order = c.orderLE()
		}
		if subtle.ConstantTimeCompare(s.Bytes, order) == 1 {
			return makeError(ErrZeroScalar, "scalar equals the group order")
		}
	}
	if len(s.Bytes) > c.NBytes {
		str := fmt.Sprintf("scalar is %d bytes, curve %s allows %d",
			len(s.Bytes), c.Name, c.NBytes)
		return makeError(ErrInvalidArgument, str)
	}
	return nil
}

// validatePoint checks the shape of p. The on-curve check is left to the
// engine.
func validatePoint(c *Curve, p *Point) error {
	if p == nil {
		return makeError(ErrInvalidArgument, "point is nil")
	}
	if p.Undefined {
		return makeError(ErrInvalidPoint, "point is undefined")
	}
	if len(p.X) != c.NBytes || len(p.Y) != c.NBytes {
		str := fmt.Sprintf("point coordinates are %d/%d bytes, curve %s "+
			"needs %d", len(p.X), len(p.Y), c.Name, c.NBytes)
		return makeError(ErrInvalidPoint, str)
	}
	return nil
}

// inRange reports whether 1 <= v <= n-1 for big-endian v and n of equal
// length.
func inRange(v, n []byte) bool {
	if len(v) != len(n) || isZero(v) {
		return false
	}
	return lessThan(v, n)
}

// lessThan compares two equal-length big-endian integers.
func lessThan(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
