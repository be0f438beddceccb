package ecengine

import (
	"strings"
)

// CurveID identifies a built-in curve.
type CurveID int

const (
	CurveUnknown CurveID = iota
	CurveP224
	CurveP256
	CurveP384
	CurveP521
	CurveSecp256k1
	CurveX25519
	CurveEd25519
)

// Family is the shape of the curve equation, which decides the coordinate
// conventions and the protocols a curve supports.
type Family int

const (
	// Weierstrass curves: y^2 = x^3 + ax + b.
	Weierstrass Family = iota
	// Edwards curves (Ed25519).
	Edwards
	// Montgomery curves used through the X-only ladder (X25519).
	Montgomery
)

func (f Family) String() string {
	switch f {
	case Weierstrass:
		return "weierstrass"
	case Edwards:
		return "edwards"
	case Montgomery:
		return "montgomery"
	default:
		return "unknown"
	}
}

// Curve holds the read-only parameters of a curve. P and N are big-endian
// regardless of LittleEndian; G is stored in the curve's native byte order.
type Curve struct {
	ID     CurveID
	Name   string
	Family Family

	// P is the field prime and N the order of the generator, both
	// big-endian and NBytes long.
	P []byte
	N []byte

	// G is the generator in native byte order.
	G Point

	// NBytes is the byte length of every coordinate and scalar.
	NBytes int

	// LittleEndian marks curves whose native encoding is little-endian.
	LittleEndian bool
}

// IsX25519 reports whether c uses the X-only Montgomery ladder.
func (c *Curve) IsX25519() bool {
	return c != nil && c.Family == Montgomery
}

// orderLE returns the group order in little-endian order.
func (c *Curve) orderLE() []byte {
	n := append([]byte(nil), c.N...)
	reverse(n)
	return n
}

var curvesByName = map[string]CurveID{}

// CurveByID returns the built-in curve with the given identifier or nil.
func CurveByID(id CurveID) *Curve {
	return builtinCurves[id]
}

// CurveByName returns the built-in curve with the given name (case
// insensitive, common aliases accepted) or nil.
func CurveByName(name string) *Curve {
	id, ok := curvesByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	return builtinCurves[id]
}

// Curves returns the built-in curves ordered by identifier.
func Curves() []*Curve {
	out := make([]*Curve, 0, len(builtinCurves))
	for id := CurveP224; id <= CurveEd25519; id++ {
		if c, ok := builtinCurves[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
