package softengine

import (
	"crypto/elliptic"
	"math/big"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/curve25519"

	"ecengine.mleku.dev"
)

// affine is a point in big-endian integer coordinates. inf marks the
// identity of a Weierstrass group, which has no affine form.
type affine struct {
	x, y *big.Int
	inf  bool
}

// group is the point arithmetic of one curve.
type group interface {
	// mul returns k*p for a big-endian k.
	mul(p affine, k []byte) (affine, error)
	add(p, q affine) (affine, error)
	onCurve(p affine) bool
}

func groupFor(c *ecengine.Curve) (group, error) {
	switch c.ID {
	case ecengine.CurveP224, ecengine.CurveP256, ecengine.CurveP384, ecengine.CurveP521:
		return nistGroup{nistCurve(c.ID)}, nil
	case ecengine.CurveSecp256k1:
		return k1Group{}, nil
	case ecengine.CurveX25519:
		return x25519Group{}, nil
	case ecengine.CurveEd25519:
		return edGroup{}, nil
	}
	return nil, kindError(ecengine.ErrUnsupported, "no arithmetic for curve %s", c.Name)
}

func infinity() affine { return affine{x: new(big.Int), y: new(big.Int), inf: true} }

// nistGroup wraps the crypto/elliptic implementations, which panic on
// points off the curve; every input is checked first.
type nistGroup struct {
	curve elliptic.Curve
}

func (g nistGroup) mul(p affine, k []byte) (affine, error) {
	if p.inf {
		return infinity(), nil
	}
	if !g.onCurve(p) {
		return affine{}, kindError(ecengine.ErrInvalidPoint, "point is not on %s", g.curve.Params().Name)
	}
	return fromXY(g.curve.ScalarMult(p.x, p.y, k)), nil
}

func (g nistGroup) add(p, q affine) (affine, error) {
	if !g.onCurve(p) || !g.onCurve(q) {
		return affine{}, kindError(ecengine.ErrInvalidPoint, "point is not on %s", g.curve.Params().Name)
	}
	return fromXY(g.curve.Add(p.x, p.y, q.x, q.y)), nil
}

func (g nistGroup) onCurve(p affine) bool {
	return !p.inf && g.curve.IsOnCurve(p.x, p.y)
}

// fromXY maps the (0, 0) crypto/elliptic uses for the identity to inf.
func fromXY(x, y *big.Int) affine {
	if x.Sign() == 0 && y.Sign() == 0 {
		return infinity()
	}
	return affine{x: x, y: y}
}

// k1Group is secp256k1 in Jacobian coordinates through btcec.
type k1Group struct{}

func (k1Group) jacobian(p affine) (btcec.JacobianPoint, bool) {
	var x, y btcec.FieldVal
	if p.x.Sign() < 0 || p.y.Sign() < 0 || p.x.BitLen() > 256 || p.y.BitLen() > 256 {
		return btcec.JacobianPoint{}, false
	}
	if x.SetByteSlice(p.x.Bytes()) || y.SetByteSlice(p.y.Bytes()) {
		return btcec.JacobianPoint{}, false
	}
	return btcec.MakeJacobianPoint(&x, &y, new(btcec.FieldVal).SetInt(1)), true
}

func (g k1Group) affine(j *btcec.JacobianPoint) affine {
	if j.Z.IsZero() || (j.X.IsZero() && j.Y.IsZero()) {
		return infinity()
	}
	j.ToAffine()
	return affine{
		x: new(big.Int).SetBytes(j.X.Bytes()[:]),
		y: new(big.Int).SetBytes(j.Y.Bytes()[:]),
	}
}

func (g k1Group) mul(p affine, k []byte) (affine, error) {
	if p.inf {
		return infinity(), nil
	}
	if !g.onCurve(p) {
		return affine{}, kindError(ecengine.ErrInvalidPoint, "point is not on secp256k1")
	}
	pj, _ := g.jacobian(p)
	var s btcec.ModNScalar
	s.SetByteSlice(k)
	defer s.Zero()
	var r btcec.JacobianPoint
	btcec.ScalarMultNonConst(&s, &pj, &r)
	return g.affine(&r), nil
}

func (g k1Group) add(p, q affine) (affine, error) {
	if !g.onCurve(p) || !g.onCurve(q) {
		return affine{}, kindError(ecengine.ErrInvalidPoint, "point is not on secp256k1")
	}
	pj, _ := g.jacobian(p)
	qj, _ := g.jacobian(q)
	var r btcec.JacobianPoint
	btcec.AddNonConst(&pj, &qj, &r)
	return g.affine(&r), nil
}

// onCurve checks y^2 = x^3 + 7 over the field.
func (g k1Group) onCurve(p affine) bool {
	if p.inf {
		return false
	}
	j, ok := g.jacobian(p)
	if !ok {
		return false
	}
	var y2, x3 btcec.FieldVal
	y2.SquareVal(&j.Y).Normalize()
	x3.SquareVal(&j.X).Mul(&j.X).AddInt(7).Normalize()
	return y2.Equals(&x3)
}

// x25519Group is the Montgomery ladder. Only u coordinates exist and every
// byte string is an acceptable input.
type x25519Group struct{}

func (x25519Group) mul(p affine, k []byte) (affine, error) {
	if len(k) > 32 {
		return affine{}, kindError(ecengine.ErrInvalidArgument, "X25519 scalar is %d bytes", len(k))
	}
	var scalar, u [32]byte
	defer clearBytes(scalar[:])
	leBytes(scalar[:], k)
	if p.x.BitLen() > 256 {
		return affine{}, kindError(ecengine.ErrInvalidPoint, "u coordinate out of range")
	}
	p.x.FillBytes(u[:])
	reverse(u[:])

	out, err := curve25519.X25519(scalar[:], u[:])
	if err != nil {
		// Low-order inputs give the all-zero output; the caller decides
		// whether that is acceptable.
		return affine{x: new(big.Int), y: new(big.Int)}, nil
	}
	reverse(out)
	return affine{x: new(big.Int).SetBytes(out), y: new(big.Int)}, nil
}

func (x25519Group) add(p, q affine) (affine, error) {
	return affine{}, kindError(ecengine.ErrUnsupported, "point addition is not defined for X25519")
}

func (x25519Group) onCurve(p affine) bool { return !p.inf }

// edGroup is Ed25519 in extended coordinates through edwards25519.
type edGroup struct{}

func (edGroup) point(p affine) (*edwards25519.Point, error) {
	if p.inf || p.x.BitLen() > 255 || p.y.BitLen() > 255 || p.x.Sign() < 0 || p.y.Sign() < 0 {
		return nil, kindError(ecengine.ErrInvalidPoint, "point is not on Ed25519")
	}
	var enc [32]byte
	p.y.FillBytes(enc[:])
	reverse(enc[:])
	enc[31] |= byte(p.x.Bit(0)) << 7
	q, err := new(edwards25519.Point).SetBytes(enc[:])
	if err != nil {
		return nil, kindError(ecengine.ErrInvalidPoint, "point is not on Ed25519: %v", err)
	}
	// The encoding only carries the parity of x.
	back := edAffine(q)
	if back.x.Cmp(p.x) != 0 || back.y.Cmp(p.y) != 0 {
		return nil, kindError(ecengine.ErrInvalidPoint, "point is not on Ed25519")
	}
	return q, nil
}

func edAffine(q *edwards25519.Point) affine {
	X, Y, Z, _ := q.ExtendedCoordinates()
	zInv := new(field.Element).Invert(Z)
	x := new(field.Element).Multiply(X, zInv).Bytes()
	y := new(field.Element).Multiply(Y, zInv).Bytes()
	reverse(x)
	reverse(y)
	return affine{x: new(big.Int).SetBytes(x), y: new(big.Int).SetBytes(y)}
}

func (g edGroup) mul(p affine, k []byte) (affine, error) {
	q, err := g.point(p)
	if err != nil {
		return affine{}, err
	}
	if len(k) > 64 {
		return affine{}, kindError(ecengine.ErrInvalidArgument, "Ed25519 scalar is %d bytes", len(k))
	}
	var wide [64]byte
	defer clearBytes(wide[:])
	leBytes(wide[:], k)
	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		return affine{}, kindError(ecengine.ErrInvalidArgument, "Ed25519 scalar: %v", err)
	}
	return edAffine(new(edwards25519.Point).ScalarMult(s, q)), nil
}

func (g edGroup) add(p, q affine) (affine, error) {
	a, err := g.point(p)
	if err != nil {
		return affine{}, err
	}
	b, err := g.point(q)
	if err != nil {
		return affine{}, err
	}
	return edAffine(new(edwards25519.Point).Add(a, b)), nil
}

func (g edGroup) onCurve(p affine) bool {
	_, err := g.point(p)
	return err == nil
}

// leBytes writes big-endian k into dst little-endian, zero filling the rest.
func leBytes(dst, k []byte) {
	clearBytes(dst)
	for i := range k {
		dst[i] = k[len(k)-1-i]
	}
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
