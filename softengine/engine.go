// Package softengine is a software accelerator for the ecengine core. It
// implements the full engine contract, including the combined multiply and
// key-slot signing, on top of crypto/elliptic, btcec, x/crypto/curve25519,
// edwards25519 and math/big.
package softengine

import (
	"fmt"
	"math/big"
	"sync"

	"ecengine.mleku.dev"
	"ecengine.mleku.dev/internal/flogging"
)

var logger = flogging.MustGetLogger("ecengine.softengine")

// Operation names accepted by FailNext.
const (
	OpMultiply   = "multiply"
	OpAdd        = "add"
	OpShamir     = "shamir"
	OpModAdd     = "modadd"
	OpModSub     = "modsub"
	OpModMul     = "modmul"
	OpModInverse = "modinverse"
	OpModReduce  = "modreduce"
	OpOnCurve    = "oncurve"
	OpSign       = "sign"
)

// Engine is the software accelerator. Arithmetic holds no state; the key
// slots and injected faults are guarded by an internal mutex so an Engine
// may be shared by several devices.
type Engine struct {
	mu     sync.Mutex
	slots  map[int]keySlot
	faults map[string][]error
}

var (
	_ ecengine.ShamirEngine  = (*Engine)(nil)
	_ ecengine.KeySlotSigner = (*Engine)(nil)
)

// New returns an Engine with no key slots loaded.
func New() *Engine {
	return &Engine{
		slots:  map[int]keySlot{},
		faults: map[string][]error{},
	}
}

// FailNext makes the next call of op return err. Calls queue up.
func (e *Engine) FailNext(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[op] = append(e.faults[op], err)
}

func (e *Engine) fault(op string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	q := e.faults[op]
	if len(q) == 0 {
		return nil
	}
	err := q[0]
	if len(q) == 1 {
		delete(e.faults, op)
	} else {
		e.faults[op] = q[1:]
	}
	logger.Debugw("injected fault", "op", op, "error", err)
	return err
}

// Multiply computes op.Result = op.Scalar * op.Point, or uses the key in
// op.KeySlot as the scalar.
func (e *Engine) Multiply(c *ecengine.Curve, op *ecengine.MultiplyOp) error {
	if err := e.fault(OpMultiply); err != nil {
		return err
	}
	if op == nil {
		return kindError(ecengine.ErrInvalidArgument, "nil multiply operation")
	}
	g, err := groupFor(c)
	if err != nil {
		return err
	}
	var k []byte
	if op.UseKeySlot {
		k, err = e.slotKey(c, op.KeySlot)
		if err != nil {
			return err
		}
	} else {
		k = bigEndian(op.Scalar, op.ScalarLittleEndian)
	}
	defer clearBytes(k)
	if len(k) == 0 {
		return kindError(ecengine.ErrInvalidArgument, "empty scalar")
	}
	p, err := decodePoint(c, op.Point)
	if err != nil {
		return err
	}
	r, err := g.mul(p, k)
	if err != nil {
		return err
	}
	return encodePoint(c, r, op.Result)
}

// Add computes result = p + q.
func (e *Engine) Add(c *ecengine.Curve, result, p, q *ecengine.Point) error {
	if err := e.fault(OpAdd); err != nil {
		return err
	}
	g, err := groupFor(c)
	if err != nil {
		return err
	}
	a, err := decodePoint(c, p)
	if err != nil {
		return err
	}
	b, err := decodePoint(c, q)
	if err != nil {
		return err
	}
	r, err := addAffine(g, a, b)
	if err != nil {
		return err
	}
	return encodePoint(c, r, result)
}

// Shamir computes op.Result = op.U1*op.P1 + op.U2*op.P2.
func (e *Engine) Shamir(c *ecengine.Curve, op *ecengine.ShamirOp) error {
	if err := e.fault(OpShamir); err != nil {
		return err
	}
	if op == nil {
		return kindError(ecengine.ErrInvalidArgument, "nil combined operation")
	}
	g, err := groupFor(c)
	if err != nil {
		return err
	}
	p1, err := decodePoint(c, op.P1)
	if err != nil {
		return err
	}
	p2, err := decodePoint(c, op.P2)
	if err != nil {
		return err
	}
	r, err := mulOrIdentity(g, p1, bigEndian(op.U1, op.U1LittleEndian))
	if err != nil {
		return err
	}
	t, err := mulOrIdentity(g, p2, bigEndian(op.U2, op.U2LittleEndian))
	if err != nil {
		return err
	}
	sum, err := addAffine(g, r, t)
	if err != nil {
		return err
	}
	return encodePoint(c, sum, op.Result)
}

func mulOrIdentity(g group, p affine, k []byte) (affine, error) {
	defer clearBytes(k)
	if len(k) == 0 || new(big.Int).SetBytes(k).Sign() == 0 {
		if !g.onCurve(p) {
			return affine{}, kindError(ecengine.ErrInvalidPoint, "point is not on the curve")
		}
		var zero [1]byte
		return g.mul(p, zero[:])
	}
	return g.mul(p, k)
}

func addAffine(g group, a, b affine) (affine, error) {
	switch {
	case a.inf && b.inf:
		return infinity(), nil
	case a.inf:
		return b, nil
	case b.inf:
		return a, nil
	}
	return g.add(a, b)
}

// ModAdd computes result = a + b mod m.
func (e *Engine) ModAdd(c *ecengine.Curve, m ecengine.Modulus, result []byte, a, b ecengine.Operand) error {
	if err := e.fault(OpModAdd); err != nil {
		return err
	}
	n := modulus(c, m)
	v := new(big.Int).Add(operand(a), operand(b))
	return put(c, result, v.Mod(v, n))
}

// ModSub computes result = a - b mod m.
func (e *Engine) ModSub(c *ecengine.Curve, m ecengine.Modulus, result []byte, a, b ecengine.Operand) error {
	if err := e.fault(OpModSub); err != nil {
		return err
	}
	n := modulus(c, m)
	v := new(big.Int).Sub(operand(a), operand(b))
	return put(c, result, v.Mod(v, n))
}

// ModMul computes result = a * b mod m.
func (e *Engine) ModMul(c *ecengine.Curve, m ecengine.Modulus, result []byte, a, b ecengine.Operand) error {
	if err := e.fault(OpModMul); err != nil {
		return err
	}
	n := modulus(c, m)
	v := new(big.Int).Mul(operand(a), operand(b))
	return put(c, result, v.Mod(v, n))
}

// ModInverse computes result = a^-1 mod m.
func (e *Engine) ModInverse(c *ecengine.Curve, m ecengine.Modulus, result []byte, a ecengine.Operand) error {
	if err := e.fault(OpModInverse); err != nil {
		return err
	}
	n := modulus(c, m)
	v := new(big.Int).Mod(operand(a), n)
	if v.Sign() == 0 {
		return kindError(ecengine.ErrZeroScalar, "inverse of zero mod %s", m)
	}
	if v.ModInverse(v, n) == nil {
		return kindError(ecengine.ErrInvalidArgument, "operand has no inverse mod %s", m)
	}
	return put(c, result, v)
}

// ModReduce computes result = a mod m.
func (e *Engine) ModReduce(c *ecengine.Curve, m ecengine.Modulus, result []byte, a ecengine.Operand) error {
	if err := e.fault(OpModReduce); err != nil {
		return err
	}
	n := modulus(c, m)
	return put(c, result, new(big.Int).Mod(operand(a), n))
}

// OnCurve returns ecengine.ErrInvalidPoint when p is not on the curve.
func (e *Engine) OnCurve(c *ecengine.Curve, p *ecengine.Point) error {
	if err := e.fault(OpOnCurve); err != nil {
		return err
	}
	g, err := groupFor(c)
	if err != nil {
		return err
	}
	a, err := decodePoint(c, p)
	if err != nil {
		return err
	}
	if !g.onCurve(a) {
		return kindError(ecengine.ErrInvalidPoint, "point is not on %s", c.Name)
	}
	return nil
}

func modulus(c *ecengine.Curve, m ecengine.Modulus) *big.Int {
	if m == ecengine.ModOrder {
		return new(big.Int).SetBytes(c.N)
	}
	return new(big.Int).SetBytes(c.P)
}

func operand(o ecengine.Operand) *big.Int {
	b := bigEndian(o.Bytes, o.LittleEndian)
	defer clearBytes(b)
	return new(big.Int).SetBytes(b)
}

// put writes v big-endian into result, which must be NBytes long. result
// may alias an operand.
func put(c *ecengine.Curve, result []byte, v *big.Int) error {
	if len(result) != c.NBytes {
		return kindError(ecengine.ErrBufferTooSmall, "result is %d bytes, want %d", len(result), c.NBytes)
	}
	v.FillBytes(result)
	return nil
}

// bigEndian returns a big-endian copy of b.
func bigEndian(b []byte, littleEndian bool) []byte {
	out := append([]byte(nil), b...)
	if littleEndian {
		reverse(out)
	}
	return out
}

func decodePoint(c *ecengine.Curve, p *ecengine.Point) (affine, error) {
	if p == nil {
		return affine{}, kindError(ecengine.ErrInvalidArgument, "nil point")
	}
	if p.Undefined {
		return infinity(), nil
	}
	if len(p.X) != c.NBytes || len(p.Y) != c.NBytes {
		return affine{}, kindError(ecengine.ErrInvalidPoint, "point coordinates are %d/%d bytes, want %d",
			len(p.X), len(p.Y), c.NBytes)
	}
	x := bigEndian(p.X, p.LittleEndian)
	y := bigEndian(p.Y, p.LittleEndian)
	return affine{x: new(big.Int).SetBytes(x), y: new(big.Int).SetBytes(y)}, nil
}

// encodePoint writes a into out in the byte order out asks for.
func encodePoint(c *ecengine.Curve, a affine, out *ecengine.Point) error {
	if out == nil || len(out.X) != c.NBytes || len(out.Y) != c.NBytes {
		return kindError(ecengine.ErrBufferTooSmall, "result point must have %d byte coordinates", c.NBytes)
	}
	out.Undefined = a.inf
	if a.inf {
		clearBytes(out.X)
		clearBytes(out.Y)
		return nil
	}
	a.x.FillBytes(out.X)
	a.y.FillBytes(out.Y)
	if out.LittleEndian {
		reverse(out.X)
		reverse(out.Y)
	}
	return nil
}

func kindError(kind ecengine.ErrorKind, format string, args ...interface{}) error {
	return ecengine.Error{Err: kind, Description: fmt.Sprintf(format, args...)}
}
