package ecengine

// Modulus selects the modulus of a modular-arithmetic dispatch.
type Modulus int

const (
	// ModPrime reduces by the field prime p.
	ModPrime Modulus = iota
	// ModOrder reduces by the group order n.
	ModOrder
)

func (m Modulus) String() string {
	if m == ModOrder {
		return "n"
	}
	return "p"
}

// Operand is an integer input to a modular-arithmetic dispatch. Results are
// always written big-endian, NBytes long.
type Operand struct {
	Bytes        []byte
	LittleEndian bool
}

// BE wraps b as a big-endian operand.
func BE(b []byte) Operand { return Operand{Bytes: b} }

// LE wraps b as a little-endian operand.
func LE(b []byte) Operand { return Operand{Bytes: b, LittleEndian: true} }

// MultiplyOp describes one point multiplication. It is built per call and
// never mutated by the engine, other than writing Result.
type MultiplyOp struct {
	// Result receives Scalar*Point in the byte order Result.LittleEndian
	// asks for.
	Result *Point

	// Point is the multiplicand. The core always supplies it, synthesizing
	// the generator when the caller omits it.
	Point *Point

	// Scalar and ScalarLittleEndian describe the multiplier. When UseKeySlot
	// is set Scalar is empty and the engine uses the key in KeySlot.
	Scalar             []byte
	ScalarLittleEndian bool
	UseKeySlot         bool
	KeySlot            int

	// PrivateKey marks the scalar as long-term key material so the engine
	// may pick a hardened code path.
	PrivateKey bool
}

// ShamirOp describes a combined Result = U1*P1 + U2*P2.
type ShamirOp struct {
	Result *Point

	U1             []byte
	U1LittleEndian bool
	P1             *Point

	U2             []byte
	U2LittleEndian bool
	P2             *Point
}

// Engine is the modular-arithmetic accelerator the core orchestrates. The
// core never does curve arithmetic itself; it validates, sequences and
// zeroes. Implementations are not required to be safe for concurrent use:
// the Device serializes every call.
type Engine interface {
	// Multiply computes op.Result = op.Scalar * op.Point.
	Multiply(c *Curve, op *MultiplyOp) error

	// Add computes result = p + q.
	Add(c *Curve, result, p, q *Point) error

	// ModAdd, ModSub and ModMul compute result = a op b mod m.
	ModAdd(c *Curve, m Modulus, result []byte, a, b Operand) error
	ModSub(c *Curve, m Modulus, result []byte, a, b Operand) error
	ModMul(c *Curve, m Modulus, result []byte, a, b Operand) error

	// ModInverse computes result = a^-1 mod m.
	ModInverse(c *Curve, m Modulus, result []byte, a Operand) error

	// ModReduce computes result = a mod m for an operand of any length.
	ModReduce(c *Curve, m Modulus, result []byte, a Operand) error

	// OnCurve returns an error when p does not satisfy the curve equation.
	OnCurve(c *Curve, p *Point) error
}

// ShamirEngine is an Engine with a combined double multiply-and-add
// primitive.
type ShamirEngine interface {
	Engine
	Shamir(c *Curve, op *ShamirOp) error
}

// KeySlotSigner is an Engine able to sign directly with a protected key
// slot. The signature is returned big-endian and is used verbatim.
type KeySlotSigner interface {
	SignWithKeySlot(c *Curve, slot int, digest []byte) (*Signature, error)
}
