package ecengine

import (
	"fmt"
)

// combiner computes u1*P1 + u2*P2. Implementations run with the device
// lock held by the caller.
type combiner interface {
	combine(ctx *Context, e Engine, ws *workspace, result *Point, u1 Scalar, p1 *Point, u2 Scalar, p2 *Point) error
	name() string
}

// selectCombiner picks the combiner for strategy given what dev offers.
func selectCombiner(strategy CombinerStrategy, dev *Device) (combiner, error) {
	_, accelerated := dev.Shamir()
	switch strategy {
	case CombinerAccelerated:
		if !accelerated {
			return nil, makeError(ErrUnsupported, "engine has no combined multiply")
		}
		return acceleratedCombiner{}, nil
	case CombinerFallback:
		return fallbackCombiner{}, nil
	case CombinerAuto, "":
		if accelerated {
			return acceleratedCombiner{}, nil
		}
		return fallbackCombiner{}, nil
	}
	return nil, makeError(ErrInvalidArgument, fmt.Sprintf("unknown combiner %q", strategy))
}

// Combine computes result = u1*p1 + u2*p2. A nil p1 selects the generator.
func Combine(ctx *Context, result *Point, u1 Scalar, p1 *Point, u2 Scalar, p2 *Point) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if err := checkResult(ctx.curve, result); err != nil {
		return err
	}
	if ctx.curve.IsX25519() {
		return makeError(ErrUnsupported, "point addition is not defined for X25519")
	}
	for _, u := range []Scalar{u1, u2} {
		if u.IsKeySlot() {
			return makeError(ErrInvalidArgument, "combined multiply needs explicit scalars")
		}
		if len(u.Bytes) > ctx.curve.NBytes {
			return makeError(ErrInvalidArgument, fmt.Sprintf("scalar is %d bytes, "+
				"curve %s allows %d", len(u.Bytes), ctx.curve.Name, ctx.curve.NBytes))
		}
	}
	if p1 != nil {
		if err := validatePoint(ctx.curve, p1); err != nil {
			return err
		}
	}
	if err := validatePoint(ctx.curve, p2); err != nil {
		return err
	}
	ws := ctx.workspace()
	defer ws.release()
	return ctx.device.Do("combine", func(e Engine) error {
		return ctx.combiner.combine(ctx, e, ws, result, u1, p1, u2, p2)
	})
}

// acceleratedCombiner dispatches one combined multiply-and-add.
type acceleratedCombiner struct{}

func (acceleratedCombiner) name() string { return string(CombinerAccelerated) }

func (acceleratedCombiner) combine(ctx *Context, e Engine, ws *workspace, result *Point, u1 Scalar, p1 *Point, u2 Scalar, p2 *Point) error {
	c := ctx.curve
	se, ok := e.(ShamirEngine)
	if !ok {
		return makeError(ErrUnsupported, "engine has no combined multiply")
	}
	if p1 == nil {
		g, err := ws.generator("shamir.generator")
		if err != nil {
			return err
		}
		p1 = g
	}
	op := &ShamirOp{
		Result:         result,
		U1:             u1.Bytes,
		U1LittleEndian: u1.LittleEndian,
		P1:             p1,
		U2:             u2.Bytes,
		U2LittleEndian: u2.LittleEndian,
		P2:             p2,
	}
	result.Undefined = false
	if err := se.Shamir(c, op); err != nil {
		result.clear()
		return engineError(err, "combined multiply on %s", c.Name)
	}
	if result.Undefined || result.isZero(false) {
		result.clear()
		return makeError(ErrSignatureInvalid, "combined multiply produced the point at infinity")
	}
	return nil
}

// fallbackCombiner runs two multiplications and one addition, refusing to
// add reflected points.
type fallbackCombiner struct{}

func (fallbackCombiner) name() string { return string(CombinerFallback) }

func (fallbackCombiner) combine(ctx *Context, e Engine, ws *workspace, result *Point, u1 Scalar, p1 *Point, u2 Scalar, p2 *Point) error {
	c := ctx.curve
	r, err := ws.point("shamir.r", false)
	if err != nil {
		return err
	}
	t, err := ws.point("shamir.t", false)
	if err != nil {
		return err
	}
	diff, err := ws.scalar("shamir.diff")
	if err != nil {
		return err
	}
	sum, err := ws.scalar("shamir.sum")
	if err != nil {
		return err
	}

	if err := ctx.multiplyLocked(e, ws, r, p1, u1, false); err != nil {
		return err
	}
	if err := ctx.multiplyLocked(e, ws, t, p2, u2, false); err != nil {
		return err
	}
	if r.Undefined || t.Undefined {
		return makeError(ErrSignatureInvalid, "partial product is the point at infinity")
	}

	// R + T is the identity when T = -R.
	if err := e.ModSub(c, ModPrime, diff, BE(r.X), BE(t.X)); err != nil {
		return engineError(err, "comparing partial products")
	}
	if err := e.ModAdd(c, ModPrime, sum, BE(r.Y), BE(t.Y)); err != nil {
		return engineError(err, "comparing partial products")
	}
	if isZero(diff) && isZero(sum) {
		logger.Warnw("reflected partial products", "curve", c.Name)
		return makeError(ErrSignatureInvalid, "partial products are reflected")
	}

	result.Undefined = false
	if err := e.Add(c, result, t, r); err != nil {
		result.clear()
		return engineError(err, "point addition on %s", c.Name)
	}
	if result.Undefined {
		result.clear()
		return makeError(ErrSignatureInvalid, "point addition produced the point at infinity")
	}
	return nil
}
