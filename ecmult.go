package ecengine

import (
	"fmt"
)

// Multiply computes result = k*point. A nil point selects the generator.
// result must have NBytes coordinates; it is written in the byte order its
// LittleEndian field names.
func Multiply(ctx *Context, result, point *Point, k Scalar) error {
	if err := ctx.check(); err != nil {
		return err
	}
	if err := checkResult(ctx.curve, result); err != nil {
		return err
	}
	if err := validateScalar(ctx.curve, k); err != nil {
		return err
	}
	if point != nil {
		if err := validatePoint(ctx.curve, point); err != nil {
			return err
		}
	}
	ws := ctx.workspace()
	defer ws.release()
	return ctx.device.Do("multiply", func(e Engine) error {
		return ctx.multiplyLocked(e, ws, result, point, k, false)
	})
}

// multiplyLocked is the multiplier body. The caller holds the device lock.
func (ctx *Context) multiplyLocked(e Engine, ws *workspace, result, point *Point, k Scalar, private bool) error {
	c := ctx.curve
	if err := validateScalar(c, k); err != nil {
		return err
	}
	if point == nil {
		g, err := ws.generator("generator")
		if err != nil {
			return err
		}
		point = g
	}

	op := &MultiplyOp{
		Result:             result,
		Point:              point,
		Scalar:             k.Bytes,
		ScalarLittleEndian: k.LittleEndian,
		PrivateKey:         private,
	}
	if k.IsKeySlot() {
		if !ctx.useKeySlot {
			return makeError(ErrInvalidState, "key slot scalar without a key slot")
		}
		op.UseKeySlot = true
		op.KeySlot = ctx.keySlot
		op.PrivateKey = true
	}
	result.Undefined = false
	if err := e.Multiply(c, op); err != nil {
		result.clear()
		return engineError(err, "multiply on %s", c.Name)
	}
	return ctx.trapZero(result)
}

// trapZero fails a multiplication whose result collapsed to zero when the
// matching policy is enabled.
func (ctx *Context) trapZero(result *Point) error {
	c := ctx.curve
	var tripped bool
	if c.IsX25519() {
		tripped = ctx.conf.TrapX25519Zero && isZero(result.X)
	} else {
		tripped = ctx.conf.TrapInfinity && (result.Undefined || result.isZero(false))
	}
	if !tripped {
		return nil
	}
	result.clear()
	ctx.device.metrics.trapTripped(c.Name)
	logger.Warnw("multiplication produced the identity", "curve", c.Name)
	return makeError(ErrPointAtInfinity, fmt.Sprintf("multiplication on %s "+
		"produced the point at infinity", c.Name))
}

func checkResult(c *Curve, result *Point) error {
	if result == nil {
		return makeError(ErrInvalidArgument, "result point is nil")
	}
	if len(result.X) != c.NBytes || len(result.Y) != c.NBytes {
		str := fmt.Sprintf("result coordinates are %d/%d bytes, curve %s "+
			"needs %d", len(result.X), len(result.Y), c.Name, c.NBytes)
		return makeError(ErrBufferTooSmall, str)
	}
	return nil
}
