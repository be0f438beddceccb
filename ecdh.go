package ecengine

import (
	"fmt"
)

// ECDH derives the shared secret of the context's private key and peer into
// out and returns the number of bytes written. A nil peer means the
// generator, which yields the X coordinate of the context's own public key.
//
// On Weierstrass curves the secret is the big-endian X coordinate of the
// product. On X25519 it is the little-endian u coordinate; bit 255 of the
// peer's u coordinate is ignored and no validation of it takes place.
func ECDH(ctx *Context, out []byte, peer *Point) (int, error) {
	if err := ctx.check(); err != nil {
		return 0, err
	}
	c := ctx.curve
	if c.Family == Edwards {
		return 0, makeError(ErrUnsupported, fmt.Sprintf("ECDH is not supported on %s", c.Name))
	}
	if len(out) < c.NBytes {
		str := fmt.Sprintf("output is %d bytes, ECDH on %s needs %d", len(out), c.Name, c.NBytes)
		return 0, makeError(ErrBufferTooSmall, str)
	}
	k, err := ctx.privateScalar()
	if err != nil {
		return 0, err
	}
	if peer != nil {
		if c.IsX25519() {
			if len(peer.X) != c.NBytes {
				str := fmt.Sprintf("peer u coordinate is %d bytes, want %d", len(peer.X), c.NBytes)
				return 0, makeError(ErrInvalidPoint, str)
			}
		} else if err := validatePoint(c, peer); err != nil {
			return 0, err
		}
	}

	ws := ctx.workspace()
	defer ws.release()
	if c.IsX25519() {
		return ctx.ecdhX25519(ws, out, peer, k)
	}
	return ctx.ecdhWeierstrass(ws, out, peer, k)
}

func (ctx *Context) ecdhWeierstrass(ws *workspace, out []byte, peer *Point, k Scalar) (int, error) {
	c := ctx.curve
	result, err := ws.point("ecdh.result", false)
	if err != nil {
		return 0, err
	}
	check := peer != nil
	if peer == nil {
		g, err := ws.generator("ecdh.generator")
		if err != nil {
			return 0, err
		}
		peer = g
		check = ctx.conf.CheckSelfDerived
	}
	err = ctx.device.Do("ecdh", func(e Engine) error {
		if check {
			if err := e.OnCurve(c, peer); err != nil {
				return engineError(err, "peer point")
			}
		}
		return ctx.multiplyLocked(e, ws, result, peer, k, true)
	})
	if err != nil {
		return 0, err
	}
	return copy(out, result.X), nil
}

func (ctx *Context) ecdhX25519(ws *workspace, out []byte, peer *Point, k Scalar) (int, error) {
	c := ctx.curve
	u, err := ws.point("ecdh.peer", true)
	if err != nil {
		return 0, err
	}
	result, err := ws.point("ecdh.result", true)
	if err != nil {
		return 0, err
	}
	if peer == nil {
		if peer, err = ws.generator("ecdh.generator"); err != nil {
			return 0, err
		}
	}
	copy(u.X, peer.X)
	if !peer.LittleEndian {
		reverse(u.X)
	}
	clearBytes(u.Y)
	u.X[c.NBytes-1] &= 0x7f

	err = ctx.device.Do("ecdh", func(e Engine) error {
		return ctx.multiplyLocked(e, ws, result, u, k, true)
	})
	if err != nil {
		return 0, err
	}
	return copy(out, result.X), nil
}
