package ecengine

import (
	"fmt"
)

// signStep is the outcome of one signing attempt.
type signStep int

const (
	signDone signStep = iota
	signRetry
)

// ECDSASign signs digest with the context's private key. The signature is
// returned big-endian with fields of NBytes.
//
// With a key slot loaded and an engine that signs from key slots, the
// engine produces the signature and it is returned verbatim.
func ECDSASign(ctx *Context, digest []byte) (*Signature, error) {
	sig, completed, err := ecdsaSign(ctx, digest)
	if err = settle("ecdsa sign", completed, err); err != nil {
		return nil, err
	}
	return sig, nil
}

func ecdsaSign(ctx *Context, digest []byte) (*Signature, bool, error) {
	if err := ctx.check(); err != nil {
		return nil, false, err
	}
	c := ctx.curve
	if err := checkECDSA(c); err != nil {
		return nil, false, err
	}
	if len(digest) == 0 {
		return nil, false, makeError(ErrInvalidArgument, "digest is empty")
	}
	if !ctx.HasPrivateKey() {
		return nil, false, makeError(ErrInvalidState, "no private key loaded")
	}
	if ctx.useKeySlot {
		return ctx.signWithKeySlot(digest)
	}

	ws := ctx.workspace()
	defer ws.release()
	z, err := ws.scalar("sign.z")
	if err != nil {
		return nil, false, err
	}
	k, err := ws.scalar("sign.k")
	if err != nil {
		return nil, false, err
	}
	r, err := ws.scalar("sign.r")
	if err != nil {
		return nil, false, err
	}
	s, err := ws.scalar("sign.s")
	if err != nil {
		return nil, false, err
	}
	tmp, err := ws.scalar("sign.tmp")
	if err != nil {
		return nil, false, err
	}
	point, err := ws.point("sign.kg", false)
	if err != nil {
		return nil, false, err
	}
	digestToScalar(c, digest, z)
	d := Operand{Bytes: ctx.privateKey, LittleEndian: ctx.privateLE}

	attempt := func(e Engine) (signStep, error) {
		if err := RandomBelow(ctx.rand, c.N, k, ctx.conf.RandomRetries, ctx.conf.RandomPatches); err != nil {
			return 0, err
		}
		// Compute r = (k*G).x mod n.
		if err := ctx.multiplyLocked(e, ws, point, nil, BigEndianScalar(k), false); err != nil {
			return 0, err
		}
		if err := e.ModReduce(c, ModOrder, r, BE(point.X)); err != nil {
			return 0, engineError(err, "reducing R.x")
		}
		if isZero(r) {
			return signRetry, nil
		}
		// Compute k^-1 mod n in place.
		if err := e.ModInverse(c, ModOrder, k, BE(k)); err != nil {
			return 0, engineError(err, "inverting k")
		}
		// Compute s = k^-1 * (z + r*d) mod n.
		if err := e.ModMul(c, ModOrder, tmp, BE(r), d); err != nil {
			return 0, engineError(err, "computing r*d")
		}
		if err := e.ModAdd(c, ModOrder, tmp, LE(z), BE(tmp)); err != nil {
			return 0, engineError(err, "computing z+r*d")
		}
		if err := e.ModMul(c, ModOrder, s, BE(k), BE(tmp)); err != nil {
			return 0, engineError(err, "computing s")
		}
		if isZero(s) {
			return signRetry, nil
		}
		return signDone, nil
	}

	completed := false
	err = ctx.device.Do("ecdsa-sign", func(e Engine) error {
		for i := 0; i < ctx.conf.SignRetries; i++ {
			step, err := attempt(e)
			if err != nil {
				return err
			}
			if step == signDone {
				completed = true
				return nil
			}
			ctx.device.metrics.signRetry()
			logger.Debugw("degenerate signature, retrying", "curve", c.Name, "attempt", i+1)
		}
		logger.Warnw("signing retries exhausted", "curve", c.Name, "retries", ctx.conf.SignRetries)
		return makeError(ErrRandomSource, fmt.Sprintf("no usable nonce after %d attempts",
			ctx.conf.SignRetries))
	})
	if err != nil {
		return nil, false, err
	}
	sig := &Signature{
		R: append([]byte(nil), r...),
		S: append([]byte(nil), s...),
	}
	return sig, completed, nil
}

// signWithKeySlot delegates signing to the engine's key store.
func (ctx *Context) signWithKeySlot(digest []byte) (*Signature, bool, error) {
	c := ctx.curve
	signer, ok := ctx.device.KeySlotSigner()
	if !ok {
		return nil, false, makeError(ErrUnsupported, "engine cannot sign with key slots")
	}
	var sig *Signature
	err := ctx.device.Do("ecdsa-sign-keyslot", func(Engine) error {
		var err error
		sig, err = signer.SignWithKeySlot(c, ctx.keySlot, digest)
		return engineError(err, "key slot %d signing", ctx.keySlot)
	})
	if err != nil {
		return nil, false, err
	}
	if sig == nil || len(sig.R) != c.NBytes || len(sig.S) != c.NBytes {
		return nil, false, makeError(ErrEngine, "engine returned a malformed signature")
	}
	return sig, true, nil
}

// ECDSASignMessage hashes msg with h and signs the digest.
func ECDSASignMessage(ctx *Context, h HashAlgorithm, msg []byte) (*Signature, error) {
	digest, err := h.Digest(msg)
	if err != nil {
		return nil, err
	}
	return ECDSASign(ctx, digest)
}

// ECDSASignDER signs digest and returns the DER encoding of the signature.
func ECDSASignDER(ctx *Context, digest []byte) ([]byte, error) {
	sig, err := ECDSASign(ctx, digest)
	if err != nil {
		return nil, err
	}
	return EncodeSignature(sig)
}
