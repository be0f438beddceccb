package ecengine

import (
	"crypto/subtle"
	"fmt"
)

// settle reconciles the completion flag of a protocol run with its error.
// A run that reports success without completing is a failure.
func settle(op string, completed bool, err error) error {
	if err != nil {
		return err
	}
	if !completed {
		return makeError(ErrInternal, op+" returned without completing")
	}
	return nil
}

// checkECDSA fails for curves ECDSA is not defined on.
func checkECDSA(c *Curve) error {
	if c.Family != Weierstrass {
		return makeError(ErrUnsupported, fmt.Sprintf("ECDSA is not supported on %s", c.Name))
	}
	return nil
}

// ECDSAVerify checks sig over digest against the context's public key.
// A well-formed signature that does not match yields ErrSignatureMismatch.
func ECDSAVerify(ctx *Context, sig *Signature, digest []byte) error {
	completed, err := ecdsaVerify(ctx, sig, digest)
	return settle("ecdsa verify", completed, err)
}

func ecdsaVerify(ctx *Context, sig *Signature, digest []byte) (bool, error) {
	if err := ctx.check(); err != nil {
		return false, err
	}
	c := ctx.curve
	if err := checkECDSA(c); err != nil {
		return false, err
	}
	if sig == nil {
		return false, makeError(ErrInvalidArgument, "signature is nil")
	}
	if len(digest) == 0 {
		return false, makeError(ErrInvalidArgument, "digest is empty")
	}
	if !ctx.hasPublicKey {
		return false, makeError(ErrInvalidState, "no public key loaded")
	}
	pub := ctx.publicKey

	// Compute the signature fields in big-endian order.
	r, s := sig.bigEndian()
	defer clearBytes(r)
	defer clearBytes(s)
	if len(r) != c.NBytes || len(s) != c.NBytes {
		str := fmt.Sprintf("signature fields are %d/%d bytes, curve %s needs %d",
			len(r), len(s), c.Name, c.NBytes)
		return false, makeError(ErrInvalidArgument, str)
	}
	if !inRange(r, c.N) {
		return false, makeError(ErrSigFieldRange, "signature r is not in [1, n-1]")
	}
	if !inRange(s, c.N) {
		return false, makeError(ErrSigFieldRange, "signature s is not in [1, n-1]")
	}

	ws := ctx.workspace()
	defer ws.release()
	w, err := ws.scalar("verify.w")
	if err != nil {
		return false, err
	}
	z, err := ws.scalar("verify.z")
	if err != nil {
		return false, err
	}
	u1, err := ws.scalar("verify.u1")
	if err != nil {
		return false, err
	}
	u2, err := ws.scalar("verify.u2")
	if err != nil {
		return false, err
	}
	x, err := ws.scalar("verify.x")
	if err != nil {
		return false, err
	}
	point, err := ws.point("verify.r", false)
	if err != nil {
		return false, err
	}
	digestToScalar(c, digest, z)

	err = ctx.device.Do("ecdsa-verify", func(e Engine) error {
		if ctx.conf.CheckPublicKey {
			if err := e.OnCurve(c, pub); err != nil {
				return engineError(err, "public key")
			}
		}
		// Compute w = s^-1 mod n.
		if err := e.ModInverse(c, ModOrder, w, BE(s)); err != nil {
			return engineError(err, "inverting s")
		}
		// Compute u1 = z*w mod n and u2 = r*w mod n.
		if err := e.ModMul(c, ModOrder, u1, LE(z), BE(w)); err != nil {
			return engineError(err, "computing u1")
		}
		if err := e.ModMul(c, ModOrder, u2, BE(r), BE(w)); err != nil {
			return engineError(err, "computing u2")
		}
		// Compute R = u1*G + u2*Q.
		if err := ctx.combiner.combine(ctx, e, ws, point, BigEndianScalar(u1), nil,
			BigEndianScalar(u2), pub); err != nil {
			return err
		}
		if err := e.ModReduce(c, ModOrder, x, BE(point.X)); err != nil {
			return engineError(err, "reducing R.x")
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	ctx.jitter.barrier(ctx.conf.TimingJitter)
	if subtle.ConstantTimeCompare(x, r) != 1 {
		return true, makeError(ErrSignatureMismatch, "signature does not match")
	}
	return true, nil
}

// ECDSAVerifyMessage hashes msg with h and verifies sig over the digest.
func ECDSAVerifyMessage(ctx *Context, h HashAlgorithm, sig *Signature, msg []byte) error {
	digest, err := h.Digest(msg)
	if err != nil {
		return err
	}
	return ECDSAVerify(ctx, sig, digest)
}

// ECDSAVerifyDER decodes a DER signature and verifies it over digest.
func ECDSAVerifyDER(ctx *Context, der, digest []byte) error {
	if err := ctx.check(); err != nil {
		return err
	}
	sig, err := DecodeSignature(ctx.curve, der)
	if err != nil {
		return err
	}
	return ECDSAVerify(ctx, sig, digest)
}
