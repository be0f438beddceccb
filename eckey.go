package ecengine

// GenerateKey draws a private scalar in (0, n), loads it into ctx together
// with its public point and returns both. The scalar is returned in the
// curve's native byte order.
func GenerateKey(ctx *Context) (Scalar, *Point, error) {
	if err := ctx.check(); err != nil {
		return Scalar{}, nil, err
	}
	c := ctx.curve
	d := make([]byte, c.NBytes)
	if err := RandomBelow(ctx.rand, c.N, d, ctx.conf.RandomRetries, ctx.conf.RandomPatches); err != nil {
		return Scalar{}, nil, err
	}
	k := BigEndianScalar(d)
	if c.LittleEndian {
		reverse(d)
		k = LittleEndianScalar(d)
	}
	if err := ctx.SetPrivateKey(k); err != nil {
		clearBytes(d)
		return Scalar{}, nil, err
	}
	pub, err := PublicKey(ctx)
	if err != nil {
		clearBytes(d)
		clearBytes(ctx.privateKey)
		ctx.privateKey = nil
		return Scalar{}, nil, err
	}
	if err := ctx.SetPublicKey(pub); err != nil {
		clearBytes(d)
		return Scalar{}, nil, err
	}
	return k, pub, nil
}

// PublicKey derives the public point of the context's private key in the
// curve's native byte order.
func PublicKey(ctx *Context) (*Point, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	k, err := ctx.privateScalar()
	if err != nil {
		return nil, err
	}
	pub := NewPoint(ctx.curve)
	ws := ctx.workspace()
	defer ws.release()
	err = ctx.device.Do("public-key", func(e Engine) error {
		return ctx.multiplyLocked(e, ws, pub, nil, k, true)
	})
	if err != nil {
		return nil, err
	}
	return pub, nil
}
