package ecengine_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecengine.mleku.dev"
	"ecengine.mleku.dev/softengine"
)

var combiners = []ecengine.CombinerStrategy{ecengine.CombinerAccelerated, ecengine.CombinerFallback}

func withCombiner(s ecengine.CombinerStrategy) ecengine.Option {
	return configWith(func(c *ecengine.Config) { c.Combiner = s })
}

func TestVerifyCombinersAgree(t *testing.T) {
	for _, name := range weierstrassCurves {
		signer := newKeyContext(t, name)
		digest := digestFor(signer.Curve(), "combiners")
		sig, err := ecengine.ECDSASign(signer, digest)
		require.NoError(t, err)

		for _, s := range combiners {
			t.Run(name+"/"+string(s), func(t *testing.T) {
				ctx := newContext(t, name, withCombiner(s), ecengine.WithPublicKey(signer.PublicKeyPoint()))
				assert.NoError(t, ecengine.ECDSAVerify(ctx, sig, digest))

				wrong := append([]byte(nil), digest...)
				wrong[0] ^= 0x01
				assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, sig, wrong), ecengine.ErrSignatureMismatch)
			})
		}
	}
}

// Digest bits beyond the bit length of the order do not take part in
// verification.
func TestVerifyDigestTruncation(t *testing.T) {
	tests := []struct {
		curve string
		hash  ecengine.HashAlgorithm
		used  int
	}{
		{"P-224", ecengine.HashSHA256, 28},
		{"P-256", ecengine.HashSHA384, 32},
		{"secp256k1", ecengine.HashSHA512, 32},
	}
	for _, test := range tests {
		t.Run(test.curve, func(t *testing.T) {
			ctx := newKeyContext(t, test.curve)
			digest, err := test.hash.Digest([]byte("truncation"))
			require.NoError(t, err)
			sig, err := ecengine.ECDSASign(ctx, digest)
			require.NoError(t, err)

			tail := append([]byte(nil), digest...)
			for i := test.used; i < len(tail); i++ {
				tail[i] ^= 0xff
			}
			assert.NoError(t, ecengine.ECDSAVerify(ctx, sig, tail))
			assert.NoError(t, ecengine.ECDSAVerify(ctx, sig, digest[:test.used]))

			head := append([]byte(nil), digest...)
			head[test.used-1] ^= 0x01
			assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, sig, head), ecengine.ErrSignatureMismatch)
		})
	}
}

// The fallback combiner serves engines without a combined multiply.
func TestVerifyPlainEngine(t *testing.T) {
	signer := newKeyContext(t, "secp256k1")
	digest := digestFor(signer.Curve(), "plain")
	sig, err := ecengine.ECDSASign(signer, digest)
	require.NoError(t, err)

	ctx, _ := newContextOn(t, "secp256k1", plainEngine{softengine.New()},
		ecengine.WithPublicKey(signer.PublicKeyPoint()))
	assert.NoError(t, ecengine.ECDSAVerify(ctx, sig, digest))
}

// TestVerifyReflectedPoints uses Q = G and a digest of n - r, so that
// u1*G = -(u2*Q) and the combined point is the identity.
func TestVerifyReflectedPoints(t *testing.T) {
	c := ecengine.CurveByName("P-256")
	n := orderOf(c)
	r := big.NewInt(5)
	sig := &ecengine.Signature{
		R: beInt(r, c.NBytes),
		S: beInt(big.NewInt(7), c.NBytes),
	}
	digest := beInt(new(big.Int).Sub(n, r), c.NBytes)

	for _, s := range combiners {
		t.Run(string(s), func(t *testing.T) {
			ctx := newContext(t, "P-256", withCombiner(s), ecengine.WithPublicKey(c.G.Copy()))
			err := ecengine.ECDSAVerify(ctx, sig, digest)
			assert.ErrorIs(t, err, ecengine.ErrSignatureInvalid)
			assert.Equal(t, ecengine.ClassInvalidValue, ecengine.Class(err))
		})
	}
}

func TestVerifyZeroDigest(t *testing.T) {
	signer := newKeyContext(t, "P-256")
	sig, err := ecengine.ECDSASign(signer, digestFor(signer.Curve(), "zero"))
	require.NoError(t, err)
	digest := make([]byte, 32)

	ctx := newContext(t, "P-256", withCombiner(ecengine.CombinerFallback),
		ecengine.WithPublicKey(signer.PublicKeyPoint()))
	assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, sig, digest), ecengine.ErrZeroScalar)

	ctx = newContext(t, "P-256", withCombiner(ecengine.CombinerAccelerated),
		ecengine.WithPublicKey(signer.PublicKeyPoint()))
	assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, sig, digest), ecengine.ErrSignatureMismatch)
}

func TestVerifyFieldRange(t *testing.T) {
	ctx := newKeyContext(t, "secp256k1")
	c := ctx.Curve()
	digest := digestFor(c, "range")
	sig, err := ecengine.ECDSASign(ctx, digest)
	require.NoError(t, err)

	zero := make([]byte, c.NBytes)
	order := append([]byte(nil), c.N...)
	for name, bad := range map[string]*ecengine.Signature{
		"r zero":  {R: zero, S: sig.S},
		"s zero":  {R: sig.R, S: zero},
		"r order": {R: order, S: sig.S},
		"s order": {R: sig.R, S: order},
	} {
		err := ecengine.ECDSAVerify(ctx, bad, digest)
		assert.ErrorIs(t, err, ecengine.ErrSigFieldRange, name)
	}

	err = ecengine.ECDSAVerify(ctx, &ecengine.Signature{R: sig.R[1:], S: sig.S}, digest)
	assert.ErrorIs(t, err, ecengine.ErrInvalidArgument)
	assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, nil, digest), ecengine.ErrInvalidArgument)
	assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, sig, nil), ecengine.ErrInvalidArgument)

	noPub := newContext(t, "secp256k1")
	assert.ErrorIs(t, ecengine.ECDSAVerify(noPub, sig, digest), ecengine.ErrInvalidState)
}

func TestVerifyLittleEndianSignature(t *testing.T) {
	ctx := newKeyContext(t, "P-256")
	digest := digestFor(ctx.Curve(), "little endian")
	sig, err := ecengine.ECDSASign(ctx, digest)
	require.NoError(t, err)

	le := &ecengine.Signature{
		R:            append([]byte(nil), sig.R...),
		S:            append([]byte(nil), sig.S...),
		LittleEndian: true,
	}
	reverseBytes(le.R)
	reverseBytes(le.S)
	assert.NoError(t, ecengine.ECDSAVerify(ctx, le, digest))
}

func TestVerifyPublicKeyCheck(t *testing.T) {
	ctx := newKeyContext(t, "P-256")
	digest := digestFor(ctx.Curve(), "public key")
	sig, err := ecengine.ECDSASign(ctx, digest)
	require.NoError(t, err)

	bad := ctx.PublicKeyPoint()
	bad.Y[0] ^= 0x10
	require.NoError(t, ctx.SetPublicKey(bad))
	err = ecengine.ECDSAVerify(ctx, sig, digest)
	assert.ErrorIs(t, err, ecengine.ErrInvalidPoint)
	assert.False(t, errors.Is(err, ecengine.ErrSignatureMismatch))
}

func TestVerifyEngineFaults(t *testing.T) {
	e := softengine.New()
	ctx, _ := newContextOn(t, "P-384", e)
	_, _, err := ecengine.GenerateKey(ctx)
	require.NoError(t, err)
	digest := digestFor(ctx.Curve(), "faults")
	sig, err := ecengine.ECDSASign(ctx, digest)
	require.NoError(t, err)

	// Kind errors reported by the engine keep their kind.
	e.FailNext(softengine.OpOnCurve, ecengine.Error{Err: ecengine.ErrInvalidPoint, Description: "rejected"})
	err = ecengine.ECDSAVerify(ctx, sig, digest)
	assert.ErrorIs(t, err, ecengine.ErrInvalidPoint)
	assert.Equal(t, ecengine.ClassInvalidValue, ecengine.Class(err))

	// Anything else is an engine failure that still carries the cause.
	cause := errors.New("dma timeout")
	for _, op := range []string{softengine.OpShamir, softengine.OpModInverse, softengine.OpModMul, softengine.OpModReduce} {
		e.FailNext(op, cause)
		err = ecengine.ECDSAVerify(ctx, sig, digest)
		assert.ErrorIs(t, err, ecengine.ErrEngine, op)
		assert.ErrorIs(t, err, cause, op)
	}

	// All faults consumed.
	assert.NoError(t, ecengine.ECDSAVerify(ctx, sig, digest))
}

func TestVerifyNoJitter(t *testing.T) {
	ctx := newKeyContext(t, "P-521", configWith(func(c *ecengine.Config) { c.TimingJitter = 0 }))
	digest := digestFor(ctx.Curve(), "no jitter")
	sig, err := ecengine.ECDSASign(ctx, digest)
	require.NoError(t, err)
	assert.NoError(t, ecengine.ECDSAVerify(ctx, sig, digest))
}
