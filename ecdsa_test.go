package ecengine_test

import (
	stdecdsa "crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecengine.mleku.dev"
	"ecengine.mleku.dev/softengine"
)

func TestECDSASignVerify(t *testing.T) {
	rounds := map[string]int{"P-224": 10, "P-256": 100, "P-384": 10, "P-521": 10, "secp256k1": 100}
	for _, name := range weierstrassCurves {
		t.Run(name, func(t *testing.T) {
			ctx := newKeyContext(t, name)
			c := ctx.Curve()
			for i := 0; i < rounds[name]; i++ {
				digest := make([]byte, ecengine.DefaultHash(c).Size())
				_, err := rand.Read(digest)
				require.NoError(t, err)

				sig, err := ecengine.ECDSASign(ctx, digest)
				require.NoError(t, err)
				require.Len(t, sig.R, c.NBytes)
				require.Len(t, sig.S, c.NBytes)
				require.NoError(t, ecengine.ECDSAVerify(ctx, sig, digest), dump(sig))
			}
		})
	}
}

func TestECDSATamper(t *testing.T) {
	for _, name := range weierstrassCurves {
		t.Run(name, func(t *testing.T) {
			ctx := newKeyContext(t, name)
			digest := digestFor(ctx.Curve(), "tamper")
			sig, err := ecengine.ECDSASign(ctx, digest)
			require.NoError(t, err)

			// Every bit on P-256, a spread of bits elsewhere.
			step := 7
			if name == "P-256" {
				step = 1
			}
			c := ctx.Curve()
			for bit := 0; bit < 8*c.NBytes; bit += step {
				bad := &ecengine.Signature{R: flipBit(sig.R, bit), S: sig.S}
				assertRejected(t, ecengine.ECDSAVerify(ctx, bad, digest), "r", bit)

				bad = &ecengine.Signature{R: sig.R, S: flipBit(sig.S, bit)}
				assertRejected(t, ecengine.ECDSAVerify(ctx, bad, digest), "s", bit)
			}
			used := orderOf(c).BitLen()
			if used > 8*len(digest) {
				used = 8 * len(digest)
			}
			for bit := 0; bit < used; bit += step {
				err := ecengine.ECDSAVerify(ctx, sig, flipBit(digest, bit))
				assert.ErrorIs(t, err, ecengine.ErrSignatureMismatch, "digest bit %d", bit)
			}

			other := newKeyContext(t, name)
			require.NoError(t, ctx.SetPublicKey(other.PublicKeyPoint()))
			assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, sig, digest), ecengine.ErrSignatureMismatch)
		})
	}
}

// flipBit returns a copy of b with bit i, counted from the most significant
// bit, inverted.
func flipBit(b []byte, i int) []byte {
	out := append([]byte(nil), b...)
	out[i/8] ^= 0x80 >> (i % 8)
	return out
}

// assertRejected accepts a mismatch, or an out-of-range field when the flip
// pushed r or s past the order.
func assertRejected(t *testing.T, err error, field string, bit int) {
	t.Helper()
	if !errors.Is(err, ecengine.ErrSignatureMismatch) && !errors.Is(err, ecengine.ErrSigFieldRange) {
		t.Errorf("%s bit %d: tampered signature not rejected: %v", field, bit, err)
	}
}

// TestECDSASignKnownNonce signs with d = 1 and k = 1, where r is the
// generator's X coordinate and s = z + r mod n.
func TestECDSASignKnownNonce(t *testing.T) {
	c := ecengine.CurveByName("P-256")
	one := beInt(big.NewInt(1), c.NBytes)
	ctx := newContext(t, "P-256", ecengine.WithRandom(seeded(one)),
		ecengine.WithPrivateKey(ecengine.BigEndianScalar(one)))

	digest := digestFor(c, "known nonce")
	sig, err := ecengine.ECDSASign(ctx, digest)
	require.NoError(t, err)

	n := orderOf(c)
	r := new(big.Int).SetBytes(c.G.X)
	s := new(big.Int).Add(new(big.Int).SetBytes(digest), r)
	s.Mod(s, n)
	assert.Equal(t, beInt(r, c.NBytes), sig.R)
	assert.Equal(t, beInt(s, c.NBytes), sig.S)

	// The public key of d = 1 is G.
	require.NoError(t, ctx.SetPublicKey(c.G.Copy()))
	require.NoError(t, ecengine.ECDSAVerify(ctx, sig, digest))

	r1 := new(big.Int).Add(r, big.NewInt(1))
	r1.Mod(r1, n)
	bumped := &ecengine.Signature{R: beInt(r1, c.NBytes), S: sig.S}
	assert.ErrorIs(t, ecengine.ECDSAVerify(ctx, bumped, digest), ecengine.ErrSignatureMismatch)
}

func TestECDSASignRetry(t *testing.T) {
	c := ecengine.CurveByName("P-256")
	n := orderOf(c)
	one := beInt(big.NewInt(1), c.NBytes)
	two := beInt(big.NewInt(2), c.NBytes)

	// With d = k = 1 the digest n - Gx makes s zero.
	gx := new(big.Int).SetBytes(c.G.X)
	digest := beInt(new(big.Int).Sub(n, gx), c.NBytes)

	reg := prometheus.NewRegistry()
	m, err := ecengine.NewMetrics(reg)
	require.NoError(t, err)

	ctx, dev := newContextOn(t, "P-256", softengine.New(), ecengine.WithRandom(seeded(one, two)),
		ecengine.WithPrivateKey(ecengine.BigEndianScalar(one)))
	dev.SetMetrics(m)

	sig, err := ecengine.ECDSASign(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignRetries))

	x2, _ := elliptic.P256().ScalarBaseMult(two)
	assert.Equal(t, beInt(x2, c.NBytes), sig.R)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("ecdsa-sign", "ok")))

	// The same nonce every time exhausts the retry budget.
	ctx, dev = newContextOn(t, "P-256", softengine.New(), ecengine.WithRandom(&repeatReader{b: one}),
		ecengine.WithPrivateKey(ecengine.BigEndianScalar(one)),
		configWith(func(c *ecengine.Config) { c.SignRetries = 3 }))
	m, err = ecengine.NewMetrics(nil)
	require.NoError(t, err)
	dev.SetMetrics(m)

	_, err = ecengine.ECDSASign(ctx, digest)
	assert.ErrorIs(t, err, ecengine.ErrRandomSource)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SignRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("ecdsa-sign", "engine-failure")))
}

func TestECDSASignBrokenRandom(t *testing.T) {
	ctx := newContext(t, "secp256k1", ecengine.WithRandom(&repeatReader{b: []byte{0}}),
		ecengine.WithPrivateKey(ecengine.BigEndianScalar([]byte{42})))
	_, err := ecengine.ECDSASign(ctx, make([]byte, 32))
	assert.ErrorIs(t, err, ecengine.ErrRandomSource)
	assert.Equal(t, ecengine.ClassEngineFailure, ecengine.Class(err))
}

func TestECDSASignErrors(t *testing.T) {
	ctx := newContext(t, "P-256")
	_, err := ecengine.ECDSASign(ctx, make([]byte, 32))
	assert.ErrorIs(t, err, ecengine.ErrInvalidState)

	ctx = newKeyContext(t, "P-256")
	_, err = ecengine.ECDSASign(ctx, nil)
	assert.ErrorIs(t, err, ecengine.ErrInvalidArgument)

	for _, name := range []string{"X25519", "Ed25519"} {
		ctx := newKeyContext(t, name)
		_, err := ecengine.ECDSASign(ctx, make([]byte, 32))
		assert.ErrorIs(t, err, ecengine.ErrUnsupported, name)
		assert.Equal(t, ecengine.ClassUnsupported, ecengine.Class(err))
	}

	e := softengine.New()
	ctx, _ = newContextOn(t, "P-256", e)
	_, _, err = ecengine.GenerateKey(ctx)
	require.NoError(t, err)
	e.FailNext(softengine.OpModInverse, assert.AnError)
	_, err = ecengine.ECDSASign(ctx, make([]byte, 32))
	assert.ErrorIs(t, err, ecengine.ErrEngine)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestECDSAMessage(t *testing.T) {
	for _, h := range []ecengine.HashAlgorithm{ecengine.HashSHA256, ecengine.HashSHA384,
		ecengine.HashSHA512, ecengine.HashSHA3_256, ecengine.HashSHA3_384} {
		t.Run(h.String(), func(t *testing.T) {
			ctx := newKeyContext(t, "P-384")
			msg := []byte("a message to be hashed here")
			sig, err := ecengine.ECDSASignMessage(ctx, h, msg)
			require.NoError(t, err)
			assert.NoError(t, ecengine.ECDSAVerifyMessage(ctx, h, sig, msg))
			assert.ErrorIs(t, ecengine.ECDSAVerifyMessage(ctx, h, sig, msg[1:]), ecengine.ErrSignatureMismatch)
		})
	}

	ctx := newKeyContext(t, "P-384")
	_, err := ecengine.ECDSASignMessage(ctx, ecengine.HashUnknown, []byte("x"))
	assert.ErrorIs(t, err, ecengine.ErrUnsupported)
}

func TestECDSADER(t *testing.T) {
	for _, name := range weierstrassCurves {
		t.Run(name, func(t *testing.T) {
			ctx := newKeyContext(t, name)
			digest := digestFor(ctx.Curve(), "der")
			der, err := ecengine.ECDSASignDER(ctx, digest)
			require.NoError(t, err)
			assert.NoError(t, ecengine.ECDSAVerifyDER(ctx, der, digest))

			der[len(der)-1] ^= 0x01
			assert.ErrorIs(t, ecengine.ECDSAVerifyDER(ctx, der, digest), ecengine.ErrSignatureMismatch)

			assert.ErrorIs(t, ecengine.ECDSAVerifyDER(ctx, append(der, 0), digest), ecengine.ErrSigTrailingData)
		})
	}
}

func TestECDSACrossCheckStdlib(t *testing.T) {
	curves := map[string]elliptic.Curve{
		"P-224": elliptic.P224(),
		"P-256": elliptic.P256(),
		"P-384": elliptic.P384(),
		"P-521": elliptic.P521(),
	}
	for name, ref := range curves {
		t.Run(name, func(t *testing.T) {
			ctx := newKeyContext(t, name)
			c := ctx.Curve()
			digest := digestFor(c, "cross check")
			pubX, pubY := bePoint(ctx.PublicKeyPoint())
			pub := &stdecdsa.PublicKey{Curve: ref, X: pubX, Y: pubY}

			// Ours verified by crypto/ecdsa.
			sig, err := ecengine.ECDSASign(ctx, digest)
			require.NoError(t, err)
			r := new(big.Int).SetBytes(sig.R)
			s := new(big.Int).SetBytes(sig.S)
			assert.True(t, stdecdsa.Verify(pub, digest, r, s))

			// Theirs verified by us.
			priv, err := stdecdsa.GenerateKey(ref, rand.Reader)
			require.NoError(t, err)
			der, err := stdecdsa.SignASN1(rand.Reader, priv, digest)
			require.NoError(t, err)
			theirs := &ecengine.Point{
				X: beInt(priv.X, c.NBytes),
				Y: beInt(priv.Y, c.NBytes),
			}
			require.NoError(t, ctx.SetPublicKey(theirs))
			assert.NoError(t, ecengine.ECDSAVerifyDER(ctx, der, digest))
		})
	}
}

func TestECDSACrossCheckSecp256k1(t *testing.T) {
	ctx := newKeyContext(t, "secp256k1")
	c := ctx.Curve()
	digest := digestFor(c, "secp256k1 cross check")

	pub := ctx.PublicKeyPoint()
	uncompressed := append(append([]byte{0x04}, pub.X...), pub.Y...)

	der, err := ecengine.ECDSASignDER(ctx, digest)
	require.NoError(t, err)

	// decred
	dpub, err := secp256k1.ParsePubKey(uncompressed)
	require.NoError(t, err)
	dsig, err := dcrecdsa.ParseDERSignature(der)
	require.NoError(t, err)
	assert.True(t, dsig.Verify(digest, dpub))

	// btcec
	bpub, err := btcec.ParsePubKey(uncompressed)
	require.NoError(t, err)
	bsig, err := btcecdsa.ParseDERSignature(der)
	require.NoError(t, err)
	assert.True(t, bsig.Verify(digest, bpub))

	// Both libraries' signatures verify here.
	k := make([]byte, 32)
	require.NoError(t, ecengine.RandomBelow(rand.Reader, c.N, k, 16, 4))
	dpriv := secp256k1.PrivKeyFromBytes(k)
	bpriv, _ := btcec.PrivKeyFromBytes(k)
	signer := newContext(t, "secp256k1", ecengine.WithPrivateKey(ecengine.BigEndianScalar(k)))
	theirPub, err := ecengine.PublicKey(signer)
	require.NoError(t, err)
	require.NoError(t, ctx.SetPublicKey(theirPub))

	assert.NoError(t, ecengine.ECDSAVerifyDER(ctx, dcrecdsa.Sign(dpriv, digest).Serialize(), digest))
	assert.NoError(t, ecengine.ECDSAVerifyDER(ctx, btcecdsa.Sign(bpriv, digest).Serialize(), digest))
}
