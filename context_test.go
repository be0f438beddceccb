package ecengine_test

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecengine.mleku.dev"
	"ecengine.mleku.dev/softengine"
)

func TestContextCreate(t *testing.T) {
	for _, c := range ecengine.Curves() {
		t.Run(c.Name, func(t *testing.T) {
			ctx, err := ecengine.ContextCreate(c, ecengine.NewDevice(softengine.New()))
			require.NoError(t, err)
			assert.Equal(t, c, ctx.Curve())
			assert.False(t, ctx.HasPrivateKey())
			assert.Nil(t, ctx.PublicKeyPoint())
			ecengine.ContextDestroy(ctx)
		})
	}
}

func TestContextCreateErrors(t *testing.T) {
	p256 := ecengine.CurveByName("P-256")
	dev := ecengine.NewDevice(softengine.New())

	_, err := ecengine.ContextCreate(nil, dev)
	assert.ErrorIs(t, err, ecengine.ErrInvalidState)

	_, err = ecengine.ContextCreate(p256, nil)
	assert.ErrorIs(t, err, ecengine.ErrInvalidArgument)

	_, err = ecengine.ContextCreate(p256, dev, configWith(func(c *ecengine.Config) {
		c.DisabledCurves = []string{"P-256"}
	}))
	assert.ErrorIs(t, err, ecengine.ErrUnsupported)

	_, err = ecengine.ContextCreate(p256, dev, configWith(func(c *ecengine.Config) {
		c.SignRetries = 0
	}))
	assert.ErrorIs(t, err, ecengine.ErrInvalidArgument)

	// The accelerated combiner needs the combined multiply.
	plain := ecengine.NewDevice(plainEngine{softengine.New()})
	_, err = ecengine.ContextCreate(p256, plain, configWith(func(c *ecengine.Config) {
		c.Combiner = ecengine.CombinerAccelerated
	}))
	assert.ErrorIs(t, err, ecengine.ErrUnsupported)

	_, err = ecengine.ContextCreate(p256, dev, ecengine.WithRandom(failingReader{}))
	assert.ErrorIs(t, err, ecengine.ErrRandomSource)

	_, err = ecengine.ContextCreate(p256, dev, ecengine.WithAllocator(nil))
	assert.ErrorIs(t, err, ecengine.ErrInvalidArgument)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy pool drained") }

func TestContextDestroy(t *testing.T) {
	// Destroying a nil context must not panic
	ecengine.ContextDestroy(nil)

	ctx := newKeyContext(t, "P-256")
	require.True(t, ctx.HasPrivateKey())
	require.NotNil(t, ctx.PublicKeyPoint())

	ecengine.ContextDestroy(ctx)
	assert.False(t, ctx.HasPrivateKey())
	assert.Nil(t, ctx.PublicKeyPoint())

	_, err := ecengine.ECDSASign(ctx, make([]byte, 32))
	assert.ErrorIs(t, err, ecengine.ErrInvalidState)
}

func TestContextRandomize(t *testing.T) {
	ctx := newContext(t, "secp256k1")
	defer ecengine.ContextDestroy(ctx)

	// Test with nil seed (should draw a random seed)
	assert.NoError(t, ecengine.ContextRandomize(ctx, nil))

	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	assert.NoError(t, ecengine.ContextRandomize(ctx, seed))

	assert.ErrorIs(t, ecengine.ContextRandomize(ctx, seed[:31]), ecengine.ErrInvalidArgument)
	assert.ErrorIs(t, ecengine.ContextRandomize(nil, seed), ecengine.ErrInvalidArgument)
}

func TestContextPrivateKey(t *testing.T) {
	for _, name := range []string{"P-256", "secp256k1", "X25519", "Ed25519"} {
		t.Run(name, func(t *testing.T) {
			ctx := newContext(t, name)
			c := ctx.Curve()

			zero := ecengine.Scalar{Bytes: make([]byte, c.NBytes), LittleEndian: c.LittleEndian}
			assert.ErrorIs(t, ctx.SetPrivateKey(zero), ecengine.ErrZeroScalar)

			order := ecengine.Scalar{Bytes: append([]byte(nil), c.N...)}
			assert.ErrorIs(t, ctx.SetPrivateKey(order), ecengine.ErrZeroScalar)

			orderLE := append([]byte(nil), c.N...)
			reverseBytes(orderLE)
			assert.ErrorIs(t, ctx.SetPrivateKey(ecengine.LittleEndianScalar(orderLE)), ecengine.ErrZeroScalar)

			long := make([]byte, c.NBytes+1)
			long[0] = 1
			assert.ErrorIs(t, ctx.SetPrivateKey(ecengine.BigEndianScalar(long)), ecengine.ErrInvalidArgument)

			assert.ErrorIs(t, ctx.SetPrivateKey(ecengine.KeySlotScalar), ecengine.ErrInvalidArgument)
			assert.False(t, ctx.HasPrivateKey())

			assert.NoError(t, ctx.SetPrivateKey(ecengine.BigEndianScalar([]byte{7})))
			assert.True(t, ctx.HasPrivateKey())
		})
	}
}

func TestContextKeySlot(t *testing.T) {
	ctx := newContext(t, "P-256")
	assert.ErrorIs(t, ctx.SetKeySlot(-1), ecengine.ErrInvalidArgument)
	require.NoError(t, ctx.SetKeySlot(3))
	assert.True(t, ctx.HasPrivateKey())
}

func TestContextPublicKey(t *testing.T) {
	ctx := newContext(t, "P-384")
	c := ctx.Curve()

	assert.ErrorIs(t, ctx.SetPublicKey(nil), ecengine.ErrInvalidArgument)
	assert.ErrorIs(t, ctx.SetPublicKey(&ecengine.Point{X: make([]byte, 32), Y: make([]byte, 32)}),
		ecengine.ErrInvalidPoint)
	undefined := ecengine.NewPoint(c)
	undefined.Undefined = true
	assert.ErrorIs(t, ctx.SetPublicKey(undefined), ecengine.ErrInvalidPoint)

	g := c.G.Copy()
	require.NoError(t, ctx.SetPublicKey(g))
	// The context keeps its own copy.
	g.X[0] ^= 0xff
	assert.True(t, ctx.PublicKeyPoint().Equal(&c.G))
}
