package ecengine_test

import (
	"bytes"
	"io"
	"math/big"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"ecengine.mleku.dev"
	"ecengine.mleku.dev/softengine"
)

var weierstrassCurves = []string{"P-224", "P-256", "P-384", "P-521", "secp256k1"}

// plainEngine hides the optional primitives of the wrapped engine, so the
// core sees a bare Engine.
type plainEngine struct {
	ecengine.Engine
}

func newContext(t testing.TB, name string, opts ...ecengine.Option) *ecengine.Context {
	t.Helper()
	ctx, _ := newContextOn(t, name, softengine.New(), opts...)
	return ctx
}

func newContextOn(t testing.TB, name string, e ecengine.Engine, opts ...ecengine.Option) (*ecengine.Context, *ecengine.Device) {
	t.Helper()
	curve := ecengine.CurveByName(name)
	require.NotNil(t, curve, name)
	dev := ecengine.NewDevice(e)
	ctx, err := ecengine.ContextCreate(curve, dev, opts...)
	require.NoError(t, err)
	return ctx, dev
}

// newKeyContext returns a context with a freshly generated key pair.
func newKeyContext(t testing.TB, name string, opts ...ecengine.Option) *ecengine.Context {
	t.Helper()
	ctx := newContext(t, name, opts...)
	_, _, err := ecengine.GenerateKey(ctx)
	require.NoError(t, err)
	return ctx
}

func configWith(f func(*ecengine.Config)) ecengine.Option {
	conf := ecengine.DefaultConfig()
	f(&conf)
	return ecengine.WithConfig(conf)
}

func digestFor(curve *ecengine.Curve, msg string) []byte {
	d, err := ecengine.DefaultHash(curve).Digest([]byte(msg))
	if err != nil {
		panic(err)
	}
	return d
}

// beInt returns v as a big-endian buffer of n bytes.
func beInt(v *big.Int, n int) []byte {
	return v.FillBytes(make([]byte, n))
}

func orderOf(c *ecengine.Curve) *big.Int {
	return new(big.Int).SetBytes(c.N)
}

// bePoint returns the big-endian coordinates of p as integers.
func bePoint(p *ecengine.Point) (x, y *big.Int) {
	bx := append([]byte(nil), p.X...)
	by := append([]byte(nil), p.Y...)
	if p.LittleEndian {
		reverseBytes(bx)
		reverseBytes(by)
	}
	return new(big.Int).SetBytes(bx), new(big.Int).SetBytes(by)
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// seeded returns a random source that serves the 32 byte timing barrier
// seed drawn by ContextCreate and then the given chunks in order.
func seeded(chunks ...[]byte) io.Reader {
	readers := []io.Reader{bytes.NewReader(make([]byte, 32))}
	for _, c := range chunks {
		readers = append(readers, bytes.NewReader(c))
	}
	return io.MultiReader(readers...)
}

// repeatReader serves the same bytes forever.
type repeatReader struct {
	b   []byte
	off int
}

func (r *repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b[r.off]
		r.off = (r.off + 1) % len(r.b)
	}
	return len(p), nil
}

func dump(v ...interface{}) string {
	return spew.Sdump(v...)
}
