package ecengine

import (
	"crypto/rand"
	"fmt"
	"io"

	"ecengine.mleku.dev/internal/flogging"
)

var logger = flogging.MustGetLogger("ecengine")

// Context binds a curve, a device and the key material of one session.
// A Context is not safe for concurrent use; contexts sharing a Device are.
type Context struct {
	curve  *Curve
	device *Device
	conf   Config
	alloc  Allocator
	rand   io.Reader
	jitter *jitter

	combiner combiner

	privateKey   []byte
	privateLE    bool
	useKeySlot   bool
	keySlot      int
	publicKey    *Point
	hasPublicKey bool
}

// Option configures a Context at creation.
type Option func(*Context) error

// WithConfig replaces the default configuration.
func WithConfig(conf Config) Option {
	return func(ctx *Context) error {
		if err := conf.Validate(); err != nil {
			return err
		}
		ctx.conf = conf
		return nil
	}
}

// WithAllocator sets the scratch allocator.
func WithAllocator(a Allocator) Option {
	return func(ctx *Context) error {
		if a == nil {
			return makeError(ErrInvalidArgument, "allocator is nil")
		}
		ctx.alloc = a
		return nil
	}
}

// WithRandom sets the random byte source used for nonces and keys.
func WithRandom(r io.Reader) Option {
	return func(ctx *Context) error {
		if r == nil {
			return makeError(ErrInvalidArgument, "random source is nil")
		}
		ctx.rand = r
		return nil
	}
}

// WithPrivateKey loads a private scalar.
func WithPrivateKey(k Scalar) Option {
	return func(ctx *Context) error {
		return ctx.SetPrivateKey(k)
	}
}

// WithKeySlot selects an accelerator key slot as the private key.
func WithKeySlot(slot int) Option {
	return func(ctx *Context) error {
		return ctx.SetKeySlot(slot)
	}
}

// WithPublicKey loads a public point.
func WithPublicKey(p *Point) Option {
	return func(ctx *Context) error {
		return ctx.SetPublicKey(p)
	}
}

// ContextCreate creates a context for curve c on device dev.
func ContextCreate(c *Curve, dev *Device, opts ...Option) (*Context, error) {
	if c == nil {
		return nil, makeError(ErrInvalidState, "curve not configured")
	}
	if dev == nil || dev.Engine() == nil {
		return nil, makeError(ErrInvalidArgument, "device is nil")
	}
	ctx := &Context{
		curve:  c,
		device: dev,
		conf:   DefaultConfig(),
		rand:   rand.Reader,
	}
	for _, opt := range opts {
		if err := opt(ctx); err != nil {
			ContextDestroy(ctx)
			return nil, err
		}
	}
	if !ctx.conf.curveEnabled(c) {
		ContextDestroy(ctx)
		return nil, makeError(ErrUnsupported, fmt.Sprintf("curve %s is disabled", c.Name))
	}
	if ctx.alloc == nil {
		ctx.alloc = NewHeapAllocator(ctx.conf.ScratchLimit)
	}
	comb, err := selectCombiner(ctx.conf.Combiner, dev)
	if err != nil {
		ContextDestroy(ctx)
		return nil, err
	}
	ctx.combiner = comb
	if err := ContextRandomize(ctx, nil); err != nil {
		ContextDestroy(ctx)
		return nil, err
	}
	logger.Debugw("context created", "curve", c.Name, "combiner", comb.name())
	return ctx, nil
}

// ContextDestroy zeroes the key material held by ctx.
func ContextDestroy(ctx *Context) {
	if ctx == nil {
		return
	}
	clearBytes(ctx.privateKey)
	ctx.privateKey = nil
	ctx.useKeySlot = false
	ctx.keySlot = 0
	ctx.publicKey.clear()
	ctx.publicKey = nil
	ctx.hasPublicKey = false
}

// ContextRandomize reseeds the timing barrier of ctx. A nil seed32 draws a
// fresh seed from the context's random source.
func ContextRandomize(ctx *Context, seed32 []byte) error {
	if ctx == nil {
		return makeError(ErrInvalidArgument, "context is nil")
	}
	var seed [32]byte
	defer clearBytes(seed[:])
	if seed32 != nil {
		if len(seed32) != 32 {
			return makeError(ErrInvalidArgument, "seed must be 32 bytes")
		}
		copy(seed[:], seed32)
	} else if _, err := io.ReadFull(ctx.rand, seed[:]); err != nil {
		return makeError(ErrRandomSource, "seeding timing barrier: "+err.Error())
	}
	ctx.jitter = newJitter(seed)
	return nil
}

// Curve returns the curve of ctx.
func (ctx *Context) Curve() *Curve { return ctx.curve }

// Config returns a copy of the configuration of ctx.
func (ctx *Context) Config() Config { return ctx.conf }

// Device returns the device of ctx.
func (ctx *Context) Device() *Device { return ctx.device }

// SetPrivateKey copies k into the context. A key-slot scalar is rejected;
// use SetKeySlot.
func (ctx *Context) SetPrivateKey(k Scalar) error {
	if k.IsKeySlot() {
		return makeError(ErrInvalidArgument, "private key is empty")
	}
	if err := validateScalar(ctx.curve, k); err != nil {
		return err
	}
	clearBytes(ctx.privateKey)
	ctx.privateKey = append([]byte(nil), k.Bytes...)
	ctx.privateLE = k.LittleEndian
	ctx.useKeySlot = false
	return nil
}

// SetKeySlot makes the accelerator key in slot the private key.
func (ctx *Context) SetKeySlot(slot int) error {
	if slot < 0 {
		return makeError(ErrInvalidArgument, fmt.Sprintf("negative key slot %d", slot))
	}
	clearBytes(ctx.privateKey)
	ctx.privateKey = nil
	ctx.useKeySlot = true
	ctx.keySlot = slot
	return nil
}

// SetPublicKey copies p into the context.
func (ctx *Context) SetPublicKey(p *Point) error {
	if err := validatePoint(ctx.curve, p); err != nil {
		return err
	}
	ctx.publicKey = p.Copy()
	ctx.hasPublicKey = true
	return nil
}

// PublicKeyPoint returns a copy of the loaded public key, or nil.
func (ctx *Context) PublicKeyPoint() *Point {
	if !ctx.hasPublicKey {
		return nil
	}
	return ctx.publicKey.Copy()
}

// HasPrivateKey reports whether a private scalar or key slot is loaded.
func (ctx *Context) HasPrivateKey() bool {
	return ctx.useKeySlot || len(ctx.privateKey) > 0
}

// privateScalar returns the private key as a multiplier.
func (ctx *Context) privateScalar() (Scalar, error) {
	switch {
	case ctx.useKeySlot:
		return KeySlotScalar, nil
	case len(ctx.privateKey) > 0:
		return Scalar{Bytes: ctx.privateKey, LittleEndian: ctx.privateLE}, nil
	}
	return Scalar{}, makeError(ErrInvalidState, "no private key loaded")
}

// check verifies ctx is usable.
func (ctx *Context) check() error {
	if ctx == nil {
		return makeError(ErrInvalidArgument, "context is nil")
	}
	if ctx.curve == nil {
		return makeError(ErrInvalidState, "curve not configured")
	}
	if ctx.device == nil || ctx.combiner == nil {
		return makeError(ErrInvalidState, "context not created with ContextCreate")
	}
	return nil
}

func (ctx *Context) workspace() *workspace {
	return newWorkspace(ctx.alloc, ctx.curve)
}
