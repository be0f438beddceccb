package signer

import (
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"ecengine.mleku.dev"
)

// EngineSigner implements the I interface on top of an ecengine context, so
// every operation goes through the device that context was created on.
type EngineSigner struct {
	curve     *ecengine.Curve
	ctx       *ecengine.Context
	sec       []byte
	pub       *ecengine.Point
	hasSecret bool
}

var _ I = (*EngineSigner)(nil)

// NewEngineSigner creates a new EngineSigner for curve on dev. The options
// are passed to ecengine.ContextCreate.
func NewEngineSigner(curve *ecengine.Curve, dev *ecengine.Device, opts ...ecengine.Option) (*EngineSigner, error) {
	ctx, err := ecengine.ContextCreate(curve, dev, opts...)
	if err != nil {
		return nil, err
	}
	return &EngineSigner{curve: curve, ctx: ctx}, nil
}

// Context returns the engine context backing s.
func (s *EngineSigner) Context() *ecengine.Context { return s.ctx }

// Generate creates a fresh new key pair from the context's random source.
func (s *EngineSigner) Generate() error {
	k, pub, err := ecengine.GenerateKey(s.ctx)
	if err != nil {
		return err
	}
	s.setSecret(k.Bytes)
	s.pub = pub
	return nil
}

// InitSec initialises the secret (signing) key from the raw bytes, in the
// curve's native byte order, and also derives the public key.
func (s *EngineSigner) InitSec(sec []byte) error {
	if len(sec) != s.curve.NBytes {
		return fmt.Errorf("secret key must be %d bytes", s.curve.NBytes)
	}
	k := ecengine.Scalar{Bytes: sec, LittleEndian: s.curve.LittleEndian}
	if err := s.ctx.SetPrivateKey(k); err != nil {
		return err
	}
	pub, err := ecengine.PublicKey(s.ctx)
	if err != nil {
		return err
	}
	if err := s.ctx.SetPublicKey(pub); err != nil {
		return err
	}
	s.setSecret(sec)
	s.pub = pub
	return nil
}

// InitPub initializes the public (verification) key from raw bytes: SEC1
// compressed or uncompressed on Weierstrass curves, the u coordinate on
// X25519.
func (s *EngineSigner) InitPub(pub []byte) error {
	p, err := parsePub(s.curve, pub)
	if err != nil {
		return err
	}
	ecengine.ContextDestroy(s.ctx)
	s.setSecret(nil)
	if err := s.ctx.SetPublicKey(p); err != nil {
		return err
	}
	s.pub = p
	return nil
}

func (s *EngineSigner) setSecret(sec []byte) {
	for i := range s.sec {
		s.sec[i] = 0
	}
	s.sec = append([]byte(nil), sec...)
	s.hasSecret = len(sec) > 0
}

// Sec returns the secret key bytes
func (s *EngineSigner) Sec() []byte {
	if !s.hasSecret {
		return nil
	}
	return append([]byte(nil), s.sec...)
}

// Pub returns the public key bytes, uncompressed SEC1 on Weierstrass curves.
func (s *EngineSigner) Pub() []byte {
	if s.pub == nil {
		return nil
	}
	return encodePub(s.curve, s.pub)
}

// Sign creates a DER signature over the digest msg using the stored secret
// key.
func (s *EngineSigner) Sign(msg []byte) (sig []byte, err error) {
	if !s.hasSecret {
		return nil, errors.New("no secret key available for signing")
	}
	return ecengine.ECDSASignDER(s.ctx, msg)
}

// Verify checks a digest and DER signature match the stored public key. A
// well-formed signature that does not match is reported as invalid without
// an error.
func (s *EngineSigner) Verify(msg, sig []byte) (valid bool, err error) {
	if s.pub == nil {
		return false, errors.New("no public key available for verification")
	}
	err = ecengine.ECDSAVerifyDER(s.ctx, sig, msg)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ecengine.ErrSignatureMismatch):
		return false, nil
	}
	return false, err
}

// Zero wipes the secret key to prevent memory leaks
func (s *EngineSigner) Zero() {
	ecengine.ContextDestroy(s.ctx)
	s.setSecret(nil)
	s.pub = nil
}

// ECDH returns the shared secret of the stored secret key and pub.
func (s *EngineSigner) ECDH(pub []byte) (secret []byte, err error) {
	if !s.hasSecret {
		return nil, errors.New("no secret key available for ECDH")
	}
	p, err := parsePub(s.curve, pub)
	if err != nil {
		return nil, err
	}
	out := make([]byte, s.curve.NBytes)
	n, err := ecengine.ECDH(s.ctx, out, p)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// EngineGen implements the Gen interface for Weierstrass curves.
type EngineGen struct {
	s *EngineSigner
}

var _ Gen = (*EngineGen)(nil)

// NewEngineGen creates a new EngineGen instance
func NewEngineGen(curve *ecengine.Curve, dev *ecengine.Device, opts ...ecengine.Option) (*EngineGen, error) {
	s, err := NewEngineSigner(curve, dev, opts...)
	if err != nil {
		return nil, err
	}
	return &EngineGen{s: s}, nil
}

// Generate gathers entropy and derives pubkey bytes for matching, this
// returns the compressed form for checking the oddness of the Y coordinate
func (g *EngineGen) Generate() (pubBytes []byte, err error) {
	if err := g.s.Generate(); err != nil {
		return nil, err
	}
	return compressPub(g.s.curve, g.s.pub), nil
}

// Negate replaces the secret key d with n-d, flipping the public key Y
// coordinate between odd and even
func (g *EngineGen) Negate() {
	if !g.s.hasSecret || g.s.curve.Family != ecengine.Weierstrass {
		return
	}
	n := new(big.Int).SetBytes(g.s.curve.N)
	d := new(big.Int).SetBytes(g.s.sec)
	neg := make([]byte, g.s.curve.NBytes)
	n.Sub(n, d).FillBytes(neg)
	d.SetInt64(0)
	if err := g.s.InitSec(neg); err != nil {
		logger.Warnf("negating key: %v", err)
	}
	for i := range neg {
		neg[i] = 0
	}
}

// KeyPairBytes returns the raw bytes of the secret and compressed public key
func (g *EngineGen) KeyPairBytes() (secBytes, cmprPubBytes []byte) {
	if g.s.pub == nil {
		return nil, nil
	}
	return g.s.Sec(), compressPub(g.s.curve, g.s.pub)
}

// encodePub returns 0x04 || X || Y on Weierstrass curves and the raw
// coordinate otherwise.
func encodePub(c *ecengine.Curve, p *ecengine.Point) []byte {
	if c.Family != ecengine.Weierstrass {
		return append([]byte(nil), p.X...)
	}
	out := make([]byte, 0, 1+2*c.NBytes)
	out = append(out, 0x04)
	out = append(out, p.X...)
	return append(out, p.Y...)
}

// compressPub returns 0x02/0x03 || X on Weierstrass curves.
func compressPub(c *ecengine.Curve, p *ecengine.Point) []byte {
	if c.Family != ecengine.Weierstrass {
		return encodePub(c, p)
	}
	out := make([]byte, 0, 1+c.NBytes)
	out = append(out, 0x02|p.Y[len(p.Y)-1]&1)
	return append(out, p.X...)
}

// parsePub decodes a public key for c.
func parsePub(c *ecengine.Curve, b []byte) (*ecengine.Point, error) {
	n := c.NBytes
	switch {
	case c.IsX25519():
		if len(b) != n {
			return nil, fmt.Errorf("public key must be %d bytes", n)
		}
		return &ecengine.Point{
			X:            append([]byte(nil), b...),
			Y:            make([]byte, n),
			LittleEndian: true,
		}, nil

	case c.Family != ecengine.Weierstrass:
		return nil, fmt.Errorf("public keys on %s are not supported", c.Name)

	case len(b) == 1+2*n && b[0] == 0x04:
		return &ecengine.Point{
			X: append([]byte(nil), b[1:1+n]...),
			Y: append([]byte(nil), b[1+n:]...),
		}, nil

	case len(b) == 1+n && (b[0] == 0x02 || b[0] == 0x03):
		x, y, err := decompress(c, b)
		if err != nil {
			return nil, err
		}
		p := ecengine.NewPoint(c)
		x.FillBytes(p.X)
		y.FillBytes(p.Y)
		return p, nil
	}
	return nil, fmt.Errorf("malformed public key of %d bytes", len(b))
}

func decompress(c *ecengine.Curve, b []byte) (x, y *big.Int, err error) {
	if c.ID == ecengine.CurveSecp256k1 {
		pk, err := btcec.ParsePubKey(b)
		if err != nil {
			return nil, nil, err
		}
		return pk.X(), pk.Y(), nil
	}
	var curve elliptic.Curve
	switch c.ID {
	case ecengine.CurveP224:
		curve = elliptic.P224()
	case ecengine.CurveP256:
		curve = elliptic.P256()
	case ecengine.CurveP384:
		curve = elliptic.P384()
	case ecengine.CurveP521:
		curve = elliptic.P521()
	default:
		return nil, nil, fmt.Errorf("no point decompression for %s", c.Name)
	}
	x, y = elliptic.UnmarshalCompressed(curve, b)
	if x == nil {
		return nil, nil, errors.New("invalid compressed public key")
	}
	return x, y, nil
}
