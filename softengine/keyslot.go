package softengine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"ecengine.mleku.dev"
)

// keySlot is a private key held inside the engine.
type keySlot struct {
	curve ecengine.CurveID
	d     []byte
}

// LoadKeySlot stores key for curve c in slot, replacing any earlier key.
func (e *Engine) LoadKeySlot(c *ecengine.Curve, slot int, key ecengine.Scalar) error {
	if c == nil {
		return kindError(ecengine.ErrInvalidArgument, "nil curve")
	}
	if slot < 0 {
		return kindError(ecengine.ErrInvalidArgument, "negative key slot %d", slot)
	}
	d := bigEndian(key.Bytes, key.LittleEndian)
	v := new(big.Int).SetBytes(d)
	if v.Sign() == 0 || v.Cmp(new(big.Int).SetBytes(c.N)) >= 0 {
		clearBytes(d)
		return kindError(ecengine.ErrZeroScalar, "key slot %d: key is not in [1, n-1]", slot)
	}
	padded := make([]byte, c.NBytes)
	v.FillBytes(padded)
	clearBytes(d)

	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.slots[slot]; ok {
		clearBytes(old.d)
	}
	e.slots[slot] = keySlot{curve: c.ID, d: padded}
	logger.Debugw("key slot loaded", "slot", slot, "curve", c.Name)
	return nil
}

// ClearKeySlot zeroes and removes the key in slot.
func (e *Engine) ClearKeySlot(slot int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.slots[slot]; ok {
		clearBytes(old.d)
		delete(e.slots, slot)
	}
}

// slotKey returns a copy of the key in slot, checking it belongs to c.
func (e *Engine) slotKey(c *ecengine.Curve, slot int) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ks, ok := e.slots[slot]
	if !ok {
		return nil, kindError(ecengine.ErrInvalidState, "key slot %d is empty", slot)
	}
	if ks.curve != c.ID {
		return nil, kindError(ecengine.ErrInvalidState, "key slot %d holds a key for another curve", slot)
	}
	return append([]byte(nil), ks.d...), nil
}

// SignWithKeySlot signs digest with the key in slot. secp256k1 keys sign
// deterministically through btcec; NIST keys through crypto/ecdsa.
func (e *Engine) SignWithKeySlot(c *ecengine.Curve, slot int, digest []byte) (*ecengine.Signature, error) {
	if err := e.fault(OpSign); err != nil {
		return nil, err
	}
	d, err := e.slotKey(c, slot)
	if err != nil {
		return nil, err
	}
	defer clearBytes(d)

	switch c.ID {
	case ecengine.CurveSecp256k1:
		priv, _ := btcec.PrivKeyFromBytes(d)
		defer priv.Zero()
		sig := btcecdsa.Sign(priv, digest)
		return ecengine.DecodeSignature(c, sig.Serialize())

	case ecengine.CurveP224, ecengine.CurveP256, ecengine.CurveP384, ecengine.CurveP521:
		curve := nistCurve(c.ID)
		priv := &ecdsa.PrivateKey{
			PublicKey: ecdsa.PublicKey{Curve: curve},
			D:         new(big.Int).SetBytes(d),
		}
		priv.X, priv.Y = curve.ScalarBaseMult(d)
		r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
		priv.D.SetInt64(0)
		if err != nil {
			return nil, err
		}
		sig := &ecengine.Signature{R: make([]byte, c.NBytes), S: make([]byte, c.NBytes)}
		r.FillBytes(sig.R)
		s.FillBytes(sig.S)
		return sig, nil
	}
	return nil, kindError(ecengine.ErrUnsupported, "key slot signing is not supported on %s", c.Name)
}

func nistCurve(id ecengine.CurveID) elliptic.Curve {
	switch id {
	case ecengine.CurveP224:
		return elliptic.P224()
	case ecengine.CurveP384:
		return elliptic.P384()
	case ecengine.CurveP521:
		return elliptic.P521()
	}
	return elliptic.P256()
}
