package signer

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// BtcecSigner implements the I interface for secp256k1 using btcec (pure Go
// implementation)
type BtcecSigner struct {
	privKey   *btcec.PrivateKey
	pubKey    *btcec.PublicKey
	hasSecret bool
}

var _ I = (*BtcecSigner)(nil)

// NewBtcecSigner creates a new BtcecSigner instance
func NewBtcecSigner() *BtcecSigner {
	return &BtcecSigner{
		hasSecret: false,
	}
}

// Generate creates a fresh new key pair from system entropy
func (s *BtcecSigner) Generate() error {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return err
	}
	s.privKey = privKey
	s.pubKey = privKey.PubKey()
	s.hasSecret = true
	return nil
}

// InitSec initialises the secret (signing) key from the raw bytes, and also derives the public key
func (s *BtcecSigner) InitSec(sec []byte) error {
	if len(sec) != 32 {
		return errors.New("secret key must be 32 bytes")
	}
	privKey, pubKey := btcec.PrivKeyFromBytes(sec)
	if privKey.Key.IsZero() {
		return errors.New("secret key is zero modulo the group order")
	}
	s.privKey = privKey
	s.pubKey = pubKey
	s.hasSecret = true
	return nil
}

// InitPub initializes the public (verification) key from raw bytes, either
// the 33 byte compressed or the 65 byte uncompressed SEC1 form
func (s *BtcecSigner) InitPub(pub []byte) error {
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return err
	}
	s.pubKey = pubKey
	s.privKey = nil
	s.hasSecret = false
	return nil
}

// Sec returns the secret key bytes
func (s *BtcecSigner) Sec() []byte {
	if !s.hasSecret || s.privKey == nil {
		return nil
	}
	return s.privKey.Serialize()
}

// Pub returns the public key bytes (33 byte compressed form)
func (s *BtcecSigner) Pub() []byte {
	if s.pubKey == nil {
		return nil
	}
	return s.pubKey.SerializeCompressed()
}

// Sign creates a DER signature over the digest msg using the stored secret key
func (s *BtcecSigner) Sign(msg []byte) (sig []byte, err error) {
	if !s.hasSecret || s.privKey == nil {
		return nil, errors.New("no secret key available for signing")
	}
	if len(msg) == 0 {
		return nil, errors.New("message digest is empty")
	}
	return ecdsa.Sign(s.privKey, msg).Serialize(), nil
}

// Verify checks a message hash and DER signature match the stored public key
func (s *BtcecSigner) Verify(msg, sig []byte) (valid bool, err error) {
	if s.pubKey == nil {
		return false, errors.New("no public key available for verification")
	}
	signature, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false, err
	}
	return signature.Verify(msg, s.pubKey), nil
}

// Zero wipes the secret key to prevent memory leaks
func (s *BtcecSigner) Zero() {
	if s.privKey != nil {
		s.privKey.Zero()
		s.privKey = nil
	}
	s.hasSecret = false
	s.pubKey = nil
}

// ECDH returns the X coordinate of the shared point of the stored secret
// key and pub
func (s *BtcecSigner) ECDH(pub []byte) (secret []byte, err error) {
	if !s.hasSecret || s.privKey == nil {
		return nil, errors.New("no secret key available for ECDH")
	}
	pubKey, err := btcec.ParsePubKey(pub)
	if err != nil {
		return nil, err
	}
	return btcec.GenerateSharedSecret(s.privKey, pubKey), nil
}
