// Package signer provides key-holding signer objects, used to abstract the
// signature algorithm and key storage from the usage.
package signer

import (
	"ecengine.mleku.dev/internal/flogging"
)

var logger = flogging.MustGetLogger("ecengine.signer")

// I is a signer holding a secret key, a public key or both. Signatures are
// DER encoded ECDSA signatures over a message digest.
type I interface {
	// Generate creates a fresh new key pair from system entropy.
	Generate() error
	// InitSec initialises the secret (signing) key from the raw bytes, and
	// also derives the public key.
	InitSec(sec []byte) error
	// InitPub initializes the public (verification) key from raw bytes.
	InitPub(pub []byte) error
	// Sec returns the secret key bytes.
	Sec() []byte
	// Pub returns the public key bytes.
	Pub() []byte
	// Sign creates a signature over the digest msg using the stored secret
	// key.
	Sign(msg []byte) (sig []byte, err error)
	// Verify checks a digest and signature match the stored public key.
	Verify(msg, sig []byte) (valid bool, err error)
	// Zero wipes the secret key to prevent memory leaks.
	Zero()
	// ECDH returns a shared secret derived using Elliptic Curve
	// Diffie-Hellman on the I secret and provided pubkey.
	ECDH(pub []byte) (secret []byte, err error)
}

// Gen is a key generator that lets the caller grind for a public key
// prefix.
type Gen interface {
	// Generate gathers entropy and derives the compressed public key.
	Generate() (pubBytes []byte, err error)
	// Negate flips the public key Y coordinate between odd and even.
	Negate()
	// KeyPairBytes returns the raw bytes of the secret and compressed
	// public key.
	KeyPairBytes() (secBytes, cmprPubBytes []byte)
}
