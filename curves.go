package ecengine

import (
	"crypto/elliptic"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Published parameters of the 25519 curves that crypto/elliptic does not
// carry.
const (
	p25519Dec = "57896044618658097711785492504343953926634992332820282019728792003956564819949"
	l25519Dec = "7237005577332262213973186563042994240857116359379907606001950938285454250989"
	edGxDec   = "15112221349535400772501151409588531511454012693041857206046113283949847762202"
	edGyDec   = "46316835694926478169428394003475163141307993866256225615783033603165251855960"
)

var builtinCurves = map[CurveID]*Curve{}

func init() {
	builtinCurves[CurveP224] = weierstrassCurve(CurveP224, elliptic.P224().Params())
	builtinCurves[CurveP256] = weierstrassCurve(CurveP256, elliptic.P256().Params())
	builtinCurves[CurveP384] = weierstrassCurve(CurveP384, elliptic.P384().Params())
	builtinCurves[CurveP521] = weierstrassCurve(CurveP521, elliptic.P521().Params())

	k1 := weierstrassCurve(CurveSecp256k1, btcec.S256().Params())
	k1.Name = "secp256k1"
	builtinCurves[CurveSecp256k1] = k1

	p := decimal(p25519Dec)
	l := decimal(l25519Dec)

	x25519 := &Curve{
		ID:           CurveX25519,
		Name:         "X25519",
		Family:       Montgomery,
		P:            fixedBE(p, 32),
		N:            fixedBE(l, 32),
		NBytes:       32,
		LittleEndian: true,
	}
	x25519.G = Point{X: make([]byte, 32), Y: make([]byte, 32), LittleEndian: true}
	x25519.G.X[0] = 9
	builtinCurves[CurveX25519] = x25519

	ed := &Curve{
		ID:           CurveEd25519,
		Name:         "Ed25519",
		Family:       Edwards,
		P:            fixedBE(p, 32),
		N:            fixedBE(l, 32),
		NBytes:       32,
		LittleEndian: true,
	}
	ed.G = Point{
		X:            fixedLE(decimal(edGxDec), 32),
		Y:            fixedLE(decimal(edGyDec), 32),
		LittleEndian: true,
	}
	builtinCurves[CurveEd25519] = ed

	for id, c := range builtinCurves {
		curvesByName[strings.ToLower(c.Name)] = id
	}
	curvesByName["secp256r1"] = CurveP256
	curvesByName["prime256v1"] = CurveP256
	curvesByName["secp384r1"] = CurveP384
	curvesByName["secp521r1"] = CurveP521
	curvesByName["curve25519"] = CurveX25519
}

func weierstrassCurve(id CurveID, params *elliptic.CurveParams) *Curve {
	n := (params.BitSize + 7) / 8
	return &Curve{
		ID:     id,
		Name:   params.Name,
		Family: Weierstrass,
		P:      fixedBE(params.P, n),
		N:      fixedBE(params.N, n),
		G: Point{
			X: fixedBE(params.Gx, n),
			Y: fixedBE(params.Gy, n),
		},
		NBytes: n,
	}
}

func decimal(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("ecengine: bad curve constant " + s)
	}
	return v
}

func fixedBE(v *big.Int, n int) []byte {
	return v.FillBytes(make([]byte, n))
}

func fixedLE(v *big.Int, n int) []byte {
	b := fixedBE(v, n)
	reverse(b)
	return b
}
