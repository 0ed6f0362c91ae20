package keys

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var errUnknownCurve = errors.New("keys: unknown named curve")

// NamedCurve identifies which of the two curves VerifyWithECDsa accepts,
// matching Neo N3's CryptoLib.verifyWithECDsa named-curve parameter.
type NamedCurve byte

const (
	// Secp256r1 is this package's default curve (PublicKey, above): the
	// one every Neo account address and consensus key uses.
	Secp256r1 NamedCurve = iota
	// Secp256k1 is the Bitcoin/Ethereum curve: accepted by
	// verifyWithECDsa for cross-chain signature interop, but never used
	// by this chain's own accounts or consensus keys.
	Secp256k1
)

// VerifyWithECDsa checks signature (64-byte r||s) against digest for pub
// (a compressed or uncompressed SEC1 point) under curve, the way
// CryptoLib.verifyWithECDsa dispatches on its NamedCurveHash argument.
// Secp256r1 reuses this package's own PublicKey (crypto/elliptic, as
// every other signature in this codebase does); Secp256k1 decodes the
// point via decred's secp256k1 package, since stdlib's elliptic.Curve
// generic point formula assumes a=-3 and cannot represent the Koblitz
// curve's a=0 equation.
func VerifyWithECDsa(curve NamedCurve, pub, signature, digest []byte) (bool, error) {
	switch curve {
	case Secp256r1:
		pk, err := NewPublicKeyFromBytes(pub)
		if err != nil {
			return false, err
		}
		return pk.Verify(signature, digest), nil
	case Secp256k1:
		return verifySecp256k1(pub, signature, digest)
	default:
		return false, errUnknownCurve
	}
}

func verifySecp256k1(pub, signature, digest []byte) (bool, error) {
	if len(signature) != 64 {
		return false, nil
	}
	point, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false, err
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	return ecdsa.Verify(point.ToECDSA(), digest, r, s), nil
}
