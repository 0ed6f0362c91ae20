// Package hash implements the digest functions used throughout the node:
// SHA-256, its double application ("Hash256"), RIPEMD-160 over a SHA-256
// digest ("Hash160"), and Merkle tree construction over transaction hashes.
package hash

import (
	"crypto/sha256"

	"github.com/noriachain/neonode/pkg/util"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // Neo protocol mandates RIPEMD-160.
)

// Sha256 computes a single SHA-256 digest of b.
func Sha256(b []byte) util.Uint256 {
	h := sha256.Sum256(b)
	u, _ := util.Uint256DecodeBytesBE(h[:])
	return u
}

// DoubleSha256 computes SHA256(SHA256(b)), the digest used for block and
// transaction hashes.
func DoubleSha256(b []byte) util.Uint256 {
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	u, _ := util.Uint256DecodeBytesBE(h2[:])
	return u
}

// RipeMD160 computes a single RIPEMD-160 digest of b.
func RipeMD160(b []byte) util.Uint160 {
	h := ripemd160.New()
	_, _ = h.Write(b)
	sum := h.Sum(nil)
	u, _ := util.Uint160DecodeBytesBE(sum)
	return u
}

// Hash160 computes RIPEMD160(SHA256(b)), the script-hash function used for
// account and contract addresses.
func Hash160(b []byte) util.Uint160 {
	sum := sha256.Sum256(b)
	return RipeMD160(sum[:])
}

// Checksum returns the first four bytes of DoubleSha256(b), used both by
// base58check address encoding and by the P2P message framing checksum.
func Checksum(b []byte) []byte {
	h := DoubleSha256(b)
	be := h.BytesBE()
	return be[:4]
}
