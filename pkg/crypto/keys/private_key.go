// Package keys implements secp256r1 key pairs, Neo WIF encoding and
// address (base58check over a verification script's Hash160) derivation.
package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/mr-tron/base58"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/nspcc-dev/rfc6979"
)

// addressVersion is Neo N3's account-address version byte.
const addressVersion = 0x35

// wifVersion is the WIF version byte Neo shares with Bitcoin mainnet.
const wifVersion = 0x80

// PrivateKey is a secp256r1 private key.
type PrivateKey struct {
	ecdsa.PrivateKey
}

// NewPrivateKey generates a new random secp256r1 private key.
func NewPrivateKey() (*PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: *priv}, nil
}

// NewPrivateKeyFromBytes builds a PrivateKey from a raw 32-byte scalar.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, errors.New("invalid private key length")
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(b)
	x, y := curve.ScalarBaseMult(b)
	priv := &PrivateKey{PrivateKey: ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}}
	return priv, nil
}

// NewPrivateKeyFromHex builds a PrivateKey from its hex-encoded scalar.
func NewPrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeyFromBytes(b)
}

// Bytes returns the raw 32-byte scalar, left-padded with zeroes.
func (p *PrivateKey) Bytes() []byte {
	b := p.D.Bytes()
	if len(b) == 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// PublicKey returns the associated PublicKey.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{X: p.X, Y: p.Y}
}

// Sign produces a deterministic (RFC 6979) ECDSA signature over
// SHA-256(msg), returned as the 64-byte r||s encoding used on the wire.
func (p *PrivateKey) Sign(msg []byte) []byte {
	digest := hash.Sha256(msg).BytesBE()
	return p.SignHash(digest)
}

// SignHash signs a pre-computed 32-byte digest.
func (p *PrivateKey) SignHash(digest []byte) []byte {
	r, s := rfc6979.SignECDSA(&p.PrivateKey, digest, sha256.New)
	return toSignature(r, s)
}

func toSignature(r, s *big.Int) []byte {
	out := make([]byte, 64)
	rb := r.Bytes()
	sb := s.Bytes()
	copy(out[32-len(rb):32], rb)
	copy(out[64-len(sb):64], sb)
	return out
}

// WIF exports the key using the compressed-key WIF format.
func (p *PrivateKey) WIF() string {
	payload := make([]byte, 0, 38)
	payload = append(payload, wifVersion)
	payload = append(payload, p.Bytes()...)
	payload = append(payload, 0x01) // compressed marker
	return base58CheckEncode(payload)
}

// NewPrivateKeyFromWIF decodes a WIF string into a PrivateKey.
func NewPrivateKeyFromWIF(wif string) (*PrivateKey, error) {
	b, err := base58CheckDecode(wif)
	if err != nil {
		return nil, err
	}
	if len(b) != 34 || b[0] != wifVersion || b[33] != 0x01 {
		return nil, errors.New("invalid WIF")
	}
	return NewPrivateKeyFromBytes(b[1:33])
}

// Address returns the base58check Neo address for this key's signature
// script (a single-signature verification script).
func (p *PrivateKey) Address() string {
	return p.PublicKey().Address()
}

// Destroy zeroes the private scalar in place, following the teacher's
// convention of not letting key material linger in memory longer than
// necessary.
func (p *PrivateKey) Destroy() {
	b := p.D.Bits()
	for i := range b {
		b[i] = 0
	}
}

func base58CheckEncode(payload []byte) string {
	checksum := hash.Checksum(payload)
	full := append(append([]byte{}, payload...), checksum...)
	return base58.Encode(full)
}

func base58CheckDecode(s string) ([]byte, error) {
	full, err := base58.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(full) < 5 {
		return nil, errors.New("invalid base58check payload")
	}
	payload, checksum := full[:len(full)-4], full[len(full)-4:]
	expected := hash.Checksum(payload)
	for i := range checksum {
		if checksum[i] != expected[i] {
			return nil, errors.New("invalid checksum")
		}
	}
	return payload, nil
}
