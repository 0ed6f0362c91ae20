package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// PublicKeySize is the length in bytes of a compressed-point encoding.
const PublicKeySize = 33

// PublicKey is a secp256r1 public key, normally exchanged and stored in its
// 33-byte compressed point encoding.
type PublicKey struct {
	X, Y *big.Int
}

// NewPublicKeyFromBytes decodes a compressed (33-byte) or uncompressed
// (65-byte) point encoding.
func NewPublicKeyFromBytes(b []byte) (*PublicKey, error) {
	curve := elliptic.P256()
	switch {
	case len(b) == 1 && b[0] == 0:
		return &PublicKey{}, nil // point at infinity
	case len(b) == PublicKeySize:
		x, y := unmarshalCompressed(curve, b)
		if x == nil {
			return nil, errors.New("invalid compressed point")
		}
		return &PublicKey{X: x, Y: y}, nil
	case len(b) == 65 && b[0] == 0x04:
		x, y := elliptic.Unmarshal(curve, b)
		if x == nil {
			return nil, errors.New("invalid uncompressed point")
		}
		return &PublicKey{X: x, Y: y}, nil
	default:
		return nil, errors.New("invalid public key length")
	}
}

// NewPublicKeyFromString decodes a hex-encoded compressed point.
func NewPublicKeyFromString(s string) (*PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return NewPublicKeyFromBytes(b)
}

// Bytes returns the 33-byte compressed point encoding (or a single zero
// byte for the point at infinity).
func (p *PublicKey) Bytes() []byte {
	if p.X == nil {
		return []byte{0x00}
	}
	out := make([]byte, PublicKeySize)
	if p.Y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xb := p.X.Bytes()
	copy(out[1+PublicKeySize-1-len(xb):], xb)
	return out
}

// Address returns the base58check Neo address of the single-signature
// verification script for this key.
func (p *PublicKey) Address() string {
	script := p.VerificationScript()
	return AddressFromScriptHash(hash.Hash160(script))
}

// VerificationScript returns the single-signature verification script:
// PUSHDATA1 <33 bytes> SYSCALL System.Crypto.CheckSig, encoded as
// 0x0c 0x21 <key> 0x41 <4-byte interop id>: the two-instruction shape
// VerifyWitness recognizes.
func (p *PublicKey) VerificationScript() []byte {
	b := p.Bytes()
	script := make([]byte, 0, 2+len(b)+5)
	script = append(script, 0x0c, byte(len(b))) // PUSHDATA1
	script = append(script, b...)
	script = append(script, 0x41) // SYSCALL
	script = append(script, sysCallCheckSigHash()...)
	return script
}

// PublicKeys is a sortable list of public keys, ordered by their compressed
// byte encoding - the canonical order Neo uses for multisig scripts and
// validator lists.
type PublicKeys []*PublicKey

func (p PublicKeys) Len() int      { return len(p) }
func (p PublicKeys) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p PublicKeys) Less(i, j int) bool {
	return bytesCompare(p[i].Bytes(), p[j].Bytes()) < 0
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// CreateMultiSigRedeemScript builds the standard Neo multisig verification
// script for an m-of-n account: PUSHINT m, PUSHDATA1 <key> for each of the
// (sorted) keys, PUSHINT n, SYSCALL CheckMultisig. Requires 1 <= m <= n <= 16.
func CreateMultiSigRedeemScript(m int, pubs PublicKeys) ([]byte, error) {
	n := len(pubs)
	if m < 1 || m > n || n > 16 {
		return nil, errors.New("invalid m-of-n multisig parameters")
	}
	sorted := make(PublicKeys, n)
	copy(sorted, pubs)
	sortPublicKeys(sorted)

	script := make([]byte, 0, n*35+8)
	script = append(script, pushIntOpcode(m)...)
	for _, pk := range sorted {
		b := pk.Bytes()
		script = append(script, 0x0c, byte(len(b)))
		script = append(script, b...)
	}
	script = append(script, pushIntOpcode(n)...)
	script = append(script, 0x41) // SYSCALL
	script = append(script, sysCallCheckMultisigHash()...)
	return script, nil
}

func sortPublicKeys(p PublicKeys) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p.Less(j, j-1); j-- {
			p.Swap(j, j-1)
		}
	}
}

// pushIntOpcode encodes small non-negative integers using PUSH0..PUSH16
// (opcodes 0x10..0x20), matching the VM's constant-pushing opcodes.
func pushIntOpcode(v int) []byte {
	return []byte{byte(0x10 + v)}
}

func sysCallCheckMultisigHash() []byte {
	return []byte{0x9e, 0xd0, 0xdc, 0x3a} // System.Crypto.CheckMultisig (precomputed)
}

// Verify checks signature (64-byte r||s) against SHA-256(msg).
func (p *PublicKey) Verify(signature, digest []byte) bool {
	if p.X == nil || len(signature) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: p.X, Y: p.Y}
	return ecdsa.Verify(pub, digest, r, s)
}

// EncodeBinary implements io.Serializable.
func (p *PublicKey) EncodeBinary(w *io.BinWriter) {
	w.WriteB(p.Bytes())
}

// DecodeBinary implements io.Serializable.
func (p *PublicKey) DecodeBinary(r *io.BinReader) {
	prefix := r.ReadB(1)
	if r.Err != nil {
		return
	}
	var rest []byte
	switch prefix[0] {
	case 0x00:
		*p = PublicKey{}
		return
	case 0x02, 0x03:
		rest = r.ReadB(32)
	case 0x04:
		rest = r.ReadB(64)
	default:
		r.Err = errors.New("invalid public key prefix")
		return
	}
	if r.Err != nil {
		return
	}
	full := append(prefix, rest...)
	key, err := NewPublicKeyFromBytes(full)
	if err != nil {
		r.Err = err
		return
	}
	*p = *key
}

// AddressFromScriptHash renders a Uint160 script hash as a base58check Neo
// address.
func AddressFromScriptHash(u util.Uint160) string {
	payload := make([]byte, 0, 21)
	payload = append(payload, addressVersion)
	payload = append(payload, u.BytesBE()...)
	return base58CheckEncode(payload)
}

// AddressToScriptHash parses a Neo address back into its script hash.
func AddressToScriptHash(address string) (util.Uint160, error) {
	payload, err := base58CheckDecode(address)
	if err != nil {
		return util.Uint160{}, err
	}
	if len(payload) != 21 || payload[0] != addressVersion {
		return util.Uint160{}, errors.New("invalid address version/length")
	}
	return util.Uint160DecodeBytesBE(payload[1:])
}

// unmarshalCompressed recovers (x, y) from a 33-byte SEC1 compressed point.
func unmarshalCompressed(curve elliptic.Curve, data []byte) (*big.Int, *big.Int) {
	if len(data) != 33 || (data[0] != 2 && data[0] != 3) {
		return nil, nil
	}
	params := curve.Params()
	x := new(big.Int).SetBytes(data[1:])
	if x.Cmp(params.P) >= 0 {
		return nil, nil
	}
	// y² = x³ - 3x + b (mod p)
	y2 := new(big.Int).Exp(x, big.NewInt(3), params.P)
	threeX := new(big.Int).Mul(x, big.NewInt(3))
	y2.Sub(y2, threeX)
	y2.Add(y2, params.B)
	y2.Mod(y2, params.P)
	y := new(big.Int).ModSqrt(y2, params.P)
	if y == nil {
		return nil, nil
	}
	if byte(y.Bit(0)) != data[0]&1 {
		y.Sub(params.P, y)
	}
	return x, y
}

// sysCallCheckSigHash returns the 4-byte SYSCALL operand for
// System.Crypto.CheckSig: the first four bytes of the name's SHA-256, as
// interopnames.ToID derives ids. The VM's syscall table has no handler
// under this id; VerifyWitness checks the script shape directly.
func sysCallCheckSigHash() []byte {
	return []byte{0x56, 0xe7, 0xb3, 0x27} // System.Crypto.CheckSig (precomputed)
}
