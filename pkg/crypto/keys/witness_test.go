package keys

import (
	"testing"

	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/stretchr/testify/require"
)

func signDigest(t *testing.T, priv *PrivateKey, msg []byte) ([]byte, []byte) {
	t.Helper()
	digest := hash.Sha256(msg).BytesBE()
	return priv.Sign(msg), digest
}

func TestVerifyWitnessSingleSig(t *testing.T) {
	priv, err := NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PublicKey()

	msg := []byte("block header fields")
	sig, digest := signDigest(t, priv, msg)

	verification := pub.VerificationScript()
	invocation := append([]byte{0x0c, 64}, sig...)

	ok, err := VerifyWitness(verification, invocation, digest)
	require.NoError(t, err)
	require.True(t, ok)

	badDigest := hash.Sha256([]byte("tampered")).BytesBE()
	ok, err = VerifyWitness(verification, invocation, badDigest)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyWitnessMultiSig(t *testing.T) {
	var privs []*PrivateKey
	var pubs PublicKeys
	for i := 0; i < 4; i++ {
		p, err := NewPrivateKey()
		require.NoError(t, err)
		privs = append(privs, p)
		pubs = append(pubs, p.PublicKey())
	}
	m := 3
	verification, err := CreateMultiSigRedeemScript(m, pubs)
	require.NoError(t, err)

	msg := []byte("consensus commit")
	digest := hash.Sha256(msg).BytesBE()

	sorted := make(PublicKeys, len(pubs))
	copy(sorted, pubs)
	sortPublicKeys(sorted)

	var invocation []byte
	signed := 0
	for _, pub := range sorted {
		if signed == m {
			break
		}
		for _, p := range privs {
			if p.PublicKey().Bytes()[0] == pub.Bytes()[0] && string(p.PublicKey().Bytes()) == string(pub.Bytes()) {
				sig := p.Sign(msg)
				invocation = append(invocation, 0x0c, 64)
				invocation = append(invocation, sig...)
				signed++
				break
			}
		}
	}
	require.Equal(t, m, signed)

	ok, err := VerifyWitness(verification, invocation, digest)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyWitnessMultiSigInsufficientSignatures(t *testing.T) {
	var privs []*PrivateKey
	var pubs PublicKeys
	for i := 0; i < 4; i++ {
		p, err := NewPrivateKey()
		require.NoError(t, err)
		privs = append(privs, p)
		pubs = append(pubs, p.PublicKey())
	}
	verification, err := CreateMultiSigRedeemScript(3, pubs)
	require.NoError(t, err)

	msg := []byte("consensus commit")
	digest := hash.Sha256(msg).BytesBE()
	sig := privs[0].Sign(msg)
	invocation := append([]byte{0x0c, 64}, sig...)

	ok, err := VerifyWitness(verification, invocation, digest)
	require.NoError(t, err)
	require.False(t, ok)
}
