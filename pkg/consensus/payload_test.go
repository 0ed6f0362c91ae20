package consensus

import (
	"bytes"
	"testing"

	"github.com/noriachain/neonode/pkg/crypto/keys"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/stretchr/testify/require"
)

func testValidators(t *testing.T, n int) ([]*keys.PrivateKey, keys.PublicKeys) {
	t.Helper()
	privs := make([]*keys.PrivateKey, n)
	pubs := make(keys.PublicKeys, n)
	for i := 0; i < n; i++ {
		p, err := keys.NewPrivateKey()
		require.NoError(t, err)
		privs[i] = p
		pubs[i] = p.PublicKey()
	}
	return privs, pubs
}

func TestPayloadSignAndVerify(t *testing.T) {
	privs, pubs := testValidators(t, 4)

	p := &Payload{
		Version:        0,
		ValidatorIndex: 2,
		BlockIndex:     10,
		Timestamp:      123456,
	}
	p.message = message{Type: prepareResponseType, ViewNumber: 0, payload: &prepareResponse{PreparationHash: util.Uint256{1, 2, 3}}}
	p.Sign(privs[2])

	ok, err := p.Verify(pubs)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Verify(keys.PublicKeys{pubs[0], pubs[1], pubs[3], pubs[2]})
	require.NoError(t, err)
	require.False(t, ok, "witness is pinned to the validator index it was signed under")
}

func TestPayloadEncodeDecodeRoundTrip(t *testing.T) {
	privs, pubs := testValidators(t, 4)

	inner := &prepareRequest{
		Timestamp:         42,
		Nonce:             7,
		NextConsensus:     util.Uint160{9, 9, 9},
		TransactionHashes: []util.Uint256{{1}, {2}, {3}},
	}
	p := &Payload{
		Version:        0,
		ValidatorIndex: 1,
		BlockIndex:     5,
		Timestamp:      1000,
	}
	p.message = message{Type: prepareRequestType, ViewNumber: 1, payload: inner}
	p.Sign(privs[1])

	w := vio.NewBufBinWriter()
	p.EncodeBinary(w)
	require.NoError(t, w.Err)

	var decoded Payload
	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	decoded.DecodeBinary(r)
	require.NoError(t, r.Err)

	require.Equal(t, p.BlockIndex, decoded.BlockIndex)
	require.Equal(t, p.ValidatorIndex, decoded.ValidatorIndex)
	require.Equal(t, p.Type(), decoded.Type())
	require.Equal(t, p.ViewNumber(), decoded.ViewNumber())
	require.Equal(t, p.Hash(), decoded.Hash())

	pr, ok := decoded.prepareRequest()
	require.True(t, ok)
	require.Equal(t, inner.TransactionHashes, pr.TransactionHashes)
	require.Equal(t, inner.NextConsensus, pr.NextConsensus)

	ok, err := decoded.Verify(pubs)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMessageTypeString(t *testing.T) {
	require.Equal(t, "PrepareRequest", prepareRequestType.String())
	require.Equal(t, "Commit", commitType.String())
	require.Contains(t, messageType(0xFF).String(), "0xff")
}
