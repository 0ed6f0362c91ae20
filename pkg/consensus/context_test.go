package consensus

import (
	"testing"
	"time"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T, n, myIndex int) *context {
	t.Helper()
	_, pubs := testValidators(t, n)
	cfg := config.ProtocolConfiguration{
		TimePerBlock:            15 * time.Second,
		MaxTransactionsPerBlock: 512,
	}
	var priv *keys.PrivateKey
	if myIndex >= 0 {
		p, err := keys.NewPrivateKey()
		require.NoError(t, err)
		priv = p
	}
	return newContext(cfg, pubs, myIndex, priv)
}

func TestContextQuorumSizes(t *testing.T) {
	c := testContext(t, 7, 0)
	require.Equal(t, 7, c.n())
	require.Equal(t, 2, c.f())
	require.Equal(t, 5, c.m())
}

func TestContextPrimaryIndexWrapsAcrossViews(t *testing.T) {
	c := testContext(t, 4, -1)
	c.blockIndex = 10

	c.view = 0
	require.EqualValues(t, 10%4, c.primaryIndex())

	c.view = 1
	require.EqualValues(t, 9%4, c.primaryIndex())

	// view large enough that (blockIndex - view) goes negative before
	// the modulo wraps it back into range.
	c.view = 13
	want := ((int64(10) - 13) % 4 + 4) % 4
	require.EqualValues(t, want, c.primaryIndex())
}

func TestContextIsPrimary(t *testing.T) {
	c := testContext(t, 4, 2)
	c.blockIndex = 2
	c.view = 0
	require.True(t, c.isPrimary(), "validator 2 presents block 2 at view 0")

	c.view = 1
	require.False(t, c.isPrimary())
}

func TestContextViewTimeoutDoublesPerView(t *testing.T) {
	c := testContext(t, 4, -1)
	c.view = 0
	base := c.viewTimeout()
	c.view = 1
	require.Equal(t, base*2, c.viewTimeout())
	c.view = 2
	require.Equal(t, base*4, c.viewTimeout())
}

func TestContextResetClearsRoundState(t *testing.T) {
	c := testContext(t, 4, 0)
	tip := &block.Header{Index: 0}

	c.reset(1, tip, c.validators, 0)
	require.Equal(t, uint32(1), c.blockIndex)
	require.Equal(t, byte(0), c.view)
	require.Equal(t, StateInitial, c.state)
	require.Equal(t, tip.Hash(), c.prevHash)
	require.Empty(t, c.preparations)
	require.Empty(t, c.commits)
	require.NotEqual(t, util.Uint160{}, c.nextConsensus)
}

func TestContextChangeViewKeepsCommitsClearsPreparations(t *testing.T) {
	c := testContext(t, 4, 0)
	tip := &block.Header{Index: 0}
	c.reset(1, tip, c.validators, 0)

	c.preparations[1] = &Payload{}
	c.commits[1] = &Payload{}

	c.changeView(1)
	require.Equal(t, byte(1), c.view)
	require.Empty(t, c.preparations, "a view change abandons this view's prepare state")
	require.Len(t, c.commits, 1, "a validator must never retract a Commit across a view change")
}

func TestAssembleWitnessRequiresQuorum(t *testing.T) {
	privs, pubs := testValidators(t, 4)
	headerHash := util.Uint256{1, 2, 3}
	digest := hash.Sha256(headerHash.BytesBE()).BytesBE()

	commits := make(map[uint16]*Payload)
	for i := 0; i < 2; i++ {
		sig := privs[i].SignHash(digest)
		var inner commit
		copy(inner.Signature[:], sig)
		p := &Payload{ValidatorIndex: uint16(i)}
		p.message = message{Type: commitType, payload: &inner}
		commits[uint16(i)] = p
	}

	_, err := assembleWitness(pubs, commits, 3)
	require.ErrorIs(t, err, errInsufficientCommits)

	for i := 2; i < 3; i++ {
		sig := privs[i].SignHash(digest)
		var inner commit
		copy(inner.Signature[:], sig)
		p := &Payload{ValidatorIndex: uint16(i)}
		p.message = message{Type: commitType, payload: &inner}
		commits[uint16(i)] = p
	}

	w, err := assembleWitness(pubs, commits, 3)
	require.NoError(t, err)
	require.NotEmpty(t, w.VerificationScript)
	require.NotEmpty(t, w.InvocationScript)

	ok, err := keys.VerifyWitness(w.VerificationScript, w.InvocationScript, digest)
	require.NoError(t, err)
	require.True(t, ok)
}
