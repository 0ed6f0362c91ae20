package core

import (
	"encoding/hex"
	"testing"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/stretchr/testify/require"
)

func testStandbyCommittee(t *testing.T, n int) ([]*keys.PrivateKey, []string) {
	t.Helper()
	privs := make([]*keys.PrivateKey, n)
	committee := make([]string, n)
	for i := 0; i < n; i++ {
		p, err := keys.NewPrivateKey()
		require.NoError(t, err)
		privs[i] = p
		committee[i] = hex.EncodeToString(p.PublicKey().Bytes())
	}
	return privs, committee
}

func testProtocolConfig(t *testing.T, n int) config.ProtocolConfiguration {
	_, committee := testStandbyCommittee(t, n)
	return config.ProtocolConfiguration{
		Magic:                       netmode.UnitTestNet,
		ValidatorsCount:             n,
		StandbyCommittee:            committee,
		MaxTransactionsPerBlock:     512,
		MaxValidUntilBlockIncrement: 100,
		MemPoolSize:                100,
		TimePerBlock:                1,
	}
}

func TestGetValidatorsTakesPrefix(t *testing.T) {
	cfg := testProtocolConfig(t, 4)
	cfg.ValidatorsCount = 3

	vals, err := getValidators(cfg)
	require.NoError(t, err)
	require.Len(t, vals, 3)
	for i, v := range vals {
		require.Equal(t, cfg.StandbyCommittee[i], hex.EncodeToString(v.Bytes()))
	}
}

func TestGetValidatorsRejectsTooFewCommitteeMembers(t *testing.T) {
	cfg := testProtocolConfig(t, 2)
	cfg.ValidatorsCount = 4

	_, err := getValidators(cfg)
	require.Error(t, err)
}

func TestGetNextConsensusAddressQuorum(t *testing.T) {
	cfg := testProtocolConfig(t, 7)
	vals, err := getValidators(cfg)
	require.NoError(t, err)

	addr, err := getNextConsensusAddress(vals)
	require.NoError(t, err)
	require.False(t, addr.IsZero())
}

func TestCreateGenesisBlockIsSelfConsistent(t *testing.T) {
	cfg := testProtocolConfig(t, 4)

	b, err := createGenesisBlock(cfg)
	require.NoError(t, err)
	require.Equal(t, uint32(0), b.Index)
	require.True(t, b.PrevHash.IsZero())
	require.Equal(t, b.ComputeMerkleRoot(), b.MerkleRoot)

	vals, err := getValidators(cfg)
	require.NoError(t, err)
	wantConsensus, err := getNextConsensusAddress(vals)
	require.NoError(t, err)
	require.True(t, b.NextConsensus.Equals(wantConsensus))
}

func TestCreateGenesisBlockDeterministicPerMagic(t *testing.T) {
	cfg := testProtocolConfig(t, 4)

	a, err := createGenesisBlock(cfg)
	require.NoError(t, err)
	b, err := createGenesisBlock(cfg)
	require.NoError(t, err)
	require.True(t, a.Hash().Equals(b.Hash()))
}
