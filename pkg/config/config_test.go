package config

import (
	"testing"

	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedPrivNet(t *testing.T) {
	cfg, err := Load(DefaultConfigPath, netmode.PrivNet)
	require.NoError(t, err)
	require.Equal(t, netmode.PrivNet, cfg.ProtocolConfiguration.Magic)
	require.Equal(t, 4, cfg.ProtocolConfiguration.ValidatorsCount)
	require.Len(t, cfg.ProtocolConfiguration.StandbyCommittee, 4)
	require.True(t, cfg.ProtocolConfiguration.P2PSigExtensions)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("./testdata/does-not-exist.yml")
	require.Error(t, err)
}

func TestProtocolConfigurationValidate(t *testing.T) {
	p := ProtocolConfiguration{
		ValidatorsCount:         0,
		StandbyCommittee:        nil,
		TimePerBlock:            0,
		MaxTransactionsPerBlock: 0,
	}
	require.Error(t, p.Validate())
}
