package config

import (
	"errors"
	"time"

	"github.com/noriachain/neonode/pkg/core/storage"
)

// BasicService is the common shape of the node's optional HTTP-ish
// services (RPC, Prometheus, pprof).
type BasicService struct {
	Enabled   bool     `yaml:"Enabled"`
	Addresses []string `yaml:"Addresses"`
}

// P2P holds peer-to-peer networking settings.
type P2P struct {
	// Addresses this node listens on, "[host]:[port][:announcedPort]".
	Addresses          []string      `yaml:"Addresses"`
	AttemptConnPeers   int           `yaml:"AttemptConnPeers"`
	BroadcastFactor    int           `yaml:"BroadcastFactor"`
	DialTimeout        time.Duration `yaml:"DialTimeout"`
	ExtensiblePoolSize int           `yaml:"ExtensiblePoolSize"`
	MaxPeers           int           `yaml:"MaxPeers"`
	MinPeers           int           `yaml:"MinPeers"`
	PingInterval       time.Duration `yaml:"PingInterval"`
	PingTimeout        time.Duration `yaml:"PingTimeout"`
}

// DBConfiguration selects and configures the persistent storage engine.
type DBConfiguration struct {
	Type           string                 `yaml:"Type"`
	BoltDBOptions  storage.BoltDBOptions  `yaml:"BoltDBOptions"`
	LevelDBOptions storage.LevelDBOptions `yaml:"LevelDBOptions"`
}

// RPC configures the JSON-RPC service.
type RPC struct {
	BasicService          `yaml:",inline"`
	EnableCORSWorkaround  bool          `yaml:"EnableCORSWorkaround"`
	MaxGasInvoke          int64         `yaml:"MaxGasInvoke"`
	MaxRequestBodyBytes   int           `yaml:"MaxRequestBodyBytes"`
	MaxRequestHeaderBytes int           `yaml:"MaxRequestHeaderBytes"`
	MaxWebSocketClients   int           `yaml:"MaxWebSocketClients"`
	SessionEnabled        bool          `yaml:"SessionEnabled"`
	SessionLifetime       time.Duration `yaml:"SessionLifetime"`
}

// Consensus configures this node's optional dBFT validator role. There
// is no NEP-6 wallet support in this implementation (§C), so the
// validator key is unlocked straight from a WIF string rather than an
// encrypted wallet file.
type Consensus struct {
	Enabled   bool   `yaml:"Enabled"`
	UnlockWIF string `yaml:"UnlockWIF"`
}

// ApplicationConfiguration is node-local configuration: storage, P2P,
// and the optional services it exposes.
type ApplicationConfiguration struct {
	Logger          `yaml:",inline"`
	DBConfiguration DBConfiguration `yaml:"DBConfiguration"`
	P2P             P2P             `yaml:"P2P"`
	Relay           bool            `yaml:"Relay"`
	RPC             RPC             `yaml:"RPC"`
	Consensus       Consensus       `yaml:"Consensus"`
	Prometheus      BasicService    `yaml:"Prometheus"`
	Pprof           BasicService    `yaml:"Pprof"`
}

// Validate checks internal consistency of the application settings.
func (a *ApplicationConfiguration) Validate() error {
	if err := a.Logger.Validate(); err != nil {
		return err
	}
	switch a.DBConfiguration.Type {
	case "", "memory", "boltdb", "leveldb":
	default:
		return errors.New("config: unknown DBConfiguration.Type")
	}
	if a.P2P.MinPeers > a.P2P.MaxPeers && a.P2P.MaxPeers != 0 {
		return errors.New("config: P2P.MinPeers exceeds P2P.MaxPeers")
	}
	return nil
}
