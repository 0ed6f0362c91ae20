package config

import (
	"bytes"
	"fmt"
	"os"

	embeddedconfig "github.com/noriachain/neonode/config"
	"github.com/noriachain/neonode/pkg/config/netmode"
	"github.com/noriachain/neonode/pkg/core/storage"
	"gopkg.in/yaml.v3"
)

// UserAgentFormat wraps the build version into the P2P user-agent
// string exchanged on handshake.
const UserAgentFormat = "/NEO-GO:%s/"

// DefaultConfigPath is where Load looks for protocol.<network>.yml
// files when no explicit path is given.
const DefaultConfigPath = "./config"

// Version is set at link time via -ldflags.
var Version string

// Config is the top-level, on-disk node configuration.
type Config struct {
	ProtocolConfiguration    ProtocolConfiguration    `yaml:"ProtocolConfiguration"`
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// GenerateUserAgent renders this build's P2P user-agent string.
func (c Config) GenerateUserAgent() string {
	return fmt.Sprintf(UserAgentFormat, Version)
}

// Load reads protocol.<netMode>.yml from dir.
func Load(dir string, netMode netmode.Magic) (Config, error) {
	return LoadFile(fmt.Sprintf("%s/protocol.%s.yml", dir, netMode))
}

// LoadFile reads and validates a config file at path, falling back to
// the binary's embedded default for the well-known private-network
// path when no file exists on disk.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		data, err = embeddedConfig(path)
		if err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.ProtocolConfiguration.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplicationConfiguration.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func embeddedConfig(path string) ([]byte, error) {
	if path == fmt.Sprintf("%s/protocol.%s.yml", DefaultConfigPath, netmode.PrivNet) {
		return embeddedconfig.PrivNet, nil
	}
	return nil, fmt.Errorf("config: %s does not exist and no embedded default matches it", path)
}

// NewStore constructs the persistent backend named by
// ApplicationConfiguration.DBConfiguration.Type.
func (a ApplicationConfiguration) NewStore() (storage.Store, error) {
	switch a.DBConfiguration.Type {
	case "", "memory":
		return storage.NewMemoryStore(), nil
	case "boltdb":
		return storage.NewBoltDBStore(a.DBConfiguration.BoltDBOptions)
	case "leveldb":
		return storage.NewLevelDBStore(a.DBConfiguration.LevelDBOptions)
	default:
		return nil, fmt.Errorf("config: unknown storage engine %q", a.DBConfiguration.Type)
	}
}
