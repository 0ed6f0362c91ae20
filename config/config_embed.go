// Package config embeds the default network configuration YAML files
// shipped alongside the node binary.
package config

import _ "embed"

// PrivNet is the private-network default configuration.
//
//go:embed protocol.privnet.yml
var PrivNet []byte
