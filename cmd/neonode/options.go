package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/config/netmode"
)

// network-selector flags, mutually exclusive, mirroring the teacher's
// -m/-t/-p shorthand (cli/options/options.go): pick one config file out
// of the configured DefaultConfigPath.
var (
	mainnetFlag = cli.BoolFlag{Name: "mainnet, m", Usage: "Use Neo N3 mainnet"}
	testnetFlag = cli.BoolFlag{Name: "testnet, t", Usage: "Use Neo N3 testnet"}
	privnetFlag = cli.BoolFlag{Name: "privnet, p", Usage: "Use private network configuration (default)"}
	cfgPathFlag = cli.StringFlag{Name: "config-path", Usage: "Path to directory with protocol.<network>.yml files", Value: config.DefaultConfigPath}
	debugFlag   = cli.BoolFlag{Name: "debug, d", Usage: "Enable debug logging (overrides LogLevel from the config file)"}
)

var networkFlags = []cli.Flag{mainnetFlag, testnetFlag, privnetFlag, cfgPathFlag}

// getNetwork resolves ctx's network-selector flags to a netmode.Magic,
// erroring if more than one was given.
func getNetwork(ctx *cli.Context) (netmode.Magic, error) {
	var (
		net   = netmode.PrivNet
		count int
	)
	if ctx.Bool("mainnet") {
		net, count = netmode.MainNet, count+1
	}
	if ctx.Bool("testnet") {
		net, count = netmode.TestNet, count+1
	}
	if ctx.Bool("privnet") {
		net, count = netmode.PrivNet, count+1
	}
	if count > 1 {
		return 0, fmt.Errorf("only one of --mainnet/--testnet/--privnet may be given")
	}
	return net, nil
}

// getConfig loads the on-disk configuration for ctx's selected network,
// then applies the --debug override.
func getConfig(ctx *cli.Context) (config.Config, error) {
	net, err := getNetwork(ctx)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(ctx.String("config-path"), net)
	if err != nil {
		return config.Config{}, err
	}
	if ctx.Bool("debug") {
		cfg.ApplicationConfiguration.LogLevel = "debug"
	}
	return cfg, nil
}
