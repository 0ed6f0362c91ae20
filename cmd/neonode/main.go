// Command neonode is the node binary: it starts the P2P engine, core
// blockchain, optional dBFT consensus replica, and JSON-RPC server, and
// offers a handful of "db" subcommands for offline chain maintenance
// (§9 import/export tooling), following the teacher's cli/app + cli/server
// split collapsed into one small package since this node has no wallet,
// oracle, notary, or state-service commands to separate out.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli"

	"github.com/noriachain/neonode/cmd/neonode/vmcli"
	"github.com/noriachain/neonode/pkg/config"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "neonode\nVersion: %s\nGoVersion: %s\n", config.Version, runtime.Version())
}

func newApp() *cli.App {
	cli.VersionPrinter = versionPrinter
	app := cli.NewApp()
	app.Name = "neonode"
	app.Version = config.Version
	app.Usage = "Neo N3 full node"
	app.ErrWriter = os.Stdout
	app.Commands = []cli.Command{
		nodeCommand,
		dbCommand,
		vmcli.Command(),
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
