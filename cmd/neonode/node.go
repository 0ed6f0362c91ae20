package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/consensus"
	"github.com/noriachain/neonode/pkg/core"
	"github.com/noriachain/neonode/pkg/core/storage"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/noriachain/neonode/pkg/metrics"
	"github.com/noriachain/neonode/pkg/network"
	rpcsrv "github.com/noriachain/neonode/pkg/rpc/server"
)

var nodeCommand = cli.Command{
	Name:      "node",
	Usage:     "Start a neonode instance",
	UsageText: "neonode node [--config-path path] [-m/-t/-p] [-d]",
	Action:    startServer,
	Flags:     append(networkFlags, debugFlag),
}

// newGraceContext returns a context cancelled on SIGINT/SIGTERM; there
// is no SIGHUP-triggered config hot-reload here (unlike the teacher's
// cli/server/server.go) because the services it reloads in place —
// oracle, notary, state-root — are out of scope (§A Non-goals carry
// only what the spec names, and these three aren't named).
func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

func initBlockChain(cfg config.Config, log *zap.Logger) (*core.Blockchain, storage.Store, error) {
	store, err := cfg.ApplicationConfiguration.NewStore()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}
	chain, err := core.New(cfg.ProtocolConfiguration, store, log)
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			return nil, nil, fmt.Errorf("initializing blockchain: %w (also failed to close the DB: %v)", err, closeErr)
		}
		return nil, nil, fmt.Errorf("initializing blockchain: %w", err)
	}
	return chain, store, nil
}

// mkConsensus builds the consensus replica when Consensus.Enabled, and
// returns nil, nil otherwise. Without Consensus.UnlockWIF the replica has
// no private key and runs as an observer.
func mkConsensus(cfg config.Consensus, chain *core.Blockchain, serv *network.Server, log *zap.Logger) (*consensus.Service, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var priv *keys.PrivateKey
	if cfg.UnlockWIF != "" {
		var err error
		priv, err = keys.NewPrivateKeyFromWIF(cfg.UnlockWIF)
		if err != nil {
			return nil, fmt.Errorf("decoding Consensus.UnlockWIF: %w", err)
		}
	}
	svc, err := consensus.NewService(consensus.ServiceConfig{
		Chain:       chain,
		Broadcaster: serv,
		PrivateKey:  priv,
		Log:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing consensus service: %w", err)
	}
	return svc, nil
}

func startServer(ctx *cli.Context) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := config.NewLogger(cfg.ApplicationConfiguration.Logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	grace := newGraceContext()

	chain, store, err := initBlockChain(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	prom := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)
	defer func() {
		pprof.ShutDown()
		prom.ShutDown()
		_ = store.Close()
	}()
	if err := prom.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("starting Prometheus service: %w", err), 1)
	}
	if err := pprof.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("starting Pprof service: %w", err), 1)
	}

	p2pAddr := ":10333"
	if len(cfg.ApplicationConfiguration.P2P.Addresses) > 0 {
		p2pAddr = cfg.ApplicationConfiguration.P2P.Addresses[0]
	}
	serv, err := network.NewServer(network.ServerConfig{
		Magic:      uint32(cfg.ProtocolConfiguration.Magic),
		UserAgent:  cfg.GenerateUserAgent(),
		ListenAddr: p2pAddr,
		Seeds:      cfg.ProtocolConfiguration.SeedList,
		P2P:        cfg.ApplicationConfiguration.P2P,
		Log:        log,
	}, chain, nil)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("initializing network server: %w", err), 1)
	}

	dbft, err := mkConsensus(cfg.ApplicationConfiguration.Consensus, chain, serv, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if dbft != nil {
		serv.AddConsensusService(dbft)
	}

	var rpc *rpcsrv.Server
	if cfg.ApplicationConfiguration.RPC.Enabled && len(cfg.ApplicationConfiguration.RPC.Addresses) > 0 {
		rpc = rpcsrv.New(rpcsrv.Config{
			Addr:         cfg.ApplicationConfiguration.RPC.Addresses[0],
			MaxGasInvoke: cfg.ApplicationConfiguration.RPC.MaxGasInvoke,
			UserAgent:    cfg.GenerateUserAgent(),
			Log:          log,
		}, chain, chain, serv)
	}

	if err := serv.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("starting network server: %w", err), 1)
	}
	defer serv.Shutdown()
	if dbft != nil {
		dbft.Start()
		defer dbft.Shutdown()
	}
	if rpc != nil {
		if err := rpc.Start(); err != nil {
			return cli.NewExitError(fmt.Errorf("starting RPC server: %w", err), 1)
		}
		defer rpc.Shutdown()
	}

	fmt.Fprintln(ctx.App.Writer, logo())
	fmt.Fprintln(ctx.App.Writer, cfg.GenerateUserAgent())
	fmt.Fprintln(ctx.App.Writer)

	<-grace.Done()
	log.Info("shutting down")
	return nil
}

func logo() string {
	return `
    _   ____________        __________
   / | / / ____/ __ \      / ____/ __ \
  /  |/ / __/ / / / /_____/ / __/ / / /
 / /|  / /___/ /_/ /_____/ /_/ / /_/ /
/_/ |_/_____/\____/      \____/\____/
`
}
