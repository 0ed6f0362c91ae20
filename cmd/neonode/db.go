package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/core"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/chaindump"
	vio "github.com/noriachain/neonode/pkg/io"
)

var (
	countFlag  = cli.UintFlag{Name: "count, c", Usage: "Number of blocks to process (0 or omitted: all)"}
	startFlag  = cli.UintFlag{Name: "start, s", Usage: "Block height to start from"}
	outFlag    = cli.StringFlag{Name: "out, o", Usage: "Output file (stdout if omitted)"}
	inFlag     = cli.StringFlag{Name: "in, i", Usage: "Input file (stdin if omitted)"}
	heightFlag = cli.UintFlag{Name: "height", Usage: "Height the operator intends to db restore back up to after reset", Required: true}
)

var dbCommand = cli.Command{
	Name:  "db",
	Usage: "Offline database maintenance",
	Subcommands: []cli.Command{
		{
			Name:      "dump",
			Usage:     "Dump blocks, starting at genesis or --start, to a file",
			UsageText: "neonode db dump [-o file] [-s start] [-c count] [--config-path path] [-m/-t/-p]",
			Action:    dumpDB,
			Flags:     append(networkFlags, startFlag, countFlag, outFlag),
		},
		{
			Name:      "restore",
			Usage:     "Restore blocks from a file produced by db dump",
			UsageText: "neonode db restore [-i file] [-c count] [--config-path path] [-m/-t/-p]",
			Action:    restoreDB,
			Flags:     append(networkFlags, countFlag, inFlag),
		},
		{
			Name:      "reset",
			Usage:     "Wipe the configured store and rebuild it from genesis",
			UsageText: "neonode db reset --height h [--config-path path] [-m/-t/-p]",
			Action:    resetDB,
			Flags:     append(networkFlags, heightFlag),
		},
	},
}

func dumpDB(ctx *cli.Context) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := config.NewLogger(cfg.ApplicationConfiguration.Logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	count := uint32(ctx.Uint("count"))
	start := uint32(ctx.Uint("start"))

	out := os.Stdout
	if path := ctx.String("out"); path != "" {
		out, err = os.Create(path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer out.Close()
	}
	w := vio.NewBinWriterFromIO(out)

	chain, store, err := initBlockChain(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer store.Close()

	chainCount := chain.BlockHeight() + 1
	if start+count > chainCount {
		return cli.NewExitError(fmt.Errorf("chain is only %d blocks high, can't dump %d starting from %d", chainCount, count, start), 1)
	}
	if count == 0 {
		count = chainCount - start
	}
	w.WriteU32LE(start)
	w.WriteU32LE(count)
	if w.Err != nil {
		return cli.NewExitError(w.Err, 1)
	}
	if err := chaindump.Dump(chain, w, start, count); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func restoreDB(ctx *cli.Context) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := config.NewLogger(cfg.ApplicationConfiguration.Logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	in := os.Stdin
	if path := ctx.String("in"); path != "" {
		in, err = os.Open(path)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer in.Close()
	}
	r := vio.NewBinReaderFromIO(in)

	chain, store, err := initBlockChain(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer store.Close()

	start := r.ReadU32LE()
	allBlocks := r.ReadU32LE()
	if r.Err != nil {
		return cli.NewExitError(fmt.Errorf("reading dump header: %w", r.Err), 1)
	}
	if chain.BlockHeight()+1 < start {
		return cli.NewExitError(fmt.Errorf("chain is at height %d, dump starts at %d", chain.BlockHeight(), start), 1)
	}

	var skip uint32
	if chain.BlockHeight() != 0 {
		skip = chain.BlockHeight() + 1 - start
	}
	count := uint32(ctx.Uint("count"))
	if skip+count > allBlocks {
		return cli.NewExitError(fmt.Errorf("dump has only %d blocks, can't read %d starting from %d", allBlocks, count, skip), 1)
	}
	if count == 0 {
		count = allBlocks - skip
	}
	log.Info("restoring",
		zap.Uint32("start", start), zap.Uint32("chain height", chain.BlockHeight()),
		zap.Uint32("skip", skip), zap.Uint32("count", count))

	grace := newGraceContext()
	f := func(b *block.Block) error {
		select {
		case <-grace.Done():
			return grace.Err()
		default:
			return nil
		}
	}
	if err := chaindump.Restore(chain, r, skip, count, f); err != nil {
		return cli.NewExitError(fmt.Errorf("restoring dump: %w", err), 1)
	}
	return nil
}

// resetDB wipes the configured store's on-disk data and rebuilds an
// empty chain from genesis. Unlike the teacher's chain.Reset(height),
// this implementation has no MPT-backed state snapshot to roll back
// to an arbitrary past height (§C), so a full wipe is the only
// supported reset; --height is recorded purely as the operator's
// intended replay target for a follow-up db restore.
func resetDB(ctx *cli.Context) error {
	cfg, err := getConfig(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := config.NewLogger(cfg.ApplicationConfiguration.Logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()
	h := uint32(ctx.Uint("height"))

	if err := wipeStore(cfg.ApplicationConfiguration.DBConfiguration); err != nil {
		return cli.NewExitError(fmt.Errorf("wiping store: %w", err), 1)
	}

	store, err := cfg.ApplicationConfiguration.NewStore()
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer store.Close()
	if _, err := core.New(cfg.ProtocolConfiguration, store, log); err != nil {
		return cli.NewExitError(fmt.Errorf("rebuilding chain from genesis: %w", err), 1)
	}
	log.Info("chain reset to genesis; replay a db restore dump to reach the requested height", zap.Uint32("height", h))
	return nil
}

func wipeStore(cfg config.DBConfiguration) error {
	switch cfg.Type {
	case "", "memory":
		return nil
	case "boltdb":
		err := os.Remove(cfg.BoltDBOptions.FilePath)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	case "leveldb":
		err := os.RemoveAll(cfg.LevelDBOptions.DataDirectoryPath)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown storage engine %q", cfg.Type)
	}
}
