// Package chaindump streams a contiguous range of blocks to or from a
// binary file: one length-prefixed, serialized block after another,
// in height order starting at some offset (§9 import/export tooling).
package chaindump

import (
	"bytes"
	"fmt"

	"github.com/noriachain/neonode/pkg/core/block"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// Ledger is the slice of *core.Blockchain that dump/restore need: a
// way to resolve height to hash and back, and to apply a restored
// block through the normal validation pipeline.
type Ledger interface {
	BlockHeight() uint32
	GetHeaderHash(uint32) (util.Uint256, error)
	GetBlock(util.Uint256) (*block.Block, error)
	AddBlock(*block.Block) error
}

// Dump writes count blocks starting at height start to w, each framed
// as a little-endian uint32 byte length followed by the block's own
// binary encoding.
func Dump(bc Ledger, w *vio.BinWriter, start, count uint32) error {
	for i := uint32(0); i < count; i++ {
		h, err := bc.GetHeaderHash(start + i)
		if err != nil {
			return fmt.Errorf("chaindump: resolving height %d: %w", start+i, err)
		}
		b, err := bc.GetBlock(h)
		if err != nil {
			return fmt.Errorf("chaindump: loading block %d: %w", start+i, err)
		}
		buf := vio.NewBufBinWriter()
		b.EncodeBinary(buf)
		if buf.Err != nil {
			return fmt.Errorf("chaindump: encoding block %d: %w", start+i, buf.Err)
		}
		raw := buf.Bytes()
		w.WriteU32LE(uint32(len(raw)))
		w.WriteB(raw)
		if w.Err != nil {
			return fmt.Errorf("chaindump: writing block %d: %w", start+i, w.Err)
		}
	}
	return nil
}

// Restore reads blocks from r, skipping the first skip of them and
// then applying up to count more via bc.AddBlock. f, if non-nil, is
// called after each applied block (including skipped ones is not
// supported: only applied blocks are reported) and can abort the scan
// early by returning a non-nil error.
func Restore(bc Ledger, r *vio.BinReader, skip, count uint32, f func(*block.Block) error) error {
	for i := uint32(0); i < skip; i++ {
		ln := r.ReadU32LE()
		if r.Err != nil {
			return fmt.Errorf("chaindump: reading length while skipping block %d: %w", i, r.Err)
		}
		r.ReadB(int(ln))
		if r.Err != nil {
			return fmt.Errorf("chaindump: skipping block %d: %w", i, r.Err)
		}
	}
	for i := uint32(0); i < count; i++ {
		ln := r.ReadU32LE()
		if r.Err != nil {
			return fmt.Errorf("chaindump: reading length for block %d: %w", skip+i, r.Err)
		}
		raw := r.ReadB(int(ln))
		if r.Err != nil {
			return fmt.Errorf("chaindump: reading block %d: %w", skip+i, r.Err)
		}
		br := vio.NewBinReaderFromIO(bytes.NewReader(raw))
		b := &block.Block{}
		b.DecodeBinary(br)
		if br.Err != nil {
			return fmt.Errorf("chaindump: decoding block %d: %w", skip+i, br.Err)
		}
		if b.Index <= bc.BlockHeight() {
			continue
		}
		if err := bc.AddBlock(b); err != nil {
			return fmt.Errorf("chaindump: applying block %d: %w", b.Index, err)
		}
		if f != nil {
			if err := f(b); err != nil {
				return err
			}
		}
	}
	return nil
}
