package chaindump

import (
	"bytes"
	"errors"
	"testing"

	"github.com/noriachain/neonode/pkg/core/block"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/stretchr/testify/require"
)

var errNotFound = errors.New("chaindump test: not found")

// fakeLedger is a minimal in-memory Ledger, independent of *core.Blockchain,
// good enough to exercise Dump/Restore's framing and height bookkeeping.
type fakeLedger struct {
	height    uint32
	heightIdx map[uint32]util.Uint256
	blocks    map[util.Uint256]*block.Block
	applied   []*block.Block
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		heightIdx: make(map[uint32]util.Uint256),
		blocks:    make(map[util.Uint256]*block.Block),
	}
}

func (l *fakeLedger) BlockHeight() uint32 { return l.height }
func (l *fakeLedger) GetHeaderHash(idx uint32) (util.Uint256, error) {
	h, ok := l.heightIdx[idx]
	if !ok {
		return util.Uint256{}, errNotFound
	}
	return h, nil
}
func (l *fakeLedger) GetBlock(h util.Uint256) (*block.Block, error) {
	b, ok := l.blocks[h]
	if !ok {
		return nil, errNotFound
	}
	return b, nil
}
func (l *fakeLedger) AddBlock(b *block.Block) error {
	l.height = b.Index
	l.heightIdx[b.Index] = b.Hash()
	l.blocks[b.Hash()] = b
	l.applied = append(l.applied, b)
	return nil
}

func fakeBlockAt(index uint32) *block.Block {
	b := &block.Block{}
	b.Index = index
	b.Timestamp = uint64(index) * 15000
	b.NextConsensus = util.Uint160{byte(index)}
	return b
}

func sourceChain(n uint32) *fakeLedger {
	l := newFakeLedger()
	for i := uint32(0); i <= n; i++ {
		_ = l.AddBlock(fakeBlockAt(i))
	}
	return l
}

func TestDumpAndRestoreRoundTrip(t *testing.T) {
	src := sourceChain(5)

	w := vio.NewBufBinWriter()
	require.NoError(t, Dump(src, w, 0, src.BlockHeight()+1))
	require.NoError(t, w.Err)

	dst := newFakeLedger()
	require.NoError(t, dst.AddBlock(fakeBlockAt(0))) // dst already has genesis, like a live node would

	r := vio.NewBinReaderFromIO(bytes.NewReader(w.Bytes()))
	require.NoError(t, Restore(dst, r, 0, src.BlockHeight()+1, nil))

	require.Equal(t, src.BlockHeight(), dst.BlockHeight())
	for i := uint32(0); i <= src.BlockHeight(); i++ {
		h, err := dst.GetHeaderHash(i)
		require.NoError(t, err)
		b, err := dst.GetBlock(h)
		require.NoError(t, err)
		require.Equal(t, i, b.Index)
	}
}

func TestRestoreSkipsAlreadyPersistedBlocks(t *testing.T) {
	src := sourceChain(3)

	w := vio.NewBufBinWriter()
	require.NoError(t, Dump(src, w, 0, src.BlockHeight()+1))
	buf := w.Bytes()

	dst := newFakeLedger()
	require.NoError(t, dst.AddBlock(fakeBlockAt(0)))
	require.NoError(t, dst.AddBlock(fakeBlockAt(1)))

	r := vio.NewBinReaderFromIO(bytes.NewReader(buf))
	require.NoError(t, Restore(dst, r, 0, src.BlockHeight()+1, nil))

	require.Equal(t, uint32(3), dst.BlockHeight())
	require.Len(t, dst.applied, 4) // the two setup blocks, then only blocks 2 and 3 from the dump
}

func TestRestoreHandlerCanStopEarly(t *testing.T) {
	src := sourceChain(4)

	w := vio.NewBufBinWriter()
	require.NoError(t, Dump(src, w, 0, src.BlockHeight()+1))
	buf := w.Bytes()

	dst := newFakeLedger()
	require.NoError(t, dst.AddBlock(fakeBlockAt(0)))

	errStopped := errors.New("stopped")
	var lastIndex uint32
	f := func(b *block.Block) error {
		lastIndex = b.Index
		if b.Index == 2 {
			return errStopped
		}
		return nil
	}

	r := vio.NewBinReaderFromIO(bytes.NewReader(buf))
	err := Restore(dst, r, 0, src.BlockHeight()+1, f)
	require.ErrorIs(t, err, errStopped)
	require.Equal(t, uint32(2), lastIndex)
	require.Equal(t, uint32(2), dst.BlockHeight())
}

func TestRestoreSkipParameterOffsetsIntoTheDump(t *testing.T) {
	src := sourceChain(4)

	w := vio.NewBufBinWriter()
	require.NoError(t, Dump(src, w, 0, src.BlockHeight()+1))
	buf := w.Bytes()

	dst := newFakeLedger()
	require.NoError(t, dst.AddBlock(fakeBlockAt(0)))
	require.NoError(t, dst.AddBlock(fakeBlockAt(1)))
	require.NoError(t, dst.AddBlock(fakeBlockAt(2)))

	// The dump still starts at height 0; skip the first 3 framed blocks
	// to land on block 3.
	r := vio.NewBinReaderFromIO(bytes.NewReader(buf))
	require.NoError(t, Restore(dst, r, 3, 2, nil))
	require.Equal(t, uint32(4), dst.BlockHeight())
}
