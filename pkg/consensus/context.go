package consensus

import (
	"errors"
	"sort"
	"time"

	"github.com/noriachain/neonode/pkg/config"
	"github.com/noriachain/neonode/pkg/core"
	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/noriachain/neonode/pkg/util"
)

// State is where a replica stands in a single block's dBFT round
// (§4.9). A fresh round always starts at Initial; BlockPersisted is
// terminal until Reset starts the next round.
type State byte

const (
	StateInitial State = iota
	StateRequestSent
	StateResponseSent
	StateCommitSent
	StateViewChanging
	StateBlockPersisted
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateRequestSent:
		return "RequestSent"
	case StateResponseSent:
		return "ResponseSent"
	case StateCommitSent:
		return "CommitSent"
	case StateViewChanging:
		return "ViewChanging"
	case StateBlockPersisted:
		return "BlockPersisted"
	default:
		return "Unknown"
	}
}

// context holds one replica's view of a single block's consensus
// round: the committee it's running with, where it stands in the
// prepare/commit/view-change flow, and everything collected so far.
type context struct {
	cfg        config.ProtocolConfiguration
	validators keys.PublicKeys
	myIndex    int // -1 if this node isn't a validator (observer-only)
	priv       *keys.PrivateKey

	blockIndex uint32
	view       byte
	state      State

	timestamp     uint64
	nonce         uint64
	txHashes      []util.Uint256
	transactions  map[util.Uint256]*transaction.Transaction
	nextConsensus util.Uint160

	prevHash util.Uint256

	prepareRequest  *Payload
	preparationHash util.Uint256
	preparations    map[uint16]*Payload
	commits         map[uint16]*Payload
	changeViews     map[uint16]*Payload

	header *block.Header
}

func newContext(cfg config.ProtocolConfiguration, validators keys.PublicKeys, myIndex int, priv *keys.PrivateKey) *context {
	c := &context{
		cfg:        cfg,
		validators: validators,
		myIndex:    myIndex,
		priv:       priv,
	}
	return c
}

// n is the committee size.
func (c *context) n() int { return len(c.validators) }

// f is the number of faulty validators dBFT tolerates.
func (c *context) f() int { return (c.n() - 1) / 3 }

// m is the quorum size: n - f.
func (c *context) m() int { return c.n() - c.f() }

// primaryIndex is the validator presenting the block at (blockIndex, view).
func (c *context) primaryIndex() uint16 {
	n := int64(c.n())
	p := (int64(c.blockIndex) - int64(c.view)) % n
	if p < 0 {
		p += n
	}
	return uint16(p)
}

func (c *context) isPrimary() bool {
	return c.myIndex >= 0 && uint16(c.myIndex) == c.primaryIndex()
}

// viewTimeout is the exponential prepare-timer backoff: TimePerBlock
// doubled for every failed view (§4.9).
func (c *context) viewTimeout() time.Duration {
	return c.cfg.TimePerBlock << c.view
}

// reset starts a brand-new round for blockIndex at view 0, clearing
// every collected message.
func (c *context) reset(blockIndex uint32, tip *block.Header, validators keys.PublicKeys, myIndex int) {
	c.blockIndex = blockIndex
	c.view = 0
	c.state = StateInitial
	c.validators = validators
	c.myIndex = myIndex
	c.prevHash = tip.Hash()
	c.prepareRequest = nil
	c.preparationHash = util.Uint256{}
	c.preparations = make(map[uint16]*Payload)
	c.commits = make(map[uint16]*Payload)
	c.changeViews = make(map[uint16]*Payload)
	c.transactions = make(map[util.Uint256]*transaction.Transaction)
	c.txHashes = nil
	c.header = nil

	nc, err := core.GetNextConsensusAddress(validators)
	if err == nil {
		c.nextConsensus = nc
	}
}

// changeView moves to newView, keeping commits (a node must never
// retract a Commit) but clearing everything specific to the view being
// left.
func (c *context) changeView(newView byte) {
	c.view = newView
	c.state = StateInitial
	c.prepareRequest = nil
	c.preparationHash = util.Uint256{}
	c.preparations = make(map[uint16]*Payload)
	c.changeViews = make(map[uint16]*Payload)
	c.header = nil
}

// quorumReached reports whether payloads (keyed by validator index)
// has at least m entries.
func (c *context) quorumReached(payloads map[uint16]*Payload) bool {
	return len(payloads) >= c.m()
}

// makePrepareRequest builds (but does not sign) this round's
// prepareRequest out of the primary's current mempool snapshot.
func (c *context) makePrepareRequest(txs []*transaction.Transaction, now uint64) *Payload {
	c.timestamp = now
	c.nonce = randNonce(now, c.blockIndex)
	c.txHashes = make([]util.Uint256, len(txs))
	c.transactions = make(map[util.Uint256]*transaction.Transaction, len(txs))
	for i, tx := range txs {
		h := tx.Hash()
		c.txHashes[i] = h
		c.transactions[h] = tx
	}

	inner := &prepareRequest{
		Timestamp:        c.timestamp,
		Nonce:             c.nonce,
		NextConsensus:     c.nextConsensus,
		TransactionHashes: c.txHashes,
	}
	p := &Payload{
		Version:        block.VersionInitial,
		ValidatorIndex: uint16(c.myIndex),
		BlockIndex:     c.blockIndex,
		Timestamp:      c.timestamp,
	}
	p.message = message{Type: prepareRequestType, ViewNumber: c.view, payload: inner}
	return p
}

// randNonce derives a block nonce deterministically from round
// parameters, since this replica has no other source of entropy it
// needs agreement on.
func randNonce(timestamp uint64, blockIndex uint32) uint64 {
	h := hash.Sha256([]byte{
		byte(timestamp), byte(timestamp >> 8), byte(timestamp >> 16), byte(timestamp >> 24),
		byte(timestamp >> 32), byte(timestamp >> 40), byte(timestamp >> 48), byte(timestamp >> 56),
		byte(blockIndex), byte(blockIndex >> 8), byte(blockIndex >> 16), byte(blockIndex >> 24),
	})
	b := h.BytesBE()
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// buildHeader assembles (without a witness) the header this round's
// accepted prepareRequest commits to.
func (c *context) buildHeader(prevHash util.Uint256, pr *prepareRequest) *block.Header {
	h := &block.Header{
		Network:          c.cfg.Magic,
		Version:          block.VersionInitial,
		PrevHash:         prevHash,
		Timestamp:       pr.Timestamp,
		Nonce:            pr.Nonce,
		Index:            c.blockIndex,
		PrimaryIndex:     byte(c.primaryIndex()),
		NextConsensus:    pr.NextConsensus,
		StateRootEnabled: c.cfg.StateRootInHeader,
	}
	hashes := make([]util.Uint256, len(pr.TransactionHashes))
	copy(hashes, pr.TransactionHashes)
	h.MerkleRoot = hash.CalcMerkleRoot(hashes)
	return h
}

// makePrepareResponse builds this replica's agreement with the
// currently accepted prepareRequest.
func (c *context) makePrepareResponse() *Payload {
	p := &Payload{
		Version:        block.VersionInitial,
		ValidatorIndex: uint16(c.myIndex),
		BlockIndex:     c.blockIndex,
		Timestamp:      c.timestamp,
	}
	p.message = message{Type: prepareResponseType, ViewNumber: c.view, payload: &prepareResponse{PreparationHash: c.preparationHash}}
	return p
}

// makeCommit builds this replica's Commit: a signature over the
// round's unsigned header.
func (c *context) makeCommit() *Payload {
	digest := hash.Sha256(c.header.Hash().BytesBE()).BytesBE()
	sig := c.priv.SignHash(digest)
	var inner commit
	copy(inner.Signature[:], sig)

	p := &Payload{
		Version:        block.VersionInitial,
		ValidatorIndex: uint16(c.myIndex),
		BlockIndex:     c.blockIndex,
		Timestamp:      c.timestamp,
	}
	p.message = message{Type: commitType, ViewNumber: c.view, payload: &inner}
	return p
}

// makeChangeView builds a request to move to the next view.
func (c *context) makeChangeView(now uint64, reason changeViewReason) *Payload {
	p := &Payload{
		Version:        block.VersionInitial,
		ValidatorIndex: uint16(c.myIndex),
		BlockIndex:     c.blockIndex,
		Timestamp:      now,
	}
	p.message = message{Type: changeViewType, ViewNumber: c.view, payload: &changeView{
		NewViewNumber: c.view + 1,
		Timestamp:     now,
		Reason:        reason,
	}}
	return p
}

// assembleWitness builds the final m-of-n multisig Witness for header
// out of the Commit payloads collected in commits, in the sorted
// public-key order CreateMultiSigRedeemScript (and VerifyWitness's
// greedy matcher) require.
func assembleWitness(validators keys.PublicKeys, commits map[uint16]*Payload, m int) (transaction.Witness, error) {
	sorted := make(keys.PublicKeys, len(validators))
	copy(sorted, validators)
	sort.Sort(sorted)

	verification, err := keys.CreateMultiSigRedeemScript(m, validators)
	if err != nil {
		return transaction.Witness{}, err
	}

	var invocation []byte
	used := 0
	for _, pub := range sorted {
		if used == m {
			break
		}
		idx := indexOf(validators, pub)
		if idx < 0 {
			continue
		}
		pay, ok := commits[uint16(idx)]
		if !ok {
			continue
		}
		c, ok := pay.commit()
		if !ok {
			continue
		}
		invocation = append(invocation, 0x0c, 64)
		invocation = append(invocation, c.Signature[:]...)
		used++
	}
	if used < m {
		return transaction.Witness{}, errInsufficientCommits
	}
	return transaction.Witness{InvocationScript: invocation, VerificationScript: verification}, nil
}

var errInsufficientCommits = errors.New("consensus: fewer than quorum usable commit signatures")

func indexOf(validators keys.PublicKeys, pub *keys.PublicKey) int {
	for i, v := range validators {
		if string(v.Bytes()) == string(pub.Bytes()) {
			return i
		}
	}
	return -1
}
