package core

import (
	"errors"

	"github.com/noriachain/neonode/pkg/core/block"
	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	vio "github.com/noriachain/neonode/pkg/io"
)

// Header-check errors (§4.8 step 1).
var (
	ErrHdrHashMismatch      = errors.New("core: header PrevHash does not match the tip")
	ErrHdrIndexMismatch     = errors.New("core: header Index does not extend the tip by one")
	ErrHdrInvalidTimestamp  = errors.New("core: header Timestamp does not advance past the tip")
	ErrHdrInvalidVersion    = errors.New("core: header Version is not the only one this node accepts")
	ErrHdrWitnessFailed     = errors.New("core: header witness does not satisfy the tip's NextConsensus script")
	ErrInvalidBlock         = errors.New("core: block failed header or body verification")
	ErrTxDuplicate          = errors.New("core: block contains a duplicate transaction")
	ErrTxTooMany            = errors.New("core: block exceeds MaxTransactionsPerBlock")
	ErrTxWitnessCountMismatch = errors.New("core: transaction Signers/Scripts length mismatch")
	ErrTxWitnessFailed      = errors.New("core: transaction witness verification failed")
)

// verifyHeader implements §4.8 step 1 against the previous header.
func (bc *Blockchain) verifyHeader(hdr *block.Header, prev *block.Header) error {
	if hdr.Version != block.VersionInitial {
		return ErrHdrInvalidVersion
	}
	if !hdr.PrevHash.Equals(prev.Hash()) {
		return ErrHdrHashMismatch
	}
	if hdr.Index != prev.Index+1 {
		return ErrHdrIndexMismatch
	}
	if hdr.Timestamp <= prev.Timestamp {
		return ErrHdrInvalidTimestamp
	}
	if !hash.Hash160(hdr.Script.VerificationScript).Equals(prev.NextConsensus) {
		return ErrHdrWitnessFailed
	}
	ok, err := keys.VerifyWitness(hdr.Script.VerificationScript, hdr.Script.InvocationScript, headerSignedDigest(hdr))
	if err != nil || !ok {
		return ErrHdrWitnessFailed
	}
	return nil
}

// verifyBody implements §4.8 step 2's structural checks; StateDependent
// per-transaction verification happens during the persist loop itself,
// against the snapshot each transaction actually sees.
func (bc *Blockchain) verifyBody(b *block.Block) error {
	if len(b.Transactions) > block.MaxTransactionsPerBlock {
		return ErrTxTooMany
	}
	if limit := bc.config.MaxBlockSize; limit > 0 {
		raw, err := vio.ToArray(b)
		if err != nil {
			return err
		}
		if uint32(len(raw)) > limit {
			return errors.New("core: block exceeds MaxBlockSize")
		}
	}
	if limit := bc.config.MaxBlockSystemFee; limit > 0 {
		var sum int64
		for _, tx := range b.Transactions {
			sum += tx.SystemFee
		}
		if sum > limit {
			return errors.New("core: block SystemFee total exceeds MaxBlockSystemFee")
		}
	}
	seen :=make(map[string]struct{}, len(b.Transactions))
	for _, tx := range b.Transactions {
		h := tx.Hash()
		if _, ok := seen[string(h.BytesBE())]; ok {
			return ErrTxDuplicate
		}
		seen[string(h.BytesBE())] = struct{}{}
		if err := verifyTxStateIndependent(tx); err != nil {
			return err
		}
	}
	if !b.MerkleRoot.Equals(b.ComputeMerkleRoot()) {
		return errWrongMerkleRoot
	}
	return nil
}

var errWrongMerkleRoot = errors.New("core: block MerkleRoot does not match its transactions")

// verifyTxStateIndependent checks everything about tx that doesn't
// depend on chain state: well-formedness and witness signatures.
func verifyTxStateIndependent(tx *transaction.Transaction) error {
	if tx.Size() > transaction.MaxTransactionSize {
		return errors.New("core: transaction exceeds MaxTransactionSize")
	}
	if len(tx.Signers) == 0 || len(tx.Signers) != len(tx.Scripts) {
		return ErrTxWitnessCountMismatch
	}
	digest := txSignedDigest(tx)
	for i := range tx.Signers {
		w := tx.Scripts[i]
		// A contract-backed signer (empty VerificationScript, authorized
		// by its own deployed Verify method) has no script to check here
		// - this node has no ContractManagement native to run one
		// against, so such signers are rejected rather than silently
		// accepted.
		if !hash.Hash160(w.VerificationScript).Equals(tx.Signers[i].Account) {
			return ErrTxWitnessFailed
		}
		ok, err := keys.VerifyWitness(w.VerificationScript, w.InvocationScript, digest)
		if err != nil {
			return err
		}
		if !ok {
			return ErrTxWitnessFailed
		}
	}
	return nil
}

// txSignedDigest is the digest a transaction's witnesses sign: the
// SHA-256 of the transaction's own hash bytes. A production network
// additionally salts this with the network Magic; this node mixes no
// Magic into signed digests, here or in the P2P layer.
func txSignedDigest(tx *transaction.Transaction) []byte {
	h := tx.Hash()
	return hash.Sha256(h.BytesBE()).BytesBE()
}

// headerSignedDigest mirrors txSignedDigest for header witnesses.
func headerSignedDigest(hdr *block.Header) []byte {
	h := hdr.Hash()
	return hash.Sha256(h.BytesBE()).BytesBE()
}
