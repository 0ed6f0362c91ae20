package transaction

import (
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/crypto/hash"
	"github.com/noriachain/neonode/pkg/util"
)

// Size limits enforced by StateIndependent verification (§4.6).
const (
	MaxTransactionSize = 102400
	MaxScriptLength    = MaxTransactionSize
)

const transactionVersion = 0

// Transaction is the N3 transaction envelope: a script to run under the
// Application trigger, paid for by its signers, authorized by their
// witnesses.
type Transaction struct {
	Version         uint8
	Nonce           uint32
	SystemFee       int64
	NetworkFee      int64
	ValidUntilBlock uint32
	Signers         []Signer
	Attributes      []Attribute
	Script          []byte
	Scripts         []Witness

	hash      util.Uint256
	hashValid bool
	size      int
}

// New creates a transaction running script, with gas_limit system_fee;
// callers still need to set Nonce/ValidUntilBlock/Signers before it is
// well-formed.
func New(script []byte, systemFee int64) *Transaction {
	return &Transaction{
		Version:    transactionVersion,
		SystemFee:  systemFee,
		Script:     script,
		Signers:    []Signer{{Account: util.Uint160{}}},
	}
}

// Sender is signers[0]'s account, the party paying system_fee+network_fee.
func (t *Transaction) Sender() util.Uint160 {
	if len(t.Signers) == 0 {
		return util.Uint160{}
	}
	return t.Signers[0].Account
}

// HasSigner reports whether h appears among this transaction's signers.
func (t *Transaction) HasSigner(h util.Uint160) bool {
	for _, s := range t.Signers {
		if s.Account.Equals(h) {
			return true
		}
	}
	return false
}

// HasAttribute reports whether at least one attribute of type t is present.
func (t *Transaction) HasAttribute(at AttrType) bool {
	for _, a := range t.Attributes {
		if a.Type == at {
			return true
		}
	}
	return false
}

// GetAttributes returns every attribute of the given type, in order.
func (t *Transaction) GetAttributes(at AttrType) []Attribute {
	var out []Attribute
	for _, a := range t.Attributes {
		if a.Type == at {
			out = append(out, a)
		}
	}
	return out
}

// encodeHashable writes every field covered by the transaction hash:
// everything except the witness list.
func (t *Transaction) encodeHashable(w *vio.BinWriter) {
	w.WriteU8(t.Version)
	w.WriteU32LE(t.Nonce)
	w.WriteI64LE(t.SystemFee)
	w.WriteI64LE(t.NetworkFee)
	w.WriteU32LE(t.ValidUntilBlock)
	w.WriteVarUint(uint64(len(t.Signers)))
	for i := range t.Signers {
		t.Signers[i].EncodeBinary(w)
	}
	w.WriteVarUint(uint64(len(t.Attributes)))
	for i := range t.Attributes {
		t.Attributes[i].EncodeBinary(w)
	}
	w.WriteVarBytes(t.Script)
}

// EncodeBinary implements io.Serializable: hashable fields followed by
// the witness list, mirroring the wire and hash encodings' shared prefix.
func (t *Transaction) EncodeBinary(w *vio.BinWriter) {
	t.encodeHashable(w)
	w.WriteVarUint(uint64(len(t.Scripts)))
	for i := range t.Scripts {
		t.Scripts[i].EncodeBinary(w)
	}
}

// DecodeBinary implements io.Serializable.
func (t *Transaction) DecodeBinary(r *vio.BinReader) {
	t.Version = r.ReadU8()
	t.Nonce = r.ReadU32LE()
	t.SystemFee = r.ReadI64LE()
	t.NetworkFee = r.ReadI64LE()
	t.ValidUntilBlock = r.ReadU32LE()

	nSigners := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if nSigners == 0 || nSigners > MaxSigners {
		r.Err = errTooManySigners
		return
	}
	t.Signers = make([]Signer, nSigners)
	seen := make(map[util.Uint160]bool, nSigners)
	for i := range t.Signers {
		t.Signers[i].DecodeBinary(r)
		if r.Err != nil {
			return
		}
		if seen[t.Signers[i].Account] {
			r.Err = errDuplicateSigners
			return
		}
		seen[t.Signers[i].Account] = true
	}

	nAttrs := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if nAttrs > MaxAttributes {
		r.Err = errTooManyAttrs
		return
	}
	t.Attributes = make([]Attribute, nAttrs)
	seenTypes := make(map[AttrType]bool, nAttrs)
	for i := range t.Attributes {
		t.Attributes[i].DecodeBinary(r)
		if r.Err != nil {
			return
		}
		at := t.Attributes[i].Type
		if seenTypes[at] && !AllowsMultiple(at) {
			r.Err = errTooManyAttrs
			return
		}
		seenTypes[at] = true
	}

	t.Script = r.ReadVarBytes(MaxScriptLength)
	if r.Err != nil {
		return
	}
	if len(t.Script) == 0 {
		r.Err = errNoScript
		return
	}

	nScripts := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if int(nScripts) != len(t.Signers) {
		r.Err = errWitnessCountMismatch
		return
	}
	t.Scripts = make([]Witness, nScripts)
	for i := range t.Scripts {
		t.Scripts[i].DecodeBinary(r)
	}
}

// Bytes serializes the transaction to a fresh byte slice.
func (t *Transaction) Bytes() []byte {
	w := vio.NewBufBinWriter()
	t.EncodeBinary(w)
	return w.Bytes()
}

// Hash is the double-SHA256 of the hashable (unsigned) encoding,
// cached after first computation.
func (t *Transaction) Hash() util.Uint256 {
	if !t.hashValid {
		w := vio.NewBufBinWriter()
		t.encodeHashable(w)
		t.hash = hash.DoubleSha256(w.Bytes())
		t.hashValid = true
	}
	return t.hash
}

// Size is the length, in bytes, of the full (witnessed) encoding.
func (t *Transaction) Size() int {
	if t.size == 0 {
		t.size = len(t.Bytes())
	}
	return t.size
}

// FeePerByte is NetworkFee divided by Size, the mempool's block-packing
// sort key (§4.7).
func (t *Transaction) FeePerByte() int64 {
	size := t.Size()
	if size == 0 {
		return 0
	}
	return t.NetworkFee / int64(size)
}
