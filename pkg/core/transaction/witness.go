// Package transaction implements the N3 transaction layout: signers,
// witnesses, attributes and the outer envelope that carries a script to
// be executed under the Application trigger (§4.6).
package transaction

import (
	vio "github.com/noriachain/neonode/pkg/io"
)

// Witness is a pair of scripts proving a signer authorized a transaction:
// the invocation script pushes signature(s) onto the stack, the
// verification script (or a contract's own Verify method when empty)
// consumes them and must leave a single truthy value.
type Witness struct {
	InvocationScript   []byte
	VerificationScript []byte
}

const maxWitnessScriptSize = 64 * 1024

// EncodeBinary implements io.Serializable.
func (w *Witness) EncodeBinary(bw *vio.BinWriter) {
	bw.WriteVarBytes(w.InvocationScript)
	bw.WriteVarBytes(w.VerificationScript)
}

// DecodeBinary implements io.Serializable.
func (w *Witness) DecodeBinary(br *vio.BinReader) {
	w.InvocationScript = br.ReadVarBytes(maxWitnessScriptSize)
	w.VerificationScript = br.ReadVarBytes(maxWitnessScriptSize)
}
