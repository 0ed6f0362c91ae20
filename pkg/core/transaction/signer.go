package transaction

import (
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	"github.com/noriachain/neonode/pkg/util"
)

const maxAllowedItems = 16

// Signer is one entry of a transaction's non-empty signer list; index 0
// is always the fee-paying sender (§3).
type Signer struct {
	Account          util.Uint160
	Scopes           WitnessScope
	AllowedContracts []util.Uint160
	AllowedGroups    []*keys.PublicKey
	Rules            []WitnessRule
}

// EncodeBinary implements io.Serializable.
func (s *Signer) EncodeBinary(w *vio.BinWriter) {
	s.Account.EncodeBinary(w)
	w.WriteU8(byte(s.Scopes))
	if s.Scopes&CustomContracts != 0 {
		w.WriteVarUint(uint64(len(s.AllowedContracts)))
		for _, c := range s.AllowedContracts {
			c.EncodeBinary(w)
		}
	}
	if s.Scopes&CustomGroups != 0 {
		w.WriteVarUint(uint64(len(s.AllowedGroups)))
		for _, g := range s.AllowedGroups {
			g.EncodeBinary(w)
		}
	}
	if s.Scopes&Rules != 0 {
		w.WriteVarUint(uint64(len(s.Rules)))
		for i := range s.Rules {
			s.Rules[i].EncodeBinary(w)
		}
	}
}

// DecodeBinary implements io.Serializable.
func (s *Signer) DecodeBinary(r *vio.BinReader) {
	s.Account.DecodeBinary(r)
	scopes, err := ScopesFromByte(r.ReadU8())
	if err != nil {
		r.Err = err
		return
	}
	s.Scopes = scopes
	if s.Scopes&CustomContracts != 0 {
		n := r.ReadVarUint()
		if r.Err != nil {
			return
		}
		if n > maxAllowedItems {
			r.Err = errTooManySigners
			return
		}
		s.AllowedContracts = make([]util.Uint160, n)
		for i := range s.AllowedContracts {
			s.AllowedContracts[i].DecodeBinary(r)
		}
	}
	if s.Scopes&CustomGroups != 0 {
		n := r.ReadVarUint()
		if r.Err != nil {
			return
		}
		if n > maxAllowedItems {
			r.Err = errTooManySigners
			return
		}
		s.AllowedGroups = make([]*keys.PublicKey, n)
		for i := range s.AllowedGroups {
			pub := &keys.PublicKey{}
			pub.DecodeBinary(r)
			s.AllowedGroups[i] = pub
		}
	}
	if s.Scopes&Rules != 0 {
		n := r.ReadVarUint()
		if r.Err != nil {
			return
		}
		if n > maxAllowedItems {
			r.Err = errTooManySigners
			return
		}
		s.Rules = make([]WitnessRule, n)
		for i := range s.Rules {
			s.Rules[i].DecodeBinary(r)
		}
	}
}
