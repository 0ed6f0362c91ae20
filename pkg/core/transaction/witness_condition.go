package transaction

import (
	"errors"

	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/util"
)

// WitnessConditionType discriminates the node kind of a condition tree.
type WitnessConditionType byte

// Condition kinds, matching the byte tags used on the wire.
const (
	WitnessBoolean WitnessConditionType = iota
	WitnessNot
	WitnessAnd
	WitnessOr
	WitnessScriptHash WitnessConditionType = 0x18
	WitnessGroup      WitnessConditionType = 0x19
	WitnessCalledByEntryCond WitnessConditionType = 0x20
	WitnessCalledByContract  WitnessConditionType = 0x28
	WitnessCalledByGroup     WitnessConditionType = 0x29
)

var errUnknownCondition = errors.New("transaction: unknown witness condition type")

const maxConditionDepth = 2

// MatchContext is the minimal call-frame view a WitnessCondition needs to
// evaluate itself; ApplicationEngine implements it.
type MatchContext interface {
	GetCallingScriptHash() util.Uint160
	GetCurrentScriptHash() util.Uint160
	GetEntryScriptHash() util.Uint160
	CallingScriptHasGroup(pub []byte) bool
}

// WitnessCondition is one node of the boolean expression tree backing
// the Rules witness scope.
type WitnessCondition interface {
	Type() WitnessConditionType
	Match(ctx MatchContext) bool
	EncodeBinary(w *vio.BinWriter)
}

// ConditionBoolean is a constant true/false leaf.
type ConditionBoolean bool

func (c ConditionBoolean) Type() WitnessConditionType { return WitnessBoolean }
func (c ConditionBoolean) Match(MatchContext) bool     { return bool(c) }
func (c ConditionBoolean) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessBoolean))
	w.WriteBool(bool(c))
}

// ConditionNot negates its single child.
type ConditionNot struct{ Condition WitnessCondition }

func (c *ConditionNot) Type() WitnessConditionType { return WitnessNot }
func (c *ConditionNot) Match(ctx MatchContext) bool { return !c.Condition.Match(ctx) }
func (c *ConditionNot) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessNot))
	c.Condition.EncodeBinary(w)
}

// ConditionAnd requires every child to match.
type ConditionAnd []WitnessCondition

func (c ConditionAnd) Type() WitnessConditionType { return WitnessAnd }
func (c ConditionAnd) Match(ctx MatchContext) bool {
	for _, cond := range c {
		if !cond.Match(ctx) {
			return false
		}
	}
	return true
}
func (c ConditionAnd) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessAnd))
	w.WriteVarUint(uint64(len(c)))
	for _, cond := range c {
		cond.EncodeBinary(w)
	}
}

// ConditionOr requires at least one child to match.
type ConditionOr []WitnessCondition

func (c ConditionOr) Type() WitnessConditionType { return WitnessOr }
func (c ConditionOr) Match(ctx MatchContext) bool {
	for _, cond := range c {
		if cond.Match(ctx) {
			return true
		}
	}
	return false
}
func (c ConditionOr) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessOr))
	w.WriteVarUint(uint64(len(c)))
	for _, cond := range c {
		cond.EncodeBinary(w)
	}
}

// ConditionScriptHash matches when the currently executing contract is
// the given hash.
type ConditionScriptHash util.Uint160

func (c ConditionScriptHash) Type() WitnessConditionType { return WitnessScriptHash }
func (c ConditionScriptHash) Match(ctx MatchContext) bool {
	return util.Uint160(c).Equals(ctx.GetCurrentScriptHash())
}
func (c ConditionScriptHash) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessScriptHash))
	util.Uint160(c).EncodeBinary(w)
}

// ConditionGroup matches when the currently executing contract belongs
// to the given group public key.
type ConditionGroup struct{ Group []byte }

func (c *ConditionGroup) Type() WitnessConditionType { return WitnessGroup }
func (c *ConditionGroup) Match(ctx MatchContext) bool {
	return ctx.CallingScriptHasGroup(c.Group)
}
func (c *ConditionGroup) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessGroup))
	w.WriteVarBytes(c.Group)
}

// ConditionCalledByEntry matches only for the entry script's immediate
// callees - equivalent in meaning to the CalledByEntry scope bit.
type ConditionCalledByEntry struct{}

func (c ConditionCalledByEntry) Type() WitnessConditionType { return WitnessCalledByEntryCond }
func (c ConditionCalledByEntry) Match(ctx MatchContext) bool {
	return ctx.GetCallingScriptHash().Equals(ctx.GetEntryScriptHash())
}
func (c ConditionCalledByEntry) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessCalledByEntryCond))
}

// ConditionCalledByContract matches when the immediate caller is the
// given contract hash.
type ConditionCalledByContract util.Uint160

func (c ConditionCalledByContract) Type() WitnessConditionType { return WitnessCalledByContract }
func (c ConditionCalledByContract) Match(ctx MatchContext) bool {
	return util.Uint160(c).Equals(ctx.GetCallingScriptHash())
}
func (c ConditionCalledByContract) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(WitnessCalledByContract))
	util.Uint160(c).EncodeBinary(w)
}

// DecodeWitnessCondition reads one condition node, recursing into
// children up to maxConditionDepth.
func DecodeWitnessCondition(r *vio.BinReader, depth int) WitnessCondition {
	if depth > maxConditionDepth {
		r.Err = errUnknownCondition
		return nil
	}
	typ := WitnessConditionType(r.ReadU8())
	if r.Err != nil {
		return nil
	}
	switch typ {
	case WitnessBoolean:
		return ConditionBoolean(r.ReadBool())
	case WitnessNot:
		inner := DecodeWitnessCondition(r, depth+1)
		return &ConditionNot{Condition: inner}
	case WitnessAnd, WitnessOr:
		n := r.ReadVarUint()
		if r.Err != nil {
			return nil
		}
		conds := make([]WitnessCondition, n)
		for i := range conds {
			conds[i] = DecodeWitnessCondition(r, depth+1)
		}
		if typ == WitnessAnd {
			return ConditionAnd(conds)
		}
		return ConditionOr(conds)
	case WitnessScriptHash:
		var h util.Uint160
		h.DecodeBinary(r)
		return ConditionScriptHash(h)
	case WitnessGroup:
		return &ConditionGroup{Group: r.ReadVarBytes(33)}
	case WitnessCalledByEntryCond:
		return ConditionCalledByEntry{}
	case WitnessCalledByContract:
		var h util.Uint160
		h.DecodeBinary(r)
		return ConditionCalledByContract(h)
	case WitnessCalledByGroup:
		return &ConditionGroup{Group: r.ReadVarBytes(33)}
	default:
		r.Err = errUnknownCondition
		return nil
	}
}

// WitnessRuleAction is what happens to the CheckWitness result when the
// rule's condition matches.
type WitnessRuleAction byte

// Rule actions.
const (
	WitnessDeny  WitnessRuleAction = 0
	WitnessAllow WitnessRuleAction = 1
)

// WitnessRule is one (condition, action) pair in a Rules-scoped signer.
type WitnessRule struct {
	Action    WitnessRuleAction
	Condition WitnessCondition
}

// EncodeBinary implements io.Serializable.
func (r *WitnessRule) EncodeBinary(w *vio.BinWriter) {
	w.WriteU8(byte(r.Action))
	r.Condition.EncodeBinary(w)
}

// DecodeBinary implements io.Serializable.
func (r *WitnessRule) DecodeBinary(br *vio.BinReader) {
	r.Action = WitnessRuleAction(br.ReadU8())
	r.Condition = DecodeWitnessCondition(br, 0)
}
