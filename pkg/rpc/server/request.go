package server

import (
	"encoding/json"

	"github.com/noriachain/neonode/pkg/neorpc"
)

// request is one decoded JSON-RPC 2.0 call (§6); ID is kept raw so it
// round-trips untouched regardless of whether the client used a string,
// number, or omitted it (for a notification, which this server still
// answers since every in-scope method has a result).
type request struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

// param decodes the i-th positional parameter into v, reporting a
// neorpc.Error the caller can return as-is on failure.
func (r *request) param(i int, v interface{}) *neorpc.Error {
	if i >= len(r.Params) {
		return neorpc.NewInvalidParamsError("not enough parameters")
	}
	if err := json.Unmarshal(r.Params[i], v); err != nil {
		return neorpc.NewInvalidParamsError(err.Error())
	}
	return nil
}

// paramOr decodes the i-th positional parameter into v if present,
// leaving v untouched (its zero/default value) otherwise.
func (r *request) paramOr(i int, v interface{}) *neorpc.Error {
	if i >= len(r.Params) {
		return nil
	}
	if err := json.Unmarshal(r.Params[i], v); err != nil {
		return neorpc.NewInvalidParamsError(err.Error())
	}
	return nil
}
