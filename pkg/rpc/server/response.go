package server

import (
	"encoding/json"

	"github.com/noriachain/neonode/pkg/neorpc"
)

// response is one JSON-RPC 2.0 reply: exactly one of Result/Error is set.
type response struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *neorpc.Error `json:"error,omitempty"`
}

func newResult(id json.RawMessage, result interface{}) *response {
	return &response{JSONRPC: "2.0", ID: id, Result: result}
}

func newError(id json.RawMessage, err *neorpc.Error) *response {
	return &response{JSONRPC: "2.0", ID: id, Error: err}
}

// notification is an unsolicited JSON-RPC 2.0 message pushed over a
// websocket connection for a subscribed feed (§6).
type notification struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  [1]interface{} `json:"params"`
}

func newNotification(event neorpc.EventID, payload interface{}) *notification {
	return &notification{JSONRPC: "2.0", Method: event.String(), Params: [1]interface{}{payload}}
}
