package server

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/noriachain/neonode/pkg/core/transaction"
	"github.com/noriachain/neonode/pkg/crypto/keys"
	vio "github.com/noriachain/neonode/pkg/io"
	"github.com/noriachain/neonode/pkg/neorpc"
	"github.com/noriachain/neonode/pkg/util"
	"github.com/noriachain/neonode/pkg/vm/emit"
	"github.com/noriachain/neonode/pkg/vm/stackitem"
)

// neoAddressVersion is the N3 address version byte (§6), matching
// crypto/keys' unexported addressVersion; RPC reports it back to
// clients in getversion without needing to export an internal keys
// package constant for a single read.
const neoAddressVersion = 0x35

// method is one dispatch-table entry: decode params, do the read or
// admission, encode a result or a neorpc.Error.
type method func(s *Server, req *request) (interface{}, *neorpc.Error)

var methods = map[string]method{
	"getblockcount":     mGetBlockCount,
	"getblock":          mGetBlock,
	"getblockhash":      mGetBlockHash,
	"getbestblockhash":  mGetBestBlockHash,
	"gettransaction":    mGetTransaction,
	"getcontractstate":  mGetContractState,
	"getstorage":        mGetStorage,
	"sendrawtransaction": mSendRawTransaction,
	"invokefunction":    mInvokeFunction,
	"invokescript":      mInvokeScript,
	"getversion":        mGetVersion,
	"getconnectioncount": mGetConnectionCount,
	"getpeers":          mGetPeers,
	"validateaddress":   mValidateAddress,
	"getnep17balances":  mGetNep17Balances,
}

func mGetBlockCount(s *Server, _ *request) (interface{}, *neorpc.Error) {
	return s.chain.BlockHeight() + 1, nil
}

func mGetBestBlockHash(s *Server, _ *request) (interface{}, *neorpc.Error) {
	return "0x" + s.chain.CurrentBlockHash().StringLE(), nil
}

// blockHashParam resolves the 0th request param as either a block
// index (JSON number) or a "0x"-prefixed hash string, matching the
// teacher's getblock/getheader dual convention.
func (s *Server) blockHashParam(req *request) (util.Uint256, *neorpc.Error) {
	if len(req.Params) == 0 {
		return util.Uint256{}, neorpc.NewInvalidParamsError("missing block identifier")
	}
	var idx uint32
	if err := req.param(0, &idx); err == nil {
		h, ok := s.blockHashByIndex(idx)
		if !ok {
			return util.Uint256{}, neorpc.NewInvalidParamsError("unknown height")
		}
		return h, nil
	}
	var hashStr string
	if err := req.param(0, &hashStr); err != nil {
		return util.Uint256{}, neorpc.NewInvalidParamsError("block identifier must be a height or a hash")
	}
	h, decErr := util.Uint256DecodeStringLE(hashStr)
	if decErr != nil {
		return util.Uint256{}, neorpc.NewInvalidParamsError(decErr.Error())
	}
	return h, nil
}

func mGetBlock(s *Server, req *request) (interface{}, *neorpc.Error) {
	h, rpcErr := s.blockHashParam(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	b, err := s.chain.GetBlock(h)
	if err != nil {
		return nil, neorpc.NewInvalidParamsError("unknown block")
	}
	return b, nil
}

func mGetBlockHash(s *Server, req *request) (interface{}, *neorpc.Error) {
	var idx uint32
	if err := req.param(0, &idx); err != nil {
		return nil, err
	}
	h, ok := s.blockHashByIndex(idx)
	if !ok {
		return nil, neorpc.NewInvalidParamsError("unknown height")
	}
	return "0x" + h.StringLE(), nil
}

func mGetTransaction(s *Server, req *request) (interface{}, *neorpc.Error) {
	var hashStr string
	if err := req.param(0, &hashStr); err != nil {
		return nil, err
	}
	h, decErr := util.Uint256DecodeStringLE(hashStr)
	if decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}
	tx, _, err := s.chain.GetTransaction(h)
	if err != nil {
		return nil, neorpc.NewInvalidParamsError("unknown transaction")
	}
	return tx, nil
}

func mGetContractState(s *Server, req *request) (interface{}, *neorpc.Error) {
	var hashStr string
	if err := req.param(0, &hashStr); err != nil {
		return nil, err
	}
	h, decErr := util.Uint160DecodeStringLE(hashStr)
	if decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}
	meta, ok := s.chain.GetNativeContractMetadata(h)
	if !ok {
		return nil, neorpc.NewInvalidParamsError("unknown contract")
	}
	return &ContractState{Hash: meta.Hash, Name: meta.Name}, nil
}

func mGetStorage(s *Server, req *request) (interface{}, *neorpc.Error) {
	var hashStr, keyB64 string
	if err := req.param(0, &hashStr); err != nil {
		return nil, err
	}
	if err := req.param(1, &keyB64); err != nil {
		return nil, err
	}
	h, decErr := util.Uint160DecodeStringLE(hashStr)
	if decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}
	key, decErr := base64.StdEncoding.DecodeString(keyB64)
	if decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}
	item := s.chain.GetStorageItem(h, key)
	if item == nil {
		return nil, neorpc.NewInvalidParamsError("storage key not found")
	}
	return base64.StdEncoding.EncodeToString(item), nil
}

func mSendRawTransaction(s *Server, req *request) (interface{}, *neorpc.Error) {
	var txB64 string
	if err := req.param(0, &txB64); err != nil {
		return nil, err
	}
	raw, decErr := base64.StdEncoding.DecodeString(txB64)
	if decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}
	tx := &transaction.Transaction{}
	r := vio.NewBinReaderFromIO(bytes.NewReader(raw))
	tx.DecodeBinary(r)
	if r.Err != nil {
		return nil, neorpc.NewInvalidParamsError(r.Err.Error())
	}
	if err := s.chain.Mempool().Add(tx, s.sub); err != nil {
		return nil, neorpc.NewInvalidParamsError(err.Error())
	}
	return map[string]interface{}{"hash": "0x" + tx.Hash().StringLE()}, nil
}

func mGetVersion(s *Server, _ *request) (interface{}, *neorpc.Error) {
	cfg := s.chain.GetConfig()
	return &Version{
		TCPPort:   0,
		Nonce:     s.net.ID(),
		UserAgent: s.cfg.UserAgent,
		Protocol: Protocol{
			AddressVersion:              neoAddressVersion,
			Network:                     cfg.Magic,
			MillisecondsPerBlock:        cfg.TimePerBlock.Milliseconds(),
			MaxTraceableBlocks:          cfg.MaxTraceableBlocks,
			MaxValidUntilBlockIncrement: cfg.MaxValidUntilBlockIncrement,
			MaxTransactionsPerBlock:     cfg.MaxTransactionsPerBlock,
			MemoryPoolMaxTransactions:   cfg.MemPoolSize,
			P2PSigExtensions:            cfg.P2PSigExtensions,
			StateRootInHeader:           cfg.StateRootInHeader,
		},
	}, nil
}

func mGetConnectionCount(s *Server, _ *request) (interface{}, *neorpc.Error) {
	return s.net.PeerCount(), nil
}

func mGetPeers(s *Server, _ *request) (interface{}, *neorpc.Error) {
	res := &GetPeers{Connected: []Peer{}, Unconnected: []Peer{}, Bad: []Peer{}}
	for _, a := range s.net.PeerAddrs() {
		res.Connected = append(res.Connected, Peer{Address: a})
	}
	for _, a := range s.net.UnconnectedAddrs() {
		res.Unconnected = append(res.Unconnected, Peer{Address: a})
	}
	return res, nil
}

func mValidateAddress(s *Server, req *request) (interface{}, *neorpc.Error) {
	if len(req.Params) == 0 {
		return nil, neorpc.NewInvalidParamsError("missing address")
	}
	var raw interface{}
	if err := req.param(0, &raw); err != nil {
		return nil, err
	}
	addr, ok := raw.(string)
	if !ok {
		return &ValidateAddress{Address: raw, IsValid: false}, nil
	}
	_, decErr := keys.AddressToScriptHash(addr)
	return &ValidateAddress{Address: addr, IsValid: decErr == nil}, nil
}

func mGetNep17Balances(s *Server, req *request) (interface{}, *neorpc.Error) {
	var addr string
	if err := req.param(0, &addr); err != nil {
		return nil, err
	}
	if _, decErr := keys.AddressToScriptHash(addr); decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}
	return &GetNep17Balances{Address: addr, Balances: []NEP17Balance{}}, nil
}

// mInvokeFunction decodes the (scripthash, method, args) shape
// invokefunction takes, building the equivalent System.Contract.Call
// script invokescript would be handed directly (§6).
func mInvokeFunction(s *Server, req *request) (interface{}, *neorpc.Error) {
	var hashStr, methodName string
	var args []stackItemParam
	if err := req.param(0, &hashStr); err != nil {
		return nil, err
	}
	if err := req.param(1, &methodName); err != nil {
		return nil, err
	}
	_ = req.paramOr(2, &args)

	h, decErr := util.Uint160DecodeStringLE(hashStr)
	if decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}

	// System.Contract.Call pops (top-first) args, callFlags, method,
	// hash - so push in the reverse order: hash, method, callFlags,
	// then the args array.
	buf := vio.NewBufBinWriter()
	emit.Bytes(buf, h.BytesBE())
	emit.String(buf, methodName)
	emit.Int(buf, 0)
	for i := len(args) - 1; i >= 0; i-- {
		pushStackItemParam(buf, args[i])
	}
	emit.Array(buf, len(args))
	emit.Syscall(buf, "System.Contract.Call")
	if buf.Err != nil {
		return nil, neorpc.NewInvalidParamsError(buf.Err.Error())
	}
	return s.runInvoke(buf.Bytes(), h)
}

func mInvokeScript(s *Server, req *request) (interface{}, *neorpc.Error) {
	var scriptB64 string
	if err := req.param(0, &scriptB64); err != nil {
		return nil, err
	}
	script, decErr := base64.StdEncoding.DecodeString(scriptB64)
	if decErr != nil {
		return nil, neorpc.NewInvalidParamsError(decErr.Error())
	}
	return s.runInvoke(script, util.Uint160{})
}

func (s *Server) runInvoke(script []byte, sender util.Uint160) (interface{}, *neorpc.Error) {
	gasLimit := s.cfg.MaxGasInvoke
	if gasLimit <= 0 {
		gasLimit = 2_000_000_00 // 2 GAS (§6 default MaxGasInvoke)
	}
	exec := s.chain.Invoke(script, sender, gasLimit)
	res := &InvokeResult{
		State:          exec.VMState,
		GasConsumed:    fmt.Sprintf("%d", exec.GasConsumed),
		Script:         base64.StdEncoding.EncodeToString(script),
		FaultException: exec.FaultException,
	}
	for _, it := range exec.Stack {
		res.Stack = append(res.Stack, toStackItem(it))
	}
	return res, nil
}

// stackItemParam is the JSON shape a client sends for one invokefunction
// argument: {"type": "...", "value": ...}.
type stackItemParam struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

func pushStackItemParam(w *vio.BinWriter, p stackItemParam) {
	switch p.Type {
	case "Boolean":
		b, _ := p.Value.(bool)
		emit.Bool(w, b)
	case "Integer":
		switch v := p.Value.(type) {
		case float64:
			emit.Int(w, int64(v))
		case string:
			var n int64
			_, _ = fmt.Sscanf(v, "%d", &n)
			emit.Int(w, n)
		}
	case "String":
		str, _ := p.Value.(string)
		emit.String(w, str)
	case "ByteArray", "Hash160", "Hash256":
		str, _ := p.Value.(string)
		b, _ := base64.StdEncoding.DecodeString(str)
		emit.Bytes(w, b)
	default:
		emit.Bytes(w, nil)
	}
}

// toStackItem projects a vm/stackitem.Item to the minimal JSON shape
// invokefunction/invokescript report back (§6); compound items keep
// their structure shallow rather than attempting the reference node's
// full recursive encoding, consistent with the "JSON request dispatch
// only" RPC boundary.
func toStackItem(it stackitem.Item) StackItem {
	switch v := it.(type) {
	case *stackitem.Array:
		items := make([]StackItem, 0, v.Len())
		for _, sub := range v.Items() {
			items = append(items, toStackItem(sub))
		}
		return StackItem{Type: "Array", Value: items}
	default:
		b, err := it.TryBytes()
		if err == nil {
			return StackItem{Type: it.Type().String(), Value: base64.StdEncoding.EncodeToString(b)}
		}
		return StackItem{Type: it.Type().String(), Value: fmt.Sprintf("%v", it.Value())}
	}
}
