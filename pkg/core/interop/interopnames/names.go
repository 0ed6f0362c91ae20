// Package interopnames names the SYSCALL surface the host exposes to
// running scripts and converts between a human name and the 4-byte
// little-endian id a SYSCALL instruction actually carries (§4.4).
package interopnames

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// Names of the syscall surface. Not every name has a handler in
// pkg/core/interop: System.Runtime.GetTime, System.Runtime.GetScriptContainer,
// System.Blockchain.GetBlock, System.Blockchain.GetTransaction and
// System.Blockchain.GetTransactionHeight have none.
const (
	SystemRuntimeCheckWitness         = "System.Runtime.CheckWitness"
	SystemRuntimeGasLeft              = "System.Runtime.GasLeft"
	SystemRuntimeGetTrigger           = "System.Runtime.GetTrigger"
	SystemRuntimeGetTime              = "System.Runtime.GetTime"
	SystemRuntimeGetScriptContainer   = "System.Runtime.GetScriptContainer"
	SystemRuntimeGetExecutingScriptHash = "System.Runtime.GetExecutingScriptHash"
	SystemRuntimeGetCallingScriptHash   = "System.Runtime.GetCallingScriptHash"
	SystemRuntimeGetEntryScriptHash     = "System.Runtime.GetEntryScriptHash"
	SystemRuntimeLog                   = "System.Runtime.Log"
	SystemRuntimeNotify                 = "System.Runtime.Notify"
	SystemRuntimePlatform                = "System.Runtime.Platform"

	SystemStorageGetContext         = "System.Storage.GetContext"
	SystemStorageGetReadOnlyContext = "System.Storage.GetReadOnlyContext"
	SystemStorageGet                = "System.Storage.Get"
	SystemStoragePut                = "System.Storage.Put"
	SystemStorageDelete             = "System.Storage.Delete"

	SystemContractCall = "System.Contract.Call"

	// SystemCryptoVerifyWithECDsa checks a signature against a public key
	// and a named curve (secp256r1 or secp256k1), matching Neo N3's
	// CryptoLib.verifyWithECDsa native method.
	SystemCryptoVerifyWithECDsa = "System.Crypto.VerifyWithECDsa"

	SystemBlockchainGetHeight         = "System.Blockchain.GetHeight"
	SystemBlockchainGetBlock          = "System.Blockchain.GetBlock"
	SystemBlockchainGetTransaction    = "System.Blockchain.GetTransaction"
	SystemBlockchainGetTransactionHeight = "System.Blockchain.GetTransactionHeight"
)

var names = []string{
	SystemRuntimeCheckWitness,
	SystemRuntimeGasLeft,
	SystemRuntimeGetTrigger,
	SystemRuntimeGetTime,
	SystemRuntimeGetScriptContainer,
	SystemRuntimeGetExecutingScriptHash,
	SystemRuntimeGetCallingScriptHash,
	SystemRuntimeGetEntryScriptHash,
	SystemRuntimeLog,
	SystemRuntimeNotify,
	SystemRuntimePlatform,
	SystemStorageGetContext,
	SystemStorageGetReadOnlyContext,
	SystemStorageGet,
	SystemStoragePut,
	SystemStorageDelete,
	SystemContractCall,
	SystemCryptoVerifyWithECDsa,
	SystemBlockchainGetHeight,
	SystemBlockchainGetBlock,
	SystemBlockchainGetTransaction,
	SystemBlockchainGetTransactionHeight,
}

var errNotFound = errors.New("interopnames: unknown id")

// ToID converts a syscall name to the 4-byte little-endian id a SYSCALL
// operand carries: the first four bytes of the name's SHA-256 digest.
func ToID(name []byte) uint32 {
	h := sha256.Sum256(name)
	return binary.LittleEndian.Uint32(h[:4])
}

// FromID reverses ToID against the registered name table, for
// diagnostics and tests.
func FromID(id uint32) (string, error) {
	for _, n := range names {
		if ToID([]byte(n)) == id {
			return n, nil
		}
	}
	return "", errNotFound
}
