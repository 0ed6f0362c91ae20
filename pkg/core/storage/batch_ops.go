package storage

import "github.com/noriachain/neonode/pkg/core/storage/dboper"

// BatchToOperations renders the STStorage entries of a MemBatch as a slice
// of dboper.Operation, with the one-byte key prefix stripped from reported
// keys. Entries in other categories, and deletes of keys that did not
// exist, are left out.
func BatchToOperations(b *MemBatch) []dboper.Operation {
	var ops []dboper.Operation
	for _, kv := range b.Put {
		if !isStorageKey(kv.Key) {
			continue
		}
		state := "Added"
		if kv.Exists {
			state = "Changed"
		}
		ops = append(ops, dboper.Operation{State: state, Key: trimPrefix(kv.Key), Value: kv.Value})
	}
	for _, kv := range b.Deleted {
		if !kv.Exists || !isStorageKey(kv.Key) {
			continue
		}
		ops = append(ops, dboper.Operation{State: "Deleted", Key: trimPrefix(kv.Key)})
	}
	return ops
}

// isStorageKey reports whether key belongs to the STStorage category -
// the only one reported to getstorage-diff-style observers.
func isStorageKey(key []byte) bool {
	return len(key) > 0 && KeyPrefix(key[0]) == STStorage
}

func trimPrefix(key []byte) []byte {
	if len(key) == 0 {
		return key
	}
	return key[1:]
}
