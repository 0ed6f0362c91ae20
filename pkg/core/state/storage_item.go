package state

// StorageItem is the value half of a contract storage (id, key) -> value
// pair (§3 "Storage Key / Item"); N3 storage values have no structure of
// their own beyond the raw bytes a contract chose to write.
type StorageItem []byte
