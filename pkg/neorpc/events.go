package neorpc

import "fmt"

// EventID names the feed a websocket subscription delivers (§6).
type EventID byte

// Feed kinds. Names match the teacher's subscription vocabulary; not
// every one is fired by this node (see rpc/server's subscription.go
// for which are wired).
const (
	BlockEventID EventID = iota
	TransactionEventID
	NotificationEventID
	ExecutionEventID
	NotaryRequestEventID
	HeaderOfAddedBlockEventID
	MempoolEventID
)

var eventNames = map[EventID]string{
	BlockEventID:              "block_added",
	TransactionEventID:        "transaction_added",
	NotificationEventID:       "notification_from_execution",
	ExecutionEventID:          "transaction_executed",
	NotaryRequestEventID:      "notary_request_event",
	HeaderOfAddedBlockEventID: "header_of_added_block",
	MempoolEventID:            "mempool_event",
}

// String implements fmt.Stringer.
func (e EventID) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return fmt.Sprintf("EventID(%d)", byte(e))
}

// EventIDFromString parses a subscribe feed parameter back to its EventID.
func EventIDFromString(s string) (EventID, bool) {
	for id, n := range eventNames {
		if n == s {
			return id, true
		}
	}
	return 0, false
}

// MarshalJSON implements json.Marshaler, emitting the feed name.
func (e EventID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.String() + `"`), nil
}
