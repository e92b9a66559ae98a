package model

import (
	"fmt"
	"strings"
)

// EventKind names an exchange contract event.
type EventKind string

const (
	EventOrderCreated EventKind = "OrderCreated"
	EventTrade        EventKind = "Trade"
	EventCancel       EventKind = "Cancel"
	EventDeposit      EventKind = "Deposit"
	EventWithdraw     EventKind = "Withdraw"
)

// AllEventKinds lists every event the exchange emits.
var AllEventKinds = []EventKind{EventOrderCreated, EventTrade, EventCancel, EventDeposit, EventWithdraw}

// Event is the normalized representation of a decoded exchange log.
type Event struct {
	Kind        EventKind `json:"kind"`
	ChainID     uint64    `json:"chain_id"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	LogIndex    uint64    `json:"log_index"`
	Order       *Order    `json:"order,omitempty"`
	Transfer    *Transfer `json:"transfer,omitempty"`
}

// Key identifies the log an event was decoded from.
func (e Event) Key() string {
	return fmt.Sprintf("%d:%s:%d", e.BlockNumber, e.TxHash, e.LogIndex)
}

// Timestamp returns the event payload timestamp.
func (e Event) Timestamp() uint64 {
	switch {
	case e.Order != nil:
		return e.Order.Timestamp
	case e.Transfer != nil:
		return e.Transfer.Timestamp
	default:
		return 0
	}
}

// ParseEventKind maps a case-insensitive name to an EventKind.
func ParseEventKind(name string) (EventKind, bool) {
	for _, kind := range AllEventKinds {
		if strings.EqualFold(string(kind), strings.TrimSpace(name)) {
			return kind, true
		}
	}
	return "", false
}
