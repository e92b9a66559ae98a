package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEventKey(t *testing.T) {
	event := Event{BlockNumber: 12, TxHash: "0xabc", LogIndex: 3}
	if got := event.Key(); got != "12:0xabc:3" {
		t.Fatalf("key = %q", got)
	}
}

func TestParseEventKind(t *testing.T) {
	kind, ok := ParseEventKind(" ordercreated ")
	if !ok || kind != EventOrderCreated {
		t.Fatalf("got %q %v", kind, ok)
	}
	if _, ok := ParseEventKind("Swap"); ok {
		t.Fatalf("unexpected kind for Swap")
	}
}

func TestOrderKeyNormalizes(t *testing.T) {
	parsed, _ := new(big.Int).SetString("0010", 10)
	if OrderKey(parsed) != (Order{ID: big.NewInt(10)}).Key() {
		t.Fatalf("equal ids should share a key")
	}
	if OrderKey(nil) != "0" {
		t.Fatalf("nil id key = %q", OrderKey(nil))
	}
}

func TestTokenPairContains(t *testing.T) {
	a := common.HexToAddress("0x0a")
	b := common.HexToAddress("0x0b")
	c := common.HexToAddress("0x0c")
	pair := TokenPair{Token0: Token{Address: a}, Token1: Token{Address: b}}

	if !pair.Contains(Order{TokenGet: a, TokenGive: b}) || !pair.Contains(Order{TokenGet: b, TokenGive: a}) {
		t.Fatalf("pair should contain both directions")
	}
	if pair.Contains(Order{TokenGet: a, TokenGive: c}) || pair.Contains(Order{TokenGet: a, TokenGive: a}) {
		t.Fatalf("pair should reject foreign legs")
	}
	if (TokenPair{}).Contains(Order{}) {
		t.Fatalf("unloaded pair should contain nothing")
	}
}
