package explorer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"dexScope/internal/chain"
)

var (
	testExchange = common.HexToAddress("0x1111111111111111111111111111111111111111")
	wantedTopic  = common.HexToHash("0x01")
	otherTopic   = common.HexToHash("0x02")
)

func TestFilterLogsDecodesAndFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("module") != "logs" || q.Get("action") != "getLogs" || q.Get("fromBlock") != "10" || q.Get("apikey") != "key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"address":"0x1111111111111111111111111111111111111111","topics":["` + wantedTopic.Hex() + `"],"data":"0x2a","blockNumber":"0x0c","logIndex":"0x","transactionHash":"0xabc","transactionIndex":"0x1"},
			{"address":"0x1111111111111111111111111111111111111111","topics":["` + otherTopic.Hex() + `"],"data":"0x","blockNumber":"0x0d","logIndex":"0x3","transactionHash":"0xdef","transactionIndex":"0x0"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	logs, err := client.FilterLogs(context.Background(), 10, 20, []common.Address{testExchange}, []common.Hash{wantedTopic})
	if err != nil {
		t.Fatalf("filter logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(logs))
	}
	log := logs[0]
	if log.BlockNumber != 12 || log.Index != 0 || log.TxIndex != 1 || len(log.Data) != 1 || log.Data[0] != 0x2a {
		t.Fatalf("unexpected log %+v", log)
	}
}

func TestFilterLogsNoRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","message":"No records found","result":[]}`))
	}))
	defer server.Close()

	logs, err := NewClient(server.URL, "").FilterLogs(context.Background(), 1, 2, []common.Address{testExchange}, nil)
	if err != nil || len(logs) != 0 {
		t.Fatalf("expected empty result, got %d logs err %v", len(logs), err)
	}
}

func TestFilterLogsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").FilterLogs(context.Background(), 1, 2, []common.Address{testExchange}, nil)
	if !errors.Is(err, chain.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}

func TestFilterLogsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "").FilterLogs(context.Background(), 1, 2, []common.Address{testExchange}, nil)
	if !errors.Is(err, ErrExplorer) {
		t.Fatalf("expected explorer error, got %v", err)
	}
}
