package ingest

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexScope/internal/exchange"
	"dexScope/internal/model"
)

var (
	testExchange = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testUser     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testToken0   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type fakeSource struct {
	mu       sync.Mutex
	logs     map[uint64][]types.Log
	failures map[uint64]int
	calls    []BlockRange
}

func (f *fakeSource) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, BlockRange{From: from, To: to})
	if f.failures[from] > 0 {
		f.failures[from]--
		return nil, errors.New("429 Too Many Requests")
	}
	return f.logs[from], nil
}

type fakeClock map[uint64]uint64

func (c fakeClock) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return c[number], nil
}

func orderCreatedLog(t *testing.T, id int64, block uint64, index uint) types.Log {
	t.Helper()
	parsed, err := exchange.ExchangeABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	event := parsed.Events["OrderCreated"]
	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(id), testUser, testToken0, big.NewInt(10), testToken1, big.NewInt(20), big.NewInt(1700000000),
	)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address:     testExchange,
		Topics:      []common.Hash{event.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(id)),
		Index:       index,
	}
}

func depositLog(t *testing.T, block uint64) types.Log {
	t.Helper()
	parsed, err := exchange.ExchangeABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	event := parsed.Events["Deposit"]
	data, err := event.Inputs.NonIndexed().Pack(testToken0, testUser, big.NewInt(5), big.NewInt(5))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	return types.Log{
		Address:     testExchange,
		Topics:      []common.Hash{event.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xd1"),
	}
}

func newTestIngestor(t *testing.T, source LogSource, clock BlockClock) *Ingestor {
	t.Helper()
	decoder, err := exchange.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return NewIngestor(Config{
		ChainID:      31337,
		Exchange:     testExchange,
		ChunkSize:    300,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	}, source, clock, decoder, nil)
}

func TestIngestorChunksRange(t *testing.T) {
	source := &fakeSource{logs: map[uint64][]types.Log{}}
	ing := newTestIngestor(t, source, nil)

	stats, err := ing.Run(context.Background(), 0, 999, nil, func(Batch) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Chunks != 4 || len(source.calls) != 4 {
		t.Fatalf("chunk mismatch: stats=%+v calls=%+v", stats, source.calls)
	}
	if source.calls[3] != (BlockRange{From: 900, To: 999}) {
		t.Fatalf("last chunk mismatch: %+v", source.calls[3])
	}
}

func TestIngestorRetriesRateLimitedChunk(t *testing.T) {
	source := &fakeSource{
		logs:     map[uint64][]types.Log{0: {orderCreatedLog(t, 1, 10, 0)}},
		failures: map[uint64]int{0: 2},
	}
	ing := newTestIngestor(t, source, nil)

	var events []model.Event
	stats, err := ing.Run(context.Background(), 0, 299, nil, func(b Batch) error {
		events = append(events, b.Events...)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(source.calls) != 3 {
		t.Fatalf("expected same chunk retried, calls=%+v", source.calls)
	}
	if stats.FailedChunks != 0 || len(events) != 1 || events[0].Order.Key() != "1" {
		t.Fatalf("unexpected result: stats=%+v events=%+v", stats, events)
	}
}

func TestIngestorSkipsFailedChunk(t *testing.T) {
	source := &fakeSource{
		logs: map[uint64][]types.Log{
			0:   {orderCreatedLog(t, 1, 10, 0)},
			300: {orderCreatedLog(t, 2, 310, 0)},
			600: {orderCreatedLog(t, 3, 610, 0)},
		},
		failures: map[uint64]int{300: 10},
	}
	ing := newTestIngestor(t, source, nil)

	var failed []BlockRange
	var ids []string
	stats, err := ing.Run(context.Background(), 0, 899, nil, func(b Batch) error {
		if b.Err != nil {
			failed = append(failed, b.Range)
		}
		for _, e := range b.Events {
			ids = append(ids, e.Order.Key())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.FailedChunks != 1 || len(failed) != 1 || failed[0].From != 300 {
		t.Fatalf("failed chunk mismatch: stats=%+v failed=%+v", stats, failed)
	}
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
		t.Fatalf("ids mismatch: %v", ids)
	}
}

func TestIngestorDeduplicatesAndStamps(t *testing.T) {
	dup := orderCreatedLog(t, 1, 10, 0)
	source := &fakeSource{logs: map[uint64][]types.Log{0: {dup, dup, depositLog(t, 20)}}}
	ing := newTestIngestor(t, source, fakeClock{20: 1700000500})

	var events []model.Event
	for event := range ing.Stream(context.Background(), 0, 100) {
		events = append(events, event)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Kind != model.EventDeposit || events[1].Transfer.Timestamp != 1700000500 {
		t.Fatalf("deposit mismatch: %+v", events[1])
	}
}

func TestFallbackSource(t *testing.T) {
	empty := &fakeSource{logs: map[uint64][]types.Log{}}
	full := &fakeSource{logs: map[uint64][]types.Log{0: {orderCreatedLog(t, 1, 10, 0)}}}
	source := &FallbackSource{Primary: empty, Secondary: full}

	logs, err := source.FilterLogs(context.Background(), 0, 10, nil, nil)
	if err != nil || len(logs) != 1 {
		t.Fatalf("fallback mismatch: logs=%d err=%v", len(logs), err)
	}
	if len(empty.calls) != 1 || len(full.calls) != 1 {
		t.Fatalf("expected both sources queried")
	}
}

type fakeHead struct {
	mu       sync.Mutex
	head     uint64
	failures int
	calls    int
}

func (h *fakeHead) LatestBlockNumber(context.Context) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.failures > 0 {
		h.failures--
		return 0, errors.New("connection reset by peer")
	}
	return h.head, nil
}

func newFollowIngestor(t *testing.T, source LogSource) *Ingestor {
	t.Helper()
	decoder, err := exchange.NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return NewIngestor(Config{
		ChainID:      31337,
		Exchange:     testExchange,
		ChunkSize:    10,
		MaxAttempts:  2,
		RetryBackoff: time.Millisecond,
	}, source, nil, decoder, nil)
}

// collectIDs reads n order events from events, then cancels the follow loop
// and drains the channel until it is closed.
func collectIDs(t *testing.T, cancel context.CancelFunc, events <-chan model.Event, n int) []string {
	t.Helper()
	var ids []string
	timeout := time.After(5 * time.Second)
	for len(ids) < n {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatalf("channel closed after %d events", len(ids))
			}
			ids = append(ids, event.Order.Key())
		case <-timeout:
			t.Fatalf("timed out after %d events", len(ids))
		}
	}
	cancel()
	for range events {
	}
	return ids
}

func TestFollowRetriesDeferredChunk(t *testing.T) {
	source := &fakeSource{
		logs: map[uint64][]types.Log{
			0:  {orderCreatedLog(t, 1, 5, 0)},
			10: {orderCreatedLog(t, 2, 15, 0)},
		},
		failures: map[uint64]int{0: 2},
	}
	ing := newFollowIngestor(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := ing.Follow(ctx, &fakeHead{head: 19}, 0, time.Millisecond)

	ids := collectIDs(t, cancel, events, 2)
	if want := []string{"1", "2"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	want := []BlockRange{{From: 0, To: 9}, {From: 0, To: 9}, {From: 0, To: 9}, {From: 10, To: 19}}
	if len(source.calls) < len(want) || !reflect.DeepEqual(source.calls[:len(want)], want) {
		t.Fatalf("calls = %+v, want prefix %+v", source.calls, want)
	}
	for _, call := range source.calls[len(want):] {
		if call.From < 20 {
			t.Fatalf("range refetched after success: %+v", source.calls)
		}
	}
}

func TestFollowKeepsPollingAfterHeadError(t *testing.T) {
	source := &fakeSource{logs: map[uint64][]types.Log{0: {orderCreatedLog(t, 1, 5, 0)}}}
	ing := newFollowIngestor(t, source)
	head := &fakeHead{head: 9, failures: 3}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ids := collectIDs(t, cancel, ing.Follow(ctx, head, 0, time.Millisecond), 1)
	if want := []string{"1"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	head.mu.Lock()
	defer head.mu.Unlock()
	if head.calls < 4 {
		t.Fatalf("expected polling past head errors, calls=%d", head.calls)
	}
}

func TestIngestorDedupIsBoundedToAdjacentChunks(t *testing.T) {
	dup := orderCreatedLog(t, 1, 5, 0)
	source := &fakeSource{logs: map[uint64][]types.Log{
		0:  {dup},
		10: {dup, orderCreatedLog(t, 2, 15, 0)},
		20: {orderCreatedLog(t, 3, 25, 0)},
		30: {orderCreatedLog(t, 4, 35, 0)},
	}}
	ing := newFollowIngestor(t, source)

	stats, err := ing.Run(context.Background(), 0, 39, nil, func(Batch) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Events != 4 || stats.Duplicates != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if kept := len(ing.seen) + len(ing.previous); kept != 2 {
		t.Fatalf("dedup keeps %d keys, want keys of the last two chunks only", kept)
	}
}
