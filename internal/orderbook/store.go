package orderbook

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexScope/internal/model"
)

// Snapshot is a copy of the store's raw lists.
type Snapshot struct {
	Created   []model.Order `json:"created"`
	Filled    []model.Order `json:"filled"`
	Cancelled []model.Order `json:"cancelled"`
	Transfers []model.Event `json:"transfers"`
}

// Store owns the raw event lists of one exchange. Apply is the only mutation
// path; every other method derives its result from a consistent read.
//
// Application is idempotent and independent of arrival order: an order id is
// created at most once and ends in at most one of filled and cancelled.
type Store struct {
	mu     sync.RWMutex
	logger *zap.Logger

	created   []model.Order
	filled    []model.Order
	cancelled []model.Order
	transfers []model.Event

	createdIDs  map[string]struct{}
	terminal    map[string]model.EventKind
	transferIDs map[string]struct{}
}

func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		logger:      logger,
		createdIDs:  make(map[string]struct{}),
		terminal:    make(map[string]model.EventKind),
		transferIDs: make(map[string]struct{}),
	}
}

// Apply records event and reports whether it changed the store.
func (s *Store) Apply(event model.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(event)
}

// ApplyAll applies events in order and returns how many changed the store.
func (s *Store) ApplyAll(events []model.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, event := range events {
		if s.apply(event) {
			applied++
		}
	}
	return applied
}

func (s *Store) apply(event model.Event) bool {
	switch event.Kind {
	case model.EventOrderCreated:
		if event.Order == nil {
			return false
		}
		key := event.Order.Key()
		if _, ok := s.createdIDs[key]; ok {
			return false
		}
		s.createdIDs[key] = struct{}{}
		s.created = append(s.created, *event.Order)
		return true

	case model.EventTrade, model.EventCancel:
		if event.Order == nil {
			return false
		}
		key := event.Order.Key()
		if prev, ok := s.terminal[key]; ok {
			if prev != event.Kind {
				s.logger.Warn("conflicting terminal event ignored",
					zap.String("order_id", key),
					zap.String("kept", string(prev)),
					zap.String("ignored", string(event.Kind)),
				)
			}
			return false
		}
		s.terminal[key] = event.Kind
		if event.Kind == model.EventTrade {
			s.filled = append(s.filled, *event.Order)
		} else {
			s.cancelled = append(s.cancelled, *event.Order)
		}
		return true

	case model.EventDeposit, model.EventWithdraw:
		if event.Transfer == nil {
			return false
		}
		key := event.Key()
		if _, ok := s.transferIDs[key]; ok {
			return false
		}
		s.transferIDs[key] = struct{}{}
		s.transfers = append(s.transfers, event)
		return true
	}
	return false
}

// Consume applies events from in until it is closed or ctx is done. onApply,
// when set, is called after each event that changed the store.
func (s *Store) Consume(ctx context.Context, in <-chan model.Event, onApply func(model.Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-in:
			if !ok {
				return nil
			}
			if s.Apply(event) && onApply != nil {
				onApply(event)
			}
		}
	}
}

func (s *Store) AllOrders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Order{}, s.created...)
}

func (s *Store) FilledOrders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Order{}, s.filled...)
}

func (s *Store) CancelledOrders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Order{}, s.cancelled...)
}

func (s *Store) Transfers() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Event{}, s.transfers...)
}

// OpenOrders returns created orders that are neither filled nor cancelled.
func (s *Store) OpenOrders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Reconcile(s.created, s.filled, s.cancelled)
}

func (s *Store) Book(pair model.TokenPair) model.OrderBook {
	return BuildBook(s.OpenOrders(), pair)
}

func (s *Store) Series(pair model.TokenPair) model.PriceSeries {
	return BuildSeries(s.FilledOrders(), pair)
}

func (s *Store) Trades(pair model.TokenPair) []model.DecoratedOrder {
	return DecorateFilled(s.FilledOrders(), pair)
}

func (s *Store) MyOpenOrders(pair model.TokenPair, account common.Address) []model.DecoratedOrder {
	return MyOpenOrders(s.OpenOrders(), pair, account)
}

func (s *Store) MyFilledOrders(pair model.TokenPair, account common.Address) []model.DecoratedOrder {
	return MyFilledOrders(s.FilledOrders(), pair, account)
}

func (s *Store) MyTransfers(account common.Address) []model.Event {
	return MyTransfers(s.Transfers(), account)
}

// Snapshot copies the raw lists under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Created:   append([]model.Order{}, s.created...),
		Filled:    append([]model.Order{}, s.filled...),
		Cancelled: append([]model.Order{}, s.cancelled...),
		Transfers: append([]model.Event{}, s.transfers...),
	}
}
