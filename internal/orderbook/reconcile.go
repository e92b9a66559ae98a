// Package orderbook derives open orders, the order book, price history and
// account views from the exchange's raw event lists.
package orderbook

import "dexScope/internal/model"

// Reconcile returns the orders of all whose id is in neither filled nor
// cancelled. Ids are compared in string-normalized form; the order of all is
// preserved and repeated ids in all are reported once.
func Reconcile(all, filled, cancelled []model.Order) []model.Order {
	closed := make(map[string]struct{}, len(filled)+len(cancelled))
	for _, order := range filled {
		closed[order.Key()] = struct{}{}
	}
	for _, order := range cancelled {
		closed[order.Key()] = struct{}{}
	}

	open := make([]model.Order, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, order := range all {
		key := order.Key()
		if _, ok := closed[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		open = append(open, order)
	}
	return open
}
