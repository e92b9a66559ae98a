package orderbook

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"dexScope/internal/model"
)

// MyOpenOrders returns the account's open orders in the pair, newest first.
func MyOpenOrders(open []model.Order, pair model.TokenPair, account common.Address) []model.DecoratedOrder {
	var mine []model.Order
	for _, order := range open {
		if order.User == account {
			mine = append(mine, order)
		}
	}
	orders := decorateAscending(mine, pair)
	reverse(orders)
	return orders
}

// MyFilledOrders returns fills the account took part in, newest first. The
// side is reported from the account's point of view: a taker is on the
// opposite side of the maker's order.
func MyFilledOrders(filled []model.Order, pair model.TokenPair, account common.Address) []model.DecoratedOrder {
	var mine []model.Order
	for _, order := range filled {
		if order.User == account || order.Creator == account {
			mine = append(mine, order)
		}
	}
	orders := decorateAscending(mine, pair)
	for i := range orders {
		if orders[i].Creator != account {
			orders[i].OrderType = opposite(orders[i].OrderType)
		}
		orders[i].OrderSign = model.PriceDown
		if orders[i].OrderType == model.OrderBuy {
			orders[i].OrderSign = model.PriceUp
		}
	}
	reverse(orders)
	return orders
}

// MyTransfers returns the account's deposits and withdrawals, newest first.
func MyTransfers(transfers []model.Event, account common.Address) []model.Event {
	mine := make([]model.Event, 0)
	for _, event := range transfers {
		if event.Transfer != nil && event.Transfer.User == account {
			mine = append(mine, event)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		if mine[i].Transfer.Timestamp != mine[j].Transfer.Timestamp {
			return mine[i].Transfer.Timestamp > mine[j].Transfer.Timestamp
		}
		return mine[i].BlockNumber > mine[j].BlockNumber
	})
	return mine
}

func opposite(side model.OrderType) model.OrderType {
	if side == model.OrderBuy {
		return model.OrderSell
	}
	return model.OrderBuy
}
