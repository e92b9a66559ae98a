package orderbook

import (
	"sort"

	"dexScope/internal/model"
)

// BuildBook groups decorated open orders by side. Both sides are sorted by
// price, highest first.
func BuildBook(open []model.Order, pair model.TokenPair) model.OrderBook {
	book := model.OrderBook{
		BuyOrders:  []model.DecoratedOrder{},
		SellOrders: []model.DecoratedOrder{},
	}
	for _, order := range DecorateAll(open, pair) {
		if order.OrderType == model.OrderBuy {
			book.BuyOrders = append(book.BuyOrders, order)
		} else {
			book.SellOrders = append(book.SellOrders, order)
		}
	}
	sortByPriceDesc(book.BuyOrders)
	sortByPriceDesc(book.SellOrders)
	return book
}

func sortByPriceDesc(orders []model.DecoratedOrder) {
	sort.SliceStable(orders, func(i, j int) bool {
		if c := orders[i].TokenPrice.Cmp(orders[j].TokenPrice); c != 0 {
			return c > 0
		}
		return compareOrderIDs(orders[i].Order, orders[j].Order) < 0
	})
}
