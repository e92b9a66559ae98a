package orderbook

import (
	"sort"

	"github.com/shopspring/decimal"

	"dexScope/internal/model"
)

// BucketSeconds is the width of one price-series bucket.
const BucketSeconds = 3600

// BuildSeries buckets the pair's fills into hourly OHLC candles. With no
// fills it returns a zero last price, an upward change marker and an empty
// series.
func BuildSeries(filled []model.Order, pair model.TokenPair) model.PriceSeries {
	series := model.PriceSeries{
		LastPrice:       decimal.Zero,
		LastPriceChange: model.PriceUp,
		Series:          []model.Candle{},
	}

	orders := decorateAscending(filled, pair)
	if len(orders) == 0 {
		return series
	}

	last := orders[len(orders)-1]
	series.LastPrice = last.TokenPrice
	if len(orders) > 1 && last.TokenPrice.LessThan(orders[len(orders)-2].TokenPrice) {
		series.LastPriceChange = model.PriceDown
	}

	var current *model.Candle
	for _, order := range orders {
		start := bucketStart(order.Timestamp)
		if current == nil || current.Start != start {
			series.Series = append(series.Series, model.Candle{
				Start: start,
				Open:  order.TokenPrice,
				High:  order.TokenPrice,
				Low:   order.TokenPrice,
				Close: order.TokenPrice,
			})
			current = &series.Series[len(series.Series)-1]
			continue
		}
		current.High = decimal.Max(current.High, order.TokenPrice)
		current.Low = decimal.Min(current.Low, order.TokenPrice)
		current.Close = order.TokenPrice
	}
	return series
}

// DecorateFilled returns the pair's trade history newest first. PriceClass
// marks whether each fill's price is at or above the fill before it; the
// oldest fill is always marked up.
func DecorateFilled(filled []model.Order, pair model.TokenPair) []model.DecoratedOrder {
	orders := decorateAscending(filled, pair)
	for i := range orders {
		orders[i].PriceClass = model.PriceUp
		if i > 0 && orders[i].TokenPrice.LessThan(orders[i-1].TokenPrice) {
			orders[i].PriceClass = model.PriceDown
		}
	}
	reverse(orders)
	return orders
}

func bucketStart(ts uint64) uint64 {
	return ts - ts%BucketSeconds
}

func decorateAscending(orders []model.Order, pair model.TokenPair) []model.DecoratedOrder {
	decorated := DecorateAll(orders, pair)
	sort.SliceStable(decorated, func(i, j int) bool {
		if decorated[i].Timestamp != decorated[j].Timestamp {
			return decorated[i].Timestamp < decorated[j].Timestamp
		}
		return compareOrderIDs(decorated[i].Order, decorated[j].Order) < 0
	})
	return decorated
}

func reverse(orders []model.DecoratedOrder) {
	for i, j := 0, len(orders)-1; i < j; i, j = i+1, j-1 {
		orders[i], orders[j] = orders[j], orders[i]
	}
}
