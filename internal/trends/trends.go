// Package trends derives the marketplace trend series from the purchase ledger.
package trends

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

// DefaultWindow is the number of days covered by the series.
const DefaultWindow = 30

// PopularCount is the number of symbols reported as popular.
const PopularCount = 3

// pricePlaces bounds the precision of the daily average price.
const pricePlaces = 6

// Start returns the first instant covered by a window of days ending
// yesterday (UTC).
func Start(now time.Time, window int) time.Time {
	return day(now).AddDate(0, 0, -window)
}

// Build computes daily volume and volume-weighted price series over the
// window days ending yesterday, plus the most traded symbols in that window.
//
// Days without trades carry the previous day's price forward. Days before
// the first trade take the first traded price; with no trades at all every
// price is zero.
func Build(purchases []model.Purchase, now time.Time, window int) model.MarketTrends {
	if window <= 0 {
		window = DefaultWindow
	}
	start := Start(now, window)
	end := day(now)

	volume := make([]decimal.Decimal, window)
	units := make([]int64, window)
	bySymbol := make(map[string]int64)

	for _, p := range purchases {
		ts := p.Timestamp.UTC()
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		i := int(ts.Sub(start) / (24 * time.Hour))
		volume[i] = volume[i].Add(p.Cost)
		units[i] += p.Amount
		bySymbol[p.Symbol] += p.Amount
	}

	trends := model.MarketTrends{
		VolumeData:    make([]model.SeriesPoint, window),
		PriceData:     make([]model.SeriesPoint, window),
		PopularTokens: popular(bySymbol),
	}

	first := -1
	last := decimal.Zero
	for i := 0; i < window; i++ {
		date := start.AddDate(0, 0, i).Format(model.HarvestDateLayout)
		if units[i] > 0 {
			last = volume[i].Div(decimal.NewFromInt(units[i])).Round(pricePlaces)
			if first < 0 {
				first = i
			}
		}
		trends.VolumeData[i] = model.SeriesPoint{Date: date, Value: volume[i]}
		trends.PriceData[i] = model.SeriesPoint{Date: date, Value: last}
	}
	for i := 0; i < first; i++ {
		trends.PriceData[i].Value = trends.PriceData[first].Value
	}

	return trends
}

// popular returns up to PopularCount symbols by units traded, ties by symbol.
func popular(bySymbol map[string]int64) []string {
	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	slices.SortFunc(symbols, func(a, b string) int {
		if c := cmp.Compare(bySymbol[b], bySymbol[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(symbols) > PopularCount {
		symbols = symbols[:PopularCount]
	}
	return symbols
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
