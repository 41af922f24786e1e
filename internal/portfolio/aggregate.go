// Package portfolio derives holder and issuer metrics from token holdings:
// total value, projected return, allocation, risk and crop breakdowns and
// harvest countdowns.
//
// All functions are pure. The current time is always passed in.
package portfolio

import (
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

var (
	one      = decimal.NewFromInt(1)
	hundred  = decimal.NewFromInt(100)
	thousand = decimal.NewFromInt(1000)
)

// progressHorizonDays is the growing window harvest progress is measured against.
const progressHorizonDays = 180

// Summary is the aggregate view of one holder's portfolio.
type Summary struct {
	Entries         []model.PortfolioEntry `json:"tokens"`
	TotalValue      decimal.Decimal        `json:"totalValue"`
	ProjectedReturn decimal.Decimal        `json:"projectedReturn"`
	ROIPercent      decimal.Decimal        `json:"roiPercent"`
	Allocation      []Allocation           `json:"allocation"`
	RiskBreakdown   []RiskBucket           `json:"riskBreakdown"`
	CropBreakdown   []CropBucket           `json:"cropBreakdown"`
	NearestHarvest  *HarvestCountdown      `json:"nearestHarvest,omitempty"`
	Upcoming        []HarvestCountdown     `json:"upcomingHarvests"`
}

// Allocation is one entry's slice of the portfolio value.
type Allocation struct {
	TokenID string          `json:"tokenId"`
	Symbol  string          `json:"symbol"`
	Value   decimal.Decimal `json:"value"`
	Share   decimal.Decimal `json:"share"` // fraction of TotalValue
}

// RiskBucket aggregates holdings sharing one risk level.
type RiskBucket struct {
	Level model.RiskLevel `json:"level"`
	Value decimal.Decimal `json:"value"`
	Share decimal.Decimal `json:"share"`
	Count int             `json:"count"`
}

// CropBucket aggregates holdings sharing one crop type.
type CropBucket struct {
	CropType string          `json:"cropType"`
	Value    decimal.Decimal `json:"value"`
	Share    decimal.Decimal `json:"share"`
	Low      int             `json:"low"`
	Medium   int             `json:"medium"`
	High     int             `json:"high"`
}

// HarvestCountdown describes the time left until a token's harvest.
type HarvestCountdown struct {
	TokenID         string    `json:"tokenId"`
	Symbol          string    `json:"symbol"`
	Date            time.Time `json:"date"`
	DaysRemaining   int       `json:"daysRemaining"`
	Ready           bool      `json:"ready"`
	ProgressPercent float64   `json:"progressPercent"`
}

// Aggregate computes the portfolio summary for entries as of now.
func Aggregate(entries []model.PortfolioEntry, now time.Time) Summary {
	s := Summary{
		Entries:         entries,
		TotalValue:      decimal.Zero,
		ProjectedReturn: decimal.Zero,
		ROIPercent:      decimal.Zero,
	}
	if s.Entries == nil {
		s.Entries = []model.PortfolioEntry{}
	}

	for _, e := range entries {
		value := e.Value()
		s.TotalValue = s.TotalValue.Add(value)
		s.ProjectedReturn = s.ProjectedReturn.Add(value.Mul(yieldMultiplier(e.ProjectedYield)))
	}

	if s.TotalValue.IsPositive() {
		s.ROIPercent = s.ProjectedReturn.Div(s.TotalValue).Sub(one).Mul(hundred).Round(2)
	}

	s.Allocation = allocation(entries, s.TotalValue)
	s.RiskBreakdown = riskBreakdown(entries, s.TotalValue)
	s.CropBreakdown = cropBreakdown(entries, s.TotalValue)
	s.Upcoming = upcoming(tokensOf(entries), now)
	if len(s.Upcoming) > 0 {
		nearest := s.Upcoming[0]
		s.NearestHarvest = &nearest
	}
	return s
}

// yieldMultiplier returns 1 + projectedYield/1000.
func yieldMultiplier(projectedYield float64) decimal.Decimal {
	return one.Add(decimal.NewFromFloat(projectedYield).Div(thousand))
}

// share returns part/total, or zero when total is not positive.
func share(part, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	return part.Div(total)
}

func allocation(entries []model.PortfolioEntry, total decimal.Decimal) []Allocation {
	out := make([]Allocation, 0, len(entries))
	for _, e := range entries {
		value := e.Value()
		out = append(out, Allocation{
			TokenID: e.ID,
			Symbol:  e.Symbol,
			Value:   value,
			Share:   share(value, total),
		})
	}
	return out
}

func riskBreakdown(entries []model.PortfolioEntry, total decimal.Decimal) []RiskBucket {
	buckets := make([]RiskBucket, 0, len(model.RiskLevels))
	index := make(map[model.RiskLevel]int)
	for _, level := range model.RiskLevels {
		index[level] = len(buckets)
		buckets = append(buckets, RiskBucket{Level: level, Value: decimal.Zero})
	}

	for _, e := range entries {
		i, ok := index[e.RiskLevel]
		if !ok {
			i = len(buckets)
			index[e.RiskLevel] = i
			buckets = append(buckets, RiskBucket{Level: e.RiskLevel, Value: decimal.Zero})
		}
		buckets[i].Value = buckets[i].Value.Add(e.Value())
		buckets[i].Count++
	}

	for i := range buckets {
		buckets[i].Share = share(buckets[i].Value, total)
	}
	return buckets
}

func cropBreakdown(entries []model.PortfolioEntry, total decimal.Decimal) []CropBucket {
	var buckets []CropBucket
	index := make(map[string]int)

	for _, e := range entries {
		i, ok := index[e.CropType]
		if !ok {
			i = len(buckets)
			index[e.CropType] = i
			buckets = append(buckets, CropBucket{CropType: e.CropType, Value: decimal.Zero})
		}
		b := &buckets[i]
		b.Value = b.Value.Add(e.Value())
		switch e.RiskLevel {
		case model.RiskLow:
			b.Low++
		case model.RiskMedium:
			b.Medium++
		case model.RiskHigh:
			b.High++
		}
	}

	for i := range buckets {
		buckets[i].Share = share(buckets[i].Value, total)
	}
	if buckets == nil {
		buckets = []CropBucket{}
	}
	return buckets
}

// DaysUntil returns ceil((date - now) / 24h). Negative once the date has passed.
func DaysUntil(date, now time.Time) int {
	return int(math.Ceil(date.Sub(now).Hours() / 24))
}

// Countdown builds the harvest countdown for t. ok is false when the
// harvest date cannot be parsed.
func Countdown(t model.Token, now time.Time) (HarvestCountdown, bool) {
	date, ok := t.Harvest()
	if !ok {
		return HarvestCountdown{}, false
	}
	days := DaysUntil(date, now)
	progress := 100 - float64(days)/progressHorizonDays*100
	progress = math.Max(0, math.Min(100, progress))

	return HarvestCountdown{
		TokenID:         t.ID,
		Symbol:          t.Symbol,
		Date:            date,
		DaysRemaining:   days,
		Ready:           days <= 0,
		ProgressPercent: math.Round(progress*10) / 10,
	}, true
}

// upcoming returns countdowns for every parseable harvest, earliest first.
func upcoming(tokens []model.Token, now time.Time) []HarvestCountdown {
	out := make([]HarvestCountdown, 0, len(tokens))
	for _, t := range tokens {
		if c, ok := Countdown(t, now); ok {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b HarvestCountdown) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

func tokensOf(entries []model.PortfolioEntry) []model.Token {
	tokens := make([]model.Token, len(entries))
	for i, e := range entries {
		tokens[i] = e.Token
	}
	return tokens
}
