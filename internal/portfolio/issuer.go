package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

// IssuerSummary is the farmer-side view of the offerings one party issued.
type IssuerSummary struct {
	FarmerID       string            `json:"farmerId"`
	Tokens         []model.Token     `json:"tokens"`
	TokenCount     int               `json:"tokenCount"`
	TotalSupply    int64             `json:"totalSupply"`
	Sold           int64             `json:"sold"`
	Revenue        decimal.Decimal   `json:"revenue"` // Σ sold × price
	NearestHarvest *HarvestCountdown `json:"nearestHarvest,omitempty"`
}

// SummarizeIssuer aggregates supply, sales and revenue across tokens.
func SummarizeIssuer(farmerID string, tokens []model.Token, now time.Time) IssuerSummary {
	s := IssuerSummary{
		FarmerID:   farmerID,
		Tokens:     tokens,
		TokenCount: len(tokens),
		Revenue:    decimal.Zero,
	}
	if s.Tokens == nil {
		s.Tokens = []model.Token{}
	}

	for _, t := range tokens {
		sold := t.Sold()
		s.TotalSupply += t.TotalSupply
		s.Sold += sold
		s.Revenue = s.Revenue.Add(t.Price.Mul(decimal.NewFromInt(sold)))
	}

	if harvests := upcoming(tokens, now); len(harvests) > 0 {
		nearest := harvests[0]
		s.NearestHarvest = &nearest
	}
	return s
}
