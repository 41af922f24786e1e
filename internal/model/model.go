// Package model defines the core domain types shared across the yield exchange.
// Prices, costs and balances use shopspring/decimal, never float64.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HarvestDateLayout is the calendar format used for harvest dates.
const HarvestDateLayout = "2006-01-02"

// RiskLevel is the coarse three-tier risk rating attached to an offering.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskLevels lists the known levels in ascending order.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Rank returns the sort ordinal of the level (Low=1, Medium=2, High=3).
// Unknown levels rank 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	}
	return 0
}

// Valid reports whether r is one of the known levels.
func (r RiskLevel) Valid() bool {
	return r.Rank() > 0
}

// Token is one tokenized yield offering.
type Token struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Symbol          string          `json:"symbol" db:"symbol"`
	CropType        string          `json:"cropType" db:"crop_type"`
	ProjectedYield  float64         `json:"projectedYield" db:"projected_yield"` // bushels/acre
	Price           decimal.Decimal `json:"price" db:"price"`
	FarmerID        string          `json:"farmerId" db:"farmer_id"`
	HarvestDate     string          `json:"harvestDate" db:"harvest_date"` // YYYY-MM-DD
	RiskLevel       RiskLevel       `json:"riskLevel" db:"risk_level"`
	Location        string          `json:"location" db:"location"`
	Image           string          `json:"image,omitempty" db:"image"`
	TotalSupply     int64           `json:"totalSupply" db:"total_supply"`
	AvailableSupply int64           `json:"availableSupply" db:"available_supply"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// Region returns the first comma-delimited segment of the location.
func (t Token) Region() string {
	region, _, _ := strings.Cut(t.Location, ",")
	return strings.TrimSpace(region)
}

// Harvest parses the harvest date. ok is false when the date is malformed.
func (t Token) Harvest() (time.Time, bool) {
	return ParseHarvestDate(t.HarvestDate)
}

// Sold returns the number of units no longer available.
func (t Token) Sold() int64 {
	return t.TotalSupply - t.AvailableSupply
}

// ParseHarvestDate accepts YYYY-MM-DD and RFC 3339 timestamps.
func ParseHarvestDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(HarvestDateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// TokenDraft is a token before an id has been assigned.
type TokenDraft struct {
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	CropType        string          `json:"cropType"`
	ProjectedYield  float64         `json:"projectedYield"`
	Price           decimal.Decimal `json:"price"`
	FarmerID        string          `json:"farmerId"`
	HarvestDate     string          `json:"harvestDate"`
	RiskLevel       RiskLevel       `json:"riskLevel"`
	Location        string          `json:"location"`
	Image           string          `json:"image,omitempty"`
	TotalSupply     int64           `json:"totalSupply"`
	AvailableSupply int64           `json:"availableSupply"`
}

// Token materializes the draft under the given id.
func (d TokenDraft) Token(id string, createdAt time.Time) Token {
	return Token{
		ID:              id,
		Name:            d.Name,
		Symbol:          d.Symbol,
		CropType:        d.CropType,
		ProjectedYield:  d.ProjectedYield,
		Price:           d.Price,
		FarmerID:        d.FarmerID,
		HarvestDate:     d.HarvestDate,
		RiskLevel:       d.RiskLevel,
		Location:        d.Location,
		Image:           d.Image,
		TotalSupply:     d.TotalSupply,
		AvailableSupply: d.AvailableSupply,
		CreatedAt:       createdAt,
	}
}

// PortfolioEntry is a token held by one party, with the quantity held.
type PortfolioEntry struct {
	Token
	Amount int64 `json:"amount"`
}

// Value returns amount × price.
func (e PortfolioEntry) Value() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(e.Amount))
}

// Purchase is an immutable record of a settled token purchase.
type Purchase struct {
	ID        string          `json:"id" db:"id"`
	HolderID  string          `json:"holderId" db:"holder_id"`
	TokenID   string          `json:"tokenId" db:"token_id"`
	Symbol    string          `json:"symbol" db:"symbol"`
	Amount    int64           `json:"amount" db:"amount"`
	Price     decimal.Decimal `json:"price" db:"price"` // unit price at settlement
	Cost      decimal.Decimal `json:"cost" db:"cost"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
}

// WalletState is the connection state exposed by the wallet collaborator.
type WalletState struct {
	IsConnected bool            `json:"isConnected"`
	Address     string          `json:"address,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	Network     string          `json:"network,omitempty"`
}

// SeriesPoint is one daily value of a market trend series.
type SeriesPoint struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// MarketTrends holds the marketplace-wide trend series.
type MarketTrends struct {
	VolumeData    []SeriesPoint `json:"volumeData"`
	PriceData     []SeriesPoint `json:"priceData"`
	PopularTokens []string      `json:"popularTokens"`
}
