// Package correlation implements holding limits that account for
// geographic correlation between yield offerings.
//
// A drought over one growing region hits every harvest in it at once, so a
// holder buying every Iowa offering carries correlated risk. Offerings are
// grouped by region (the first segment of their location) and the
// aggregate value held per region is capped.
package correlation

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

var (
	// ErrPerTokenLimitExceeded is returned when a purchase would push a
	// single holding beyond the per-token maximum.
	ErrPerTokenLimitExceeded = errors.New("correlation: per-token holding limit exceeded")

	// ErrRegionLimitExceeded is returned when a purchase would push the
	// aggregate value held in one growing region beyond the regional maximum.
	ErrRegionLimitExceeded = errors.New("correlation: regional exposure limit exceeded")
)

// PositionLimiter enforces holding limits with regional correlation awareness.
// A zero limit disables that check.
type PositionLimiter struct {
	// MaxPerToken is the maximum number of units of one token a holder may own.
	MaxPerToken int64

	// MaxRegionExposure is the maximum aggregate value (units × price)
	// a holder may own across all offerings from the same region.
	MaxRegionExposure decimal.Decimal
}

// NewPositionLimiter creates a limiter with the given per-token and
// regional limits.
func NewPositionLimiter(maxPerToken int64, maxRegionExposure decimal.Decimal) *PositionLimiter {
	if maxPerToken < 0 {
		maxPerToken = 0
	}
	if maxRegionExposure.IsNegative() {
		maxRegionExposure = decimal.Zero
	}
	return &PositionLimiter{
		MaxPerToken:       maxPerToken,
		MaxRegionExposure: maxRegionExposure,
	}
}

// CheckLimit validates whether buying amount units of target respects the
// holder's limits given their current holdings.
//
// Returns nil if the purchase is within limits, or an error describing the violation.
func (l *PositionLimiter) CheckLimit(target model.Token, amount int64, holdings []model.PortfolioEntry) error {
	if l == nil {
		return nil
	}

	// 1. Per-token limit.
	if l.MaxPerToken > 0 {
		held := amount
		for _, h := range holdings {
			if h.ID == target.ID {
				held += h.Amount
			}
		}
		if held > l.MaxPerToken {
			return ErrPerTokenLimitExceeded
		}
	}

	// 2. Regional exposure: value already held in the target's region plus
	// the value of this purchase.
	if l.MaxRegionExposure.IsPositive() {
		region := regionKey(target)
		exposure := target.Price.Mul(decimal.NewFromInt(amount))
		for _, h := range holdings {
			if regionKey(h.Token) == region {
				exposure = exposure.Add(h.Value())
			}
		}
		if exposure.GreaterThan(l.MaxRegionExposure) {
			return ErrRegionLimitExceeded
		}
	}

	return nil
}

// regionKey folds case so "Iowa" and "IOWA" are the same region.
func regionKey(t model.Token) string {
	return strings.ToLower(t.Region())
}
