// Package issuance handles token drafts submitted by farmers: defaults,
// normalization, validation and id assignment.
package issuance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

// symbolRegex matches ticker-style symbols: CORN27, WHEAT27, ORGSOY.
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

var ErrInvalidDraft = errors.New("issuance: invalid token draft")

// Defaults offered on a fresh issuance form.
const (
	DefaultCropType       = "Corn"
	DefaultProjectedYield = 180
	DefaultSupply         = 10000
)

// DefaultPrice is the suggested unit price of a fresh draft.
var DefaultPrice = decimal.RequireFromString("0.025")

// DefaultDraft returns the form defaults, harvesting six months after now.
func DefaultDraft(now time.Time) model.TokenDraft {
	return model.TokenDraft{
		CropType:        DefaultCropType,
		ProjectedYield:  DefaultProjectedYield,
		Price:           DefaultPrice,
		HarvestDate:     now.AddDate(0, 6, 0).Format(model.HarvestDateLayout),
		RiskLevel:       model.RiskLow,
		TotalSupply:     DefaultSupply,
		AvailableSupply: DefaultSupply,
	}
}

// Normalize trims text fields and upper-cases the symbol. A zero
// AvailableSupply means the whole supply is offered.
func Normalize(d model.TokenDraft) model.TokenDraft {
	d.Name = strings.TrimSpace(d.Name)
	d.Symbol = strings.ToUpper(strings.TrimSpace(d.Symbol))
	d.CropType = strings.TrimSpace(d.CropType)
	d.FarmerID = strings.TrimSpace(d.FarmerID)
	d.HarvestDate = strings.TrimSpace(d.HarvestDate)
	d.Location = strings.TrimSpace(d.Location)
	if d.AvailableSupply == 0 {
		d.AvailableSupply = d.TotalSupply
	}
	return d
}

// ValidateDraft checks the fields a farmer must supply before issuance.
func ValidateDraft(d model.TokenDraft) error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(2, 80)),
		validation.Field(&d.Symbol, validation.Required, validation.Match(symbolRegex)),
		validation.Field(&d.CropType, validation.Required, validation.Length(2, 40)),
		validation.Field(&d.Location, validation.Required, validation.Length(2, 120)),
		validation.Field(&d.HarvestDate, validation.Required, validation.Date(model.HarvestDateLayout)),
		validation.Field(&d.RiskLevel, validation.Required,
			validation.In(model.RiskLow, model.RiskMedium, model.RiskHigh)),
		validation.Field(&d.Price, validation.By(positiveDecimal)),
		validation.Field(&d.TotalSupply, validation.Required, validation.Min(int64(1))),
		validation.Field(&d.AvailableSupply, validation.Min(int64(0)), validation.Max(d.TotalSupply)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return nil
}

func positiveDecimal(value interface{}) error {
	v, ok := value.(decimal.Decimal)
	if !ok || !v.IsPositive() {
		return errors.New("must be greater than zero")
	}
	return nil
}

// NewTokenID returns a fresh id of the form <croptype>-<8 hex chars>.
func NewTokenID(cropType string) string {
	prefix := strings.ToLower(strings.Join(strings.Fields(cropType), "-"))
	if prefix == "" {
		prefix = "token"
	}
	return prefix + "-" + uuid.New().String()[:8]
}
