package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropchain/yield-exchange/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

var now = time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(id, crop string, risk model.RiskLevel, amount int64, price, yield float64, harvest string) model.PortfolioEntry {
	return model.PortfolioEntry{
		Token: model.Token{
			ID:             id,
			Symbol:         id + "27",
			CropType:       crop,
			RiskLevel:      risk,
			Price:          d(price),
			ProjectedYield: yield,
			HarvestDate:    harvest,
		},
		Amount: amount,
	}
}

func TestAggregate_SingleEntry(t *testing.T) {
	s := Aggregate([]model.PortfolioEntry{
		entry("WHEAT", "Wheat", model.RiskMedium, 100, 0.02, 80, "2027-07-20"),
	}, now)

	assert.True(t, s.TotalValue.Equal(d(2.00)), "total value %s", s.TotalValue)
	assert.True(t, s.ProjectedReturn.Equal(d(2.16)), "projected return %s", s.ProjectedReturn)
	assert.True(t, s.ROIPercent.Equal(d(8)), "roi %s", s.ROIPercent)

	require.Len(t, s.Allocation, 1)
	assert.True(t, s.Allocation[0].Share.Equal(one))
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil, now)

	assert.True(t, s.TotalValue.IsZero())
	assert.True(t, s.ProjectedReturn.IsZero())
	assert.True(t, s.ROIPercent.IsZero())
	assert.NotNil(t, s.Entries)
	assert.Empty(t, s.Allocation)
	assert.Empty(t, s.CropBreakdown)
	assert.Nil(t, s.NearestHarvest)

	require.Len(t, s.RiskBreakdown, 3)
	for _, b := range s.RiskBreakdown {
		assert.True(t, b.Share.IsZero(), "bucket %s", b.Level)
		assert.Zero(t, b.Count)
	}
}

func TestAggregate_ZeroValueHoldingsHaveZeroShares(t *testing.T) {
	s := Aggregate([]model.PortfolioEntry{
		entry("CORN", "Corn", model.RiskLow, 0, 0.025, 180, "2027-09-15"),
	}, now)

	assert.True(t, s.TotalValue.IsZero())
	assert.True(t, s.Allocation[0].Share.IsZero())
	assert.True(t, s.RiskBreakdown[0].Share.IsZero())
	assert.True(t, s.CropBreakdown[0].Share.IsZero())
}

func TestAggregate_Breakdowns(t *testing.T) {
	s := Aggregate([]model.PortfolioEntry{
		entry("CORN", "Corn", model.RiskLow, 400, 0.025, 180, "2027-09-15"),     // 10
		entry("WHEAT", "Wheat", model.RiskMedium, 500, 0.02, 80, "2027-07-20"),  // 10
		entry("CORN2", "Corn", model.RiskHigh, 1000, 0.02, 190, "2027-10-01"),   // 20
		entry("ODD", "Barley", "Speculative", 0, 0.01, 50, "whenever it rains"), // 0
	}, now)

	assert.True(t, s.TotalValue.Equal(d(40)))

	require.Len(t, s.RiskBreakdown, 4)
	assert.Equal(t, model.RiskLow, s.RiskBreakdown[0].Level)
	assert.True(t, s.RiskBreakdown[0].Share.Equal(d(0.25)))
	assert.True(t, s.RiskBreakdown[1].Share.Equal(d(0.25)))
	assert.True(t, s.RiskBreakdown[2].Share.Equal(d(0.5)))
	assert.Equal(t, model.RiskLevel("Speculative"), s.RiskBreakdown[3].Level)
	assert.Equal(t, 1, s.RiskBreakdown[3].Count)

	require.Len(t, s.CropBreakdown, 3)
	corn := s.CropBreakdown[0]
	assert.Equal(t, "Corn", corn.CropType)
	assert.True(t, corn.Value.Equal(d(30)))
	assert.True(t, corn.Share.Equal(d(0.75)))
	assert.Equal(t, 1, corn.Low)
	assert.Equal(t, 0, corn.Medium)
	assert.Equal(t, 1, corn.High)
	assert.Equal(t, "Wheat", s.CropBreakdown[1].CropType)
	assert.Equal(t, "Barley", s.CropBreakdown[2].CropType)

	// 10×1.18 + 10×1.08 + 20×1.19 = 46.4
	assert.True(t, s.ProjectedReturn.Equal(d(46.4)), "projected return %s", s.ProjectedReturn)
	assert.True(t, s.ROIPercent.Equal(d(16)), "roi %s", s.ROIPercent)
}

func TestAggregate_NearestHarvest(t *testing.T) {
	s := Aggregate([]model.PortfolioEntry{
		entry("CORN", "Corn", model.RiskLow, 1, 0.025, 180, "2027-09-15"),
		entry("BAD", "Corn", model.RiskLow, 1, 0.025, 180, "not a date"),
		entry("WHEAT", "Wheat", model.RiskMedium, 1, 0.02, 80, "2027-07-20"),
	}, now)

	require.NotNil(t, s.NearestHarvest)
	assert.Equal(t, "WHEAT", s.NearestHarvest.TokenID)
	// 2027-06-01 12:00 → 2027-07-20 00:00 is 48.5 days.
	assert.Equal(t, 49, s.NearestHarvest.DaysRemaining)
	assert.False(t, s.NearestHarvest.Ready)

	require.Len(t, s.Upcoming, 2)
	assert.Equal(t, "CORN", s.Upcoming[1].TokenID)
}

func TestDaysUntil(t *testing.T) {
	harvest := time.Date(2027, 6, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 9, DaysUntil(harvest, now))
	assert.Equal(t, 0, DaysUntil(harvest, harvest))
	assert.Equal(t, -2, DaysUntil(harvest, harvest.Add(48*time.Hour)))
	// A partial day past the date still rounds up towards zero.
	assert.Equal(t, 0, DaysUntil(harvest, harvest.Add(12*time.Hour)))
}

func TestCountdown(t *testing.T) {
	c, ok := Countdown(model.Token{ID: "past", HarvestDate: "2027-05-01"}, now)
	require.True(t, ok)
	assert.True(t, c.Ready)
	assert.Less(t, c.DaysRemaining, 0)
	assert.Equal(t, 100.0, c.ProgressPercent)

	c, ok = Countdown(model.Token{ID: "far", HarvestDate: "2028-06-01"}, now)
	require.True(t, ok)
	assert.False(t, c.Ready)
	assert.Equal(t, 0.0, c.ProgressPercent)

	c, ok = Countdown(model.Token{ID: "mid", HarvestDate: "2027-08-30"}, now)
	require.True(t, ok)
	assert.Equal(t, 90, c.DaysRemaining)
	assert.Equal(t, 50.0, c.ProgressPercent)

	_, ok = Countdown(model.Token{ID: "bad", HarvestDate: "soon"}, now)
	assert.False(t, ok)
}

func TestSummarizeIssuer(t *testing.T) {
	tokens := []model.Token{
		{ID: "corn", Symbol: "CORN27F", Price: d(0.027), TotalSupply: 15000, AvailableSupply: 12500, HarvestDate: "2027-09-15"},
		{ID: "soy", Symbol: "ORGSOY", Price: d(0.035), TotalSupply: 8000, AvailableSupply: 5600, HarvestDate: "2027-10-05"},
	}

	s := SummarizeIssuer("farmer-01", tokens, now)

	assert.Equal(t, 2, s.TokenCount)
	assert.Equal(t, int64(23000), s.TotalSupply)
	assert.Equal(t, int64(4900), s.Sold)
	// 2500×0.027 + 2400×0.035 = 67.5 + 84 = 151.5
	assert.True(t, s.Revenue.Equal(d(151.5)), "revenue %s", s.Revenue)
	require.NotNil(t, s.NearestHarvest)
	assert.Equal(t, "corn", s.NearestHarvest.TokenID)
}

func TestSummarizeIssuer_NoTokens(t *testing.T) {
	s := SummarizeIssuer("farmer-01", nil, now)

	assert.Zero(t, s.TokenCount)
	assert.True(t, s.Revenue.IsZero())
	assert.NotNil(t, s.Tokens)
	assert.Nil(t, s.NearestHarvest)
}
