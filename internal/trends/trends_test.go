package trends

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropchain/yield-exchange/internal/model"
)

var now = time.Date(2027, 6, 11, 15, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func purchase(symbol string, amount int64, unit string, at time.Time) model.Purchase {
	p := d(unit)
	return model.Purchase{
		Symbol:    symbol,
		Amount:    amount,
		Price:     p,
		Cost:      p.Mul(decimal.NewFromInt(amount)),
		Timestamp: at,
	}
}

func TestBuild_Empty(t *testing.T) {
	tr := Build(nil, now, 30)

	require.Len(t, tr.VolumeData, 30)
	require.Len(t, tr.PriceData, 30)
	assert.Equal(t, "2027-05-12", tr.VolumeData[0].Date)
	assert.Equal(t, "2027-06-10", tr.VolumeData[29].Date)
	for i := range tr.VolumeData {
		assert.True(t, tr.VolumeData[i].Value.IsZero())
		assert.True(t, tr.PriceData[i].Value.IsZero())
	}
	assert.NotNil(t, tr.PopularTokens)
	assert.Empty(t, tr.PopularTokens)
}

func TestBuild_DefaultWindow(t *testing.T) {
	tr := Build(nil, now, 0)
	assert.Len(t, tr.VolumeData, DefaultWindow)
}

func TestBuild_VolumeAndPrice(t *testing.T) {
	day3 := time.Date(2027, 6, 3, 9, 0, 0, 0, time.UTC)
	day5 := time.Date(2027, 6, 5, 23, 59, 0, 0, time.UTC)

	tr := Build([]model.Purchase{
		purchase("CORN27", 100, "0.02", day3),               // 2
		purchase("WHEAT27", 300, "0.04", day3),              // 12
		purchase("CORN27", 50, "0.03", day5),                // 1.5
		purchase("CORN27", 999, "1", now),                   // today, excluded
		purchase("CORN27", 999, "1", now.AddDate(0, -2, 0)), // before window
	}, now, 10)

	// Window: 2027-06-01 .. 2027-06-10.
	require.Len(t, tr.VolumeData, 10)
	assert.Equal(t, "2027-06-01", tr.VolumeData[0].Date)
	assert.Equal(t, "2027-06-03", tr.VolumeData[2].Date)

	assert.True(t, tr.VolumeData[2].Value.Equal(d("14")), "volume %s", tr.VolumeData[2].Value)
	assert.True(t, tr.VolumeData[4].Value.Equal(d("1.5")))
	assert.True(t, tr.VolumeData[3].Value.IsZero())

	// VWAP on day 3: 14 / 400 = 0.035, backfilled to earlier days.
	assert.True(t, tr.PriceData[0].Value.Equal(d("0.035")), "price %s", tr.PriceData[0].Value)
	assert.True(t, tr.PriceData[2].Value.Equal(d("0.035")))
	// Carried forward on day 4, replaced on day 5.
	assert.True(t, tr.PriceData[3].Value.Equal(d("0.035")))
	assert.True(t, tr.PriceData[4].Value.Equal(d("0.03")))
	assert.True(t, tr.PriceData[9].Value.Equal(d("0.03")))
}

func TestBuild_PopularTokens(t *testing.T) {
	at := now.AddDate(0, 0, -1)
	tr := Build([]model.Purchase{
		purchase("RICE27", 10, "0.03", at),
		purchase("CORN27", 500, "0.02", at),
		purchase("SOY27", 200, "0.02", at),
		purchase("WHEAT27", 200, "0.02", at),
		purchase("SOY27", 1, "0.02", at.AddDate(0, 0, -2)),
	}, now, 30)

	assert.Equal(t, []string{"CORN27", "SOY27", "WHEAT27"}, tr.PopularTokens)
}

func TestBuild_Deterministic(t *testing.T) {
	ps := []model.Purchase{
		purchase("A", 5, "0.1", now.AddDate(0, 0, -3)),
		purchase("B", 5, "0.1", now.AddDate(0, 0, -3)),
	}
	assert.Equal(t, Build(ps, now, 7), Build(ps, now, 7))
	assert.Equal(t, []string{"A", "B"}, Build(ps, now, 7).PopularTokens)
}

func TestStart(t *testing.T) {
	assert.Equal(t, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC), Start(now, 10))
}
