package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/model"
)

// Store is the subset of store.Store the seeder writes to.
type Store interface {
	CreateToken(ctx context.Context, token *model.Token) error
	ListTokens(ctx context.Context) ([]model.Token, error)
	RecordPurchase(ctx context.Context, p *model.Purchase) (*model.Token, error)
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// SeedTokens returns the demo catalog offerings.
func SeedTokens() []model.Token {
	return []model.Token{
		{
			ID: "corn-2027-01", Name: "Midwest Corn Yield 2027", Symbol: "CORN27",
			CropType: "Corn", ProjectedYield: 180, Price: price("0.025"),
			FarmerID: "farmer-01", HarvestDate: "2027-09-15", RiskLevel: model.RiskLow,
			Location: "Iowa, USA", Image: "/corn.jpg",
			TotalSupply: 10000, AvailableSupply: 7900,
		},
		{
			ID: "wheat-2027-01", Name: "Kansas Wheat Yield 2027", Symbol: "WHEAT27",
			CropType: "Wheat", ProjectedYield: 80, Price: price("0.018"),
			FarmerID: "farmer-02", HarvestDate: "2027-07-20", RiskLevel: model.RiskMedium,
			Location: "Kansas, USA", Image: "/wheat.jpg",
			TotalSupply: 8000, AvailableSupply: 3450,
		},
		{
			ID: "soy-2027-01", Name: "Illinois Soybean Yield 2027", Symbol: "SOY27",
			CropType: "Soybean", ProjectedYield: 65, Price: price("0.022"),
			FarmerID: "farmer-03", HarvestDate: "2027-10-05", RiskLevel: model.RiskLow,
			Location: "Illinois, USA", Image: "/soybean.jpg",
			TotalSupply: 15000, AvailableSupply: 10700,
		},
		{
			ID: "rice-2027-01", Name: "California Rice Yield 2027", Symbol: "RICE27",
			CropType: "Rice", ProjectedYield: 95, Price: price("0.032"),
			FarmerID: "farmer-04", HarvestDate: "2027-08-30", RiskLevel: model.RiskMedium,
			Location: "California, USA", Image: "/rice.jpg",
			TotalSupply: 5000, AvailableSupply: 2100,
		},
		{
			ID: "cotton-2027-01", Name: "Texas Cotton Yield 2027", Symbol: "CTTN27",
			CropType: "Cotton", ProjectedYield: 110, Price: price("0.027"),
			FarmerID: "farmer-05", HarvestDate: "2027-11-10", RiskLevel: model.RiskHigh,
			Location: "Texas, USA", Image: "/cotton.jpg",
			TotalSupply: 7000, AvailableSupply: 4600,
		},
	}
}

// demoPurchase is a past purchase replayed into the ledger at seed time.
type demoPurchase struct {
	tokenID string
	amount  int64
	daysAgo int
}

var demoPurchases = []demoPurchase{
	{"soy-2027-01", 600, 20},
	{"corn-2027-01", 250, 12},
	{"wheat-2027-01", 250, 9},
	{"corn-2027-01", 150, 4},
	{"soy-2027-01", 300, 2},
}

// Seed loads the demo catalog and the demo holder's past purchases into an
// empty store. A store that already lists tokens is left untouched.
func Seed(ctx context.Context, st Store, holderID string, now time.Time) error {
	existing, err := st.ListTokens(ctx)
	if err != nil {
		return fmt.Errorf("seed: list tokens: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("store already populated, skipping fixtures", "tokens", len(existing))
		return nil
	}

	tokens := SeedTokens()
	byID := make(map[string]model.Token, len(tokens))
	for i := range tokens {
		tokens[i].CreatedAt = now.AddDate(0, 0, -30)
		if err := st.CreateToken(ctx, &tokens[i]); err != nil {
			return fmt.Errorf("seed: create %s: %w", tokens[i].ID, err)
		}
		byID[tokens[i].ID] = tokens[i]
	}

	if holderID == "" {
		slog.Info("fixtures seeded", "tokens", len(tokens))
		return nil
	}

	for i, dp := range demoPurchases {
		t := byID[dp.tokenID]
		p := &model.Purchase{
			ID:        fmt.Sprintf("seed-%02d", i+1),
			HolderID:  holderID,
			TokenID:   t.ID,
			Symbol:    t.Symbol,
			Amount:    dp.amount,
			Price:     t.Price,
			Cost:      t.Price.Mul(decimal.NewFromInt(dp.amount)),
			Timestamp: now.UTC().AddDate(0, 0, -dp.daysAgo),
		}
		if _, err := st.RecordPurchase(ctx, p); err != nil {
			return fmt.Errorf("seed: purchase %s: %w", p.ID, err)
		}
	}

	slog.Info("fixtures seeded",
		"tokens", len(tokens),
		"holder", holderID,
		"purchases", len(demoPurchases),
	)
	return nil
}
