package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropchain/yield-exchange/internal/model"
)

var t0 = time.Date(2027, 6, 1, 12, 0, 0, 0, time.UTC)

func newToken(id, farmer string, available int64) *model.Token {
	return &model.Token{
		ID:              id,
		Symbol:          id,
		FarmerID:        farmer,
		Price:           decimal.RequireFromString("0.025"),
		TotalSupply:     1000,
		AvailableSupply: available,
	}
}

func buy(id, holder, token string, amount int64, at time.Time) *model.Purchase {
	return &model.Purchase{ID: id, HolderID: holder, TokenID: token, Amount: amount, Timestamp: at}
}

func TestMemoryStore_Tokens(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateToken(ctx, newToken("b", "f1", 10)))
	require.NoError(t, s.CreateToken(ctx, newToken("a", "f2", 10)))
	require.NoError(t, s.CreateToken(ctx, newToken("c", "f1", 10)))

	err := s.CreateToken(ctx, newToken("a", "f3", 10))
	assert.ErrorIs(t, err, ErrConflict)

	tokens, err := s.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{tokens[0].ID, tokens[1].ID, tokens[2].ID})

	byFarmer, err := s.ListTokensByFarmer(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, byFarmer, 2)

	none, err := s.ListTokensByFarmer(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = s.GetToken(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tok := newToken("a", "f1", 10)
	require.NoError(t, s.CreateToken(ctx, tok))

	tok.Name = "mutated"
	got, err := s.GetToken(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got.Name)

	got.AvailableSupply = 0
	again, _ := s.GetToken(ctx, "a")
	assert.Equal(t, int64(10), again.AvailableSupply)
}

func TestMemoryStore_RecordPurchase(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateToken(ctx, newToken("corn", "f1", 100)))

	updated, err := s.RecordPurchase(ctx, buy("p1", "alice", "corn", 40, t0))
	require.NoError(t, err)
	assert.Equal(t, int64(60), updated.AvailableSupply)

	_, err = s.RecordPurchase(ctx, buy("p2", "alice", "corn", 61, t0))
	assert.ErrorIs(t, err, ErrInsufficientSupply)

	_, err = s.RecordPurchase(ctx, buy("p3", "alice", "ghost", 1, t0))
	assert.ErrorIs(t, err, ErrNotFound)

	// Rejected purchases leave no trace.
	purchases, err := s.GetPurchasesByHolder(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, purchases, 1)

	tok, _ := s.GetToken(ctx, "corn")
	assert.Equal(t, int64(60), tok.AvailableSupply)
}

func TestMemoryStore_RecordPurchase_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateToken(ctx, newToken("corn", "f1", 50)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.RecordPurchase(ctx, buy("p", "h", "corn", 1, t0)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, ok)
	tok, _ := s.GetToken(ctx, "corn")
	assert.Zero(t, tok.AvailableSupply)
}

func TestMemoryStore_Holdings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateToken(ctx, newToken("corn", "f1", 1000)))
	require.NoError(t, s.CreateToken(ctx, newToken("wheat", "f2", 1000)))

	_, err := s.RecordPurchase(ctx, buy("1", "alice", "wheat", 10, t0))
	require.NoError(t, err)
	_, err = s.RecordPurchase(ctx, buy("2", "alice", "corn", 5, t0))
	require.NoError(t, err)
	_, err = s.RecordPurchase(ctx, buy("3", "bob", "corn", 7, t0))
	require.NoError(t, err)
	_, err = s.RecordPurchase(ctx, buy("4", "alice", "wheat", 15, t0))
	require.NoError(t, err)

	holdings, err := s.GetHoldings(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "wheat", holdings[0].ID)
	assert.Equal(t, int64(25), holdings[0].Amount)
	assert.Equal(t, "corn", holdings[1].ID)
	assert.Equal(t, int64(5), holdings[1].Amount)
	// Live supply, not the supply at purchase time.
	assert.Equal(t, int64(975), holdings[0].AvailableSupply)

	empty, err := s.GetHoldings(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryStore_ListPurchasesSince(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateToken(ctx, newToken("corn", "f1", 1000)))

	for i, at := range []time.Time{t0.Add(-48 * time.Hour), t0, t0.Add(time.Hour)} {
		_, err := s.RecordPurchase(ctx, buy(string(rune('a'+i)), "h", "corn", 1, at))
		require.NoError(t, err)
	}

	got, err := s.ListPurchasesSince(ctx, t0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
