package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cropchain/yield-exchange/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and invalidate the cache; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateToken(ctx context.Context, t *model.Token) error {
	if err := s.primary.CreateToken(ctx, t); err != nil {
		return err
	}
	s.rdb.Del(ctx, catalogKey, farmerKey(t.FarmerID))
	s.cacheToken(ctx, t)
	return nil
}

func (s *CachedStore) RecordPurchase(ctx context.Context, p *model.Purchase) (*model.Token, error) {
	t, err := s.primary.RecordPurchase(ctx, p)
	if err != nil {
		return nil, err
	}
	// Supply changed: every cached view of this token is stale.
	s.rdb.Del(ctx, catalogKey, farmerKey(t.FarmerID), holdingsKey(p.HolderID))
	s.cacheToken(ctx, t)
	return t, nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetToken(ctx context.Context, id string) (*model.Token, error) {
	var t model.Token
	if s.load(ctx, tokenKey(id), &t) {
		return &t, nil
	}

	tok, err := s.primary.GetToken(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheToken(ctx, tok)
	return tok, nil
}

func (s *CachedStore) ListTokens(ctx context.Context) ([]model.Token, error) {
	var tokens []model.Token
	if s.load(ctx, catalogKey, &tokens) {
		return tokens, nil
	}

	tokens, err := s.primary.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, catalogKey, tokens)
	return tokens, nil
}

func (s *CachedStore) ListTokensByFarmer(ctx context.Context, farmerID string) ([]model.Token, error) {
	var tokens []model.Token
	if s.load(ctx, farmerKey(farmerID), &tokens) {
		return tokens, nil
	}

	tokens, err := s.primary.ListTokensByFarmer(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, farmerKey(farmerID), tokens)
	return tokens, nil
}

// GetHoldings is cached per holder. Holdings embed token prices and
// supplies, so the entry expires with the TTL even without a purchase by
// this holder.
func (s *CachedStore) GetHoldings(ctx context.Context, holderID string) ([]model.PortfolioEntry, error) {
	var entries []model.PortfolioEntry
	if s.load(ctx, holdingsKey(holderID), &entries) {
		return entries, nil
	}

	entries, err := s.primary.GetHoldings(ctx, holderID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, holdingsKey(holderID), entries)
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) GetPurchasesByHolder(ctx context.Context, holderID string) ([]model.Purchase, error) {
	return s.primary.GetPurchasesByHolder(ctx, holderID)
}

func (s *CachedStore) ListPurchasesSince(ctx context.Context, since time.Time) ([]model.Purchase, error) {
	return s.primary.ListPurchasesSince(ctx, since)
}

// --- Cache helpers ---

func (s *CachedStore) cacheToken(ctx context.Context, t *model.Token) {
	s.store(ctx, tokenKey(t.ID), t)
}

func (s *CachedStore) store(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

// load reports whether key was cached and decoded into dst.
func (s *CachedStore) load(ctx context.Context, key string, dst any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

const catalogKey = "catalog:tokens"

func tokenKey(id string) string    { return fmt.Sprintf("token:%s", id) }
func farmerKey(id string) string   { return fmt.Sprintf("farmer:%s:tokens", id) }
func holdingsKey(id string) string { return fmt.Sprintf("holdings:%s", id) }
