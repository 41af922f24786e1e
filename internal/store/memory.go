package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cropchain/yield-exchange/internal/model"
)

// MemoryStore implements Store with in-memory maps. It is the default
// store; data does not survive a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*model.Token
	order  []string
	ledger []model.Purchase
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*model.Token),
	}
}

func (s *MemoryStore) CreateToken(_ context.Context, t *model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[t.ID]; ok {
		return fmt.Errorf("token %s: %w", t.ID, ErrConflict)
	}

	// Store a copy to avoid external mutation.
	cp := *t
	s.tokens[t.ID] = &cp
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryStore) GetToken(_ context.Context, id string) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTokens(_ context.Context) ([]model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]model.Token, 0, len(s.order))
	for _, id := range s.order {
		tokens = append(tokens, *s.tokens[id])
	}
	return tokens, nil
}

func (s *MemoryStore) ListTokensByFarmer(_ context.Context, farmerID string) ([]model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := []model.Token{}
	for _, id := range s.order {
		if t := s.tokens[id]; t.FarmerID == farmerID {
			tokens = append(tokens, *t)
		}
	}
	return tokens, nil
}

func (s *MemoryStore) RecordPurchase(_ context.Context, p *model.Purchase) (*model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[p.TokenID]
	if !ok {
		return nil, fmt.Errorf("token %s: %w", p.TokenID, ErrNotFound)
	}
	if p.Amount <= 0 || p.Amount > t.AvailableSupply {
		return nil, fmt.Errorf("token %s: %w", p.TokenID, ErrInsufficientSupply)
	}

	t.AvailableSupply -= p.Amount
	s.ledger = append(s.ledger, *p)

	cp := *t
	return &cp, nil
}

func (s *MemoryStore) GetPurchasesByHolder(_ context.Context, holderID string) ([]model.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.Purchase{}
	for _, p := range s.ledger {
		if p.HolderID == holderID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryStore) ListPurchasesSince(_ context.Context, since time.Time) ([]model.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.Purchase{}
	for _, p := range s.ledger {
		if !p.Timestamp.Before(since) {
			result = append(result, p)
		}
	}
	return result, nil
}

// GetHoldings aggregates ledger entries into holdings per token, valued
// with the live token record.
func (s *MemoryStore) GetHoldings(_ context.Context, holderID string) ([]model.PortfolioEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	amounts := make(map[string]int64)
	var order []string

	// Single lock, no re-entrant calls.
	for _, p := range s.ledger {
		if p.HolderID != holderID {
			continue
		}
		if _, seen := amounts[p.TokenID]; !seen {
			order = append(order, p.TokenID)
		}
		amounts[p.TokenID] += p.Amount
	}

	entries := make([]model.PortfolioEntry, 0, len(order))
	for _, id := range order {
		t, ok := s.tokens[id] // direct access, already under RLock
		if !ok {
			continue
		}
		entries = append(entries, model.PortfolioEntry{Token: *t, Amount: amounts[id]})
	}
	return entries, nil
}
