// Package store defines the persistence interface for the yield exchange.
// Implementations include in-memory (default), PostgreSQL, and a Redis
// read-through cache that wraps either.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cropchain/yield-exchange/internal/model"
)

var (
	ErrNotFound           = errors.New("store: not found")
	ErrConflict           = errors.New("store: already exists")
	ErrInsufficientSupply = errors.New("store: insufficient available supply")
)

// Store is the persistence interface. Implementations must be safe for
// concurrent use.
type Store interface {
	// --- Token catalog ---

	// CreateToken persists a new token. Returns ErrConflict if the id is taken.
	CreateToken(ctx context.Context, token *model.Token) error

	// GetToken retrieves a token by its id.
	GetToken(ctx context.Context, id string) (*model.Token, error)

	// ListTokens returns all tokens in insertion order.
	ListTokens(ctx context.Context) ([]model.Token, error)

	// ListTokensByFarmer returns the tokens issued by one farmer.
	ListTokensByFarmer(ctx context.Context, farmerID string) ([]model.Token, error)

	// --- Immutable ledger ---

	// RecordPurchase decrements the token's available supply by the
	// purchased amount and appends the purchase to the ledger, atomically.
	// Returns the updated token, or ErrInsufficientSupply.
	RecordPurchase(ctx context.Context, p *model.Purchase) (*model.Token, error)

	// GetPurchasesByHolder returns a holder's purchases, oldest first.
	GetPurchasesByHolder(ctx context.Context, holderID string) ([]model.Purchase, error)

	// ListPurchasesSince returns every purchase at or after since, oldest first.
	ListPurchasesSince(ctx context.Context, since time.Time) ([]model.Purchase, error)

	// --- Holdings ---

	// GetHoldings aggregates a holder's purchases into one entry per token,
	// valued at the token's current price, in order of first purchase.
	GetHoldings(ctx context.Context, holderID string) ([]model.PortfolioEntry, error)
}
