// Package market provides the business logic and HTTP handlers for
// browsing the token catalog, issuing tokens, purchasing them, and
// querying portfolios and marketplace trends.
//
// All monetary values use shopspring/decimal, never float64.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/catalog"
	"github.com/cropchain/yield-exchange/internal/correlation"
	"github.com/cropchain/yield-exchange/internal/issuance"
	"github.com/cropchain/yield-exchange/internal/metrics"
	"github.com/cropchain/yield-exchange/internal/model"
	"github.com/cropchain/yield-exchange/internal/portfolio"
	"github.com/cropchain/yield-exchange/internal/purchase"
	"github.com/cropchain/yield-exchange/internal/store"
	"github.com/cropchain/yield-exchange/internal/trends"
	"github.com/cropchain/yield-exchange/internal/wallet"
)

var (
	ErrWalletNotConnected = errors.New("market: wallet not connected")
	ErrCatalogUnavailable = errors.New("market: catalog unavailable")
)

// staleNotice accompanies a catalog served from the last-known snapshot.
const staleNotice = "Showing the last known listings; the catalog could not be refreshed."

// Service handles marketplace operations. Purchases are serialized by a
// mutex (single instance); catalog reads never take it.
type Service struct {
	store        store.Store
	limiter      *correlation.PositionLimiter
	settlement   purchase.Settlement
	wallet       *wallet.Session
	wsHub        *WSHub // optional WebSocket hub for real-time broadcasts
	now          func() time.Time
	trendsWindow int

	mu sync.Mutex

	snapMu   sync.RWMutex
	snapshot []model.Token
	snapAt   time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHub broadcasts purchase and issuance events through h.
func WithHub(h *WSHub) Option {
	return func(s *Service) { s.wsHub = h }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTrendsWindow sets the number of days covered by Trends.
func WithTrendsWindow(days int) Option {
	return func(s *Service) { s.trendsWindow = days }
}

// NewService creates a new market service.
func NewService(st store.Store, limiter *correlation.PositionLimiter, settlement purchase.Settlement, session *wallet.Session, opts ...Option) *Service {
	s := &Service{
		store:        st,
		limiter:      limiter,
		settlement:   settlement,
		wallet:       session,
		now:          time.Now,
		trendsWindow: trends.DefaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Catalog ---

// CatalogSnapshot is the full token list as last fetched.
type CatalogSnapshot struct {
	Tokens    []model.Token `json:"tokens"`
	Stale     bool          `json:"stale"`
	Notice    string        `json:"notice,omitempty"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// CatalogView is a filtered and sorted page of the catalog.
type CatalogView struct {
	Tokens []model.Token  `json:"tokens"`
	Total  int            `json:"total"`
	Query  catalog.Query  `json:"query"`
	Facets catalog.Facets `json:"facets"`
	Stale  bool           `json:"stale"`
	Notice string         `json:"notice,omitempty"`
}

// Catalog fetches the token list. When the store fails and an earlier
// fetch succeeded, that snapshot is returned marked stale.
func (s *Service) Catalog(ctx context.Context) (CatalogSnapshot, error) {
	tokens, err := s.store.ListTokens(ctx)
	if err == nil {
		at := s.now().UTC()
		s.snapMu.Lock()
		s.snapshot = tokens
		s.snapAt = at
		s.snapMu.Unlock()
		metrics.ListedTokens.Set(float64(len(tokens)))
		return CatalogSnapshot{Tokens: tokens, FetchedAt: at}, nil
	}

	s.snapMu.RLock()
	snap, at := s.snapshot, s.snapAt
	s.snapMu.RUnlock()

	if snap == nil {
		slog.Error("catalog fetch failed", "err", err)
		return CatalogSnapshot{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	metrics.CatalogFallbacks.Inc()
	slog.Warn("catalog fetch failed, serving last known snapshot",
		"err", err,
		"snapshot_at", at,
		"tokens", len(snap),
	)
	return CatalogSnapshot{Tokens: snap, Stale: true, Notice: staleNotice, FetchedAt: at}, nil
}

// Browse fetches the catalog and applies q to it.
func (s *Service) Browse(ctx context.Context, q catalog.Query) (CatalogView, error) {
	snap, err := s.Catalog(ctx)
	if err != nil {
		return CatalogView{}, err
	}
	tokens := catalog.Apply(snap.Tokens, q)
	metrics.CatalogQueries.WithLabelValues(string(normalizedSort(q))).Inc()

	return CatalogView{
		Tokens: tokens,
		Total:  len(snap.Tokens),
		Query:  q,
		Facets: catalog.BuildFacets(snap.Tokens),
		Stale:  snap.Stale,
		Notice: snap.Notice,
	}, nil
}

func normalizedSort(q catalog.Query) catalog.SortKey {
	if k, err := catalog.ParseSortKey(string(q.SortBy)); err == nil {
		return k
	}
	return catalog.SortDate
}

// Token returns one token by id.
func (s *Service) Token(ctx context.Context, id string) (*model.Token, error) {
	return s.store.GetToken(ctx, id)
}

// --- Issuance ---

// CreateToken normalizes, validates and persists a farmer's draft under a
// fresh id. An empty FarmerID is filled from the connected wallet.
func (s *Service) CreateToken(ctx context.Context, draft model.TokenDraft) (*model.Token, error) {
	draft = issuance.Normalize(draft)
	if draft.FarmerID == "" {
		addr, ok := s.wallet.Address()
		if !ok {
			return nil, ErrWalletNotConnected
		}
		draft.FarmerID = addr
	}
	if err := issuance.ValidateDraft(draft); err != nil {
		return nil, err
	}

	token := draft.Token(issuance.NewTokenID(draft.CropType), s.now().UTC())
	if err := s.store.CreateToken(ctx, &token); err != nil {
		return nil, err
	}

	metrics.TokensCreated.Inc()
	slog.Info("token created",
		"id", token.ID,
		"symbol", token.Symbol,
		"farmer", token.FarmerID,
		"supply", token.TotalSupply,
		"price", token.Price.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:            "token_created",
			TokenID:         token.ID,
			Symbol:          token.Symbol,
			Price:           token.Price.String(),
			AvailableSupply: token.AvailableSupply,
		})
	}
	return &token, nil
}

// --- Purchases ---

// PurchaseRequest is the JSON body for POST /purchases. An empty HolderID
// means the connected wallet.
type PurchaseRequest struct {
	HolderID string `json:"holderId,omitempty"`
	TokenID  string `json:"tokenId"`
	Amount   int64  `json:"amount"`
}

// Purchase runs one purchase: validation, holding limits, settlement and,
// on success, the supply decrement and ledger append. Only a missing token
// or a store failure is returned as an error; every other outcome is in
// the Result.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (purchase.Result, error) {
	start := time.Now()
	res, err := s.purchase(ctx, req)
	if err == nil {
		metrics.PurchasesTotal.WithLabelValues(string(res.Outcome)).Inc()
		metrics.PurchaseLatency.WithLabelValues(string(res.Outcome)).Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (s *Service) purchase(ctx context.Context, req PurchaseRequest) (purchase.Result, error) {
	holder := req.HolderID
	if holder == "" {
		addr, ok := s.wallet.Address()
		if !ok {
			return purchase.Rejected(ErrWalletNotConnected), nil
		}
		holder = addr
	}

	// Serialize purchase execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.store.GetToken(ctx, req.TokenID)
	if err != nil {
		return purchase.Result{}, err
	}

	if err := purchase.Validate(req.Amount, token.AvailableSupply); err != nil {
		slog.Info("purchase rejected", "token", token.ID, "holder", holder, "amount", req.Amount, "reason", err)
		return purchase.Rejected(err), nil
	}

	// --- Holding limit check ---
	holdings, err := s.store.GetHoldings(ctx, holder)
	if err != nil {
		return purchase.Result{}, fmt.Errorf("load holdings: %w", err)
	}
	if err := s.limiter.CheckLimit(*token, req.Amount, holdings); err != nil {
		slog.Info("purchase rejected", "token", token.ID, "holder", holder, "amount", req.Amount, "reason", err)
		return purchase.Rejected(err), nil
	}

	// --- Settlement ---
	res := purchase.Settle(ctx, s.settlement, token.ID, req.Amount)
	if !res.OK() {
		slog.Warn("purchase not settled",
			"token", token.ID,
			"holder", holder,
			"amount", req.Amount,
			"outcome", res.Outcome,
			"reason", res.Reason,
		)
		return res, nil
	}

	// Settled: record the immutable ledger entry and the supply decrement.
	entry := &model.Purchase{
		ID:        uuid.New().String(),
		HolderID:  holder,
		TokenID:   token.ID,
		Symbol:    token.Symbol,
		Amount:    req.Amount,
		Price:     token.Price,
		Cost:      token.Price.Mul(decimal.NewFromInt(req.Amount)),
		Timestamp: s.now().UTC(),
	}
	updated, err := s.store.RecordPurchase(ctx, entry)
	if errors.Is(err, store.ErrInsufficientSupply) {
		slog.Error("settled purchase could not be recorded", "token", token.ID, "holder", holder, "err", err)
		return purchase.Rejected(purchase.ErrExceedsSupply), nil
	}
	if err != nil {
		return purchase.Result{}, fmt.Errorf("record purchase: %w", err)
	}

	res.Purchase = entry
	res.Token = updated

	metrics.UnitsPurchased.WithLabelValues(token.ID).Add(float64(req.Amount))
	slog.Info("purchase completed",
		"purchase_id", entry.ID,
		"holder", holder,
		"token", token.ID,
		"amount", req.Amount,
		"cost", entry.Cost.String(),
		"available", updated.AvailableSupply,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:            "purchase_completed",
			TokenID:         token.ID,
			Symbol:          token.Symbol,
			Price:           token.Price.String(),
			Amount:          req.Amount,
			AvailableSupply: updated.AvailableSupply,
		})
	}
	return res, nil
}

// PurchaseHistory returns a holder's purchases, oldest first.
func (s *Service) PurchaseHistory(ctx context.Context, holderID string) ([]model.Purchase, error) {
	return s.store.GetPurchasesByHolder(ctx, holderID)
}

// --- Portfolio and issuer views ---

// Portfolio aggregates a holder's holdings.
func (s *Service) Portfolio(ctx context.Context, holderID string) (portfolio.Summary, error) {
	holdings, err := s.store.GetHoldings(ctx, holderID)
	if err != nil {
		return portfolio.Summary{}, err
	}
	return portfolio.Aggregate(holdings, s.now()), nil
}

// IssuerSummary summarizes the tokens a farmer has issued.
func (s *Service) IssuerSummary(ctx context.Context, farmerID string) (portfolio.IssuerSummary, error) {
	tokens, err := s.store.ListTokensByFarmer(ctx, farmerID)
	if err != nil {
		return portfolio.IssuerSummary{}, err
	}
	return portfolio.SummarizeIssuer(farmerID, tokens, s.now()), nil
}

// Trends builds the marketplace trend series from the ledger.
func (s *Service) Trends(ctx context.Context) (model.MarketTrends, error) {
	now := s.now()
	purchases, err := s.store.ListPurchasesSince(ctx, trends.Start(now, s.trendsWindow))
	if err != nil {
		return model.MarketTrends{}, err
	}
	return trends.Build(purchases, now, s.trendsWindow), nil
}

// --- Wallet ---

// ConnectWallet connects the service's wallet session.
func (s *Service) ConnectWallet(ctx context.Context) (model.WalletState, error) {
	st, err := s.wallet.Connect(ctx)
	if err != nil {
		slog.Warn("wallet connect failed", "err", err)
		return st, err
	}
	slog.Info("wallet connected", "address", st.Address, "network", st.Network)
	return st, nil
}

// DisconnectWallet resets the wallet session.
func (s *Service) DisconnectWallet() model.WalletState {
	s.wallet.Disconnect()
	slog.Info("wallet disconnected")
	return s.wallet.State()
}

// Wallet returns the current wallet state.
func (s *Service) Wallet() model.WalletState {
	return s.wallet.State()
}
