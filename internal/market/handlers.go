package market

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"

	"github.com/cropchain/yield-exchange/internal/catalog"
	"github.com/cropchain/yield-exchange/internal/issuance"
	"github.com/cropchain/yield-exchange/internal/model"
	"github.com/cropchain/yield-exchange/internal/purchase"
	"github.com/cropchain/yield-exchange/internal/store"
	"github.com/cropchain/yield-exchange/internal/wallet"
)

// Routes mounts the API handlers on r. The WebSocket endpoint is mounted
// when a hub is configured.
func (s *Service) Routes(r chi.Router) {
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}

	r.Get("/tokens", s.ListTokens)
	r.Post("/tokens", s.CreateTokenHandler)
	r.Get("/tokens/defaults", s.DraftDefaults)
	r.Get("/tokens/{tokenID}", s.GetToken)

	r.Post("/purchases", s.PurchaseHandler)

	r.Get("/portfolio/{holderID}", s.GetPortfolio)
	r.Get("/portfolio/{holderID}/purchases", s.GetPurchaseHistory)
	r.Get("/farmers/{farmerID}/summary", s.GetIssuerSummary)

	r.Get("/trends", s.GetTrends)

	r.Get("/wallet", s.GetWallet)
	r.Post("/wallet/connect", s.ConnectWalletHandler)
	r.Post("/wallet/disconnect", s.DisconnectWalletHandler)
	r.Get("/contracts", s.GetContracts)
}

// --- Catalog ---

// ListTokens handles GET /api/v1/tokens
// Query parameters: search, cropType, riskLevel, sortBy, sortOrder.
func (s *Service) ListTokens(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	sortBy, err := catalog.ParseSortKey(params.Get("sortBy"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	order, err := catalog.ParseSortOrder(params.Get("sortOrder"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := catalog.DefaultQuery()
	q.Search = params.Get("search")
	if v := params.Get("cropType"); v != "" {
		q.CropType = v
	}
	if v := params.Get("riskLevel"); v != "" {
		q.RiskLevel = v
	}
	q.SortBy = sortBy
	q.Order = order

	view, err := s.Browse(r.Context(), q)
	if err != nil {
		writeError(w, "catalog unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// GetToken handles GET /api/v1/tokens/{tokenID}
func (s *Service) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.Token(r.Context(), chi.URLParam(r, "tokenID"))
	if err != nil {
		writeStoreError(w, err, "token not found")
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// --- Issuance ---

// DraftDefaults handles GET /api/v1/tokens/defaults
func (s *Service) DraftDefaults(w http.ResponseWriter, r *http.Request) {
	draft := issuance.DefaultDraft(s.now())
	if addr, ok := s.wallet.Address(); ok {
		draft.FarmerID = addr
	}
	writeJSON(w, http.StatusOK, draft)
}

// CreateTokenHandler handles POST /api/v1/tokens
func (s *Service) CreateTokenHandler(w http.ResponseWriter, r *http.Request) {
	var draft model.TokenDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.CreateToken(r.Context(), draft)
	switch {
	case errors.Is(err, ErrWalletNotConnected):
		writeError(w, err.Error(), http.StatusUnauthorized)
		return
	case errors.Is(err, issuance.ErrInvalidDraft):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		writeStoreError(w, err, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

// --- Purchases ---

// purchaseBody accepts any JSON number for amount so fractional amounts are
// rejected by validation rather than by the decoder.
type purchaseBody struct {
	HolderID string          `json:"holderId"`
	TokenID  string          `json:"tokenId"`
	Amount   decimal.Decimal `json:"amount"`
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Validate checks the amount before it is narrowed to int64. It returns the
// purchase sentinel the amount violates.
func (b purchaseBody) Validate() error {
	return validation.Validate(b.Amount, validation.By(func(value interface{}) error {
		amount, _ := value.(decimal.Decimal)
		switch {
		case !amount.IsInteger() || !amount.IsPositive():
			return purchase.ErrInvalidAmount
		case amount.GreaterThan(maxAmount):
			return purchase.ErrExceedsSupply
		}
		return nil
	}))
}

// PurchaseHandler handles POST /api/v1/purchases
// Responds 200 completed, 422 validation_rejected, 409 transaction_declined
// and 502 network_error, always with the tagged result as the body.
func (s *Service) PurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var body purchaseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.TokenID == "" {
		writeError(w, "tokenId is required", http.StatusBadRequest)
		return
	}
	if err := body.Validate(); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, purchase.Rejected(err))
		return
	}

	res, err := s.Purchase(r.Context(), PurchaseRequest{
		HolderID: body.HolderID,
		TokenID:  body.TokenID,
		Amount:   body.Amount.IntPart(),
	})
	if err != nil {
		writeStoreError(w, err, "token not found")
		return
	}

	writeJSON(w, outcomeStatus(res.Outcome), res)
}

func outcomeStatus(o purchase.Outcome) int {
	switch o {
	case purchase.Completed:
		return http.StatusOK
	case purchase.ValidationRejected:
		return http.StatusUnprocessableEntity
	case purchase.TransactionDeclined:
		return http.StatusConflict
	case purchase.NetworkError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// --- Portfolio ---

// GetPortfolio handles GET /api/v1/portfolio/{holderID}
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Portfolio(r.Context(), chi.URLParam(r, "holderID"))
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetPurchaseHistory handles GET /api/v1/portfolio/{holderID}/purchases
func (s *Service) GetPurchaseHistory(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.PurchaseHistory(r.Context(), chi.URLParam(r, "holderID"))
	if err != nil {
		writeError(w, "failed to load purchases", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

// GetIssuerSummary handles GET /api/v1/farmers/{farmerID}/summary
func (s *Service) GetIssuerSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.IssuerSummary(r.Context(), chi.URLParam(r, "farmerID"))
	if err != nil {
		writeError(w, "failed to load farmer summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetTrends handles GET /api/v1/trends
func (s *Service) GetTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := s.Trends(r.Context())
	if err != nil {
		writeError(w, "failed to load market trends", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

// --- Wallet ---

// GetWallet handles GET /api/v1/wallet
func (s *Service) GetWallet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Wallet())
}

// ConnectWalletHandler handles POST /api/v1/wallet/connect
func (s *Service) ConnectWalletHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.ConnectWallet(r.Context())
	if err != nil {
		writeError(w, "wallet connection failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DisconnectWalletHandler handles POST /api/v1/wallet/disconnect
func (s *Service) DisconnectWalletHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.DisconnectWallet())
}

// GetContracts handles GET /api/v1/contracts
func (s *Service) GetContracts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, wallet.MockContracts)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps store sentinels to status codes.
func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, notFound, http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}
