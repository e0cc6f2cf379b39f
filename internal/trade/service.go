package trade

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/likeli/vault-engine/internal/amm"
	"github.com/likeli/vault-engine/internal/metrics"
	"github.com/likeli/vault-engine/internal/model"
	"github.com/likeli/vault-engine/internal/store"
)

// Service exposes the engine over HTTP. Exactly one mutating entry point
// exists (POST /trade); everything else is read-only.
type Service struct {
	store    store.Store
	executor *Executor
	ledger   *Ledger
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates the HTTP service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, ex *Executor, ledger *Ledger, hub *WSHub) *Service {
	return &Service{
		store:    st,
		executor: ex,
		ledger:   ledger,
		wsHub:    hub,
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for POST /api/v1/trade.
type TradeRequest struct {
	VaultID     string          `json:"vault_id"`
	MarketID    string          `json:"market_id"`
	MarketTitle string          `json:"market_title"`
	Side        string          `json:"side"`   // "YES" or "NO"
	Amount      decimal.Decimal `json:"amount"` // USDC notional
}

// CreateVaultRequest is the JSON body for POST /api/v1/vaults.
type CreateVaultRequest struct {
	Name        string          `json:"name"`
	CashBalance decimal.Decimal `json:"cash_balance"`
}

// MarketSummary is the pool view returned from GET /api/v1/markets.
type MarketSummary struct {
	MarketID    string          `json:"market_id"`
	PriceYes    decimal.Decimal `json:"price_yes"`
	PriceNo     decimal.Decimal `json:"price_no"`
	TotalVolume decimal.Decimal `json:"total_volume"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PositionView is a position marked to the current market price.
type PositionView struct {
	model.Position
	CurrentPrice  decimal.Decimal `json:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// VaultResponse is the vault view returned from the vault endpoints.
type VaultResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CashBalance   decimal.Decimal `json:"cash_balance"`
	Positions     []PositionView  `json:"positions"`
	TotalValue    decimal.Decimal `json:"total_value"` // cash + position value
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	CreatedAt     time.Time       `json:"created_at"`
}

// --- HTTP Handlers ---

// ExecuteTrade handles POST /api/v1/trade.
func (s *Service) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.VaultID == "" {
		writeError(w, "vault_id is required", http.StatusBadRequest)
		return
	}
	if req.MarketID == "" {
		writeError(w, "market_id is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	receipt, err := s.ledger.ExecuteTrade(r.Context(),
		req.VaultID, req.MarketID, req.MarketTitle, req.Side, req.Amount)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeError(w, err.Error(), statusForError(err))
		return
	}

	metrics.TradesTotal.WithLabelValues(receipt.Side).Inc()
	metrics.TradeLatency.WithLabelValues(receipt.Side).Observe(time.Since(start).Seconds())

	if s.wsHub != nil {
		priceYes := receipt.NewMarketPrice
		if receipt.Side == model.SideNo {
			priceYes = decimal.NewFromInt(1).Sub(receipt.NewMarketPrice)
		}
		s.wsHub.Broadcast(WSMessage{
			Type:        "trade_executed",
			MarketID:    receipt.MarketID,
			MarketTitle: req.MarketTitle,
			PriceYes:    priceYes.String(),
			PriceNo:     decimal.NewFromInt(1).Sub(priceYes).String(),
			Side:        receipt.Side,
			Amount:      req.Amount.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(receipt)
}

// GetPrice handles GET /api/v1/markets/{marketID}/price.
// Read-only, but lazily creates the pool and repairs degenerate state.
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	priceYes, err := s.executor.PriceOf(r.Context(), marketID, model.SideYes)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	resp := map[string]decimal.Decimal{
		"yes": priceYes,
		"no":  decimal.NewFromInt(1).Sub(priceYes),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListMarkets handles GET /api/v1/markets.
func (s *Service) ListMarkets(w http.ResponseWriter, r *http.Request) {
	pools, err := s.store.ListPools(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}

	summaries := make([]MarketSummary, 0, len(pools))
	for i := range pools {
		p := &pools[i]
		if amm.Validate(p) != nil {
			// Degenerate pools are repaired on their next trade or price
			// query; skip them here rather than reporting a bad price.
			continue
		}
		priceYes := amm.ImpliedYesPrice(p.YesReserve, p.NoReserve)
		summaries = append(summaries, MarketSummary{
			MarketID:    p.MarketID,
			PriceYes:    priceYes,
			PriceNo:     decimal.NewFromInt(1).Sub(priceYes),
			TotalVolume: p.TotalVolume,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	metrics.ActivePools.Set(float64(len(summaries)))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

// GetMarketHistory handles GET /api/v1/markets/{marketID}/history.
// Returns ledger entries to reconstruct price history.
func (s *Service) GetMarketHistory(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	entries, err := s.store.GetLedgerEntriesByMarket(r.Context(), marketID)
	if err != nil {
		writeError(w, "failed to get market history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// CreateVault handles POST /api/v1/vaults.
func (s *Service) CreateVault(w http.ResponseWriter, r *http.Request) {
	var req CreateVaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	vault, err := s.ledger.CreateVault(r.Context(), req.Name, req.CashBalance)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(vault)
}

// GetVault handles GET /api/v1/vaults/{vaultID}.
// Positions are marked to the current market price.
func (s *Service) GetVault(w http.ResponseWriter, r *http.Request) {
	vaultID := chi.URLParam(r, "vaultID")

	vault, err := s.ledger.GetVault(r.Context(), vaultID)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.vaultView(r, vault))
}

// ListVaults handles GET /api/v1/vaults.
func (s *Service) ListVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := s.store.ListVaults(r.Context())
	if err != nil {
		writeError(w, "failed to list vaults", http.StatusInternalServerError)
		return
	}

	views := make([]VaultResponse, 0, len(vaults))
	for i := range vaults {
		views = append(views, s.vaultView(r, &vaults[i]))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// vaultView marks a vault's positions to market using live pool prices.
func (s *Service) vaultView(r *http.Request, vault *model.Vault) VaultResponse {
	resp := VaultResponse{
		ID:            vault.ID,
		Name:          vault.Name,
		CashBalance:   vault.CashBalance,
		Positions:     make([]PositionView, 0, len(vault.Positions)),
		TotalValue:    vault.CashBalance,
		UnrealizedPnL: decimal.Zero,
		CreatedAt:     vault.CreatedAt,
	}

	for _, pos := range vault.Positions {
		price, err := s.executor.PriceOf(r.Context(), pos.MarketID, pos.Side)
		if err != nil {
			price = pos.AvgPrice // mark at cost when the pool is unreadable
		}
		value := pos.Shares.Mul(price)
		pnl := value.Sub(pos.CostBasis)

		resp.Positions = append(resp.Positions, PositionView{
			Position:      pos,
			CurrentPrice:  price,
			CurrentValue:  value,
			UnrealizedPnL: pnl,
		})
		resp.TotalValue = resp.TotalValue.Add(value)
		resp.UnrealizedPnL = resp.UnrealizedPnL.Add(pnl)
	}
	return resp
}

// --- Error mapping ---

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(err, ErrVaultNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrCorruptPoolState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, ErrVaultNotFound):
		return "vault_not_found"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrCorruptPoolState):
		return "corrupt_pool"
	default:
		return "store"
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
