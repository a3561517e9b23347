package trade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/asset"
	"github.com/finsim/market-engine/internal/equity"
	"github.com/finsim/market-engine/internal/ledger"
	"github.com/finsim/market-engine/internal/model"
	"github.com/finsim/market-engine/internal/pool"
	"github.com/finsim/market-engine/internal/store"
)

// Principal headers set by the identity provider in front of the service.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

type principalKey struct{}

// Handler exposes a Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the API on r. Routes that act for a user require the
// principal headers.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/assets", h.ListAssets)
	r.Get("/assets/{ticker}", h.GetAsset)
	r.Get("/assets/{ticker}/news", h.GetNews)
	r.Get("/companies", h.ListCompanies)
	r.Get("/markets", h.ListMarkets)
	r.Get("/companies/{companyID}", h.GetCompany)
	r.Get("/markets/{marketID}", h.GetMarket)

	r.Group(func(r chi.Router) {
		r.Use(RequirePrincipal)
		r.Post("/accounts", h.EnsureAccount)
		r.Get("/portfolio", h.GetPortfolio)
		r.Get("/transactions", h.GetTransactions)
		r.Get("/pnl", h.GetRealizedPnL)
		r.Post("/trades/buy", h.Buy)
		r.Post("/trades/sell", h.Sell)
		r.Post("/companies", h.CreateCompany)
		r.Post("/companies/{companyID}/invest", h.Invest)
		r.Post("/markets", h.CreateMarket)
		r.Post("/markets/generate", h.GenerateMarket)
		r.Post("/markets/{marketID}/bets", h.PlaceBet)
	})
}

// RequirePrincipal resolves the acting user from request headers and
// rejects the request with 401 when it is missing.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := model.Principal{
			UserID:      strings.TrimSpace(r.Header.Get(HeaderUserID)),
			DisplayName: strings.TrimSpace(r.Header.Get(HeaderUserName)),
		}
		if p.UserID == "" {
			writeError(w, "missing "+HeaderUserID+" header", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// PrincipalFrom returns the principal stored by RequirePrincipal.
func PrincipalFrom(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(model.Principal)
	return p, ok
}

// tickerParam returns the {ticker} path segment. Forex pairs arrive
// escaped, e.g. EUR%2FUSD.
func tickerParam(r *http.Request) string {
	raw := chi.URLParam(r, "ticker")
	if t, err := url.PathUnescape(raw); err == nil {
		return t
	}
	return raw
}

func principal(r *http.Request) model.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// --- HTTP Handlers ---

// ListAssets handles GET /api/v1/assets
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.svc.ListAssets(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// GetAsset handles GET /api/v1/assets/{ticker}
func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAsset(r.Context(), tickerParam(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetNews handles GET /api/v1/assets/{ticker}/news
func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	news, err := h.svc.News(r.Context(), tickerParam(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, news)
}

// EnsureAccount handles POST /api/v1/accounts
func (h *Handler) EnsureAccount(w http.ResponseWriter, r *http.Request) {
	u, created, err := h.svc.EnsureAccount(r.Context(), principal(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, u)
}

// GetPortfolio handles GET /api/v1/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Portfolio(r.Context(), principal(r).UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetTransactions handles GET /api/v1/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.Transactions(r.Context(), principal(r).UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// GetRealizedPnL handles GET /api/v1/pnl
func (h *Handler) GetRealizedPnL(w http.ResponseWriter, r *http.Request) {
	lines, err := h.svc.RealizedPnL(r.Context(), principal(r).UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

// Buy handles POST /api/v1/trades/buy
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	res, err := h.svc.Buy(r.Context(), principal(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Sell handles POST /api/v1/trades/sell
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	res, err := h.svc.Sell(r.Context(), principal(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListCompanies handles GET /api/v1/companies
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListCompanies(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// CreateCompany handles POST /api/v1/companies
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	c, err := h.svc.CreateCompany(r.Context(), principal(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCompany handles GET /api/v1/companies/{companyID}
// The caller's stake is included when the principal header is present.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	viewer := strings.TrimSpace(r.Header.Get(HeaderUserID))
	v, err := h.svc.CompanyView(r.Context(), chi.URLParam(r, "companyID"), viewer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Invest handles POST /api/v1/companies/{companyID}/invest
func (h *Handler) Invest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	res, err := h.svc.Invest(r.Context(), principal(r), chi.URLParam(r, "companyID"), req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListMarkets handles GET /api/v1/markets
// Optionally filtered by ?status=open|closed|resolved.
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListMarkets(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]MarketView, 0, len(views))
		for _, v := range views {
			if string(v.Status) == status {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	writeJSON(w, http.StatusOK, views)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.MarketView(r.Context(), chi.URLParam(r, "marketID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CreateMarket handles POST /api/v1/markets
func (h *Handler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	v, err := h.svc.CreateMarket(r.Context(), principal(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// GenerateMarket handles POST /api/v1/markets/generate
func (h *Handler) GenerateMarket(w http.ResponseWriter, r *http.Request) {
	var req GenerateMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	v, err := h.svc.GenerateMarket(r.Context(), principal(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// PlaceBet handles POST /api/v1/markets/{marketID}/bets
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req BetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	res, err := h.svc.PlaceBet(r.Context(), principal(r), chi.URLParam(r, "marketID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeDomainError maps business-rule errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientQuantity),
		errors.Is(err, ledger.ErrNoSuchHolding),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, equity.ErrZeroSharePrice),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, asset.ErrInvalidTicker),
		errors.Is(err, asset.ErrInvalidType):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthorized):
		writeError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrMarketClosed),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrTxConflict):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pool.ErrPoolInvariant):
		writeError(w, "internal error: market pools inconsistent", http.StatusInternalServerError)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}
