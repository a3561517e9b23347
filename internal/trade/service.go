// Package trade provides the business logic and HTTP handlers for trading
// assets, investing in companies and betting on prediction markets.
//
// Every mutating operation runs in exactly one store transaction and takes
// the acting principal explicitly. Trade price impact is applied after the
// transaction commits, on the impact worker.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/asset"
	"github.com/finsim/market-engine/internal/content"
	"github.com/finsim/market-engine/internal/equity"
	"github.com/finsim/market-engine/internal/impact"
	"github.com/finsim/market-engine/internal/ledger"
	"github.com/finsim/market-engine/internal/metrics"
	"github.com/finsim/market-engine/internal/model"
	"github.com/finsim/market-engine/internal/pool"
	"github.com/finsim/market-engine/internal/store"
)

var (
	// ErrUnauthorized is returned when the principal may not act for an account.
	ErrUnauthorized = errors.New("not authorized for this account")

	// ErrMarketClosed is returned for bets on markets that no longer accept them.
	ErrMarketClosed = errors.New("market is not open for betting")

	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = errors.New("invalid request")
)

// ImpactQueue accepts post-commit price impact jobs.
type ImpactQueue interface {
	Enqueue(job impact.Job) bool
}

// Content supplies cosmetic generated text. Implementations must not fail.
type Content interface {
	AssetNews(ctx context.Context, ticker, name string) []model.NewsItem
	MarketIdea(ctx context.Context, theme string) content.MarketIdea
}

// Config holds service settings.
type Config struct {
	// InitialCash is credited to every new account.
	InitialCash decimal.Decimal
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Seed seeds the generator for cosmetic market pools. Zero uses the clock.
	Seed int64
}

// Service settles trades, investments and bets against a Store.
type Service struct {
	store       store.Store
	impact      ImpactQueue
	wsHub       *WSHub // optional WebSocket hub for real-time broadcasts
	content     Content
	initialCash decimal.Decimal
	now         func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewService creates a new trade service.
// Pass nil for queue, hub or gen when price impact, broadcasting or content
// generation are not needed.
func NewService(st store.Store, queue ImpactQueue, hub *WSHub, gen Content, cfg Config) *Service {
	if gen == nil {
		gen = content.NewService(nil, nil, nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Service{
		store:       st,
		impact:      queue,
		wsHub:       hub,
		content:     gen,
		initialCash: cfg.InitialCash.Round(ledger.CashScale),
		now:         func() time.Time { return cfg.Now().UTC() },
		rnd:         rand.New(rand.NewSource(cfg.Seed)),
	}
}

// --- Request/Response types ---

// TradeRequest is the JSON body for buy and sell. CompanyID selects the
// company account instead of the principal's own.
type TradeRequest struct {
	Ticker    string          `json:"ticker"`
	Quantity  decimal.Decimal `json:"quantity"`
	CompanyID string          `json:"company_id,omitempty"`
}

// TradeResult is returned from a settled trade. Holding is nil when the
// position was fully liquidated.
type TradeResult struct {
	Transaction model.Transaction `json:"transaction"`
	CashAfter   decimal.Decimal   `json:"cash_after"`
	Holding     *model.Holding    `json:"holding"`
	Message     string            `json:"message"`
}

// InvestResult is returned from a settled investment.
type InvestResult struct {
	CompanyID    string          `json:"company_id"`
	Amount       decimal.Decimal `json:"amount"`
	SharePrice   decimal.Decimal `json:"share_price"`
	SharesMinted decimal.Decimal `json:"shares_minted"`
	SharesHeld   decimal.Decimal `json:"shares_held"`
	CashAfter    decimal.Decimal `json:"cash_after"`
	Message      string          `json:"message"`
}

// CreateCompanyRequest is the JSON body for company creation.
type CreateCompanyRequest struct {
	Name           string          `json:"name"`
	Industry       string          `json:"industry"`
	Description    string          `json:"description"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
}

// CreateMarketRequest is the JSON body for prediction-market creation.
type CreateMarketRequest struct {
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	ClosingAt time.Time `json:"closing_at"`
	Outcomes  []string  `json:"outcomes"`
}

// GenerateMarketRequest asks the content service for a market on a theme.
// A zero ClosingAt closes the market a week from now.
type GenerateMarketRequest struct {
	Theme     string    `json:"theme"`
	ClosingAt time.Time `json:"closing_at"`
}

// BetRequest is the JSON body for placing a bet.
type BetRequest struct {
	OutcomeID string          `json:"outcome_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// BetResult is returned from a placed bet.
type BetResult struct {
	Bet       model.Bet       `json:"bet"`
	Market    MarketView      `json:"market"`
	CashAfter decimal.Decimal `json:"cash_after"`
	Message   string          `json:"message"`
}

// --- Accounts ---

// EnsureAccount returns the principal's user row, creating it with the
// configured initial cash on first use. created reports whether it was new.
func (s *Service) EnsureAccount(ctx context.Context, p model.Principal) (u *model.User, created bool, err error) {
	if p.UserID == "" {
		return nil, false, ErrUnauthorized
	}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		created = false
		existing, err := tx.GetUser(ctx, p.UserID)
		if err == nil {
			u = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		name := strings.TrimSpace(p.DisplayName)
		if name == "" {
			name = p.UserID
		}
		u = &model.User{
			ID:          p.UserID,
			DisplayName: name,
			Cash:        s.initialCash,
			InitialCash: s.initialCash,
		}
		created = true
		return tx.InsertUser(ctx, u)
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		slog.Info("account created", "user", u.ID, "cash", u.Cash.String())
	}
	return u, created, nil
}

// --- Trades ---

// Buy settles a purchase of req.Quantity units at the current price.
func (s *Service) Buy(ctx context.Context, p model.Principal, req TradeRequest) (*TradeResult, error) {
	return s.settle(ctx, p, req, model.TxBuy)
}

// Sell settles a sale of req.Quantity units at the current price.
func (s *Service) Sell(ctx context.Context, p model.Principal, req TradeRequest) (*TradeResult, error) {
	return s.settle(ctx, p, req, model.TxSell)
}

func (s *Service) settle(ctx context.Context, p model.Principal, req TradeRequest, side model.TransactionType) (*TradeResult, error) {
	start := time.Now()
	if p.UserID == "" {
		return nil, ErrUnauthorized
	}
	ticker, err := asset.NormalizeTicker(req.Ticker)
	if err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	owner := model.UserOwner(p.UserID)
	if req.CompanyID != "" {
		owner = model.CompanyOwner(req.CompanyID)
	}

	var res TradeResult
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		// Validate.
		acct, err := tx.GetAccount(ctx, owner)
		if err != nil {
			return err
		}
		if owner.Kind == model.OwnerCompany {
			if err := authorizeCEO(ctx, tx, owner.ID, p.UserID); err != nil {
				return err
			}
		}
		a, err := tx.GetAsset(ctx, ticker)
		if err != nil {
			return err
		}
		h, err := tx.GetHolding(ctx, owner, ticker)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		notional := ledger.Notional(req.Quantity, a.Price)

		// Authorize and settle.
		switch side {
		case model.TxBuy:
			// Units are never issued for less than a cent.
			if !notional.IsPositive() {
				return fmt.Errorf("buy %s %s: value rounds to zero: %w", req.Quantity, a.Ticker, ledger.ErrInvalidAmount)
			}
			if err := ledger.Debit(acct, notional); err != nil {
				return err
			}
			if h == nil {
				h = &model.Holding{Owner: owner, Ticker: a.Ticker, Name: a.Name, Type: a.Type}
			}
			if err := ledger.ApplyAcquisition(h, req.Quantity, a.Price); err != nil {
				return err
			}
			if err := tx.PutHolding(ctx, h); err != nil {
				return err
			}
		case model.TxSell:
			liquidated, err := ledger.ApplyDisposal(h, req.Quantity)
			if err != nil {
				return err
			}
			ledger.Credit(acct, notional)
			if liquidated {
				if err := tx.DeleteHolding(ctx, owner, ticker); err != nil {
					return err
				}
				h = nil
			} else if err := tx.PutHolding(ctx, h); err != nil {
				return err
			}
		}
		if err := tx.SetCash(ctx, owner, acct.Cash); err != nil {
			return err
		}

		// Append the immutable trade record.
		res.Transaction = model.Transaction{
			ID:        uuid.New().String(),
			Owner:     owner,
			Type:      side,
			Ticker:    a.Ticker,
			Name:      a.Name,
			Quantity:  req.Quantity,
			Price:     a.Price,
			Value:     notional,
			CreatedAt: s.now(),
		}
		if err := tx.InsertTransaction(ctx, &res.Transaction); err != nil {
			return err
		}
		res.CashAfter = acct.Cash
		res.Holding = h
		return nil
	})
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	tr := res.Transaction
	verb := "Bought"
	if side == model.TxSell {
		verb = "Sold"
	}
	res.Message = fmt.Sprintf("%s %s %s at %s for %s", verb, tr.Quantity, tr.Ticker, tr.Price, tr.Value.StringFixed(ledger.CashScale))

	metrics.TradesTotal.WithLabelValues(string(side), string(owner.Kind)).Inc()
	metrics.TradeLatency.WithLabelValues(string(side)).Observe(time.Since(start).Seconds())
	slog.Info("trade executed",
		"trade_id", tr.ID,
		"principal", p.UserID,
		"account", owner.ID,
		"account_kind", owner.Kind,
		"side", side,
		"ticker", tr.Ticker,
		"qty", tr.Quantity.String(),
		"price", tr.Price.String(),
		"value", tr.Value.String(),
	)

	// Post-commit: price impact runs on the worker and never fails the trade.
	if s.impact != nil {
		s.impact.Enqueue(impact.Job{
			TradeID:        tr.ID,
			Ticker:         tr.Ticker,
			SignedNotional: impact.Signed(tr.Value, side == model.TxBuy),
		})
	}
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:     "trade_executed",
			Ticker:   tr.Ticker,
			Price:    tr.Price.String(),
			Side:     string(side),
			Quantity: tr.Quantity.String(),
		})
	}
	return &res, nil
}

// authorizeCEO fails unless userID holds the CEO role in companyID.
func authorizeCEO(ctx context.Context, r store.Reader, companyID, userID string) error {
	m, err := r.GetMember(ctx, companyID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if m.Role != model.RoleCEO {
		return ErrUnauthorized
	}
	return nil
}

// --- Companies ---

// CreateCompany creates a company with the principal as CEO. A positive
// InitialCapital is invested by the creator in the same transaction.
func (s *Service) CreateCompany(ctx context.Context, p model.Principal, req CreateCompanyRequest) (*model.Company, error) {
	if p.UserID == "" {
		return nil, ErrUnauthorized
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidRequest)
	}
	capital := req.InitialCapital.Round(ledger.CashScale)
	if capital.IsNegative() {
		return nil, ledger.ErrInvalidAmount
	}

	c := &model.Company{
		ID:          uuid.New().String(),
		Name:        name,
		Industry:    strings.TrimSpace(req.Industry),
		Description: strings.TrimSpace(req.Description),
		Cash:        decimal.Zero,
		TotalShares: decimal.Zero,
		CreatorID:   p.UserID,
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, model.UserOwner(p.UserID)); err != nil {
			return err
		}
		if err := tx.InsertCompany(ctx, c); err != nil {
			return err
		}
		if err := tx.InsertMember(ctx, &model.CompanyMember{CompanyID: c.ID, UserID: p.UserID, Role: model.RoleCEO}); err != nil {
			return err
		}
		if capital.IsPositive() {
			if _, err := s.investTx(ctx, tx, p.UserID, c.ID, capital); err != nil {
				return err
			}
		}
		created, err := tx.GetCompany(ctx, c.ID)
		if err != nil {
			return err
		}
		c = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("company created",
		"id", c.ID,
		"name", c.Name,
		"creator", p.UserID,
		"capital", capital.String(),
	)
	return c, nil
}

// Invest converts amount of the principal's cash into newly minted shares of
// the company at its pre-investment share price.
func (s *Service) Invest(ctx context.Context, p model.Principal, companyID string, amount decimal.Decimal) (*InvestResult, error) {
	if p.UserID == "" {
		return nil, ErrUnauthorized
	}
	amount = amount.Round(ledger.CashScale)
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	var res *InvestResult
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := s.investTx(ctx, tx, p.UserID, companyID, amount)
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Message = fmt.Sprintf("Invested %s for %s shares at %s per share",
		amount.StringFixed(ledger.CashScale), res.SharesMinted.Round(4), res.SharePrice.Round(4))
	metrics.InvestmentsTotal.Inc()
	slog.Info("investment settled",
		"company", companyID,
		"investor", p.UserID,
		"amount", amount.String(),
		"share_price", res.SharePrice.String(),
		"shares_minted", res.SharesMinted.String(),
	)
	return res, nil
}

// investTx applies an investment inside an open transaction.
func (s *Service) investTx(ctx context.Context, tx store.Tx, userID, companyID string, amount decimal.Decimal) (*InvestResult, error) {
	c, err := tx.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	investor, err := tx.GetAccount(ctx, model.UserOwner(userID))
	if err != nil {
		return nil, err
	}
	if err := ledger.Debit(investor, amount); err != nil {
		return nil, err
	}

	holdings, err := tx.ListHoldings(ctx, model.CompanyOwner(companyID))
	if err != nil {
		return nil, err
	}
	prices, err := livePrices(ctx, tx, holdings)
	if err != nil {
		return nil, err
	}
	val := equity.Value(*c, holdings, prices)
	iss, err := equity.Issue(val.Value, c.TotalShares, amount)
	if err != nil {
		return nil, err
	}

	share, err := tx.GetCompanyShare(ctx, userID, companyID)
	if errors.Is(err, store.ErrNotFound) {
		share = &model.CompanyShare{UserID: userID, CompanyID: companyID}
	} else if err != nil {
		return nil, err
	}
	equity.AddShares(share, iss.SharesMinted)

	if err := tx.SetCash(ctx, investor.Owner, investor.Cash); err != nil {
		return nil, err
	}
	if err := tx.SetCash(ctx, model.CompanyOwner(companyID), c.Cash.Add(amount)); err != nil {
		return nil, err
	}
	if err := tx.SetTotalShares(ctx, companyID, c.TotalShares.Add(iss.SharesMinted)); err != nil {
		return nil, err
	}
	if err := tx.PutCompanyShare(ctx, share); err != nil {
		return nil, err
	}
	return &InvestResult{
		CompanyID:    companyID,
		Amount:       amount,
		SharePrice:   iss.SharePrice,
		SharesMinted: iss.SharesMinted,
		SharesHeld:   share.Quantity,
		CashAfter:    investor.Cash,
	}, nil
}

// livePrices looks up the current price of every held ticker. Delisted
// tickers are left out so valuation falls back to average cost.
func livePrices(ctx context.Context, r store.Reader, holdings []model.Holding) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		a, err := r.GetAsset(ctx, h.Ticker)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		prices[h.Ticker] = a.Price
	}
	return prices, nil
}

// --- Prediction markets ---

// CreateMarket opens a market with 2 to 4 outcomes and empty pools.
func (s *Service) CreateMarket(ctx context.Context, p model.Principal, req CreateMarketRequest) (*MarketView, error) {
	if p.UserID == "" {
		return nil, ErrUnauthorized
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	outcomes, err := validOutcomes(req.Outcomes)
	if err != nil {
		return nil, err
	}
	if !req.ClosingAt.After(s.now()) {
		return nil, fmt.Errorf("%w: closing time must be in the future", ErrInvalidRequest)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = "General"
	}

	m := s.newMarket(p, title, category, req.ClosingAt, outcomes, nil)
	if err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertMarket(ctx, m)
	}); err != nil {
		return nil, err
	}

	slog.Info("market created", "id", m.ID, "title", m.Title, "creator", p.UserID, "outcomes", len(m.Outcomes))
	v := viewMarket(*m)
	return &v, nil
}

// GenerateMarket creates a market from a generated idea. Outcomes get small
// random starting pools so fresh odds are not 0/0.
func (s *Service) GenerateMarket(ctx context.Context, p model.Principal, req GenerateMarketRequest) (*MarketView, error) {
	if p.UserID == "" {
		return nil, ErrUnauthorized
	}
	closing := req.ClosingAt
	if closing.IsZero() {
		closing = s.now().Add(7 * 24 * time.Hour)
	}
	if !closing.After(s.now()) {
		return nil, fmt.Errorf("%w: closing time must be in the future", ErrInvalidRequest)
	}

	idea := s.content.MarketIdea(ctx, req.Theme)
	outcomes, err := validOutcomes(idea.Outcomes)
	if err != nil {
		idea = content.FallbackIdea(req.Theme)
		outcomes = idea.Outcomes
	}

	s.rndMu.Lock()
	seeds := pool.SeedPools(s.rnd, len(outcomes))
	s.rndMu.Unlock()

	m := s.newMarket(p, idea.Title, idea.Category, closing, outcomes, seeds)
	if err := s.store.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertMarket(ctx, m)
	}); err != nil {
		return nil, err
	}

	slog.Info("market generated", "id", m.ID, "title", m.Title, "theme", req.Theme, "creator", p.UserID)
	v := viewMarket(*m)
	return &v, nil
}

func (s *Service) newMarket(p model.Principal, title, category string, closing time.Time, outcomes []string, seeds []decimal.Decimal) *model.PredictionMarket {
	m := &model.PredictionMarket{
		ID:                 uuid.New().String(),
		Title:              title,
		Category:           category,
		Status:             model.MarketOpen,
		ClosingAt:          closing.UTC(),
		TotalPool:          decimal.Zero,
		CreatorID:          p.UserID,
		CreatorDisplayName: p.DisplayName,
	}
	for i, name := range outcomes {
		o := model.MarketOutcome{ID: uuid.New().String(), MarketID: m.ID, Name: name, Pool: decimal.Zero}
		if i < len(seeds) {
			o.Pool = seeds[i]
		}
		m.Outcomes = append(m.Outcomes, o)
	}
	m.TotalPool = pool.Sum(m.Outcomes)
	return m
}

func validOutcomes(in []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, o := range in {
		o = strings.TrimSpace(o)
		if o == "" {
			return nil, fmt.Errorf("%w: outcome names must not be empty", ErrInvalidRequest)
		}
		k := strings.ToLower(o)
		if seen[k] {
			return nil, fmt.Errorf("%w: duplicate outcome %q", ErrInvalidRequest, o)
		}
		seen[k] = true
		out = append(out, o)
	}
	if len(out) < pool.MinOutcomes || len(out) > pool.MaxOutcomes {
		return nil, fmt.Errorf("%w: a market needs %d to %d outcomes", ErrInvalidRequest, pool.MinOutcomes, pool.MaxOutcomes)
	}
	return out, nil
}

// PlaceBet stakes amount of the principal's cash on one outcome.
func (s *Service) PlaceBet(ctx context.Context, p model.Principal, marketID string, req BetRequest) (*BetResult, error) {
	if p.UserID == "" {
		return nil, ErrUnauthorized
	}
	amount := req.Amount.Round(ledger.CashScale)
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	var res BetResult
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		m, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return err
		}
		if m.Status != model.MarketOpen || !s.now().Before(m.ClosingAt) {
			return ErrMarketClosed
		}
		acct, err := tx.GetAccount(ctx, model.UserOwner(p.UserID))
		if err != nil {
			return err
		}
		if err := ledger.Debit(acct, amount); err != nil {
			return err
		}
		if _, err := pool.ApplyBet(m, req.OutcomeID, amount); err != nil {
			if errors.Is(err, pool.ErrUnknownOutcome) {
				return fmt.Errorf("outcome %s: %w: %w", req.OutcomeID, err, store.ErrNotFound)
			}
			return err
		}
		if err := pool.CheckInvariant(m); err != nil {
			return err
		}

		if err := tx.SetCash(ctx, acct.Owner, acct.Cash); err != nil {
			return err
		}
		if err := tx.SetPools(ctx, m); err != nil {
			return err
		}
		res.Bet = model.Bet{
			ID:        uuid.New().String(),
			UserID:    p.UserID,
			OutcomeID: req.OutcomeID,
			Amount:    amount,
			CreatedAt: s.now(),
		}
		if err := tx.InsertBet(ctx, &res.Bet); err != nil {
			return err
		}
		res.Market = viewMarket(*m)
		res.CashAfter = acct.Cash
		return nil
	})
	if err != nil {
		return nil, err
	}

	var outcome OutcomeView
	for _, o := range res.Market.Outcomes {
		if o.ID == req.OutcomeID {
			outcome = o
		}
	}
	res.Message = fmt.Sprintf("Bet %s on %q, now at %d%%", amount.StringFixed(ledger.CashScale), outcome.Name, outcome.Odds)

	metrics.BetsTotal.Inc()
	slog.Info("bet placed",
		"bet_id", res.Bet.ID,
		"market", marketID,
		"outcome", req.OutcomeID,
		"user", p.UserID,
		"amount", amount.String(),
		"total_pool", res.Market.TotalPool.String(),
	)
	if s.wsHub != nil {
		odds := make(map[string]int, len(res.Market.Outcomes))
		for _, o := range res.Market.Outcomes {
			odds[o.ID] = o.Odds
		}
		s.wsHub.Broadcast(WSMessage{Type: "odds_updated", MarketID: marketID, Odds: odds})
	}
	return &res, nil
}

// rejectionReason labels a failed trade for metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, ledger.ErrNoSuchHolding):
		return "no_such_holding"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrTxConflict):
		return "conflict"
	}
	return "error"
}
