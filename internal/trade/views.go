package trade

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/asset"
	"github.com/finsim/market-engine/internal/equity"
	"github.com/finsim/market-engine/internal/ledger"
	"github.com/finsim/market-engine/internal/model"
	"github.com/finsim/market-engine/internal/pool"
	"github.com/finsim/market-engine/internal/store"
)

// Read models. Nothing in this file writes to the store.

// PositionLine is a holding marked to market.
type PositionLine struct {
	model.Holding
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// ShareLine is a company stake valued at the company's current share price.
type ShareLine struct {
	CompanyID   string          `json:"company_id"`
	CompanyName string          `json:"company_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	SharePrice  decimal.Decimal `json:"share_price"`
	Value       decimal.Decimal `json:"value"`
}

// Portfolio is a user's cash, positions and net worth.
type Portfolio struct {
	UserID        string          `json:"user_id"`
	DisplayName   string          `json:"display_name"`
	Cash          decimal.Decimal `json:"cash"`
	InitialCash   decimal.Decimal `json:"initial_cash"`
	Holdings      []PositionLine  `json:"holdings"`
	Shares        []ShareLine     `json:"shares"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	SharesValue   decimal.Decimal `json:"shares_value"`
	NetWorth      decimal.Decimal `json:"net_worth"`
	TotalReturn   decimal.Decimal `json:"total_return"`
}

// CompanyView is a company with its derived valuation.
type CompanyView struct {
	model.Company
	Valuation   equity.Valuation      `json:"valuation"`
	Holdings    []PositionLine        `json:"holdings"`
	Members     []model.CompanyMember `json:"members"`
	ViewerStake decimal.Decimal       `json:"viewer_shares"`
}

// OutcomeView is an outcome with its pool-implied odds in percent.
type OutcomeView struct {
	model.MarketOutcome
	Odds int `json:"odds"`
}

// MarketView is a prediction market with odds per outcome.
type MarketView struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Category           string             `json:"category"`
	Status             model.MarketStatus `json:"status"`
	ClosingAt          time.Time          `json:"closing_at"`
	TotalPool          decimal.Decimal    `json:"total_pool"`
	CreatorID          string             `json:"creator_id"`
	CreatorDisplayName string             `json:"creator_display_name"`
	Outcomes           []OutcomeView      `json:"outcomes"`
}

func viewMarket(m model.PredictionMarket) MarketView {
	v := MarketView{
		ID:                 m.ID,
		Title:              m.Title,
		Category:           m.Category,
		Status:             m.Status,
		ClosingAt:          m.ClosingAt,
		TotalPool:          m.TotalPool,
		CreatorID:          m.CreatorID,
		CreatorDisplayName: m.CreatorDisplayName,
		Outcomes:           make([]OutcomeView, 0, len(m.Outcomes)),
	}
	for _, o := range m.Outcomes {
		v.Outcomes = append(v.Outcomes, OutcomeView{MarketOutcome: o, Odds: pool.Odds(o.Pool, m.TotalPool)})
	}
	return v
}

// markToMarket values holdings at current prices, falling back to average
// cost for delisted tickers.
func markToMarket(holdings []model.Holding, prices map[string]decimal.Decimal) ([]PositionLine, decimal.Decimal) {
	lines := make([]PositionLine, 0, len(holdings))
	total := decimal.Zero
	for _, h := range holdings {
		price, ok := prices[h.Ticker]
		if !ok {
			price = h.AvgCost
		}
		value := h.Quantity.Mul(price).Round(ledger.CashScale)
		lines = append(lines, PositionLine{
			Holding:       h,
			Price:         price,
			MarketValue:   value,
			UnrealizedPnL: price.Sub(h.AvgCost).Mul(h.Quantity).Round(ledger.CashScale),
		})
		total = total.Add(value)
	}
	return lines, total
}

// Portfolio returns the user's portfolio marked to market.
func (s *Service) Portfolio(ctx context.Context, userID string) (*Portfolio, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.store.ListHoldings(ctx, model.UserOwner(userID))
	if err != nil {
		return nil, err
	}
	prices, err := livePrices(ctx, s.store, holdings)
	if err != nil {
		return nil, err
	}
	lines, holdingsValue := markToMarket(holdings, prices)

	stakes, err := s.store.ListSharesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	shares := make([]ShareLine, 0, len(stakes))
	sharesValue := decimal.Zero
	for _, st := range stakes {
		c, val, err := s.valuation(ctx, st.CompanyID)
		if err != nil {
			return nil, err
		}
		line := ShareLine{
			CompanyID:   st.CompanyID,
			CompanyName: c.Name,
			Quantity:    st.Quantity,
			SharePrice:  val.SharePrice,
			Value:       st.Quantity.Mul(val.SharePrice).Round(ledger.CashScale),
		}
		shares = append(shares, line)
		sharesValue = sharesValue.Add(line.Value)
	}

	netWorth := u.Cash.Add(holdingsValue).Add(sharesValue)
	return &Portfolio{
		UserID:        u.ID,
		DisplayName:   u.DisplayName,
		Cash:          u.Cash,
		InitialCash:   u.InitialCash,
		Holdings:      lines,
		Shares:        shares,
		HoldingsValue: holdingsValue,
		SharesValue:   sharesValue,
		NetWorth:      netWorth,
		TotalReturn:   netWorth.Sub(u.InitialCash),
	}, nil
}

// Transactions returns the user's trade log, newest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, model.UserOwner(userID))
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return txs, nil
}

// RealizedPnL replays the user's trade log into realized P&L per ticker.
func (s *Service) RealizedPnL(ctx context.Context, userID string) ([]ledger.PnLLine, error) {
	txs, err := s.store.ListTransactions(ctx, model.UserOwner(userID))
	if err != nil {
		return nil, err
	}
	return ledger.RealizedPnL(txs), nil
}

// valuation computes a company's current valuation from the store.
func (s *Service) valuation(ctx context.Context, companyID string) (*model.Company, equity.Valuation, error) {
	c, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return nil, equity.Valuation{}, err
	}
	holdings, err := s.store.ListHoldings(ctx, model.CompanyOwner(companyID))
	if err != nil {
		return nil, equity.Valuation{}, err
	}
	prices, err := livePrices(ctx, s.store, holdings)
	if err != nil {
		return nil, equity.Valuation{}, err
	}
	return c, equity.Value(*c, holdings, prices), nil
}

// CompanyView returns a company with holdings, valuation, members and the
// viewer's stake. viewerID may be empty.
func (s *Service) CompanyView(ctx context.Context, companyID, viewerID string) (*CompanyView, error) {
	c, val, err := s.valuation(ctx, companyID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.store.ListHoldings(ctx, model.CompanyOwner(companyID))
	if err != nil {
		return nil, err
	}
	prices, err := livePrices(ctx, s.store, holdings)
	if err != nil {
		return nil, err
	}
	lines, _ := markToMarket(holdings, prices)

	members, err := s.store.ListMembers(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []model.CompanyMember{}
	}

	stake := decimal.Zero
	if viewerID != "" {
		sh, err := s.store.GetCompanyShare(ctx, viewerID, companyID)
		switch {
		case err == nil:
			stake = sh.Quantity
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	return &CompanyView{
		Company:     *c,
		Valuation:   val,
		Holdings:    lines,
		Members:     members,
		ViewerStake: stake,
	}, nil
}

// ListCompanies returns every company with its valuation.
func (s *Service) ListCompanies(ctx context.Context) ([]CompanyView, error) {
	companies, err := s.store.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]CompanyView, 0, len(companies))
	for _, c := range companies {
		_, val, err := s.valuation(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		views = append(views, CompanyView{Company: c, Valuation: val})
	}
	return views, nil
}

// MarketView returns one prediction market with odds.
func (s *Service) MarketView(ctx context.Context, marketID string) (*MarketView, error) {
	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	v := viewMarket(*m)
	return &v, nil
}

// ListMarkets returns every prediction market with odds.
func (s *Service) ListMarkets(ctx context.Context) ([]MarketView, error) {
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]MarketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, viewMarket(m))
	}
	return views, nil
}

// ListAssets returns the tradable catalogue.
func (s *Service) ListAssets(ctx context.Context) ([]model.Asset, error) {
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	return assets, nil
}

// GetAsset returns one asset by ticker.
func (s *Service) GetAsset(ctx context.Context, ticker string) (*model.Asset, error) {
	t, err := asset.NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	return s.store.GetAsset(ctx, t)
}

// News returns generated news for an asset. Generation failures yield the
// static fallback item; only an unknown asset is an error.
func (s *Service) News(ctx context.Context, ticker string) ([]model.NewsItem, error) {
	a, err := s.GetAsset(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.content.AssetNews(ctx, a.Ticker, a.Name), nil
}
