// Package equity computes company valuation and share issuance.
//
// A company's share price is never stored. It is derived from current cash
// and the mark-to-market value of its holdings:
//
//	value      = cash + Σ quantity * price(ticker)
//	sharePrice = value / totalShares
//
// New money buys shares at the pre-investment share price, so an investment
// leaves the share price unchanged and existing holders are not diluted in
// value.
package equity

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/ledger"
	"github.com/finsim/market-engine/internal/model"
)

var (
	// ErrZeroSharePrice is returned when the pre-investment share price is
	// not positive and issuance is undefined.
	ErrZeroSharePrice = errors.New("company share price is zero")

	// FallbackInitialSharePrice prices shares for a company that has none yet.
	FallbackInitialSharePrice = decimal.NewFromInt(1)
)

// Valuation is the derived net asset value of a company.
type Valuation struct {
	Cash          decimal.Decimal `json:"cash"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	Value         decimal.Decimal `json:"value"`
	TotalShares   decimal.Decimal `json:"total_shares"`
	SharePrice    decimal.Decimal `json:"share_price"`
}

// HoldingsValue marks holdings to market. Holdings whose ticker has no live
// price fall back to their own average cost.
func HoldingsValue(holdings []model.Holding, prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		price, ok := prices[h.Ticker]
		if !ok {
			price = h.AvgCost
		}
		total = total.Add(h.Quantity.Mul(price))
	}
	return total
}

// Value returns the valuation of a company from its cash, holdings and the
// current price map.
func Value(c model.Company, holdings []model.Holding, prices map[string]decimal.Decimal) Valuation {
	hv := HoldingsValue(holdings, prices)
	v := Valuation{
		Cash:          c.Cash,
		HoldingsValue: hv,
		Value:         c.Cash.Add(hv),
		TotalShares:   c.TotalShares,
	}
	v.SharePrice = SharePrice(v.Value, c.TotalShares)
	return v
}

// SharePrice returns value / totalShares, or FallbackInitialSharePrice when no
// shares have been issued.
func SharePrice(value, totalShares decimal.Decimal) decimal.Decimal {
	if !totalShares.IsPositive() {
		return FallbackInitialSharePrice
	}
	return value.Div(totalShares)
}

// Issuance is the outcome of converting cash into new shares.
type Issuance struct {
	SharePrice   decimal.Decimal `json:"share_price"`
	SharesMinted decimal.Decimal `json:"shares_minted"`
}

// Issue computes how many shares amount buys at the pre-investment share
// price.
func Issue(value, totalShares, amount decimal.Decimal) (Issuance, error) {
	if !amount.IsPositive() {
		return Issuance{}, ledger.ErrInvalidAmount
	}
	price := SharePrice(value, totalShares)
	if !price.IsPositive() {
		return Issuance{}, ErrZeroSharePrice
	}
	minted := amount.Div(price)
	if totalShares.IsPositive() {
		// amount*S/V keeps full precision when the share price is tiny.
		minted = amount.Mul(totalShares).Div(value)
	}
	return Issuance{SharePrice: price, SharesMinted: minted}, nil
}

// AddShares merges minted shares into a stake.
func AddShares(s *model.CompanyShare, qty decimal.Decimal) {
	s.Quantity = s.Quantity.Add(qty)
}
