// Package impact implements the market-impact pricing model: a trade's
// notional value moves the traded asset's price in proportion to its size
// relative to market capitalization.
//
//	impactFraction = (signedNotional / marketCap) * Constant
//	newPrice       = price * (1 + impactFraction)
//
// Buy pressure is positive and raises the price; sell pressure is negative
// and lowers it. Assets without a market cap (forex pairs) are exempt.
// Repeated applications compound.
package impact

import (
	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/ledger"
)

var (
	// Constant scales the notional/market-cap ratio into a price move.
	Constant = decimal.NewFromFloat(0.05)

	// MinPrice is the floor no impact or simulation tick can push a price below.
	MinPrice = decimal.NewFromFloat(0.01)
)

// Fraction returns the relative price move for a signed notional against a
// market cap. It is zero when marketCap is not positive.
func Fraction(signedNotional, marketCap decimal.Decimal) decimal.Decimal {
	if !marketCap.IsPositive() {
		return decimal.Zero
	}
	return signedNotional.Div(marketCap).Mul(Constant)
}

// Apply returns the price after a trade of signedNotional. The second result
// is false when the asset is exempt (marketCap <= 0) and the price must not
// be written.
func Apply(price, marketCap, signedNotional decimal.Decimal) (decimal.Decimal, bool) {
	if !marketCap.IsPositive() {
		return price, false
	}
	one := decimal.NewFromInt(1)
	next := price.Mul(one.Add(Fraction(signedNotional, marketCap))).Round(ledger.PriceScale)
	return Floor(next), true
}

// Floor clamps a price to MinPrice.
func Floor(price decimal.Decimal) decimal.Decimal {
	if price.LessThan(MinPrice) {
		return MinPrice
	}
	return price
}

// Signed returns notional as buy (+) or sell (-) pressure.
func Signed(notional decimal.Decimal, buy bool) decimal.Decimal {
	if buy {
		return notional.Abs()
	}
	return notional.Abs().Neg()
}
