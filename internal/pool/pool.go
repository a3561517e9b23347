// Package pool implements pari-mutuel pool accounting for prediction markets.
//
// Every bet enlarges one outcome's pool and the market's total pool by the
// same amount, so total == Σ outcome pools holds after every bet. Odds are
// the outcome's share of the total pool and move with every bet.
package pool

import (
	"errors"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/ledger"
	"github.com/finsim/market-engine/internal/model"
)

var (
	// ErrUnknownOutcome is returned when the outcome is not part of the market.
	ErrUnknownOutcome = errors.New("outcome does not belong to market")

	// ErrPoolInvariant is returned when a market's total pool differs from
	// the sum of its outcome pools.
	ErrPoolInvariant = errors.New("market total pool does not match outcome pools")
)

// MinOutcomes and MaxOutcomes bound the number of outcomes in a market.
const (
	MinOutcomes = 2
	MaxOutcomes = 4
)

var hundred = decimal.NewFromInt(100)

// Odds returns round(100 * outcomePool / totalPool), or 0 for an empty
// market. The result is always in [0, 100].
func Odds(outcomePool, totalPool decimal.Decimal) int {
	if !totalPool.IsPositive() || outcomePool.IsNegative() {
		return 0
	}
	pct := hundred.Mul(outcomePool).Div(totalPool).Round(0).IntPart()
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct)
}

// Sum returns Σ outcome pools.
func Sum(outcomes []model.MarketOutcome) decimal.Decimal {
	total := decimal.Zero
	for _, o := range outcomes {
		total = total.Add(o.Pool)
	}
	return total
}

// CheckInvariant verifies total == Σ outcome pools.
func CheckInvariant(m *model.PredictionMarket) error {
	if !m.TotalPool.Equal(Sum(m.Outcomes)) {
		return ErrPoolInvariant
	}
	return nil
}

// ApplyBet adds amount to the outcome's pool and to the market's total pool
// and returns the updated outcome. m is left untouched on error.
func ApplyBet(m *model.PredictionMarket, outcomeID string, amount decimal.Decimal) (*model.MarketOutcome, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	for i := range m.Outcomes {
		if m.Outcomes[i].ID != outcomeID {
			continue
		}
		m.Outcomes[i].Pool = m.Outcomes[i].Pool.Add(amount)
		m.TotalPool = m.TotalPool.Add(amount)
		return &m.Outcomes[i], nil
	}
	return nil, ErrUnknownOutcome
}

// SeedPools returns n random starting pools in [10, 100]. Used only for
// generated markets so a fresh market does not display 0/0 odds.
func SeedPools(rnd *rand.Rand, n int) []decimal.Decimal {
	pools := make([]decimal.Decimal, n)
	for i := range pools {
		pools[i] = decimal.NewFromInt(int64(10 + rnd.Intn(91)))
	}
	return pools
}
