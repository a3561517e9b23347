package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/model"
)

// PnLLine is the replayed state of one ticker.
type PnLLine struct {
	Ticker   string          `json:"ticker"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
	Realized decimal.Decimal `json:"realized_pnl"`
}

// RealizedPnL replays a transaction log in insertion order with the same
// weighted-average rules used at settlement and returns realized P&L per
// ticker, sorted by ticker. Records without a Seq fall back to CreatedAt.
// Sells larger than the replayed position are clamped to it.
func RealizedPnL(txs []model.Transaction) []PnLLine {
	ordered := make([]model.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Seq != 0 && b.Seq != 0 {
			return a.Seq < b.Seq
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	lines := make(map[string]*PnLLine)
	holdings := make(map[string]*model.Holding)

	for _, tx := range ordered {
		line, ok := lines[tx.Ticker]
		if !ok {
			line = &PnLLine{Ticker: tx.Ticker}
			lines[tx.Ticker] = line
			holdings[tx.Ticker] = &model.Holding{Ticker: tx.Ticker}
		}
		h := holdings[tx.Ticker]

		switch tx.Type {
		case model.TxBuy:
			_ = ApplyAcquisition(h, tx.Quantity, tx.Price)
		case model.TxSell:
			qty := decimal.Min(tx.Quantity, h.Quantity)
			if !qty.IsPositive() {
				continue
			}
			line.Realized = line.Realized.Add(tx.Price.Sub(h.AvgCost).Mul(qty))
			if liquidated, _ := ApplyDisposal(h, qty); liquidated {
				h.AvgCost = decimal.Zero
			}
		}
		line.Quantity = h.Quantity
		line.AvgCost = h.AvgCost
	}

	out := make([]PnLLine, 0, len(lines))
	for _, line := range lines {
		line.Realized = line.Realized.Round(CashScale)
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
