package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/finsim/market-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Cash primitives ---

func TestDebit_ReducesCash(t *testing.T) {
	a := &model.Account{Cash: d(100000)}
	if err := Debit(a, d(2000)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Cash.Equal(d(98000)) {
		t.Errorf("expected cash=98000, got %s", a.Cash)
	}
}

func TestDebit_InsufficientFundsLeavesCash(t *testing.T) {
	a := &model.Account{Cash: d(50)}
	if err := Debit(a, d(50.01)); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !a.Cash.Equal(d(50)) {
		t.Errorf("cash should be unchanged, got %s", a.Cash)
	}
}

func TestDebit_ExactBalance(t *testing.T) {
	a := &model.Account{Cash: d(12.5)}
	if err := Debit(a, d(12.5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Cash.IsZero() {
		t.Errorf("expected zero cash, got %s", a.Cash)
	}
}

func TestCredit_IncreasesCash(t *testing.T) {
	a := &model.Account{Cash: d(10)}
	Credit(a, d(5.25))
	if !a.Cash.Equal(d(15.25)) {
		t.Errorf("expected 15.25, got %s", a.Cash)
	}
}

func TestNotional_RoundsToCents(t *testing.T) {
	tests := []struct {
		qty, price, want float64
	}{
		{10, 200, 2000},
		{3, 0.333333, 1},
		{0.5, 101.015, 50.51},
	}
	for _, tc := range tests {
		got := Notional(d(tc.qty), d(tc.price))
		if !got.Equal(d(tc.want)) {
			t.Errorf("Notional(%v, %v) = %s, want %v", tc.qty, tc.price, got, tc.want)
		}
	}
}

// --- Weighted-average cost ---

func TestApplyAcquisition_NewHolding(t *testing.T) {
	h := &model.Holding{Ticker: "ACME"}
	if err := ApplyAcquisition(h, d(10), d(200)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Quantity.Equal(d(10)) || !h.AvgCost.Equal(d(200)) {
		t.Errorf("expected (10, 200), got (%s, %s)", h.Quantity, h.AvgCost)
	}
}

func TestApplyAcquisition_WeightedAverage(t *testing.T) {
	h := &model.Holding{Ticker: "ACME", Quantity: d(10), AvgCost: d(100)}
	if err := ApplyAcquisition(h, d(5), d(130)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Quantity.Equal(d(15)) {
		t.Errorf("expected quantity=15, got %s", h.Quantity)
	}
	if !h.AvgCost.Equal(d(110)) {
		t.Errorf("expected avgCost=110, got %s", h.AvgCost)
	}
}

func TestApplyAcquisition_RejectsNonPositive(t *testing.T) {
	for _, qty := range []float64{0, -1} {
		h := &model.Holding{}
		if err := ApplyAcquisition(h, d(qty), d(10)); err != ErrInvalidAmount {
			t.Errorf("qty=%v: expected ErrInvalidAmount, got %v", qty, err)
		}
	}
}

func TestApplyDisposal_KeepsAvgCost(t *testing.T) {
	h := &model.Holding{Quantity: d(15), AvgCost: d(110)}
	liquidated, err := ApplyDisposal(h, d(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if liquidated {
		t.Fatal("holding should not be liquidated")
	}
	if !h.Quantity.Equal(d(12)) || !h.AvgCost.Equal(d(110)) {
		t.Errorf("expected (12, 110), got (%s, %s)", h.Quantity, h.AvgCost)
	}
}

func TestApplyDisposal_Errors(t *testing.T) {
	if _, err := ApplyDisposal(nil, d(1)); err != ErrNoSuchHolding {
		t.Errorf("expected ErrNoSuchHolding, got %v", err)
	}
	h := &model.Holding{Quantity: d(2), AvgCost: d(5)}
	if _, err := ApplyDisposal(h, d(2.5)); err != ErrInsufficientQuantity {
		t.Errorf("expected ErrInsufficientQuantity, got %v", err)
	}
	if _, err := ApplyDisposal(h, d(0)); err != ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if !h.Quantity.Equal(d(2)) {
		t.Errorf("failed disposal must not change quantity, got %s", h.Quantity)
	}
}

func TestApplyDisposal_DustIsLiquidated(t *testing.T) {
	qty := decimal.RequireFromString("1.0000000005")
	h := &model.Holding{Quantity: qty, AvgCost: d(3)}
	liquidated, err := ApplyDisposal(h, d(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !liquidated {
		t.Errorf("remainder %s below epsilon should liquidate", qty.Sub(d(1)))
	}
	if !h.Quantity.IsZero() {
		t.Errorf("liquidated quantity should be zero, got %s", h.Quantity)
	}
}

func TestApplyDisposal_FullSale(t *testing.T) {
	h := &model.Holding{Quantity: d(7), AvgCost: d(3)}
	liquidated, err := ApplyDisposal(h, d(7))
	if err != nil || !liquidated {
		t.Fatalf("expected liquidation, got liquidated=%v err=%v", liquidated, err)
	}
}

// --- Properties ---

func TestApplyAcquisition_CostBasisPreserved(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		h := &model.Holding{}
		total := decimal.Zero
		lo, hi := decimal.Zero, decimal.Zero
		n := rapid.IntRange(1, 8).Draw(t, "lots")
		for i := 0; i < n; i++ {
			qty := decimal.NewFromInt(int64(rapid.IntRange(1, 1000).Draw(t, "qty")))
			price := decimal.New(int64(rapid.IntRange(1, 1_000_000).Draw(t, "cents")), -2)
			if i == 0 || price.LessThan(lo) {
				lo = price
			}
			if i == 0 || price.GreaterThan(hi) {
				hi = price
			}
			total = total.Add(qty.Mul(price))
			if err := ApplyAcquisition(h, qty, price); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if h.AvgCost.LessThan(lo.Sub(d(1e-6))) || h.AvgCost.GreaterThan(hi.Add(d(1e-6))) {
			t.Fatalf("avgCost %s outside lot price range [%s, %s]", h.AvgCost, lo, hi)
		}
		basis := h.AvgCost.Mul(h.Quantity)
		if basis.Sub(total).Abs().GreaterThan(d(0.01)) {
			t.Fatalf("cost basis %s drifted from total paid %s", basis, total)
		}
	})
}

// --- Realized P&L replay ---

func TestRealizedPnL_ReplaysLog(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []model.Transaction{
		{Type: model.TxSell, Ticker: "ACME", Quantity: d(3), Price: d(120), CreatedAt: t0.Add(3 * time.Hour)},
		{Type: model.TxBuy, Ticker: "ACME", Quantity: d(10), Price: d(100), CreatedAt: t0},
		{Type: model.TxBuy, Ticker: "ACME", Quantity: d(5), Price: d(130), CreatedAt: t0.Add(time.Hour)},
		{Type: model.TxBuy, Ticker: "BTC", Quantity: d(1), Price: d(50000), CreatedAt: t0.Add(2 * time.Hour)},
	}

	lines := RealizedPnL(txs)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	acme := lines[0]
	if acme.Ticker != "ACME" {
		t.Fatalf("expected ACME first, got %s", acme.Ticker)
	}
	// avg 110, sold 3 @ 120 => 30 realized.
	if !acme.Realized.Equal(d(30)) {
		t.Errorf("expected realized=30, got %s", acme.Realized)
	}
	if !acme.Quantity.Equal(d(12)) || !acme.AvgCost.Equal(d(110)) {
		t.Errorf("expected (12, 110), got (%s, %s)", acme.Quantity, acme.AvgCost)
	}
	if !lines[1].Realized.IsZero() {
		t.Errorf("BTC has no sells, got realized=%s", lines[1].Realized)
	}
}

func TestRealizedPnL_SameInstantUsesSeq(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// Newest first, as the store lists them.
	txs := []model.Transaction{
		{Seq: 2, Type: model.TxSell, Ticker: "XYZ", Quantity: d(10), Price: d(60), CreatedAt: t0},
		{Seq: 1, Type: model.TxBuy, Ticker: "XYZ", Quantity: d(10), Price: d(50), CreatedAt: t0},
	}

	lines := RealizedPnL(txs)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !lines[0].Realized.Equal(d(100)) {
		t.Errorf("expected realized=100, got %s", lines[0].Realized)
	}
	if !lines[0].Quantity.IsZero() || !lines[0].AvgCost.IsZero() {
		t.Errorf("expected closed position, got (%s, %s)", lines[0].Quantity, lines[0].AvgCost)
	}
}
