package equity

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/finsim/market-engine/internal/ledger"
	"github.com/finsim/market-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestValue_MarksHoldingsToMarket(t *testing.T) {
	c := model.Company{Cash: d(1000), TotalShares: d(100)}
	holdings := []model.Holding{
		{Ticker: "ACME", Quantity: d(10), AvgCost: d(50)},
		{Ticker: "GONE", Quantity: d(2), AvgCost: d(25)},
	}
	prices := map[string]decimal.Decimal{"ACME": d(60)}

	v := Value(c, holdings, prices)
	// 1000 + 10*60 + 2*25 (delisted falls back to avg cost)
	if !v.Value.Equal(d(1650)) {
		t.Errorf("expected value=1650, got %s", v.Value)
	}
	if !v.SharePrice.Equal(d(16.5)) {
		t.Errorf("expected share price=16.5, got %s", v.SharePrice)
	}
}

func TestSharePrice_NoSharesUsesFallback(t *testing.T) {
	if got := SharePrice(d(500), decimal.Zero); !got.Equal(FallbackInitialSharePrice) {
		t.Errorf("expected fallback price, got %s", got)
	}
}

func TestIssue_MintsAtPreInvestmentPrice(t *testing.T) {
	iss, err := Issue(d(2000), d(100), d(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !iss.SharePrice.Equal(d(20)) {
		t.Errorf("expected price=20, got %s", iss.SharePrice)
	}
	if !iss.SharesMinted.Equal(d(25)) {
		t.Errorf("expected 25 shares, got %s", iss.SharesMinted)
	}
}

func TestIssue_Errors(t *testing.T) {
	if _, err := Issue(d(100), d(10), d(0)); err != ledger.ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Issue(d(0), d(10), d(50)); err != ErrZeroSharePrice {
		t.Errorf("expected ErrZeroSharePrice, got %v", err)
	}
	if _, err := Issue(d(-10), d(10), d(50)); err != ErrZeroSharePrice {
		t.Errorf("expected ErrZeroSharePrice for negative value, got %v", err)
	}
}

func TestIssue_DilutionFree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := decimal.New(int64(rapid.IntRange(1, 100_000_000).Draw(t, "value_cents")), -2)
		shares := decimal.New(int64(rapid.IntRange(1, 10_000_000).Draw(t, "shares")), 0)
		amount := decimal.New(int64(rapid.IntRange(1, 100_000_000).Draw(t, "amount_cents")), -2)

		iss, err := Issue(value, shares, amount)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := amount.Mul(shares).Div(value)
		if iss.SharesMinted.Sub(want).Abs().GreaterThan(d(1e-6)) {
			t.Fatalf("minted %s, want A*S/V = %s", iss.SharesMinted, want)
		}

		before := value.Div(shares)
		after := value.Add(amount).Div(shares.Add(iss.SharesMinted))
		tolerance := before.Mul(d(1e-9)).Add(d(1e-9))
		if after.Sub(before).Abs().GreaterThan(tolerance) {
			t.Fatalf("share price moved: before=%s after=%s", before, after)
		}
	})
}
