package impact

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Pricing math ---

func TestApply_BuyRaisesPrice(t *testing.T) {
	// 2000 / 1,000,000 * 0.05 = 0.0001 → 200 * 1.0001
	got, ok := Apply(d(200), d(1_000_000), d(2000))
	if !ok {
		t.Fatal("asset with market cap should not be exempt")
	}
	if !got.Equal(d(200.02)) {
		t.Errorf("expected 200.02, got %s", got)
	}
}

func TestApply_SellLowersPrice(t *testing.T) {
	got, _ := Apply(d(200), d(1_000_000), d(-2000))
	if !got.Equal(d(199.98)) {
		t.Errorf("expected 199.98, got %s", got)
	}
}

func TestApply_Formula(t *testing.T) {
	tests := []struct {
		price, cap, notional float64
	}{
		{50, 2_000_000, 10_000},
		{50, 2_000_000, -10_000},
		{0.75, 10_000_000, 123_456},
		{31000, 600_000_000_000, 1_000_000},
	}
	one := decimal.NewFromInt(1)
	for _, tc := range tests {
		got, _ := Apply(d(tc.price), d(tc.cap), d(tc.notional))
		frac := d(tc.notional).Div(d(tc.cap)).Mul(d(0.05))
		want := d(tc.price).Mul(one.Add(frac))
		if got.Sub(want).Abs().GreaterThan(d(1e-8)) {
			t.Errorf("Apply(%v, %v, %v) = %s, want %s", tc.price, tc.cap, tc.notional, got, want)
		}
	}
}

func TestApply_ZeroMarketCapExempt(t *testing.T) {
	for _, cap := range []float64{0, -5} {
		got, ok := Apply(d(1.08), d(cap), d(1_000_000))
		if ok {
			t.Errorf("marketCap=%v should be exempt", cap)
		}
		if !got.Equal(d(1.08)) {
			t.Errorf("exempt price changed to %s", got)
		}
	}
}

func TestApply_FloorsAtMinPrice(t *testing.T) {
	// A sell larger than 20x market cap would drive price negative.
	got, ok := Apply(d(10), d(1000), d(-50_000))
	if !ok {
		t.Fatal("expected non-exempt")
	}
	if !got.Equal(MinPrice) {
		t.Errorf("expected floor %s, got %s", MinPrice, got)
	}
}

func TestApply_Compounds(t *testing.T) {
	p1, _ := Apply(d(100), d(1_000_000), d(20_000))
	p2, _ := Apply(p1, d(1_000_000), d(20_000))
	if !p2.GreaterThan(p1) {
		t.Errorf("repeated buys should compound: %s then %s", p1, p2)
	}
	if !p2.Equal(d(100.2001)) {
		t.Errorf("expected 100.2001, got %s", p2)
	}
}

func TestSigned(t *testing.T) {
	if !Signed(d(5), true).Equal(d(5)) {
		t.Error("buy should be positive")
	}
	if !Signed(d(5), false).Equal(d(-5)) {
		t.Error("sell should be negative")
	}
}

// --- Worker ---

type fakeUpdater struct {
	mu     sync.Mutex
	assets map[string]model.Asset
	fail   map[string]bool
}

func (f *fakeUpdater) UpdatePrice(_ context.Context, ticker string, fn func(model.Asset) (decimal.Decimal, bool)) (*model.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[ticker] {
		return nil, errors.New("boom")
	}
	a, ok := f.assets[ticker]
	if !ok {
		return nil, errors.New("not found")
	}
	if next, write := fn(a); write {
		a.Price = next
		f.assets[ticker] = a
	}
	return &a, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	prices []model.Asset
}

func (r *recordingPublisher) PublishPrice(a model.Asset, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices = append(r.prices, a)
}

func TestWorker_AppliesQueuedJobs(t *testing.T) {
	up := &fakeUpdater{assets: map[string]model.Asset{
		"ACME":   {Ticker: "ACME", Price: d(200), MarketCap: d(1_000_000)},
		"EURUSD": {Ticker: "EURUSD", Price: d(1.08), MarketCap: decimal.Zero},
	}}
	pub := &recordingPublisher{}
	w := NewWorker(up, pub, 8)
	go w.Run(context.Background())

	w.Enqueue(Job{Ticker: "ACME", SignedNotional: d(2000)})
	w.Enqueue(Job{Ticker: "EURUSD", SignedNotional: d(2000)})
	w.Close()

	if got := up.assets["ACME"].Price; !got.Equal(d(200.02)) {
		t.Errorf("expected ACME at 200.02, got %s", got)
	}
	if got := up.assets["EURUSD"].Price; !got.Equal(d(1.08)) {
		t.Errorf("forex should be untouched, got %s", got)
	}
	if len(pub.prices) != 1 || pub.prices[0].Ticker != "ACME" {
		t.Errorf("expected one ACME publication, got %+v", pub.prices)
	}
}

func TestWorker_FailureIsSwallowed(t *testing.T) {
	up := &fakeUpdater{
		assets: map[string]model.Asset{"ACME": {Ticker: "ACME", Price: d(10), MarketCap: d(100)}},
		fail:   map[string]bool{"BAD": true},
	}
	w := NewWorker(up, nil, 8)
	go w.Run(context.Background())

	w.Enqueue(Job{Ticker: "BAD", SignedNotional: d(1)})
	w.Enqueue(Job{Ticker: "ACME", SignedNotional: d(10)})
	w.Close()

	// 10 * (1 + 10/100*0.05) = 10.05
	if got := up.assets["ACME"].Price; !got.Equal(d(10.05)) {
		t.Errorf("later job should still run, got %s", got)
	}
}

func TestWorker_EnqueueAfterCloseDrops(t *testing.T) {
	w := NewWorker(&fakeUpdater{assets: map[string]model.Asset{}}, nil, 1)
	go w.Run(context.Background())
	w.Close()
	if w.Enqueue(Job{Ticker: "ACME"}) {
		t.Error("enqueue after close should report false")
	}
}

func TestWorker_FullQueueDrops(t *testing.T) {
	w := NewWorker(&fakeUpdater{assets: map[string]model.Asset{}}, nil, 1)
	if !w.Enqueue(Job{Ticker: "A"}) {
		t.Fatal("first job should fit")
	}
	if w.Enqueue(Job{Ticker: "B"}) {
		t.Error("second job should be dropped while nothing consumes")
	}
	go w.Run(context.Background())
	w.Close()
}
