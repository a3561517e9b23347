package market

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/finsim/market-engine/internal/impact"
	"github.com/finsim/market-engine/internal/model"
	"github.com/finsim/market-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

type recordingPublisher struct {
	prices map[string]decimal.Decimal
}

func (r *recordingPublisher) PublishPrice(a model.Asset, reason string) {
	if reason != "tick" {
		panic("unexpected reason " + reason)
	}
	r.prices[a.Ticker] = a.Price
}

func seeded(t *testing.T) *store.MemoryStore {
	t.Helper()
	ms := store.NewMemoryStore()
	for _, a := range []model.Asset{
		{Ticker: "ABC", Name: "ABC Corp", Type: model.AssetStock, Price: d(100), MarketCap: d(1_000_000)},
		{Ticker: "PENNY", Name: "Penny", Type: model.AssetStock, Price: d(0.01), MarketCap: d(1000)},
	} {
		a := a
		if err := ms.UpsertAsset(context.Background(), &a); err != nil {
			t.Fatal(err)
		}
	}
	return ms
}

func TestStep(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		vol   float64
		n     float64
		want  float64
	}{
		{"up", 100, 0.01, 1, 101},
		{"down", 100, 0.01, -1, 99},
		{"half", 100, 0.02, 0.5, 101},
		{"flat", 100, 0.01, 0, 100},
		{"floored", 0.01, 0.05, -1, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Step(d(tt.price), d(tt.vol), tt.n)
			if !got.Equal(d(tt.want)) {
				t.Errorf("Step = %s, want %s", got, d(tt.want))
			}
		})
	}
}

func TestStep_BoundedAndFloored(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := decimal.NewFromInt(rapid.Int64Range(1, 10_000_000).Draw(t, "price_cents")).Shift(-2)
		vol := d(rapid.Float64Range(0, 0.5).Draw(t, "vol"))
		n := rapid.Float64Range(-1, 1).Draw(t, "n")

		next := Step(price, vol, n)
		if next.LessThan(impact.MinPrice) {
			t.Fatalf("price %s below floor", next)
		}
		limit := price.Mul(vol).Add(d(0.00000001))
		if next.Sub(price).Abs().GreaterThan(limit) && next.GreaterThan(impact.MinPrice) {
			t.Fatalf("move %s -> %s exceeds volatility %s", price, next, vol)
		}
	})
}

func TestTick_MovesAndPublishes(t *testing.T) {
	ms := seeded(t)
	pub := &recordingPublisher{prices: map[string]decimal.Decimal{}}
	sim := NewSimulator(ms, pub, d(0.05), 7)

	moved, err := sim.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if moved != len(pub.prices) {
		t.Errorf("moved %d, published %d", moved, len(pub.prices))
	}
	for ticker, price := range pub.prices {
		a, err := ms.GetAsset(context.Background(), ticker)
		if err != nil {
			t.Fatal(err)
		}
		if !a.Price.Equal(price) {
			t.Errorf("%s published %s, stored %s", ticker, price, a.Price)
		}
		if a.Price.LessThan(impact.MinPrice) {
			t.Errorf("%s below floor: %s", ticker, a.Price)
		}
	}
}

func TestTick_ZeroVolatilityIsNoop(t *testing.T) {
	ms := seeded(t)
	sim := NewSimulator(ms, nil, decimal.Zero, 1)

	moved, err := sim.Tick(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if moved != 0 {
		t.Errorf("expected no moves, got %d", moved)
	}
	a, _ := ms.GetAsset(context.Background(), "ABC")
	if !a.Price.Equal(d(100)) {
		t.Errorf("price = %s", a.Price)
	}
}

func TestCloseExpired(t *testing.T) {
	ms := seeded(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, m := range []*model.PredictionMarket{
		{ID: "past", Title: "Past", Status: model.MarketOpen, ClosingAt: now.Add(-time.Minute)},
		{ID: "edge", Title: "Edge", Status: model.MarketOpen, ClosingAt: now},
		{ID: "future", Title: "Future", Status: model.MarketOpen, ClosingAt: now.Add(time.Hour)},
	} {
		m.Outcomes = []model.MarketOutcome{
			{ID: m.ID + "-y", MarketID: m.ID, Name: "Yes"},
			{ID: m.ID + "-n", MarketID: m.ID, Name: "No"},
		}
		if err := ms.InTx(ctx, func(tx store.Tx) error { return tx.InsertMarket(ctx, m) }); err != nil {
			t.Fatal(err)
		}
	}

	sim := NewSimulator(ms, nil, decimal.Zero, 1)
	sim.now = func() time.Time { return now }

	closed, err := sim.CloseExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if closed != 2 {
		t.Errorf("closed %d, want 2", closed)
	}
	want := map[string]model.MarketStatus{"past": model.MarketClosed, "edge": model.MarketClosed, "future": model.MarketOpen}
	for id, status := range want {
		m, err := ms.GetMarket(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if m.Status != status {
			t.Errorf("%s status = %s, want %s", id, m.Status, status)
		}
	}

	closed, _ = sim.CloseExpired(ctx)
	if closed != 0 {
		t.Errorf("second run closed %d, want 0", closed)
	}
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	sim := NewSimulator(seeded(t), nil, decimal.Zero, 1)
	if _, err := NewScheduler(context.Background(), sim, "not a cron spec", ""); err == nil {
		t.Error("expected an error for a malformed schedule")
	}
	s, err := NewScheduler(context.Background(), sim, "0 */5 * * * *", "30 * * * * *")
	if err != nil {
		t.Fatalf("valid schedules: %v", err)
	}
	s.Start()
	s.Stop()
}
