// Package market runs the periodic background jobs of the engine: the
// random-walk price tick and closing of expired prediction markets.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/impact"
	"github.com/finsim/market-engine/internal/ledger"
	"github.com/finsim/market-engine/internal/metrics"
	"github.com/finsim/market-engine/internal/model"
	"github.com/finsim/market-engine/internal/store"
)

// Store is the subset of store.Store the simulator needs.
type Store interface {
	ListAssets(ctx context.Context) ([]model.Asset, error)
	ListMarkets(ctx context.Context) ([]model.PredictionMarket, error)
	UpdatePrice(ctx context.Context, ticker string, fn store.PriceFunc) (*model.Asset, error)
	CloseExpiredMarkets(ctx context.Context, now time.Time) (int, error)
}

// Simulator moves prices between trades and expires markets.
type Simulator struct {
	store      Store
	pub        impact.Publisher
	volatility decimal.Decimal
	now        func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulator creates a simulator. Each tick moves every price by up to
// volatility in either direction. Pass nil for pub if broadcasting is not
// needed.
func NewSimulator(st Store, pub impact.Publisher, volatility decimal.Decimal, seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		store:      st,
		pub:        pub,
		volatility: volatility,
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(seed)),
	}
}

// Step returns price moved by a multiplicative step of volatility*n, where n
// is in [-1, 1], rounded to price scale and floored at impact.MinPrice.
func Step(price, volatility decimal.Decimal, n float64) decimal.Decimal {
	move := volatility.Mul(decimal.NewFromFloat(n))
	next := price.Mul(decimal.NewFromInt(1).Add(move)).Round(ledger.PriceScale)
	return impact.Floor(next)
}

func (s *Simulator) draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()*2 - 1
}

// Tick applies one random-walk step to every asset. Each asset is updated in
// its own store write; a failed asset is logged and skipped. It returns the
// number of assets whose price changed.
func (s *Simulator) Tick(ctx context.Context) (int, error) {
	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		metrics.SimulationTicks.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("list assets: %w", err)
	}

	moved := 0
	for _, a := range assets {
		n := s.draw()
		updated, err := s.store.UpdatePrice(ctx, a.Ticker, func(cur model.Asset) (decimal.Decimal, bool) {
			next := Step(cur.Price, s.volatility, n)
			return next, !next.Equal(cur.Price)
		})
		if err != nil {
			slog.Warn("simulation tick failed", "ticker", a.Ticker, "err", err)
			continue
		}
		if updated.Price.Equal(a.Price) {
			continue
		}
		moved++
		if s.pub != nil {
			s.pub.PublishPrice(*updated, "tick")
		}
	}

	metrics.SimulationTicks.WithLabelValues("ok").Inc()
	slog.Info("market tick complete", "assets", len(assets), "moved", moved)
	return moved, nil
}

// CloseExpired closes open markets whose closing time has passed and
// refreshes the open-market gauge.
func (s *Simulator) CloseExpired(ctx context.Context) (int, error) {
	closed, err := s.store.CloseExpiredMarkets(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("close expired markets: %w", err)
	}
	if closed > 0 {
		slog.Info("markets closed", "count", closed)
	}

	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return closed, fmt.Errorf("list markets: %w", err)
	}
	open := 0
	for _, m := range markets {
		if m.Status == model.MarketOpen {
			open++
		}
	}
	metrics.ActiveMarkets.Set(float64(open))
	return closed, nil
}
