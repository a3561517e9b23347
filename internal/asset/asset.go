// Package asset handles ticker normalization, asset type parsing, and the
// default tradable catalogue.
package asset

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/model"
)

var validTypes = map[model.AssetType]bool{
	model.AssetStock:     true,
	model.AssetCrypto:    true,
	model.AssetCommodity: true,
	model.AssetForex:     true,
}

// tickerRegex matches upper-case symbols such as AAPL, BRK.B, BTC-USD or EUR/USD.
var tickerRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-/]{0,15}$`)

var (
	ErrInvalidTicker = errors.New("asset: invalid ticker format")
	ErrInvalidType   = errors.New("asset: unsupported asset type")
)

// NormalizeTicker trims and upper-cases a ticker and validates its format.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerRegex.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return t, nil
}

// ParseType parses an asset type case-insensitively.
func ParseType(s string) (model.AssetType, error) {
	in := strings.TrimSpace(s)
	for t := range validTypes {
		if strings.EqualFold(string(t), in) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidType, s)
}

// Validate checks a catalogue entry before it is stored.
func Validate(a model.Asset) error {
	if _, err := NormalizeTicker(a.Ticker); err != nil {
		return err
	}
	if !validTypes[a.Type] {
		return fmt.Errorf("%w: %s", ErrInvalidType, a.Type)
	}
	if !a.Price.IsPositive() {
		return fmt.Errorf("asset %s: price must be positive", a.Ticker)
	}
	if a.MarketCap.IsNegative() {
		return fmt.Errorf("asset %s: market cap must not be negative", a.Ticker)
	}
	return nil
}

func entry(ticker, name string, typ model.AssetType, price, marketCap string) model.Asset {
	return model.Asset{
		Ticker:    ticker,
		Name:      name,
		Type:      typ,
		Price:     decimal.RequireFromString(price),
		MarketCap: decimal.RequireFromString(marketCap),
	}
}

// DefaultCatalogue returns the assets seeded into an empty store. Forex pairs
// carry a zero market cap and are exempt from trade impact.
func DefaultCatalogue() []model.Asset {
	return []model.Asset{
		entry("AAPL", "Apple Inc.", model.AssetStock, "189.50", "2950000000000"),
		entry("MSFT", "Microsoft Corp.", model.AssetStock, "415.20", "3080000000000"),
		entry("NVDA", "NVIDIA Corp.", model.AssetStock, "875.30", "2160000000000"),
		entry("TSLA", "Tesla Inc.", model.AssetStock, "175.40", "558000000000"),
		entry("AMZN", "Amazon.com Inc.", model.AssetStock, "178.10", "1850000000000"),
		entry("BTC", "Bitcoin", model.AssetCrypto, "67250.00", "1320000000000"),
		entry("ETH", "Ethereum", model.AssetCrypto, "3480.00", "418000000000"),
		entry("SOL", "Solana", model.AssetCrypto, "148.75", "66000000000"),
		entry("XAU", "Gold", model.AssetCommodity, "2330.40", "15600000000000"),
		entry("WTI", "Crude Oil WTI", model.AssetCommodity, "81.20", "2100000000000"),
		entry("EUR/USD", "Euro / US Dollar", model.AssetForex, "1.0850", "0"),
		entry("GBP/USD", "British Pound / US Dollar", model.AssetForex, "1.2710", "0"),
	}
}

// Upserter stores catalogue entries, keeping the live price of assets that
// already exist.
type Upserter interface {
	UpsertAsset(ctx context.Context, a *model.Asset) error
}

// Seed validates and upserts every asset in catalogue.
func Seed(ctx context.Context, u Upserter, catalogue []model.Asset) error {
	for i := range catalogue {
		a := catalogue[i]
		if err := Validate(a); err != nil {
			return err
		}
		if err := u.UpsertAsset(ctx, &a); err != nil {
			return fmt.Errorf("seed %s: %w", a.Ticker, err)
		}
	}
	return nil
}
