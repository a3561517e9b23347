// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/model"
)

var (
	// ErrNotFound is returned when a user, asset, holding, company or market
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an insert violates a uniqueness rule.
	ErrConflict = errors.New("already exists")

	// ErrTxConflict is returned when a transaction kept losing serialization
	// races and gave up.
	ErrTxConflict = errors.New("transaction conflict, please retry")
)

// PriceFunc computes a new price from the current asset. Returning false
// leaves the stored price untouched.
type PriceFunc = func(a model.Asset) (decimal.Decimal, bool)

// Reader is the read side shared by the store and open transactions. Inside
// a transaction PostgreSQL reads of accounts, holdings, companies, shares and
// markets lock the returned rows until commit.
type Reader interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetAccount(ctx context.Context, owner model.Owner) (*model.Account, error)

	GetAsset(ctx context.Context, ticker string) (*model.Asset, error)
	ListAssets(ctx context.Context) ([]model.Asset, error)

	// GetHolding returns ErrNotFound when the owner holds none of ticker.
	GetHolding(ctx context.Context, owner model.Owner, ticker string) (*model.Holding, error)
	ListHoldings(ctx context.Context, owner model.Owner) ([]model.Holding, error)

	// ListTransactions returns the owner's trade log, newest first by Seq.
	ListTransactions(ctx context.Context, owner model.Owner) ([]model.Transaction, error)

	GetCompany(ctx context.Context, id string) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	GetMember(ctx context.Context, companyID, userID string) (*model.CompanyMember, error)
	ListMembers(ctx context.Context, companyID string) ([]model.CompanyMember, error)
	GetCompanyShare(ctx context.Context, userID, companyID string) (*model.CompanyShare, error)
	ListSharesByUser(ctx context.Context, userID string) ([]model.CompanyShare, error)

	// GetMarket returns the market with its outcomes in creation order.
	GetMarket(ctx context.Context, id string) (*model.PredictionMarket, error)
	ListMarkets(ctx context.Context) ([]model.PredictionMarket, error)
}

// Tx is one all-or-nothing unit of work. Nothing written through a Tx is
// visible outside it until the surrounding InTx returns nil.
type Tx interface {
	Reader

	InsertUser(ctx context.Context, u *model.User) error
	// SetCash overwrites the cash of a user or company account.
	SetCash(ctx context.Context, owner model.Owner, cash decimal.Decimal) error

	// PutHolding inserts or replaces the (owner, ticker) holding.
	PutHolding(ctx context.Context, h *model.Holding) error
	DeleteHolding(ctx context.Context, owner model.Owner, ticker string) error

	// InsertTransaction appends t and sets t.Seq.
	InsertTransaction(ctx context.Context, t *model.Transaction) error

	InsertCompany(ctx context.Context, c *model.Company) error
	SetTotalShares(ctx context.Context, companyID string, totalShares decimal.Decimal) error
	InsertMember(ctx context.Context, m *model.CompanyMember) error
	PutCompanyShare(ctx context.Context, s *model.CompanyShare) error

	// InsertMarket persists the market together with its outcomes.
	InsertMarket(ctx context.Context, m *model.PredictionMarket) error
	// SetPools writes the market's total pool and every outcome pool.
	SetPools(ctx context.Context, m *model.PredictionMarket) error
	InsertBet(ctx context.Context, b *model.Bet) error
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	Reader

	// InTx runs fn inside one transaction. Any error from fn rolls back
	// every write made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// UpdatePrice applies fn to the current asset in its own short
	// transaction and returns the asset as stored afterwards.
	UpdatePrice(ctx context.Context, ticker string, fn PriceFunc) (*model.Asset, error)

	// UpsertAsset inserts a catalogue entry or refreshes its name, type and
	// market cap. An existing price is kept.
	UpsertAsset(ctx context.Context, a *model.Asset) error

	// CloseExpiredMarkets marks open markets with closingAt <= now as closed
	// and returns how many were closed.
	CloseExpiredMarkets(ctx context.Context, now time.Time) (int, error)
}
