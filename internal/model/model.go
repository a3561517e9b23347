// Package model defines the core domain types shared across the market engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OwnerKind distinguishes the two kinds of cash-holding accounts.
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerCompany OwnerKind = "company"
)

// Owner identifies a user or company account.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// UserOwner returns the Owner for a user id.
func UserOwner(id string) Owner { return Owner{Kind: OwnerUser, ID: id} }

// CompanyOwner returns the Owner for a company id.
func CompanyOwner(id string) Owner { return Owner{Kind: OwnerCompany, ID: id} }

// Principal is the acting user for one request. It is resolved outside the
// core and passed into every mutating operation.
type Principal struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Account is the cash side of a user or company.
type Account struct {
	Owner Owner           `json:"owner"`
	Cash  decimal.Decimal `json:"cash"`
}

// User is a player account row.
type User struct {
	ID          string          `json:"id" db:"id"`
	DisplayName string          `json:"display_name" db:"display_name"`
	Email       string          `json:"email,omitempty" db:"email"`
	Cash        decimal.Decimal `json:"cash" db:"cash"`
	InitialCash decimal.Decimal `json:"initial_cash" db:"initial_cash"`
}

// AssetType is the market an asset trades in.
type AssetType string

const (
	AssetStock     AssetType = "Stock"
	AssetCrypto    AssetType = "Crypto"
	AssetCommodity AssetType = "Commodity"
	AssetForex     AssetType = "Forex"
)

// Asset is a tradable instrument. Price is shared mutable market state;
// MarketCap bounds trade impact and disables it when zero.
type Asset struct {
	Ticker    string          `json:"ticker" db:"ticker"`
	Name      string          `json:"name" db:"name"`
	Type      AssetType       `json:"type" db:"type"`
	Price     decimal.Decimal `json:"price" db:"price"`
	MarketCap decimal.Decimal `json:"market_cap" db:"market_cap"`
}

// Holding is a position of one owner in one asset. A holding with zero
// quantity does not exist.
type Holding struct {
	Owner    Owner           `json:"owner"`
	Ticker   string          `json:"ticker" db:"ticker"`
	Name     string          `json:"name,omitempty" db:"name"`
	Type     AssetType       `json:"type,omitempty" db:"type"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost" db:"avg_cost"`
}

// TransactionType is the side of a recorded trade.
type TransactionType string

const (
	TxBuy  TransactionType = "Buy"
	TxSell TransactionType = "Sell"
)

// Transaction is an immutable record of a settled trade.
// Once created, these are never modified or deleted.
type Transaction struct {
	ID        string          `json:"id" db:"id"`
	Seq       int64           `json:"seq" db:"seq"` // assigned by the store on insert, strictly increasing
	Owner     Owner           `json:"owner"`
	Type      TransactionType `json:"type" db:"type"`
	Ticker    string          `json:"ticker" db:"ticker"`
	Name      string          `json:"name" db:"name"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Value     decimal.Decimal `json:"value" db:"value"` // quantity * price
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Company is a player-created company. Share price is never stored; see
// package equity.
type Company struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Industry    string          `json:"industry" db:"industry"`
	Description string          `json:"description" db:"description"`
	Cash        decimal.Decimal `json:"cash" db:"cash"`
	TotalShares decimal.Decimal `json:"total_shares" db:"total_shares"`
	CreatorID   string          `json:"creator_id" db:"creator_id"`
}

// RoleCEO is the only company role allowed to trade with company cash.
const RoleCEO = "CEO"

// CompanyMember links a user to a company with a role.
type CompanyMember struct {
	CompanyID string `json:"company_id" db:"company_id"`
	UserID    string `json:"user_id" db:"user_id"`
	Role      string `json:"role" db:"role"`
}

// CompanyShare is a user's equity stake in a company.
type CompanyShare struct {
	UserID    string          `json:"user_id" db:"user_id"`
	CompanyID string          `json:"company_id" db:"company_id"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
}

// MarketStatus is the lifecycle state of a prediction market.
type MarketStatus string

const (
	MarketOpen     MarketStatus = "open"
	MarketClosed   MarketStatus = "closed"
	MarketResolved MarketStatus = "resolved"
)

// PredictionMarket is a pari-mutuel market. TotalPool always equals the sum
// of its outcomes' pools.
type PredictionMarket struct {
	ID                 string          `json:"id" db:"id"`
	Title              string          `json:"title" db:"title"`
	Category           string          `json:"category" db:"category"`
	Status             MarketStatus    `json:"status" db:"status"`
	ClosingAt          time.Time       `json:"closing_at" db:"closing_at"`
	TotalPool          decimal.Decimal `json:"total_pool" db:"total_pool"`
	CreatorID          string          `json:"creator_id" db:"creator_id"`
	CreatorDisplayName string          `json:"creator_display_name" db:"creator_display_name"`
	Outcomes           []MarketOutcome `json:"outcomes"`
}

// MarketOutcome is one possible result of a prediction market.
type MarketOutcome struct {
	ID       string          `json:"id" db:"id"`
	MarketID string          `json:"market_id" db:"market_id"`
	Name     string          `json:"name" db:"name"`
	Pool     decimal.Decimal `json:"pool" db:"pool"`
}

// Bet is an immutable stake on one outcome.
type Bet struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	OutcomeID string          `json:"outcome_id" db:"outcome_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Sentiment of a generated news item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NewsItem is generated flavour text for an asset. It never feeds pricing.
type NewsItem struct {
	Headline    string    `json:"headline"`
	Article     string    `json:"article"`
	Sentiment   Sentiment `json:"sentiment"`
	ImpactScore int       `json:"impactScore"`
}
