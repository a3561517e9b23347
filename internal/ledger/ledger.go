// Package ledger implements the account primitives of the engine: cash
// debit/credit and weighted-average cost accounting for holdings.
//
// Functions here mutate in-memory values only. Callers run them inside the
// store transaction that reads and writes those values, so a returned error
// means nothing was persisted.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/finsim/market-engine/internal/model"
)

var (
	// ErrInsufficientFunds is returned when an account cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientQuantity is returned when a disposal exceeds the held quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrNoSuchHolding is returned when disposing of an asset that is not held.
	ErrNoSuchHolding = errors.New("no such holding")

	// ErrInvalidAmount is returned for zero or negative amounts and quantities.
	ErrInvalidAmount = errors.New("amount must be positive")
)

var (
	// CashScale is the number of decimal places kept for cash (numeric(15,2)).
	CashScale int32 = 2

	// PriceScale is the number of decimal places kept for prices and average cost.
	PriceScale int32 = 8

	// DustEpsilon is the quantity below which a position is treated as fully
	// liquidated and removed. It applies to user holdings, company holdings
	// and company shares alike.
	DustEpsilon = decimal.New(1, -9)
)

// Debit removes amount from the account's cash.
func Debit(a *model.Account, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	if a.Cash.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Cash = a.Cash.Sub(amount)
	return nil
}

// Credit adds a non-negative amount to the account's cash.
func Credit(a *model.Account, amount decimal.Decimal) {
	a.Cash = a.Cash.Add(amount)
}

// Notional returns quantity × price rounded to cash precision.
func Notional(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price).Round(CashScale)
}

// ApplyAcquisition merges a new lot into h. A holding with zero quantity is
// treated as new and takes the lot price as its average cost; otherwise:
//
//	avgCost' = (avgCost*qty + price*addQty) / (qty + addQty)
//
// No P&L is recognised on acquisition.
func ApplyAcquisition(h *model.Holding, addQty, addPrice decimal.Decimal) error {
	if !addQty.IsPositive() || addPrice.IsNegative() {
		return ErrInvalidAmount
	}
	if !h.Quantity.IsPositive() {
		h.Quantity = addQty
		h.AvgCost = addPrice
		return nil
	}

	newQty := h.Quantity.Add(addQty)
	cost := h.AvgCost.Mul(h.Quantity).Add(addPrice.Mul(addQty))
	h.AvgCost = cost.Div(newQty).Round(PriceScale)
	h.Quantity = newQty
	return nil
}

// ApplyDisposal removes removeQty from h. Average cost is left unchanged.
// It reports liquidated=true when the remainder is below DustEpsilon; the
// caller must then delete the holding instead of saving it.
func ApplyDisposal(h *model.Holding, removeQty decimal.Decimal) (liquidated bool, err error) {
	if h == nil {
		return false, ErrNoSuchHolding
	}
	if !removeQty.IsPositive() {
		return false, ErrInvalidAmount
	}
	if removeQty.GreaterThan(h.Quantity) {
		return false, ErrInsufficientQuantity
	}

	h.Quantity = h.Quantity.Sub(removeQty)
	if h.Quantity.LessThan(DustEpsilon) {
		h.Quantity = decimal.Zero
		return true, nil
	}
	return false, nil
}

// IsDust reports whether qty is small enough to be treated as zero.
func IsDust(qty decimal.Decimal) bool {
	return qty.LessThan(DustEpsilon)
}
