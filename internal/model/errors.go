package model

import "errors"

// Error taxonomy shared by the ledger, strategy and simulator. Components
// wrap these with context; callers match with errors.Is.
var (
	// ErrInsufficientBalance is returned when a debit, buy or sell exceeds
	// the available funds or quantity.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNoMarketData is returned when a price or bar lookup fails or
	// comes back empty.
	ErrNoMarketData = errors.New("no market data")

	// ErrInvalidParameter is returned for inputs rejected at the boundary,
	// before any state is touched.
	ErrInvalidParameter = errors.New("invalid parameter")
)
