package exchange

import "errors"

// Engine error kinds. Every public operation either succeeds fully or
// fails with one of these and leaves no partial mutation behind.
// Callers discriminate with errors.Is; call sites wrap with context.
var (
	// ErrInsufficientBalance means a debit would drive an escrow balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrTransferRejected means the external token capability refused a
	// transferFrom/transfer call (missing approval, missing funds, or
	// unknown token).
	ErrTransferRejected = errors.New("token transfer rejected")

	// ErrOrderNotFound means the order id is outside [1, orderCount].
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotOpen means the order exists but is already Cancelled or
	// Filled. Both terminal states report identically; the distinction is
	// available via a subsequent order query.
	ErrOrderNotOpen = errors.New("order not open")

	// ErrUnauthorized means the caller is not the order's creator.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidAmount means a zero amount was supplied where a positive
	// amount is required.
	ErrInvalidAmount = errors.New("invalid amount")
)
