package exchange

import "github.com/ethereum/go-ethereum/common"

// Token is the narrow capability the engine consumes from a fungible
// token contract. The spender side of every call is the exchange's own
// custody identity; implementations bind it at construction.
//
// The engine treats any error from these calls as a hard failure of the
// enclosing operation. It never calls approve - approval is performed
// out of band by the token owner before deposit.
type Token interface {
	// TransferFrom moves amount from owner to the given recipient using
	// the exchange's allowance. Used by Deposit.
	TransferFrom(owner, to common.Address, amount uint64) error

	// Transfer moves amount out of the exchange's own holdings.
	// Used by Withdraw.
	Transfer(to common.Address, amount uint64) error

	// BalanceOf reports owner's balance held directly in the token
	// contract (not escrow).
	BalanceOf(owner common.Address) uint64
}

// TokenResolver maps a token identity to its capability. Injected at
// engine construction so the engine never dereferences token addresses
// itself.
type TokenResolver func(token common.Address) (Token, error)
