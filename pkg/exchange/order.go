package exchange

import "github.com/ethereum/go-ethereum/common"

// OrderStatus represents the lifecycle state of an order
type OrderStatus int8

const (
	OrderOpen OrderStatus = iota
	OrderCancelled
	OrderFilled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderCancelled:
		return "cancelled"
	case OrderFilled:
		return "filled"
	default:
		return "unknown"
	}
}

// Order is a limit order resting on the exchange. Every field except
// Status is immutable after creation; Status only moves Open->Cancelled
// or Open->Filled, and never leaves a terminal state.
type Order struct {
	ID      uint64         // Unique, strictly increasing, starts at 1
	Creator common.Address // Account that posted the order

	TokenGet   common.Address // Token the creator wants to receive
	AmountGet  uint64         // Amount of TokenGet, > 0
	TokenGive  common.Address // Token the creator offers from escrow
	AmountGive uint64         // Amount of TokenGive, > 0

	Status    OrderStatus
	CreatedAt int64 // Unix milliseconds
}

// Terminal returns true once the order can no longer transition.
func (o *Order) Terminal() bool {
	return o.Status == OrderCancelled || o.Status == OrderFilled
}
