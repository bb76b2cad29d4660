package api

// Request and response types for REST endpoints and WebSocket messages.

// ==============================
// REST Request Types
// ==============================

// DepositRequest moves tokens from the account's wallet into escrow.
// The account must have approved the exchange on the token beforehand.
type DepositRequest struct {
	Token   string `json:"token"`   // Token address (hex)
	Account string `json:"account"` // Depositing account (hex)
	Amount  uint64 `json:"amount"`
}

// WithdrawRequest moves escrowed tokens back to the account's wallet.
type WithdrawRequest struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// MakeOrderRequest posts a limit order.
type MakeOrderRequest struct {
	Creator    string `json:"creator"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  uint64 `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive uint64 `json:"amountGive"`
}

// CancelOrderRequest cancels an open order; Caller must be its creator.
type CancelOrderRequest struct {
	Caller string `json:"caller"`
}

// FillOrderRequest settles an open order on behalf of Filler.
type FillOrderRequest struct {
	Filler string `json:"filler"`
}

// ==============================
// REST Response Types
// ==============================

// BalanceInfo reports one escrow balance.
type BalanceInfo struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// OrderInfo reports one order with its lifecycle status.
type OrderInfo struct {
	ID         uint64 `json:"id"`
	Creator    string `json:"creator"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  uint64 `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive uint64 `json:"amountGive"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"` // Unix milliseconds
}

// MakeOrderResponse returns the allocated order id.
type MakeOrderResponse struct {
	ID uint64 `json:"id"`
}

// TokenInfo describes one deployed token.
type TokenInfo struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply uint64 `json:"totalSupply"`
}

// StatusResponse summarizes the engine for dashboards.
type StatusResponse struct {
	OrderCount uint64 `json:"orderCount"`
	FeeAccount string `json:"feeAccount"`
	FeePercent uint64 `json:"feePercent"`
	Events     int    `json:"events"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Types
// ==============================

// WSSubscribeRequest subscribes or unsubscribes event channels.
// Channels are event kinds ("deposit", "withdraw", "order", "cancel",
// "trade") or "events" for everything.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// WSEvent wraps an engine event for the wire.
type WSEvent struct {
	Channel string `json:"channel"`
	Data    any    `json:"data"`
}
