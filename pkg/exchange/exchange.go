package exchange

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/hitswap/hitswap/pkg/util"
)

// BalanceRecord is one persisted ledger entry.
type BalanceRecord struct {
	Token   common.Address
	Account common.Address
	Amount  uint64
}

// Store is the optional write-behind persistence layer. In-memory state
// is authoritative; the store is updated after each committed mutation
// and replayed via Snapshot on startup.
type Store interface {
	SaveBalance(rec BalanceRecord) error
	SaveOrder(o Order) error
	SaveOrderCount(n uint64) error
	// SaveTrade writes all balance legs of a fill plus the filled order
	// in one atomic batch.
	SaveTrade(recs []BalanceRecord, o Order) error
}

// Snapshot is the full durable state, used to rebuild the engine.
type Snapshot struct {
	Balances   []BalanceRecord
	Orders     []Order
	OrderCount uint64
}

// Config carries the fixed construction-time parameters of the engine.
// FeePercent and FeeAccount are immutable for the engine's lifetime.
type Config struct {
	FeeAccount common.Address
	FeePercent uint64
	Custody    common.Address // The exchange's own identity in token contracts
	Resolver   TokenResolver
	Clock      util.Clock         // nil -> util.RealClock
	Store      Store              // nil -> memory only
	Logger     *zap.SugaredLogger // nil -> no-op
}

// Exchange is the custodial token exchange engine: escrow balance
// ledger, order book and fee-bearing trade settlement.
//
// A single mutex serializes every mutating operation end to end,
// including the external token capability call it may make. That mutex
// doubles as a single-entry reentrancy guard over the whole public
// surface: untrusted capability code cannot re-enter the engine and
// observe or create an inconsistent state. Read-only queries take the
// read lock and therefore always see a fully applied state.
type Exchange struct {
	mu sync.RWMutex

	feeAccount common.Address
	feePercent uint64
	custody    common.Address
	resolve    TokenResolver

	books      *ledger
	orders     map[uint64]*Order
	orderCount uint64 // Increments exactly once per successful MakeOrder

	clock    util.Clock
	store    Store
	notifier *Notifier
	log      *zap.SugaredLogger
}

// New creates an engine with zero balances and an empty order book.
func New(cfg Config) *Exchange {
	clock := cfg.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Exchange{
		feeAccount: cfg.FeeAccount,
		feePercent: cfg.FeePercent,
		custody:    cfg.Custody,
		resolve:    cfg.Resolver,
		books:      newLedger(),
		orders:     make(map[uint64]*Order),
		clock:      clock,
		store:      cfg.Store,
		notifier:   NewNotifier(),
		log:        logger,
	}
}

// Restore loads a snapshot into a fresh engine. Call before serving;
// it replaces any existing in-memory state and emits no events.
func (x *Exchange) Restore(snap Snapshot) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.books = newLedger()
	for _, rec := range snap.Balances {
		x.books.credit(rec.Token, rec.Account, rec.Amount)
	}

	x.orders = make(map[uint64]*Order, len(snap.Orders))
	for i := range snap.Orders {
		o := snap.Orders[i]
		x.orders[o.ID] = &o
	}
	x.orderCount = snap.OrderCount

	x.log.Infow("state_restored",
		"balances", len(snap.Balances),
		"orders", len(snap.Orders),
		"order_count", snap.OrderCount)
}

// FeeAccount returns the fixed fee recipient.
func (x *Exchange) FeeAccount() common.Address { return x.feeAccount }

// FeePercent returns the fixed fee percentage charged to fillers.
func (x *Exchange) FeePercent() uint64 { return x.feePercent }

// Notifier exposes the event feed for observers.
func (x *Exchange) Notifier() *Notifier { return x.notifier }

// Deposit moves amount of token from account into exchange custody via
// the token's transferFrom (the account must have approved the exchange
// beforehand) and credits the escrow ledger.
func (x *Exchange) Deposit(token, account common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: deposit amount must be positive", ErrInvalidAmount)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.books.balanceOf(token, account) > math.MaxUint64-amount {
		return fmt.Errorf("%w: deposit would overflow the escrow balance", ErrInvalidAmount)
	}

	tok, err := x.resolve(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferRejected, err)
	}

	// External call first: no ledger credit unless custody actually
	// received the tokens.
	if err := tok.TransferFrom(account, x.custody, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferRejected, err)
	}

	balance := x.books.credit(token, account, amount)
	x.persistBalance(token, account, balance)

	x.notifier.publish(DepositEvent{Token: token, Account: account, Amount: amount, Balance: balance})
	x.log.Infow("deposit", "token", token.Hex(), "account", account.Hex(), "amount", amount, "balance", balance)
	return nil
}

// Withdraw debits the escrow ledger and sends amount of token back to
// account. The debit is committed before the external transfer; if the
// transfer is rejected the debit is rolled back under the same lock, so
// the intermediate state is never observable.
func (x *Exchange) Withdraw(token, account common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", ErrInvalidAmount)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	tok, err := x.resolve(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferRejected, err)
	}

	balance, err := x.books.debit(token, account, amount)
	if err != nil {
		return err
	}

	if err := tok.Transfer(account, amount); err != nil {
		x.books.credit(token, account, amount)
		return fmt.Errorf("%w: %v", ErrTransferRejected, err)
	}

	x.persistBalance(token, account, balance)

	x.notifier.publish(WithdrawEvent{Token: token, Account: account, Amount: amount, Balance: balance})
	x.log.Infow("withdraw", "token", token.Hex(), "account", account.Hex(), "amount", amount, "balance", balance)
	return nil
}

// BalanceOf reports the escrowed amount, 0 for unseen keys.
func (x *Exchange) BalanceOf(token, account common.Address) uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.books.balanceOf(token, account)
}

// MakeOrder posts a limit order: the creator wants amountGet of
// tokenGet in exchange for amountGive of tokenGive from escrow. The
// creator must currently hold amountGive of tokenGive in escrow. The
// check happens at creation time only - nothing is locked, so a later
// withdrawal can leave the order unfundable and the fill fails at
// settlement time instead.
func (x *Exchange) MakeOrder(creator, tokenGet common.Address, amountGet uint64, tokenGive common.Address, amountGive uint64) (uint64, error) {
	if amountGet == 0 || amountGive == 0 {
		return 0, fmt.Errorf("%w: order amounts must be positive", ErrInvalidAmount)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if have := x.books.balanceOf(tokenGive, creator); have < amountGive {
		return 0, fmt.Errorf("%w: creator %s has %d of %s escrowed, order gives %d",
			ErrInsufficientBalance, creator.Hex(), have, tokenGive.Hex(), amountGive)
	}

	x.orderCount++
	o := &Order{
		ID:         x.orderCount,
		Creator:    creator,
		TokenGet:   tokenGet,
		AmountGet:  amountGet,
		TokenGive:  tokenGive,
		AmountGive: amountGive,
		Status:     OrderOpen,
		CreatedAt:  x.clock.Now().UnixMilli(),
	}
	x.orders[o.ID] = o

	if x.store != nil {
		if err := x.store.SaveOrder(*o); err != nil {
			x.log.Errorw("persist_order_failed", "id", o.ID, "err", err)
		}
		if err := x.store.SaveOrderCount(x.orderCount); err != nil {
			x.log.Errorw("persist_order_count_failed", "err", err)
		}
	}

	x.notifier.publish(OrderEvent{
		ID:         o.ID,
		Creator:    o.Creator,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Timestamp:  o.CreatedAt,
	})
	x.log.Infow("order_created", "id", o.ID, "creator", creator.Hex())
	return o.ID, nil
}

// CancelOrder transitions an Open order to Cancelled. Only the creator
// may cancel; Cancelled is terminal.
func (x *Exchange) CancelOrder(caller common.Address, id uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	o, err := x.openOrder(id)
	if err != nil {
		return err
	}
	if o.Creator != caller {
		return fmt.Errorf("%w: %s is not the creator of order %d", ErrUnauthorized, caller.Hex(), id)
	}

	o.Status = OrderCancelled
	if x.store != nil {
		if err := x.store.SaveOrder(*o); err != nil {
			x.log.Errorw("persist_order_failed", "id", o.ID, "err", err)
		}
	}

	x.notifier.publish(CancelEvent{
		ID:         o.ID,
		Creator:    o.Creator,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Timestamp:  x.clock.Now().UnixMilli(),
	})
	x.log.Infow("order_cancelled", "id", id)
	return nil
}

// FillOrder settles an Open order on behalf of filler. The filler pays
// amountGet plus the fee in tokenGet; the creator's escrowed tokenGive
// moves to the filler; the fee goes to the fee account. All six ledger
// legs and the status transition commit as one unit: every precondition
// is validated before the first mutation, so a failure leaves no
// partial effect. Self-fill is legal - no identity check beyond balance
// sufficiency.
func (x *Exchange) FillOrder(filler common.Address, id uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	o, err := x.openOrder(id)
	if err != nil {
		return err
	}

	// Fee rounds down: truncation favors the ledger, never the filler.
	// Wrapped arithmetic would understate the fee or the filler's debit,
	// so the math is guarded before any state is touched.
	if x.feePercent > 0 && o.AmountGet > math.MaxUint64/x.feePercent {
		return fmt.Errorf("%w: order %d amount too large for fee arithmetic", ErrInvalidAmount, id)
	}
	fee := o.AmountGet * x.feePercent / 100
	if o.AmountGet > math.MaxUint64-fee {
		return fmt.Errorf("%w: order %d amount plus fee overflows", ErrInvalidAmount, id)
	}

	// Validate both debits up front; mutate only once both can succeed.
	if have := x.books.balanceOf(o.TokenGet, filler); have < o.AmountGet+fee {
		return fmt.Errorf("%w: filler %s has %d of %s escrowed, fill needs %d",
			ErrInsufficientBalance, filler.Hex(), have, o.TokenGet.Hex(), o.AmountGet+fee)
	}
	if have := x.books.balanceOf(o.TokenGive, o.Creator); have < o.AmountGive {
		return fmt.Errorf("%w: creator %s has %d of %s escrowed, order gives %d",
			ErrInsufficientBalance, o.Creator.Hex(), have, o.TokenGive.Hex(), o.AmountGive)
	}
	if x.books.balanceOf(o.TokenGet, o.Creator) > math.MaxUint64-o.AmountGet ||
		x.books.balanceOf(o.TokenGet, x.feeAccount) > math.MaxUint64-fee ||
		x.books.balanceOf(o.TokenGive, filler) > math.MaxUint64-o.AmountGive {
		return fmt.Errorf("%w: fill of order %d would overflow a balance", ErrInvalidAmount, id)
	}

	x.books.debit(o.TokenGet, filler, o.AmountGet+fee)
	x.books.credit(o.TokenGet, o.Creator, o.AmountGet)
	x.books.credit(o.TokenGet, x.feeAccount, fee)
	x.books.debit(o.TokenGive, o.Creator, o.AmountGive)
	x.books.credit(o.TokenGive, filler, o.AmountGive)
	o.Status = OrderFilled

	if x.store != nil {
		recs := []BalanceRecord{
			{Token: o.TokenGet, Account: filler, Amount: x.books.balanceOf(o.TokenGet, filler)},
			{Token: o.TokenGet, Account: o.Creator, Amount: x.books.balanceOf(o.TokenGet, o.Creator)},
			{Token: o.TokenGet, Account: x.feeAccount, Amount: x.books.balanceOf(o.TokenGet, x.feeAccount)},
			{Token: o.TokenGive, Account: o.Creator, Amount: x.books.balanceOf(o.TokenGive, o.Creator)},
			{Token: o.TokenGive, Account: filler, Amount: x.books.balanceOf(o.TokenGive, filler)},
		}
		if err := x.store.SaveTrade(recs, *o); err != nil {
			x.log.Errorw("persist_trade_failed", "id", o.ID, "err", err)
		}
	}

	x.notifier.publish(TradeEvent{
		ID:         o.ID,
		Filler:     filler,
		TokenGet:   o.TokenGet,
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive,
		AmountGive: o.AmountGive,
		Creator:    o.Creator,
		Timestamp:  x.clock.Now().UnixMilli(),
	})
	x.log.Infow("order_filled", "id", id, "filler", filler.Hex(), "fee", fee)
	return nil
}

// Order returns a copy of the order, or ErrOrderNotFound.
func (x *Exchange) Order(id uint64) (Order, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	o, ok := x.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	return *o, nil
}

// Orders returns copies of all orders sorted by id ascending.
func (x *Exchange) Orders() []Order {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]Order, 0, len(x.orders))
	for id := uint64(1); id <= x.orderCount; id++ {
		if o, ok := x.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// OrderCount returns the number of orders ever created.
func (x *Exchange) OrderCount() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.orderCount
}

// EscrowTotal sums all escrow balances of a token, fee account
// included. Used by conservation audits.
func (x *Exchange) EscrowTotal(token common.Address) uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.books.totalOf(token)
}

// Balances returns every non-zero ledger entry, unsorted.
func (x *Exchange) Balances() []BalanceRecord {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.books.snapshot()
}

// openOrder fetches an order that must exist and still be Open.
// Assumes the write lock is held.
func (x *Exchange) openOrder(id uint64) (*Order, error) {
	if id == 0 || id > x.orderCount {
		return nil, fmt.Errorf("%w: id %d out of range [1, %d]", ErrOrderNotFound, id, x.orderCount)
	}
	o := x.orders[id]
	if o == nil {
		// A restored snapshot can carry a counter ahead of the orders
		// actually recovered; ids in that gap do not exist.
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if o.Terminal() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotOpen, id, o.Status)
	}
	return o, nil
}

// persistBalance writes one ledger entry if a store is configured.
// Persistence is write-behind: memory is authoritative and a store
// error is logged, not rolled back.
func (x *Exchange) persistBalance(token, account common.Address, amount uint64) {
	if x.store == nil {
		return
	}
	if err := x.store.SaveBalance(BalanceRecord{Token: token, Account: account, Amount: amount}); err != nil {
		x.log.Errorw("persist_balance_failed", "token", token.Hex(), "account", account.Hex(), "err", err)
	}
}
