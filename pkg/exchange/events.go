package exchange

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Event is an immutable record of a completed state change. Events are
// a pure side channel for observers (UI, indexers): the engine never
// consults them for control decisions, emits each exactly once after
// the mutation is committed, and emits nothing on failure.
type Event interface {
	Kind() string
}

// DepositEvent records a successful escrow credit.
type DepositEvent struct {
	Token   common.Address `json:"token"`
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
	Balance uint64         `json:"balance"` // Escrow balance after the credit
}

// WithdrawEvent records a successful escrow debit back to the owner.
type WithdrawEvent struct {
	Token   common.Address `json:"token"`
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
	Balance uint64         `json:"balance"` // Escrow balance after the debit
}

// OrderEvent records a newly created order.
type OrderEvent struct {
	ID         uint64         `json:"id"`
	Creator    common.Address `json:"creator"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  uint64         `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive uint64         `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"`
}

// CancelEvent records an order cancelled by its creator.
type CancelEvent struct {
	ID         uint64         `json:"id"`
	Creator    common.Address `json:"creator"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  uint64         `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive uint64         `json:"amountGive"`
	Timestamp  int64          `json:"timestamp"` // Cancellation time
}

// TradeEvent records a settled fill, including both counterparties.
type TradeEvent struct {
	ID         uint64         `json:"id"`
	Filler     common.Address `json:"filler"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  uint64         `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive uint64         `json:"amountGive"`
	Creator    common.Address `json:"creator"`
	Timestamp  int64          `json:"timestamp"` // Fill time
}

func (DepositEvent) Kind() string  { return "deposit" }
func (WithdrawEvent) Kind() string { return "withdraw" }
func (OrderEvent) Kind() string    { return "order" }
func (CancelEvent) Kind() string   { return "cancel" }
func (TradeEvent) Kind() string    { return "trade" }

// Notifier is an append-only event feed with fan-out to subscribers.
// Slow subscribers are skipped, never blocked on.
type Notifier struct {
	mu    sync.RWMutex
	log   []Event
	subs  []chan Event
	hooks map[string][]func(Event) // kind -> handlers
}

func NewNotifier() *Notifier {
	return &Notifier{
		log:   make([]Event, 0, 1024),
		hooks: make(map[string][]func(Event)),
	}
}

// publish appends the event and fans it out. Called by the engine only
// after the corresponding mutation has committed.
func (n *Notifier) publish(e Event) {
	n.mu.Lock()
	n.log = append(n.log, e)
	for _, ch := range n.subs {
		select {
		case ch <- e:
		default:
			// Subscriber buffer full, drop for this subscriber
		}
	}
	hooks := n.hooks[e.Kind()]
	n.mu.Unlock()

	// Hooks run outside the notifier lock but still inside the engine's
	// mutation, so they observe the committed post-state.
	for _, fn := range hooks {
		fn(e)
	}
}

// On registers fn for every event of the given kind. Register before
// serving; handlers run synchronously on the publishing goroutine.
func (n *Notifier) On(kind string, fn func(Event)) {
	n.mu.Lock()
	n.hooks[kind] = append(n.hooks[kind], fn)
	n.mu.Unlock()
}

// Subscribe returns a channel receiving all events published after the
// call. buf bounds the per-subscriber queue.
func (n *Notifier) Subscribe(buf int) <-chan Event {
	ch := make(chan Event, buf)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Events returns a snapshot copy of the full event log.
func (n *Notifier) Events() []Event {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Event, len(n.log))
	copy(out, n.log)
	return out
}

// Len returns the number of events published so far.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.log)
}
