package tests

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hitswap/hitswap/pkg/exchange"
	"github.com/hitswap/hitswap/pkg/storage"
	"github.com/hitswap/hitswap/pkg/token"
)

var (
	deployer   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	custody    = common.HexToAddress("0xE0C0000000000000000000000000000000000001")
	feeAccount = common.HexToAddress("0xFEE0000000000000000000000000000000000000")
	alice      = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob        = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

type harness struct {
	engine   *exchange.Exchange
	registry *token.Registry
	store    *storage.Store
	hit      *token.Token
	meth     *token.Token
	dbPath   string
}

// newTestHarness wires tokens, storage and engine the way the node does.
// Each test gets a unique database path to avoid Pebble lock conflicts.
func newTestHarness(t *testing.T) *harness {
	t.Helper()
	dbPath := fmt.Sprintf("./tmp_test_exchange_%s.db", t.Name())

	os.RemoveAll(dbPath)
	t.Cleanup(func() {
		os.RemoveAll(dbPath)
	})

	store, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	registry := token.NewRegistry()
	hit := token.Deploy("Hit Token", "HIT", 1_000_000, deployer)
	meth := token.Deploy("Mock Ether", "mETH", 1_000_000, deployer)
	for _, tok := range []*token.Token{hit, meth} {
		if err := registry.Register(tok); err != nil {
			t.Fatalf("failed to register token: %v", err)
		}
	}

	engine := exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: 10,
		Custody:    custody,
		Resolver: func(addr common.Address) (exchange.Token, error) {
			bound, err := registry.Bind(addr, custody)
			if err != nil {
				return nil, err
			}
			return bound, nil
		},
		Store: store,
	})

	return &harness{
		engine:   engine,
		registry: registry,
		store:    store,
		hit:      hit,
		meth:     meth,
		dbPath:   dbPath,
	}
}

// fund moves wallet tokens to account, approves the exchange and deposits.
func (h *harness) fund(t *testing.T, tok *token.Token, account common.Address, amount uint64) {
	t.Helper()
	if err := tok.Transfer(deployer, account, amount); err != nil {
		t.Fatalf("wallet transfer failed: %v", err)
	}
	tok.Approve(account, custody, amount)
	if err := h.engine.Deposit(tok.Address(), account, amount); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
}

// TestExchangeLifecycle runs a full deposit, order, cancel, fill and
// withdraw sequence against real tokens.
func TestExchangeLifecycle(t *testing.T) {
	h := newTestHarness(t)

	h.fund(t, h.meth, alice, 1000)
	h.fund(t, h.hit, bob, 1000)

	// Alice offers 100 mETH for 50 HIT, thinks better of it.
	cancelled, err := h.engine.MakeOrder(alice, h.hit.Address(), 50, h.meth.Address(), 100)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := h.engine.CancelOrder(alice, cancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Second try gets filled by bob. Fee is 10% of the 50 HIT leg.
	id, err := h.engine.MakeOrder(alice, h.hit.Address(), 50, h.meth.Address(), 100)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := h.engine.FillOrder(bob, id); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	if got := h.engine.BalanceOf(h.hit.Address(), alice); got != 50 {
		t.Errorf("alice HIT escrow = %d, want 50", got)
	}
	if got := h.engine.BalanceOf(h.meth.Address(), alice); got != 900 {
		t.Errorf("alice mETH escrow = %d, want 900", got)
	}
	if got := h.engine.BalanceOf(h.hit.Address(), bob); got != 945 { // 1000 - 50 - fee 5
		t.Errorf("bob HIT escrow = %d, want 945", got)
	}
	if got := h.engine.BalanceOf(h.meth.Address(), bob); got != 100 {
		t.Errorf("bob mETH escrow = %d, want 100", got)
	}
	if got := h.engine.BalanceOf(h.hit.Address(), feeAccount); got != 5 {
		t.Errorf("fee HIT escrow = %d, want 5", got)
	}

	// Bob takes his winnings back to his wallet.
	if err := h.engine.Withdraw(h.meth.Address(), bob, 100); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if got := h.meth.BalanceOf(bob); got != 100 {
		t.Errorf("bob mETH wallet = %d, want 100", got)
	}

	// Custody holdings cover every ledger claim.
	for _, tok := range []*token.Token{h.hit, h.meth} {
		if escrow, held := h.engine.EscrowTotal(tok.Address()), tok.BalanceOf(custody); escrow != held {
			t.Errorf("%s: escrow total %d != custody holdings %d", tok.Symbol(), escrow, held)
		}
	}
}

// TestDepositRequiresApproval mirrors the token allowance flow end to
// end: a deposit with no prior approval must not move anything.
func TestDepositRequiresApproval(t *testing.T) {
	h := newTestHarness(t)

	if err := h.hit.Transfer(deployer, alice, 100); err != nil {
		t.Fatalf("wallet transfer failed: %v", err)
	}

	err := h.engine.Deposit(h.hit.Address(), alice, 100)
	if !errors.Is(err, exchange.ErrTransferRejected) {
		t.Fatalf("err = %v, want ErrTransferRejected", err)
	}
	if got := h.hit.BalanceOf(alice); got != 100 {
		t.Errorf("wallet balance = %d after rejected deposit, want 100", got)
	}
	if got := h.engine.BalanceOf(h.hit.Address(), alice); got != 0 {
		t.Errorf("escrow balance = %d, want 0", got)
	}
}

// TestPersistenceAcrossRestart replays the stored snapshot into a fresh
// engine, simulating a node restart.
func TestPersistenceAcrossRestart(t *testing.T) {
	h := newTestHarness(t)

	h.fund(t, h.meth, alice, 500)
	h.fund(t, h.hit, bob, 500)

	filled, err := h.engine.MakeOrder(alice, h.hit.Address(), 10, h.meth.Address(), 20)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if err := h.engine.FillOrder(bob, filled); err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	open, err := h.engine.MakeOrder(alice, h.hit.Address(), 30, h.meth.Address(), 60)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}

	if err := h.store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := storage.Open(h.dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() {
		reopened.Close()
	})

	snap, err := reopened.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	restored := exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: 10,
		Custody:    custody,
		Resolver: func(addr common.Address) (exchange.Token, error) {
			return h.registry.Bind(addr, custody)
		},
		Store: reopened,
	})
	restored.Restore(snap)

	if got := restored.OrderCount(); got != 2 {
		t.Errorf("restored order count = %d, want 2", got)
	}
	for tok, accounts := range map[common.Address]map[common.Address]uint64{
		h.meth.Address(): {alice: 480, bob: 20},
		h.hit.Address():  {alice: 10, bob: 489, feeAccount: 1},
	} {
		for account, want := range accounts {
			if got := restored.BalanceOf(tok, account); got != want {
				t.Errorf("restored balance[%s][%s] = %d, want %d", tok.Hex(), account.Hex(), got, want)
			}
		}
	}

	fo, err := restored.Order(filled)
	if err != nil {
		t.Fatalf("restored order missing: %v", err)
	}
	if fo.Status != exchange.OrderFilled {
		t.Errorf("restored status = %s, want filled", fo.Status)
	}

	// The open order is still actionable after restart.
	if err := restored.FillOrder(bob, open); err != nil {
		t.Fatalf("fill after restart failed: %v", err)
	}
	// The terminal one is not.
	if err := restored.FillOrder(bob, filled); !errors.Is(err, exchange.ErrOrderNotOpen) {
		t.Errorf("refill terminal order: err = %v, want ErrOrderNotOpen", err)
	}
}
