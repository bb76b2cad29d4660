package token

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	deployer = common.HexToAddress("0xDD00000000000000000000000000000000000000")
	alice    = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob      = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	exchange = common.HexToAddress("0xEC00000000000000000000000000000000000001")
)

func TestDeploy(t *testing.T) {
	tok := Deploy("Hit Token", "HIT", 1_000_000, deployer)

	if got := tok.Name(); got != "Hit Token" {
		t.Errorf("name = %q, want %q", got, "Hit Token")
	}
	if got := tok.Symbol(); got != "HIT" {
		t.Errorf("symbol = %q, want %q", got, "HIT")
	}
	if got := tok.Decimals(); got != 18 {
		t.Errorf("decimals = %d, want 18", got)
	}
	if got := tok.TotalSupply(); got != 1_000_000 {
		t.Errorf("total supply = %d, want 1000000", got)
	}
	if got := tok.BalanceOf(deployer); got != 1_000_000 {
		t.Errorf("deployer balance = %d, want full supply", got)
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	a := Deploy("Hit Token", "HIT", 1, deployer)
	b := Deploy("Hit Token", "HIT", 1, deployer)
	if a.Address() != b.Address() {
		t.Errorf("same inputs gave different addresses: %s vs %s", a.Address().Hex(), b.Address().Hex())
	}

	c := Deploy("Mock Ether", "mETH", 1, deployer)
	if a.Address() == c.Address() {
		t.Error("different tokens share an address")
	}
	if a.Address() == (common.Address{}) {
		t.Error("derived the zero address")
	}
}

func TestTransfer(t *testing.T) {
	tok := Deploy("Hit Token", "HIT", 1000, deployer)

	if err := tok.Transfer(deployer, alice, 100); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := tok.BalanceOf(deployer); got != 900 {
		t.Errorf("deployer balance = %d, want 900", got)
	}
	if got := tok.BalanceOf(alice); got != 100 {
		t.Errorf("recipient balance = %d, want 100", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	tok := Deploy("Hit Token", "HIT", 1000, deployer)

	err := tok.Transfer(alice, bob, 1)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := tok.BalanceOf(bob); got != 0 {
		t.Errorf("recipient balance = %d, want 0", got)
	}
}

func TestApproveAndTransferFrom(t *testing.T) {
	tok := Deploy("Hit Token", "HIT", 1000, deployer)
	tok.Approve(deployer, exchange, 100)

	if got := tok.Allowance(deployer, exchange); got != 100 {
		t.Errorf("allowance = %d, want 100", got)
	}

	if err := tok.TransferFrom(exchange, deployer, alice, 60); err != nil {
		t.Fatalf("transferFrom failed: %v", err)
	}
	if got := tok.BalanceOf(alice); got != 60 {
		t.Errorf("recipient balance = %d, want 60", got)
	}
	if got := tok.Allowance(deployer, exchange); got != 40 {
		t.Errorf("remaining allowance = %d, want 40", got)
	}
}

func TestTransferFromWithoutApproval(t *testing.T) {
	tok := Deploy("Hit Token", "HIT", 1000, deployer)

	err := tok.TransferFrom(exchange, deployer, alice, 1)
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("err = %v, want ErrInsufficientAllowance", err)
	}
	if got := tok.BalanceOf(deployer); got != 1000 {
		t.Errorf("owner balance changed on rejected transferFrom: %d", got)
	}
}

func TestTransferFromExceedsBalance(t *testing.T) {
	tok := Deploy("Hit Token", "HIT", 1000, deployer)
	tok.Transfer(deployer, alice, 10)
	tok.Approve(alice, exchange, 100) // Approval above holdings

	err := tok.TransferFrom(exchange, alice, bob, 50)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got := tok.Allowance(alice, exchange); got != 100 {
		t.Errorf("allowance consumed on failed transfer: %d", got)
	}
}

func TestCapability(t *testing.T) {
	tok := Deploy("Hit Token", "HIT", 1000, deployer)
	tok.Approve(deployer, exchange, 100)
	bound := tok.Capability(exchange)

	if err := bound.TransferFrom(deployer, exchange, 100); err != nil {
		t.Fatalf("capability transferFrom failed: %v", err)
	}
	if got := bound.BalanceOf(exchange); got != 100 {
		t.Errorf("custody balance = %d, want 100", got)
	}

	if err := bound.Transfer(alice, 30); err != nil {
		t.Fatalf("capability transfer failed: %v", err)
	}
	if got := tok.BalanceOf(alice); got != 30 {
		t.Errorf("recipient balance = %d, want 30", got)
	}
	if got := tok.BalanceOf(exchange); got != 70 {
		t.Errorf("custody balance = %d, want 70", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	hit := Deploy("Hit Token", "HIT", 1000, deployer)
	meth := Deploy("Mock Ether", "mETH", 1000, deployer)

	if err := r.Register(hit); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register(meth); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := r.Register(hit); err == nil {
		t.Error("expected error registering the same token twice")
	}

	got, ok := r.Get(hit.Address())
	if !ok || got != hit {
		t.Errorf("Get returned %v, %v", got, ok)
	}
	if _, ok := r.Get(alice); ok {
		t.Error("Get found a token at a non-token address")
	}

	bySym, ok := r.BySymbol("mETH")
	if !ok || bySym != meth {
		t.Errorf("BySymbol returned %v, %v", bySym, ok)
	}

	if got := len(r.Addresses()); got != 2 {
		t.Errorf("addresses = %d, want 2", got)
	}

	if _, err := r.Bind(hit.Address(), exchange); err != nil {
		t.Errorf("bind failed: %v", err)
	}
	if _, err := r.Bind(alice, exchange); err == nil {
		t.Error("expected error binding an unknown token")
	}
}
