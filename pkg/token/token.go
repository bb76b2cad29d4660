package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrInsufficientFunds means the sender's token balance cannot cover
	// the transfer.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientAllowance means the spender's approved allowance
	// cannot cover the transferFrom.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Token is an in-memory fungible token: fixed supply minted to the
// deployer, direct transfers, and the approve/transferFrom allowance
// flow the exchange depends on for deposits. It is the reference
// implementation behind the exchange's capability interface, used by
// the node, the seeder and the tests.
type Token struct {
	mu sync.RWMutex

	addr        common.Address
	name        string
	symbol      string
	decimals    uint8
	totalSupply uint64

	balances   map[common.Address]uint64
	allowances map[common.Address]map[common.Address]uint64 // owner -> spender -> amount
}

// Deploy creates a token and mints the full supply to the deployer.
// The address is derived deterministically from name, symbol and
// deployer so repeated runs agree on identities.
func Deploy(name, symbol string, supply uint64, deployer common.Address) *Token {
	t := &Token{
		addr:        deriveAddress(name, symbol, deployer),
		name:        name,
		symbol:      symbol,
		decimals:    18,
		totalSupply: supply,
		balances:    map[common.Address]uint64{deployer: supply},
		allowances:  make(map[common.Address]map[common.Address]uint64),
	}
	return t
}

func (t *Token) Address() common.Address { return t.addr }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }
func (t *Token) TotalSupply() uint64     { return t.totalSupply }

// BalanceOf reports owner's balance, 0 for unseen accounts.
func (t *Token) BalanceOf(owner common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[owner]
}

// Transfer moves amount from the sender's balance to the recipient.
func (t *Token) Transfer(from, to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transfer(from, to, amount)
}

// Approve grants spender the right to move up to amount of owner's
// tokens via TransferFrom. A new approval replaces the previous one.
func (t *Token) Approve(owner, spender common.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]uint64)
		t.allowances[owner] = spenders
	}
	spenders[spender] = amount
}

// Allowance reports what spender may still move on owner's behalf.
func (t *Token) Allowance(owner, spender common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender]
}

// TransferFrom moves amount from owner to the recipient on behalf of
// spender, consuming the allowance. Fails without touching balances if
// either the allowance or the owner's balance is short.
func (t *Token) TransferFrom(spender, owner, to common.Address, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[owner][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %s approved %d for %s, need %d",
			ErrInsufficientAllowance, owner.Hex(), allowed, spender.Hex(), amount)
	}
	if err := t.transfer(owner, to, amount); err != nil {
		return err
	}
	t.allowances[owner][spender] = allowed - amount
	return nil
}

// transfer assumes the lock is held.
func (t *Token) transfer(from, to common.Address, amount uint64) error {
	have := t.balances[from]
	if have < amount {
		return fmt.Errorf("%w: %s has %d %s, need %d", ErrInsufficientFunds, from.Hex(), have, t.symbol, amount)
	}
	t.balances[from] = have - amount
	t.balances[to] += amount
	return nil
}

// Capability narrows the token to the three-method surface the exchange
// consumes, with the spender fixed to the exchange's custody address.
type Capability struct {
	tok     *Token
	spender common.Address
}

// Capability binds the token to a spender identity.
func (t *Token) Capability(spender common.Address) *Capability {
	return &Capability{tok: t, spender: spender}
}

// TransferFrom moves owner's tokens to the recipient using the bound
// spender's allowance.
func (c *Capability) TransferFrom(owner, to common.Address, amount uint64) error {
	return c.tok.TransferFrom(c.spender, owner, to, amount)
}

// Transfer moves tokens out of the bound spender's own holdings.
func (c *Capability) Transfer(to common.Address, amount uint64) error {
	return c.tok.Transfer(c.spender, to, amount)
}

// BalanceOf reports owner's direct token balance.
func (c *Capability) BalanceOf(owner common.Address) uint64 {
	return c.tok.BalanceOf(owner)
}

// deriveAddress hashes name/symbol/deployer into a 20-byte address.
func deriveAddress(name, symbol string, deployer common.Address) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	h.Write([]byte{':'})
	h.Write([]byte(symbol))
	h.Write([]byte{':'})
	h.Write(deployer.Bytes())
	return common.BytesToAddress(h.Sum(nil)[12:])
}
