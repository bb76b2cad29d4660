package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ledger is the authoritative (token, account) -> escrowed amount map.
// It is owned exclusively by the Exchange: all mutation happens under
// the engine's lock and no reference escapes the engine boundary.
// Balances are unsigned; debit refuses to go negative.
type ledger struct {
	balances map[common.Address]map[common.Address]uint64 // token -> account -> amount
}

func newLedger() *ledger {
	return &ledger{
		balances: make(map[common.Address]map[common.Address]uint64),
	}
}

// balanceOf defaults to 0 for unseen keys.
func (l *ledger) balanceOf(token, account common.Address) uint64 {
	return l.balances[token][account]
}

// credit cannot fail.
func (l *ledger) credit(token, account common.Address, amount uint64) uint64 {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]uint64)
		l.balances[token] = accounts
	}
	accounts[account] += amount
	return accounts[account]
}

// debit fails if the balance would go negative, leaving state untouched.
func (l *ledger) debit(token, account common.Address, amount uint64) (uint64, error) {
	have := l.balances[token][account]
	if have < amount {
		return have, fmt.Errorf("%w: token %s account %s has %d, need %d",
			ErrInsufficientBalance, token.Hex(), account.Hex(), have, amount)
	}
	l.balances[token][account] = have - amount
	return have - amount, nil
}

// snapshot copies every non-zero entry, for persistence and audits.
func (l *ledger) snapshot() []BalanceRecord {
	var recs []BalanceRecord
	for token, accounts := range l.balances {
		for account, amount := range accounts {
			if amount == 0 {
				continue
			}
			recs = append(recs, BalanceRecord{Token: token, Account: account, Amount: amount})
		}
	}
	return recs
}

// totalOf sums all escrow balances of one token across accounts.
func (l *ledger) totalOf(token common.Address) uint64 {
	var total uint64
	for _, amount := range l.balances[token] {
		total += amount
	}
	return total
}
