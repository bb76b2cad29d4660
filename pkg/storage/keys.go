package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so full-state reload is two range
// scans plus one point read.
const (
	prefixBalance = "bal:" // Escrow balance entries
	prefixOrder   = "ord:" // Orders by id
	keyOrderCount = "meta:order_count"
)

// balanceKey returns the key for one (token, account) ledger entry.
// Format: "bal:{token}:{account}"
func balanceKey(token, account common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, token.Hex(), account.Hex()))
}

// orderKey returns the key for an order.
// Format: "ord:{id}" with the id zero-padded for lexicographic order.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// balanceKeyAddrs extracts (token, account) from a balance key.
func balanceKeyAddrs(key []byte) (common.Address, common.Address, error) {
	// "bal:" + 42 hex chars + ":" + 42 hex chars
	want := len(prefixBalance) + 42 + 1 + 42
	if len(key) != want {
		return common.Address{}, common.Address{}, fmt.Errorf("invalid balance key length: %d", len(key))
	}
	tokenHex := string(key[len(prefixBalance) : len(prefixBalance)+42])
	accountHex := string(key[len(prefixBalance)+43:])
	if !common.IsHexAddress(tokenHex) || !common.IsHexAddress(accountHex) {
		return common.Address{}, common.Address{}, fmt.Errorf("invalid addresses in key: %s", key)
	}
	return common.HexToAddress(tokenHex), common.HexToAddress(accountHex), nil
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
