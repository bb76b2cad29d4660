package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry holds the deployed tokens by address. It plays the role of
// the network configuration's token address mapping: the glue layers
// look tokens up here, the exchange engine only ever sees the bound
// capability.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]*Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]*Token)}
}

// Register adds a deployed token. Registering the same address twice is
// an error.
func (r *Registry) Register(t *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[t.Address()]; exists {
		return fmt.Errorf("token %s already registered", t.Address().Hex())
	}
	r.tokens[t.Address()] = t
	return nil
}

// Get returns the token deployed at addr.
func (r *Registry) Get(addr common.Address) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[addr]
	return t, ok
}

// BySymbol returns the first token with the given symbol.
func (r *Registry) BySymbol(symbol string) (*Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tokens {
		if t.Symbol() == symbol {
			return t, true
		}
	}
	return nil, false
}

// Bind returns the capability for addr with the spender fixed, or an
// error for an unknown token.
func (r *Registry) Bind(addr, spender common.Address) (*Capability, error) {
	t, ok := r.Get(addr)
	if !ok {
		return nil, fmt.Errorf("unknown token %s", addr.Hex())
	}
	return t.Capability(spender), nil
}

// Addresses lists all registered token addresses.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]common.Address, 0, len(r.tokens))
	for addr := range r.tokens {
		out = append(out, addr)
	}
	return out
}
