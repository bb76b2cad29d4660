package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/hitswap/hitswap/pkg/exchange"
)

// Store is the Pebble-backed write-behind journal of the exchange
// engine: escrow balances, orders and the order counter. The engine's
// in-memory state stays authoritative; Load rebuilds it on startup.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a Pebble database at the given path.
func Open(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBalance persists one ledger entry. A zero amount deletes the key
// so reloads stay free of empty entries.
func (s *Store) SaveBalance(rec exchange.BalanceRecord) error {
	key := balanceKey(rec.Token, rec.Account)
	if rec.Amount == 0 {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			return fmt.Errorf("failed to delete balance: %w", err)
		}
		return nil
	}
	if err := s.db.Set(key, encodeAmount(rec.Amount), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// SaveOrder persists an order (insert or status update).
func (s *Store) SaveOrder(o exchange.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// SaveOrderCount persists the monotonic order counter.
func (s *Store) SaveOrderCount(n uint64) error {
	if err := s.db.Set([]byte(keyOrderCount), encodeAmount(n), pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order count: %w", err)
	}
	return nil
}

// SaveTrade writes every balance leg of a settled fill plus the filled
// order in one atomic Pebble batch.
func (s *Store) SaveTrade(recs []exchange.BalanceRecord, o exchange.Order) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, rec := range recs {
		key := balanceKey(rec.Token, rec.Account)
		if rec.Amount == 0 {
			if err := batch.Delete(key, nil); err != nil {
				return fmt.Errorf("failed to batch balance delete: %w", err)
			}
			continue
		}
		if err := batch.Set(key, encodeAmount(rec.Amount), nil); err != nil {
			return fmt.Errorf("failed to batch balance: %w", err)
		}
	}

	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := batch.Set(orderKey(o.ID), data, nil); err != nil {
		return fmt.Errorf("failed to batch order: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit trade batch: %w", err)
	}
	return nil
}

// Load rebuilds the full engine snapshot from disk.
func (s *Store) Load() (exchange.Snapshot, error) {
	var snap exchange.Snapshot

	// Balances
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return snap, fmt.Errorf("failed to open balance iterator: %w", err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
		tok, acc, err := balanceKeyAddrs(iter.Key())
		if err != nil {
			continue // Skip invalid entries
		}
		snap.Balances = append(snap.Balances, exchange.BalanceRecord{
			Token:   tok,
			Account: acc,
			Amount:  decodeAmount(iter.Value()),
		})
	}
	if err := iter.Close(); err != nil {
		return snap, fmt.Errorf("failed to close balance iterator: %w", err)
	}

	// Orders
	prefix = []byte(prefixOrder)
	iter, err = s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return snap, fmt.Errorf("failed to open order iterator: %w", err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
		var o exchange.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // Skip invalid entries
		}
		snap.Orders = append(snap.Orders, o)
	}
	if err := iter.Close(); err != nil {
		return snap, fmt.Errorf("failed to close order iterator: %w", err)
	}

	// Order counter
	data, closer, err := s.db.Get([]byte(keyOrderCount))
	if err == pebble.ErrNotFound {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("failed to get order count: %w", err)
	}
	snap.OrderCount = decodeAmount(data)
	closer.Close()

	return snap, nil
}

func encodeAmount(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeAmount(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
