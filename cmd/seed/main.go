package main

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hitswap/hitswap/params"
	"github.com/hitswap/hitswap/pkg/exchange"
	"github.com/hitswap/hitswap/pkg/storage"
	"github.com/hitswap/hitswap/pkg/token"
	"github.com/hitswap/hitswap/pkg/util"
)

// Seeds a demo exchange database: distributes tokens to two users,
// deposits them into escrow, then creates a cancelled order and a pair
// of filled orders so the API has history to serve. Token contract
// state itself is in-memory only; the node re-deploys tokens at the
// same derived addresses on startup.
func main() {
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	network := cfg.Network()
	registry := token.NewRegistry()
	for _, spec := range network.Tokens {
		t := token.Deploy(spec.Name, spec.Symbol, spec.Supply, network.Treasury)
		if err := registry.Register(t); err != nil {
			sugar.Fatalw("token_register_failed", "symbol", spec.Symbol, "err", err)
		}
		sugar.Infow("token_deployed", "symbol", t.Symbol(), "address", t.Address().Hex())
	}

	store, err := storage.Open(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	custody := network.Exchange
	engine := exchange.New(exchange.Config{
		FeeAccount: cfg.Fee.Account,
		FeePercent: cfg.Fee.Percent,
		Custody:    custody,
		Resolver: func(addr common.Address) (exchange.Token, error) {
			bound, err := registry.Bind(addr, custody)
			if err != nil {
				return nil, fmt.Errorf("resolve token: %w", err)
			}
			return bound, nil
		},
		Store:  store,
		Logger: sugar,
	})

	hit, ok := registry.BySymbol("HIT")
	if !ok {
		sugar.Fatal("HIT token not configured")
	}
	meth, ok := registry.BySymbol("mETH")
	if !ok {
		sugar.Fatal("mETH token not configured")
	}

	user1 := network.Treasury
	user2 := common.HexToAddress("0x2000000000000000000000000000000000000002")

	// Give user2 mETH to trade with
	const grant = 10_000
	if err := meth.Transfer(network.Treasury, user2, grant); err != nil {
		sugar.Fatalw("transfer_failed", "err", err)
	}

	// Approve and deposit both sides
	hit.Approve(user1, custody, grant)
	if err := engine.Deposit(hit.Address(), user1, grant); err != nil {
		sugar.Fatalw("deposit_failed", "user", user1.Hex(), "err", err)
	}
	meth.Approve(user2, custody, grant)
	if err := engine.Deposit(meth.Address(), user2, grant); err != nil {
		sugar.Fatalw("deposit_failed", "user", user2.Hex(), "err", err)
	}

	// Seed a cancelled order
	id, err := engine.MakeOrder(user1, meth.Address(), 100, hit.Address(), 5)
	if err != nil {
		sugar.Fatalw("make_order_failed", "err", err)
	}
	if err := engine.CancelOrder(user1, id); err != nil {
		sugar.Fatalw("cancel_order_failed", "id", id, "err", err)
	}

	// Seed filled orders
	for _, o := range []struct{ get, give uint64 }{{100, 10}, {50, 15}} {
		id, err := engine.MakeOrder(user1, meth.Address(), o.get, hit.Address(), o.give)
		if err != nil {
			sugar.Fatalw("make_order_failed", "err", err)
		}
		if err := engine.FillOrder(user2, id); err != nil {
			sugar.Fatalw("fill_order_failed", "id", id, "err", err)
		}
	}

	// Leave a resting open order too
	if _, err := engine.MakeOrder(user1, meth.Address(), 200, hit.Address(), 20); err != nil {
		sugar.Fatalw("make_order_failed", "err", err)
	}

	sugar.Infow("seed_complete",
		"orders", engine.OrderCount(),
		"events", engine.Notifier().Len(),
		"db", cfg.Node.DBPath)
}
