package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hitswap/hitswap/params"
	"github.com/hitswap/hitswap/pkg/api"
	"github.com/hitswap/hitswap/pkg/exchange"
	"github.com/hitswap/hitswap/pkg/storage"
	"github.com/hitswap/hitswap/pkg/token"
	"github.com/hitswap/hitswap/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Tokens ----
	// Deploy the network's tokens in-memory; addresses are derived
	// deterministically so restarts agree with persisted ledger keys.
	network := cfg.Network()
	registry := token.NewRegistry()
	for _, spec := range network.Tokens {
		t := token.Deploy(spec.Name, spec.Symbol, spec.Supply, network.Treasury)
		if err := registry.Register(t); err != nil {
			sugar.Fatalw("token_register_failed", "symbol", spec.Symbol, "err", err)
		}
		sugar.Infow("token_deployed",
			"symbol", t.Symbol(),
			"address", t.Address().Hex(),
			"supply", t.TotalSupply())
	}

	// ---- Storage ----
	store, err := storage.Open(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Exchange engine ----
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

	engine.Notifier().On("trade", func(e exchange.Event) {
		if tr, ok := e.(exchange.TradeEvent); ok {
			sugar.Infow("trade_settled",
				"id", tr.ID,
				"creator", tr.Creator.Hex(),
				"filler", tr.Filler.Hex(),
				"amount_get", tr.AmountGet,
				"amount_give", tr.AmountGive)
		}
	})

	snap, err := store.Load()
	if err != nil {
		sugar.Fatalw("state_load_failed", "err", err)
	}
	engine.Restore(snap)

	sugar.Infow("exchange_ready",
		"network", cfg.NetworkID,
		"fee_account", cfg.Fee.Account.Hex(),
		"fee_percent", cfg.Fee.Percent,
		"order_count", engine.OrderCount())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(engine, registry)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := apiServer.Start(cfg.Node.APIAddr, cfg.Node.CORSOrigins); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}
