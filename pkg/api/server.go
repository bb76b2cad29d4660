package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/hitswap/hitswap/pkg/exchange"
	"github.com/hitswap/hitswap/pkg/token"
)

// Server exposes the exchange engine over REST and streams its events
// over WebSocket. Every mutating route maps 1:1 to an engine operation.
type Server struct {
	engine   *exchange.Exchange
	registry *token.Registry
	router   *mux.Router
	hub      *Hub
}

// NewServer creates an API server for the given engine.
func NewServer(engine *exchange.Exchange, registry *token.Registry) *Server {
	s := &Server{
		engine:   engine,
		registry: registry,
		router:   mux.NewRouter(),
		hub:      NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Ledger operations
	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/balances", s.handleListBalances).Methods("GET")
	api.HandleFunc("/balances/{token}/{account}", s.handleGetBalance).Methods("GET")

	// Order operations
	api.HandleFunc("/orders", s.handleMakeOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/{id}/fill", s.handleFillOrder).Methods("POST")

	// Static info
	api.HandleFunc("/tokens", s.handleListTokens).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub, wires the engine's event feed into it,
// and serves HTTP on addr. allowedOrigins lists the browser origins the
// CORS layer accepts. Blocks.
func (s *Server) Start(addr string, allowedOrigins []string) error {
	go s.hub.Run()
	go s.pumpEvents()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// pumpEvents forwards engine events to subscribed WebSocket clients,
// both on the per-kind channel and the catch-all "events" channel.
func (s *Server) pumpEvents() {
	for e := range s.engine.Notifier().Subscribe(256) {
		s.hub.BroadcastToChannel(e.Kind(), WSEvent{Channel: e.Kind(), Data: e})
		s.hub.BroadcastToChannel("events", WSEvent{Channel: "events", Data: e})
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	tok, account, ok := parseAddrPair(w, req.Token, req.Account)
	if !ok {
		return
	}

	if err := s.engine.Deposit(tok, account, req.Amount); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{
		Token:   tok.Hex(),
		Account: account.Hex(),
		Balance: s.engine.BalanceOf(tok, account),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	tok, account, ok := parseAddrPair(w, req.Token, req.Account)
	if !ok {
		return
	}

	if err := s.engine.Withdraw(tok, account, req.Amount); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, BalanceInfo{
		Token:   tok.Hex(),
		Account: account.Hex(),
		Balance: s.engine.BalanceOf(tok, account),
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tok, account, ok := parseAddrPair(w, vars["token"], vars["account"])
	if !ok {
		return
	}
	respondJSON(w, BalanceInfo{
		Token:   tok.Hex(),
		Account: account.Hex(),
		Balance: s.engine.BalanceOf(tok, account),
	})
}

func (s *Server) handleListBalances(w http.ResponseWriter, r *http.Request) {
	recs := s.engine.Balances()
	out := make([]BalanceInfo, len(recs))
	for i, rec := range recs {
		out[i] = BalanceInfo{
			Token:   rec.Token.Hex(),
			Account: rec.Account.Hex(),
			Balance: rec.Amount,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleMakeOrder(w http.ResponseWriter, r *http.Request) {
	var req MakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	creator, ok := parseAddr(w, req.Creator, "creator")
	if !ok {
		return
	}
	tokenGet, tokenGive, ok := parseAddrPair(w, req.TokenGet, req.TokenGive)
	if !ok {
		return
	}

	id, err := s.engine.MakeOrder(creator, tokenGet, req.AmountGet, tokenGive, req.AmountGive)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	log.Printf("[api] order created: id=%d creator=%s", id, creator.Hex())
	respondJSON(w, MakeOrderResponse{ID: id})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.engine.Orders()
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = orderInfo(o)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	o, err := s.engine.Order(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, orderInfo(o))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	caller, ok := parseAddr(w, req.Caller, "caller")
	if !ok {
		return
	}

	if err := s.engine.CancelOrder(caller, id); err != nil {
		respondEngineError(w, err)
		return
	}
	log.Printf("[api] order cancelled: id=%d", id)
	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseOrderID(w, r)
	if !ok {
		return
	}
	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	filler, ok := parseAddr(w, req.Filler, "filler")
	if !ok {
		return
	}

	if err := s.engine.FillOrder(filler, id); err != nil {
		respondEngineError(w, err)
		return
	}
	log.Printf("[api] order filled: id=%d filler=%s", id, filler.Hex())
	respondJSON(w, map[string]string{"status": "filled"})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	var out []TokenInfo
	for _, addr := range s.registry.Addresses() {
		t, ok := s.registry.Get(addr)
		if !ok {
			continue
		}
		out = append(out, TokenInfo{
			Address:     t.Address().Hex(),
			Name:        t.Name(),
			Symbol:      t.Symbol(),
			Decimals:    t.Decimals(),
			TotalSupply: t.TotalSupply(),
		})
	}
	respondJSON(w, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, StatusResponse{
		OrderCount: s.engine.OrderCount(),
		FeeAccount: s.engine.FeeAccount().Hex(),
		FeePercent: s.engine.FeePercent(),
		Events:     s.engine.Notifier().Len(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func orderInfo(o exchange.Order) OrderInfo {
	return OrderInfo{
		ID:         o.ID,
		Creator:    o.Creator.Hex(),
		TokenGet:   o.TokenGet.Hex(),
		AmountGet:  o.AmountGet,
		TokenGive:  o.TokenGive.Hex(),
		AmountGive: o.AmountGive,
		Status:     o.Status.String(),
		CreatedAt:  o.CreatedAt,
	}
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return 0, false
	}
	return id, true
}

func parseAddr(w http.ResponseWriter, s, field string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		respondError(w, http.StatusBadRequest, "invalid "+field+" address", s)
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseAddrPair(w http.ResponseWriter, a, b string) (common.Address, common.Address, bool) {
	if !common.IsHexAddress(a) {
		respondError(w, http.StatusBadRequest, "invalid address", a)
		return common.Address{}, common.Address{}, false
	}
	if !common.IsHexAddress(b) {
		respondError(w, http.StatusBadRequest, "invalid address", b)
		return common.Address{}, common.Address{}, false
	}
	return common.HexToAddress(a), common.HexToAddress(b), true
}

// respondEngineError maps engine error kinds to HTTP status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, exchange.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, exchange.ErrOrderNotOpen):
		respondError(w, http.StatusConflict, "order not open", err.Error())
	case errors.Is(err, exchange.ErrInsufficientBalance):
		respondError(w, http.StatusUnprocessableEntity, "insufficient balance", err.Error())
	case errors.Is(err, exchange.ErrInvalidAmount), errors.Is(err, exchange.ErrTransferRejected):
		respondError(w, http.StatusBadRequest, "rejected", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
