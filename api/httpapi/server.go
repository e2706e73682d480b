// Package httpapi serves the books, their analytics reports and the
// Prometheus metrics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/service"
)

// Books is the read and write surface the API needs. *service.Session
// satisfies it.
type Books interface {
	Book(symbol string) (*service.BookService, bool)
	Books() []*service.BookService
	FeedStatus() map[string]bool
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Server struct {
	router  *mux.Router
	server  *http.Server
	books   Books
	metrics http.Handler
	log     zerolog.Logger
}

func NewServer(cfg Config, books Books, metrics http.Handler, log zerolog.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		books:   books,
		metrics: metrics,
		log:     log.With().Str("component", "http").Logger(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestID, s.logRequests)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentType)
	api.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	api.HandleFunc("/books", s.listBooks).Methods(http.MethodGet)
	api.HandleFunc("/books/{symbol}", s.getBook).Methods(http.MethodGet)
	api.HandleFunc("/books/{symbol}/report", s.getReport).Methods(http.MethodGet)
	api.HandleFunc("/books/{symbol}/orders", s.placeOrder).Methods(http.MethodPost)
	api.HandleFunc("/books/{symbol}/orders/{id:[0-9]+}", s.cancelOrder).Methods(http.MethodDelete)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ---- middleware ----

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.New().String()[:8])
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug().
			Str("request_id", w.Header().Get("X-Request-ID")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---- handlers ----

type levelJSON struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Orders   int    `json:"orders"`
}

type bookJSON struct {
	Symbol  string      `json:"symbol"`
	Version uint64      `json:"version"`
	BestBid string      `json:"best_bid"`
	BestAsk string      `json:"best_ask"`
	Spread  string      `json:"spread"`
	Bids    []levelJSON `json:"bids,omitempty"`
	Asks    []levelJSON `json:"asks,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"feeds":  s.books.FeedStatus(),
	})
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	books := s.books.Books()
	out := make([]bookJSON, 0, len(books))
	for _, b := range books {
		out = append(out, toJSON(b.Book().Snapshot(), 0))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	depth := 20
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "depth must be a non-negative integer")
			return
		}
		depth = n
	}
	writeJSON(w, http.StatusOK, toJSON(b.Snapshot(), depth))
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Report())
}

type orderRequest struct {
	Side     string `json:"side"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

type orderResponse struct {
	ID     uint64      `json:"id"`
	Trades []tradeJSON `json:"trades"`
}

type tradeJSON struct {
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body: "+err.Error())
		return
	}
	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	otype := orderbook.Limit
	if strings.EqualFold(req.Type, "market") {
		otype = orderbook.Market
	}
	price, err := orderbook.ParsePrice(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	qty, err := orderbook.ParseQuantity(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, trades, err := b.PlaceOrder(side, otype, price, qty)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	resp := orderResponse{ID: id, Trades: make([]tradeJSON, 0, len(trades))}
	for _, t := range trades {
		resp.Trades = append(resp.Trades, tradeJSON{
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Price:       t.Price.String(),
			Quantity:    t.Quantity.String(),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	if !b.CancelOrder(id) {
		writeError(w, http.StatusNotFound, "order not resting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*service.BookService, bool) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	b, ok := s.books.Book(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol "+symbol)
	}
	return b, ok
}

func toJSON(snap orderbook.Snapshot, depth int) bookJSON {
	out := bookJSON{
		Symbol:  snap.Symbol,
		Version: snap.Version,
		BestBid: snap.BestBid().String(),
		BestAsk: snap.BestAsk().String(),
		Spread:  snap.Spread().String(),
	}
	out.Bids = levels(snap.Bids, depth)
	out.Asks = levels(snap.Asks, depth)
	return out
}

func levels(ls []orderbook.Level, depth int) []levelJSON {
	if depth < len(ls) {
		ls = ls[:depth]
	}
	out := make([]levelJSON, 0, len(ls))
	for _, l := range ls {
		out = append(out, levelJSON{Price: l.Price.String(), Quantity: l.Quantity.String(), Orders: l.Orders})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
