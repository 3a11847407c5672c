package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openorder/book"
)

type server struct {
	engine *book.Engine
	logger *zap.Logger
}

func newServer(engine *book.Engine, logger *zap.Logger) *server {
	return &server{engine: engine, logger: logger}
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID)
	r.HandleFunc("/pairs/{pair}/orders", s.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/pairs/{pair}/orders/{id}", s.getOrder).Methods(http.MethodGet)
	r.HandleFunc("/pairs/{pair}/orders/{id}", s.cancelOrder).Methods(http.MethodDelete)
	r.HandleFunc("/pairs/{pair}/orders/{id}/continue", s.continueOrder).Methods(http.MethodPost)
	r.HandleFunc("/pairs/{pair}/book", s.walkBook).Methods(http.MethodGet)
	r.HandleFunc("/pairs/{pair}/balances/{client}", s.balances).Methods(http.MethodGet)
	r.HandleFunc("/pairs/{pair}/deposits", s.deposit).Methods(http.MethodPost)
	r.HandleFunc("/pairs/{pair}/withdrawals", s.withdraw).Methods(http.MethodPost)
	return r
}

// requestID tags every request so log lines from one call correlate.
func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type createOrderRequest struct {
	Client     string          `json:"client"`
	OrderID    string          `json:"order_id"`
	Price      string          `json:"price"`
	SizeBase   decimal.Decimal `json:"size_base"`
	Terms      string          `json:"terms"`
	MaxMatches uint32          `json:"max_matches"`
}

func (s *server) createOrder(w http.ResponseWriter, r *http.Request) {
	b := s.book(r)
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	terms, ok := parseTerms(req.Terms)
	if !ok {
		s.writeError(w, http.StatusBadRequest, errors.New("unknown terms"))
		return
	}
	// An unparseable price becomes InvalidPrice and is rejected on the
	// order record, matching the on-book validation path.
	price, _ := b.Codec().Parse(req.Price)
	if err := b.CreateOrder(req.Client, req.OrderID, price, req.SizeBase, terms, req.MaxMatches); err != nil {
		s.writeBookError(w, err)
		return
	}
	o, err := b.Order(req.OrderID)
	if err != nil {
		s.writeBookError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, orderResponse(b, o))
}

func (s *server) getOrder(w http.ResponseWriter, r *http.Request) {
	b := s.book(r)
	o, err := b.Order(mux.Vars(r)["id"])
	if err != nil {
		s.writeBookError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orderResponse(b, o))
}

func (s *server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	b := s.book(r)
	id := mux.Vars(r)["id"]
	if err := b.CancelOrder(r.URL.Query().Get("client"), id); err != nil {
		s.writeBookError(w, err)
		return
	}
	o, err := b.Order(id)
	if err != nil {
		s.writeBookError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orderResponse(b, o))
}

type continueOrderRequest struct {
	Client     string `json:"client"`
	MaxMatches uint32 `json:"max_matches"`
}

func (s *server) continueOrder(w http.ResponseWriter, r *http.Request) {
	b := s.book(r)
	id := mux.Vars(r)["id"]
	var req continueOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := b.ContinueOrder(req.Client, id, req.MaxMatches); err != nil {
		s.writeBookError(w, err)
		return
	}
	o, err := b.Order(id)
	if err != nil {
		s.writeBookError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orderResponse(b, o))
}

type bookLevel struct {
	Price      string          `json:"price"`
	DepthBase  decimal.Decimal `json:"depth_base"`
	OrderCount int64           `json:"order_count"`
}

func (s *server) walkBook(w http.ResponseWriter, r *http.Request) {
	b := s.book(r)
	resp := struct {
		Pair string      `json:"pair"`
		Buy  []bookLevel `json:"buy"`
		Sell []bookLevel `json:"sell"`
	}{Pair: b.Pair()}
	resp.Buy = walkSide(b, book.MaxBuyPrice)
	resp.Sell = walkSide(b, book.MinSellPrice)
	s.writeJSON(w, http.StatusOK, resp)
}

func walkSide(b *book.Book, from book.PackedPrice) []bookLevel {
	side := from.Side()
	levels := []bookLevel{}
	for {
		entry, ok := b.WalkBook(from)
		if !ok {
			return levels
		}
		levels = append(levels, bookLevel{
			Price:      b.Codec().Format(entry.Price),
			DepthBase:  entry.DepthBase,
			OrderCount: entry.OrderCount,
		})
		from = entry.Price + 1
		if from.Side() != side {
			return levels
		}
	}
}

func (s *server) balances(w http.ResponseWriter, r *http.Request) {
	b := s.book(r)
	s.writeJSON(w, http.StatusOK, b.ClientBalances(mux.Vars(r)["client"]))
}

type paymentRequest struct {
	Client string          `json:"client"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *server) deposit(w http.ResponseWriter, r *http.Request) {
	s.payment(w, r, func(b *book.Book, req paymentRequest) error {
		return b.DepositCntr(req.Client, req.Amount)
	})
}

func (s *server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.payment(w, r, func(b *book.Book, req paymentRequest) error {
		return b.WithdrawCntr(req.Client, req.Amount)
	})
}

func (s *server) payment(w http.ResponseWriter, r *http.Request, apply func(*book.Book, paymentRequest) error) {
	b := s.book(r)
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := apply(b, req); err != nil {
		s.writeBookError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, b.ClientBalances(req.Client))
}

func (s *server) book(r *http.Request) *book.Book {
	return s.engine.Book(mux.Vars(r)["pair"])
}

type orderView struct {
	ID           string          `json:"id"`
	Client       string          `json:"client"`
	Price        string          `json:"price"`
	SizeBase     decimal.Decimal `json:"size_base"`
	Terms        string          `json:"terms"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason"`
	ExecutedBase decimal.Decimal `json:"executed_base"`
	ExecutedCntr decimal.Decimal `json:"executed_cntr"`
}

func orderResponse(b *book.Book, o book.Order) orderView {
	return orderView{
		ID:           o.ID,
		Client:       o.Client,
		Price:        b.Codec().Format(o.Price),
		SizeBase:     o.SizeBase,
		Terms:        o.Terms.String(),
		Status:       o.Status.String(),
		Reason:       o.Reason.String(),
		ExecutedBase: o.ExecutedBase,
		ExecutedCntr: o.ExecutedCntr,
	}
}

func parseTerms(s string) (book.Terms, bool) {
	switch s {
	case "GTCNoGasTopup", "":
		return book.TermsGTCNoGasTopup, true
	case "GTCWithGasTopup":
		return book.TermsGTCWithGasTopup, true
	case "ImmediateOrCancel":
		return book.TermsImmediateOrCancel, true
	case "MakerOnly":
		return book.TermsMakerOnly, true
	}
	return 0, false
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *server) writeBookError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, book.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, book.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, book.ErrInvalidOrderID),
		errors.Is(err, book.ErrDuplicateOrderID),
		errors.Is(err, book.ErrInvalidParam):
		status = http.StatusBadRequest
	case errors.Is(err, book.ErrInsufficientBalance),
		errors.Is(err, book.ErrInsufficientApproval):
		status = http.StatusUnprocessableEntity
	}
	s.writeError(w, status, err)
}
