// Package server exposes the chat pipeline and stock data over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/estctiger/estctiger/internal/memory"
	"github.com/estctiger/estctiger/internal/workflow"
	"github.com/estctiger/estctiger/models"
)

// Runner runs one query through the chat pipeline.
type Runner interface {
	Run(ctx context.Context, query, sessionID string) (*workflow.Result, error)
}

// QuoteSource serves the chart endpoint's market data.
type QuoteSource interface {
	IsAvailable() bool
	Quote(ctx context.Context) (*models.Quote, error)
	Historical(ctx context.Context, days int) (*models.HistoryBars, error)
}

// SearchHealth reports whether the search backend answers.
type SearchHealth interface {
	Ping(ctx context.Context) bool
}

// Server is the HTTP front end.
type Server struct {
	pipeline Runner
	store    *memory.Store
	market   QuoteSource
	search   SearchHealth
	logger   *zap.Logger

	http *http.Server
}

func New(addr string, pipeline Runner, store *memory.Store, market QuoteSource, search SearchHealth, logger *zap.Logger) *Server {
	s := &Server{
		pipeline: pipeline,
		store:    store,
		market:   market,
		search:   search,
		logger:   logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	r.HandleFunc("/conversation", s.handleConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversation", s.handleClearConversation).Methods(http.MethodDelete)
	r.HandleFunc("/api/estc-stock", s.handleStockChart).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  time.Minute,
	}
	return s
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ChatResponse{Success: false, Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusOK, models.ChatResponse{Success: false, Error: "No message provided"})
		return
	}

	result, err := s.pipeline.Run(r.Context(), req.Message, req.SessionID)
	if err != nil {
		s.logger.Error("chat pipeline failed", zap.Error(err))
		writeJSON(w, http.StatusOK, models.ChatResponse{Success: false, Error: "internal error while processing the message"})
		return
	}

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Success:   true,
		Response:  result.Response,
		Blocked:   result.Blocked,
		SessionID: result.SessionID,
	})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, models.ConversationResponse{Success: false, Error: "session_id is required"})
		return
	}

	info, ok := s.store.SessionInfo(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, models.ConversationResponse{Success: false, Error: "session not found"})
		return
	}

	writeJSON(w, http.StatusOK, models.ConversationResponse{
		Success: true,
		Session: info,
		History: s.store.History(sessionID),
	})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	var req models.ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		// Allow the id in the query string as well.
		req.SessionID = r.URL.Query().Get("session_id")
	}
	if req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, models.ConversationResponse{Success: false, Error: "session_id is required"})
		return
	}

	if !s.store.Clear(req.SessionID) {
		writeJSON(w, http.StatusNotFound, models.ConversationResponse{Success: false, Error: "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, models.ConversationResponse{Success: true})
}

func (s *Server) handleStockChart(w http.ResponseWriter, r *http.Request) {
	if s.market == nil || !s.market.IsAvailable() {
		writeJSON(w, http.StatusInternalServerError, models.StockChartResponse{Error: "Finnhub API key not found"})
		return
	}

	quote, err := s.market.Quote(r.Context())
	if err != nil {
		s.logger.Error("quote fetch failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.StockChartResponse{Error: "Failed to get stock quote"})
		return
	}

	bars, err := s.market.Historical(r.Context(), 30)
	if err != nil || bars == nil {
		writeJSON(w, http.StatusInternalServerError, models.StockChartResponse{Error: "Failed to get historical data"})
		return
	}

	writeJSON(w, http.StatusOK, models.StockChartResponse{
		Success:       true,
		Dates:         bars.Dates,
		Prices:        bars.Closes,
		CurrentPrice:  quote.CurrentPrice.InexactFloat64(),
		PreviousClose: quote.PreviousClose.InexactFloat64(),
		Change:        quote.Change.InexactFloat64(),
		ChangePercent: quote.ChangePercent.InexactFloat64(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reachable := s.search != nil && s.search.Ping(r.Context())
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:          "ok",
		ActiveSessions:  s.store.ActiveSessions(),
		TotalExchanges:  s.store.TotalExchanges(),
		SearchReachable: reachable,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
