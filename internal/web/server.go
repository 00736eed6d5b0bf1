package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliosync/foliosync/internal/auth"
	"github.com/foliosync/foliosync/internal/clients/marketdata"
	"github.com/foliosync/foliosync/internal/domain"
)

type snapshotSource interface {
	Subscribe() chan domain.PortfolioSnapshot
	Unsubscribe(chan domain.PortfolioSnapshot)
}

type latestReader interface {
	Latest(class domain.AssetClass) (domain.PortfolioSnapshot, bool)
}

type newsFetcher interface {
	News(ctx context.Context) ([]marketdata.NewsArticle, error)
}

type trendingFetcher interface {
	Trending(ctx context.Context) (domain.QuoteBatch, error)
}

type swapExecutor interface {
	Quote(from, to domain.AssetQuote) (domain.ExchangeQuote, error)
	Execute(ctx context.Context, userID string, quote domain.ExchangeQuote, fromAmount decimal.Decimal) error
	AcknowledgeInconsistency()
}

type manualRefresher interface {
	ManualRefresh(ctx context.Context) error
}

// Server exposes HTTP endpoints serving the latest reconciled portfolio
// state, an SSE stream of snapshots, and the exchange and manual-refresh
// actions.
type Server struct {
	Addr      string
	Snapshots snapshotSource
	Portfolio latestReader
	News      newsFetcher
	Trending  trendingFetcher
	Exchange  swapExecutor
	Refresher manualRefresher
	Identity  auth.Provider
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/portfolio", s.handlePortfolio)
	mux.HandleFunc("/portfolio/stream", s.handleSnapshotStream)
	mux.HandleFunc("/news", s.handleNews)
	mux.HandleFunc("/trending", s.handleTrending)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/exchange", s.handleExchange)
	mux.HandleFunc("/exchange/ack", s.handleExchangeAck)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handlePortfolio returns the latest snapshot for ?class= (default crypto).
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "portfolio not available")
		return
	}

	class := domain.AssetClass(r.URL.Query().Get("class"))
	if class == "" {
		class = domain.ClassCrypto
	}
	if !class.Valid() {
		http.Error(w, "unknown asset class", http.StatusBadRequest)
		return
	}

	snapshot, ok := s.Portfolio.Latest(class)
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		log.Printf("portfolio encode err: %v", err)
	}
}

func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	if s.Snapshots == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	sub := s.Snapshots.Subscribe()
	defer s.Snapshots.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case snapshot, open := <-sub:
			if !open {
				return
			}
			payload, err := json.Marshal(snapshot)
			if err != nil {
				log.Printf("snapshot stream encode err: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: portfolio\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

type exchangeRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// handleExchange executes a swap between two assets known from the latest
// snapshots. Amounts travel as strings to keep decimal precision.
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	if s.Exchange == nil || s.Identity == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "exchange not available")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	from, ok := s.lookupQuote(req.From)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown asset %q", req.From), http.StatusNotFound)
		return
	}
	to, ok := s.lookupQuote(req.To)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown asset %q", req.To), http.StatusNotFound)
		return
	}

	userID, ok := s.Identity.CurrentUserID()
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}

	quote, err := s.Exchange.Quote(from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Exchange.Execute(r.Context(), userID, quote, amount); err != nil {
		log.Printf("exchange failed: %v", err)
		http.Error(w, err.Error(), exchangeStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func exchangeStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidAsset), errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSwapConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrLedgerInconsistency):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// handleExchangeAck re-enables exchanges after an inconsistency has been
// resolved externally.
func (s *Server) handleExchangeAck(w http.ResponseWriter, r *http.Request) {
	if s.Exchange == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "exchange not available")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.Exchange.AcknowledgeInconsistency()
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh triggers a user-initiated refresh. An active rate-limit
// cooldown maps to 429.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Refresher == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "refresh not available")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.Refresher.ManualRefresh(r.Context()); err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			http.Error(w, err.Error(), http.StatusTooManyRequests)
		case errors.Is(err, domain.ErrNoSession):
			http.Error(w, "no session", http.StatusUnauthorized)
		default:
			log.Printf("manual refresh err: %v", err)
			http.Error(w, "refresh failed", http.StatusBadGateway)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// lookupQuote resolves an asset identifier against the latest snapshots of
// every class.
func (s *Server) lookupQuote(identifier string) (domain.AssetQuote, bool) {
	if s.Portfolio == nil || identifier == "" {
		return domain.AssetQuote{}, false
	}

	for _, class := range []domain.AssetClass{domain.ClassCrypto, domain.ClassStock, domain.ClassNFT} {
		snap, ok := s.Portfolio.Latest(class)
		if !ok {
			continue
		}
		key := class.LedgerKey(identifier)
		for _, holding := range snap.Holdings {
			if holding.Quote.LedgerKey() == key {
				return holding.Quote, true
			}
		}
	}
	return domain.AssetQuote{}, false
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if s.Trending == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "trending feed not available")
		return
	}

	batch, err := s.Trending.Trending(r.Context())
	if err != nil {
		http.Error(w, "failed to load trending assets", http.StatusBadGateway)
		log.Printf("trending fetch err: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batch); err != nil {
		log.Printf("trending encode err: %v", err)
	}
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if s.News == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "news feed not available")
		return
	}

	articles, err := s.News.News(r.Context())
	if err != nil {
		http.Error(w, "failed to load news", http.StatusBadGateway)
		log.Printf("news fetch err: %v", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(articles); err != nil {
		log.Printf("news encode err: %v", err)
	}
}
