// Package api exposes the auction service over HTTP and a websocket price feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"solana-dutch-auction/internal/auction"
	"solana-dutch-auction/internal/observability"
)

// Airdropper credits test lamports to an account.
type Airdropper interface {
	Airdrop(ctx context.Context, account string, lamports uint64) (uint64, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server serves the auction API.
type Server struct {
	svc          *auction.Service
	airdrop      Airdropper
	health       map[string]HealthCheck
	log          *zap.Logger
	feedInterval time.Duration
	writeTimeout time.Duration
}

// Option configures Server.
type Option func(*Server)

// WithAirdrop enables POST /accounts/{pubkey}/airdrop.
func WithAirdrop(a Airdropper) Option {
	return func(s *Server) {
		s.airdrop = a
	}
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.health[name] = check
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithFeed sets the price feed tick interval and per-message write timeout.
func WithFeed(interval, writeTimeout time.Duration) Option {
	return func(s *Server) {
		if interval > 0 {
			s.feedInterval = interval
		}
		if writeTimeout > 0 {
			s.writeTimeout = writeTimeout
		}
	}
}

// NewServer creates a Server.
func NewServer(svc *auction.Service, opts ...Option) *Server {
	s := &Server{
		svc:          svc,
		health:       make(map[string]HealthCheck),
		log:          zap.NewNop(),
		feedInterval: time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers HTTP routes on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", observability.Handler())

	r.Route("/auctions", func(r chi.Router) {
		r.Post("/", s.handleInitialize)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetAuction)
			r.Get("/price", s.handleQuote)
			r.Post("/claim", s.handleClaim)
			r.Get("/curve", s.handleCurve)
			r.Get("/settlement", s.handleGetSettlement)
			r.Get("/feed", s.handleFeed)
		})
	})

	r.Get("/sellers/{pubkey}/auctions", s.handleAuctionsBySeller)

	r.Route("/accounts/{pubkey}", func(r chi.Router) {
		r.Get("/balance", s.handleBalance)
		r.Get("/settlements", s.handleSettlementsByBuyer)
		if s.airdrop != nil {
			r.Post("/airdrop", s.handleAirdrop)
		}
	})
}

// requestLogger logs each request through zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.health))
	status := http.StatusOK
	for name, check := range s.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Reason: auction.Reason(err)})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Reason: "bad_request"})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch auction.Reason(err) {
	case "invalid_address", "self_claim", "invalid_configuration", "division_by_zero":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict", "duplicate":
		return http.StatusConflict
	case "arithmetic_overflow", "negative_price", "insufficient_balance", "transfer_rejected", "mint_failed", "unknown_mint":
		return http.StatusUnprocessableEntity
	case "allocation_failed", "cancelled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}
