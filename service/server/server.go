package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/db"
	"github.com/solpay/gateway/service/metrics"
	"github.com/solpay/gateway/service/payment"
)

// PaymentService is the payment lifecycle surface the HTTP layer exposes.
// *payment.Service satisfies this; tests substitute mocks.
type PaymentService interface {
	CreatePayment(ctx context.Context, usdAmount decimal.Decimal, userID string) (*db.Payment, error)
	CheckPayment(ctx context.Context, paymentID string) (*payment.Status, error)
}

// UserStore is the subset of database operations the user-info endpoints need.
type UserStore interface {
	GetUserConfig(ctx context.Context, userID string) (*db.UserConfig, error)
	UpsertUserConfig(ctx context.Context, params db.UpsertUserConfigParams) (*db.UserConfig, error)
}

// Server represents the HTTP server for the payment gateway.
type Server struct {
	addr     string
	payments PaymentService
	users    UserStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics collector is optional - if nil, the metrics endpoint and
// per-handler instrumentation are disabled.
func New(addr string, payments PaymentService, users UserStore, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		payments: payments,
		users:    users,
		metrics:  m,
		logger:   logger,
	}
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Payment routes
	mux.Handle("POST /create_payment", s.instrument("create_payment",
		handleCreatePayment(s.payments, s.logger)))
	mux.Handle("GET /check_payment/{payment_id}", s.instrument("check_payment",
		handleCheckPayment(s.payments, s.logger)))

	// User payout configuration routes
	mux.Handle("PUT /user_info/{user_id}", s.instrument("upsert_user_info",
		handleUpsertUserInfo(s.users, s.logger)))
	mux.Handle("GET /user_info/{user_id}", s.instrument("get_user_info",
		handleGetUserInfo(s.users, s.logger)))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	// Wrap mux with CORS middleware
	handler := corsMiddleware(mux)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	if s.metrics == nil {
		return h
	}
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
