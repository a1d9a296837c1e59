// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/circuitbreaker"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/models"
	"github.com/paper-trader/internal/pricing"
	"github.com/paper-trader/internal/service"
)

// Service interfaces for dependency injection and testing

// TradeServiceInterface defines the trade simulation operations
type TradeServiceInterface interface {
	Trade(ctx context.Context, fromToken, toToken string, fromAmount decimal.Decimal, explanation string) (*service.TradeResult, error)
	Decline(ctx context.Context, explanation string) error
}

// PnLServiceInterface defines the portfolio valuation operations
type PnLServiceInterface interface {
	ComputePortfolioPnL(ctx context.Context) (*models.PortfolioPnL, error)
	LastChecked() time.Time
}

// AllocationServiceInterface defines the allocation planning operations
type AllocationServiceInterface interface {
	SetTargets(ctx context.Context, inputs []service.TargetInput, reasoning string) error
	GetTargets(ctx context.Context) ([]*models.AllocationTarget, error)
	Deviations(ctx context.Context) ([]*models.AllocationDeviation, error)
}

// PortfolioServiceInterface defines the ledger lifecycle and read operations
type PortfolioServiceInterface interface {
	Reset(ctx context.Context) error
	Positions(ctx context.Context) ([]*models.Position, error)
	TradeHistory(ctx context.Context) ([]*models.Trade, error)
	Explanations(ctx context.Context) ([]*models.Explanation, error)
	SaveStrategy(ctx context.Context, strategyText string) error
	GetStrategy(ctx context.Context) (*models.Strategy, error)
}

// PriceResolverInterface defines the price resolution operations
type PriceResolverInterface interface {
	Resolve(ctx context.Context, symbol string) (decimal.Decimal, error)
	ResolveFresh(ctx context.Context, symbol string) (decimal.Decimal, error)
	Cache() *pricing.PriceCache
}

// BreakerStatsSource exposes the venue circuit breaker state
type BreakerStatsSource interface {
	BreakerStats() *circuitbreaker.Stats
}

// Server represents the HTTP API server
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	tradeService     TradeServiceInterface
	pnlService       PnLServiceInterface
	allocService     AllocationServiceInterface
	portfolioService PortfolioServiceInterface
	priceResolver    PriceResolverInterface
	breakerStats     BreakerStatsSource
	config           *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns sensible server timeouts
func DefaultServerConfig(host, port string) *ServerConfig {
	return &ServerConfig{
		Host:            host,
		Port:            port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// NewServer creates a new API server instance
func NewServer(
	config *ServerConfig,
	tradeService TradeServiceInterface,
	pnlService PnLServiceInterface,
	allocService AllocationServiceInterface,
	portfolioService PortfolioServiceInterface,
	priceResolver PriceResolverInterface,
	breakerStats BreakerStatsSource,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		tradeService:     tradeService,
		pnlService:       pnlService,
		allocService:     allocService,
		portfolioService: portfolioService,
		priceResolver:    priceResolver,
		breakerStats:     breakerStats,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Portfolio endpoints
	api.HandleFunc("/portfolio", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/pnl", s.handleGetPnL).Methods("GET")
	api.HandleFunc("/portfolio/reset", s.handleResetPortfolio).Methods("POST")

	// Trade endpoints
	api.HandleFunc("/trades", s.handleTrade).Methods("POST")
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/trades/decline", s.handleDecline).Methods("POST")

	// Price endpoints
	api.HandleFunc("/prices/status", s.handlePriceStatus).Methods("GET")
	api.HandleFunc("/prices/{symbol}", s.handleGetPrice).Methods("GET")

	// Allocation endpoints
	api.HandleFunc("/allocations", s.handleSetAllocations).Methods("PUT")
	api.HandleFunc("/allocations", s.handleGetAllocations).Methods("GET")
	api.HandleFunc("/allocations/deviations", s.handleGetDeviations).Methods("GET")

	// Note endpoints
	api.HandleFunc("/notes/explanations", s.handleGetExplanations).Methods("GET")
	api.HandleFunc("/notes/strategy", s.handleSaveStrategy).Methods("PUT")
	api.HandleFunc("/notes/strategy", s.handleGetStrategy).Methods("GET")
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "paper-trader",
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() http.Handler {
	return s.router
}
