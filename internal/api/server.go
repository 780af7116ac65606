// Package api provides the HTTP and gRPC server for tradeview, exposing
// strategy metadata, market data, saved parameter sets and backtest runs.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"tradeview/internal/backtest"
	"tradeview/internal/config"
	"tradeview/internal/feed"
	"tradeview/internal/paramset"
	"tradeview/internal/store"
	"tradeview/internal/strategy"
)

const (
	// MaxEquityPoints bounds the equity curve returned by POST /api/backtest.
	MaxEquityPoints = 500
	// MaxDataBars bounds the bars returned by GET /api/data/:symbol.
	MaxDataBars = 1000

	shutdownTimeout = 5 * time.Second
)

// Deps are the collaborators the handlers call into. Runs may be nil, in
// which case backtests are not persisted.
type Deps struct {
	Registry  *strategy.Registry
	Runner    *backtest.Runner
	Feed      *feed.Manager
	ParamSets *paramset.Manager
	Runs      store.RunStore
	Log       *slog.Logger
	Version   string
}

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	cfg     config.Server
	deps    Deps
	log     *slog.Logger
	router  *gin.Engine
	limiter *clientLimiter

	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	now        func() time.Time
}

// NewServer creates a Server configured from cfg and wires all routes.
func NewServer(cfg config.Server, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		log:     log,
		limiter: newClientLimiter(defaultClientRate, defaultClientBurst),
		now:     time.Now,
	}

	r := gin.New()
	r.Use(recovery(log))
	r.Use(requestID())
	r.Use(requestLogger(log))
	r.Use(s.limiter.middleware())
	r.Use(cors())
	s.router = r
	s.routes()

	s.grpcServer, s.health = newGRPCServer()
	return s
}

// Handler returns the HTTP handler serving the REST API.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	api := s.router.Group("/api")

	api.GET("/health", s.handleHealth)

	api.GET("/strategies", s.handleListStrategies)
	api.GET("/strategy/:name", s.handleGetStrategy)

	api.GET("/symbols", s.handleListSymbols)
	api.GET("/symbols/local", s.handleListLocal)
	api.POST("/symbols/add", s.handleAddSymbol)
	api.DELETE("/symbols/:symbol", s.handleDeleteSymbol)

	api.GET("/configs", s.handleListConfigs)
	api.POST("/configs", s.handleCreateConfig)
	api.POST("/configs/import", s.handleImportConfig)
	api.GET("/configs/:id", s.handleGetConfig)
	api.PUT("/configs/:id", s.handleUpdateConfig)
	api.DELETE("/configs/:id", s.handleDeleteConfig)
	api.POST("/configs/:id/duplicate", s.handleDuplicateConfig)
	api.GET("/configs/:id/export", s.handleExportConfig)

	api.POST("/backtest", s.handleBacktest)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)

	api.GET("/data/:symbol", s.handleGetData)
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a listener fails. Cancelling ctx shuts both
// servers down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpAddr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcLis net.Listener
	if s.cfg.GRPCPort > 0 {
		grpcAddr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.GRPCPort))
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", grpcAddr, err)
		}
		grpcLis = lis
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", httpAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error {
			s.log.Info("gRPC server listening", "addr", grpcLis.Addr().String())
			if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down API server")
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	return err
}
