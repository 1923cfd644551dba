// Package api exposes the bot's control surface over HTTP: operator
// login, brain inspection, trading start/stop and a websocket event feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"adaptive-trading-bot/config"
	"adaptive-trading-bot/internal/auth"
	"adaptive-trading-bot/internal/brain"
	"adaptive-trading-bot/internal/circuit"
	"adaptive-trading-bot/internal/events"
	"adaptive-trading-bot/internal/exchange"
	"adaptive-trading-bot/internal/scheduler"
	"adaptive-trading-bot/internal/trader"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server wires the HTTP routes to the bot's components.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	config     config.ServerConfig
	authConfig config.AuthConfig
	jwt        *auth.JWTManager

	brain      *brain.Brain
	controller *trader.Controller
	sched      *scheduler.Scheduler
	client     exchange.Client
	breaker    *circuit.Breaker
	hub        *WSHub
	logger     zerolog.Logger

	startedAt time.Time
}

// NewServer builds the router and registers all routes. authConfig may be
// disabled, in which case every route is open.
func NewServer(
	cfg config.ServerConfig,
	authCfg config.AuthConfig,
	br *brain.Brain,
	controller *trader.Controller,
	sched *scheduler.Scheduler,
	client exchange.Client,
	breaker *circuit.Breaker,
	bus *events.Bus,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		config:     cfg,
		authConfig: authCfg,
		brain:      br,
		controller: controller,
		sched:      sched,
		client:     client,
		breaker:    breaker,
		hub:        NewWSHub(bus, logger),
		logger:     logger.With().Str("component", "api").Logger(),
		startedAt:  time.Now(),
	}

	if authCfg.Enabled {
		server.jwt = auth.NewJWTManager(authCfg.JWTSecret, authCfg.TokenDuration)
	}

	server.setupRoutes()
	go server.hub.Run()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/login", s.handleLogin)
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	if s.authConfig.Enabled {
		api.Use(auth.Middleware(s.jwt))
	}

	api.GET("/status", s.handleStatus)
	api.GET("/positions", s.handlePositions)

	api.GET("/brain/stats", s.handleBrainStats)
	api.GET("/brain/weights", s.handleBrainWeights)
	api.GET("/brain/parameters", s.handleBrainParameters)
	api.GET("/brain/timing", s.handleBrainTiming)
	api.GET("/brain/confidence", s.handleBrainConfidence)
	api.GET("/brain/symbol/:symbol", s.handleSymbolPerformance)
	api.POST("/brain/learn", s.handleBrainLearn)
	api.GET("/brain/export", s.handleBrainExport)
	api.POST("/brain/import", s.handleBrainImport)

	api.POST("/trading/start", s.handleTradingStart)
	api.POST("/trading/stop", s.handleTradingStop)
	api.POST("/config", s.handleUpdateParameters)
}

// Start runs the HTTP server until the context is canceled. The websocket
// hub is stopped alongside the server.
func (s *Server) Start(ctx context.Context) error {
	defer s.hub.Stop()

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("http server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(s.config.ShutdownTimeout)*time.Second,
		)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
