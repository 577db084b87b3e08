package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/ai-sdk-gateway/internal/config"
	"github.com/nulzo/ai-sdk-gateway/internal/server/middleware"
	v1 "github.com/nulzo/ai-sdk-gateway/internal/server/v1"
	"github.com/nulzo/ai-sdk-gateway/internal/server/validator"
	"go.uber.org/zap"
)

type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	generator v1.Generator
}

func New(cfg *config.Config, logger *zap.Logger, generator v1.Generator) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.InitValidator()

	engine := gin.New()

	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(logger))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing.ServiceName))
	}
	engine.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	engine.Use(middleware.ErrorHandler(logger))

	s := &Server{
		router:    engine,
		config:    cfg,
		logger:    logger,
		generator: generator,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the router in an http.Server. There is no write timeout:
// streamed answers stay open as long as the provider keeps producing.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
