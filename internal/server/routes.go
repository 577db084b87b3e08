package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/ai-sdk-gateway/internal/metrics"
	"github.com/nulzo/ai-sdk-gateway/internal/server/middleware"
	v1 "github.com/nulzo/ai-sdk-gateway/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	h := v1.NewGatewayHandler(s.generator, s.logger)

	// Public
	s.router.GET("/health", h.Health)
	if s.config.Metrics.Enabled {
		s.router.GET(s.config.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	// Gateway mount point
	api := s.router.Group(s.config.Server.BasePath)
	api.Use(middleware.Auth(s.config.Server.APIKeys))
	{
		api.POST("/ask", h.Ask)
		api.POST("/ask-stream", h.AskStream)
		api.POST("/chat", h.Chat)
		api.GET("/models", h.Models)
	}
}
