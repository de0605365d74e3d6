package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/yusheng929/steam-plugin/internal/config"
	"github.com/yusheng929/steam-plugin/internal/logger"
	"github.com/yusheng929/steam-plugin/internal/models"
	"go.uber.org/zap"
)

// SteamClient is the part of steamapi.Client the HTTP surface needs.
type SteamClient interface {
	Do(ctx context.Context, req models.Request) ([]byte, error)
	Report(ctx context.Context) (*models.UsageReport, error)
}

// Server represents the API server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	router *gin.Engine
	steam  SteamClient
	logs   *logger.LogBuffer
}

// New creates a new server instance. logs may be nil, which disables /admin/logs.
func New(cfg *config.Config, steam SteamClient, logs *logger.LogBuffer, log *zap.Logger) *Server {
	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:    cfg,
		logger: log,
		router: gin.New(),
		steam:  steam,
		logs:   logs,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())

	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// 健康检查
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ping", s.ping)

	// Steam Web API 转发
	api := s.router.Group("/api")
	api.Use(s.apiKeyAuthMiddleware())
	{
		api.GET("/*path", s.forward)
		api.POST("/*path", s.forward)
	}

	admin := s.router.Group("/admin")
	admin.Use(s.apiKeyAuthMiddleware())
	{
		admin.GET("/usage", s.getUsage)
		admin.GET("/logs", s.getLogs)
		admin.DELETE("/logs", s.clearLogs)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func (s *Server) ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}
