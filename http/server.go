// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bankruptcywatch/config"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config config.HTTPConfig
	logger *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(cfg config.HTTPConfig, handlers *Handlers, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	handlers.Register(mux)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           NewHandler(cfg, mux, logger),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// NewHandler 给路由套上中间件链
func NewHandler(cfg config.HTTPConfig, mux http.Handler, logger *zap.Logger) http.Handler {
	chain := Chain(
		RecoveryMiddleware(logger),                // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(logger),                  // 2. 日志中间件
		SecurityHeadersMiddleware,                 // 3. 安全头中间件
		CORSMiddleware(cfg.AllowedOrigins),        // 4. CORS中间件
		RequestSizeMiddleware(cfg.MaxUploadBytes), // 5. 请求大小限制
		TimeoutMiddleware(cfg.Timeout),            // 6. 超时中间件
	)
	return chain(mux)
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.server.Addr),
		zap.String("websocket", "/api/ws"))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
