package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/clarity-ai/backend/internal/config"
	"github.com/clarity-ai/backend/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// shutdownTimeout is the maximum time to wait for server shutdown
const shutdownTimeout = 5 * time.Second

// Module provides the HTTP server and starts it under the fx lifecycle
var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, cfg *config.Config, srv *Server) {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", httpServer.Addr, err)
			}
			logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
			go func() {
				if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down server", zap.Duration("timeout", shutdownTimeout))
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	})
}
