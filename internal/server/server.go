// Package server assembles the HTTP surface and runs it under the fx
// lifecycle.
package server

import (
	"net/http"

	"github.com/clarity-ai/backend/internal/auth"
	authhandlers "github.com/clarity-ai/backend/internal/auth/handlers"
	"github.com/clarity-ai/backend/internal/auth/middleware"
	"github.com/clarity-ai/backend/internal/chat"
	"github.com/clarity-ai/backend/internal/config"
)

// Server wires handlers and middleware into one http.Handler.
type Server struct {
	config  *config.Config
	handler http.Handler
}

func NewServer(cfg *config.Config, authHandler *authhandlers.Handler, chatHandler *chat.Handler, svc *auth.Service) *Server {
	mux := http.NewServeMux()

	upstream := RequireUpstream(&cfg.Supabase)
	authenticated := func(h http.HandlerFunc) http.Handler {
		return upstream(middleware.Authenticate(svc)(h))
	}

	mux.Handle("/api/auth/login", upstream(http.HandlerFunc(authHandler.HandleLogin)))
	mux.Handle("/api/auth/signup", upstream(http.HandlerFunc(authHandler.HandleSignup)))
	mux.Handle("/api/auth/send-2fa-code", upstream(http.HandlerFunc(authHandler.HandleSendCode)))
	mux.Handle("/api/auth/verify-2fa", upstream(http.HandlerFunc(authHandler.HandleVerifyCode)))
	mux.Handle("/api/auth/user", authenticated(authHandler.HandleUser))

	mux.Handle("/api/conversations", authenticated(chatHandler.HandleConversations))
	mux.Handle("/api/messages", authenticated(chatHandler.HandleMessages))

	// The completion proxy has no records-store dependency.
	mux.Handle("/api/chat", http.HandlerFunc(chatHandler.HandleChat))

	cors := CORSWithOrigins(cfg.CORS.AllowOrigins, cfg.CORS.AllowHeaders)
	return &Server{
		config:  cfg,
		handler: cors(Logging(Recover(mux))),
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
