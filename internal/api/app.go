package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/versehub/internal/config"
	"github.com/npezzotti/versehub/internal/database"
	"github.com/npezzotti/versehub/internal/server"
)

type App struct {
	log            *log.Logger
	db             database.PlatformRepository
	srv            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
	adminIds       []int
	upgrader       websocket.Upgrader
}

func NewApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.PlatformRepository, cfg *config.Config) *App {
	s := &App{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		adminIds:       cfg.AdminIds,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /api/presence", s.authMiddleware(s.presence))
	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/mark-read", s.authMiddleware(s.markNotificationRead))
	mux.HandleFunc("POST /api/notifications/mark-all-read", s.authMiddleware(s.markAllNotificationsRead))
	mux.HandleFunc("GET /api/notifications/preferences", s.authMiddleware(s.getPreferences))
	mux.HandleFunc("PUT /api/notifications/preferences", s.authMiddleware(s.updatePreferences))
	mux.HandleFunc("POST /api/notifications/system", s.authMiddleware(s.sendSystemNotification))
	mux.HandleFunc("POST /api/users/{id}/follow", s.authMiddleware(s.followUser))
	mux.HandleFunc("POST /api/poems/{id}/like", s.authMiddleware(s.likePoem))
	mux.HandleFunc("POST /api/chats/{id}/messages", s.authMiddleware(s.createChatMessage))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	h = handlers.CombinedLoggingHandler(logger.Writer(), h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *App) Handler() http.Handler {
	return s.srv.Handler
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
