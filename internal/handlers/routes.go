package handlers

import (
	"net/http"

	"plant-photo-backend/internal/middleware"
	"plant-photo-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services are the dependencies of the HTTP layer
type Services struct {
	Users   *services.UserService
	Uploads *services.UploadService
	Stats   *services.StatsService
	Hub     *services.WSHub
}

// NewRouter wires every route and middleware
func NewRouter(s Services) http.Handler {
	userHandler := NewUserHandler(s.Users)
	uploadHandler := NewUploadHandler(s.Uploads, s.Users)
	feedHandler := NewFeedHandler(s.Users, s.Stats)
	wsHandler := NewWebSocketHandler(s.Hub, s.Users, s.Stats)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", userHandler.CreateUser)
		r.Get("/leaderboard", feedHandler.Leaderboard)
		r.Get("/discoveries", feedHandler.Discoveries)
		r.Get("/stats", feedHandler.Stats)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CurrentUser(s.Users))
			r.Get("/user", userHandler.GetCurrentUser)
			r.Get("/user/uploads", userHandler.GetUserUploads)
			r.Post("/upload", uploadHandler.Upload)
		})
	})

	r.Get("/ws", wsHandler.HandleWebSocket)

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
