package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"

	"arena-platform/handlers"
	"arena-platform/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	friendHandler *handlers.FriendHandler,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Post("/auth/register", authHandler.Register)
	router.Post("/auth/login", authHandler.Login)

	router.Route("/users", func(r chi.Router) {
		// Публичный профиль
		r.Get("/{userID}", userHandler.GetProfile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate([]byte(jwtSecret)))
			r.Get("/me", userHandler.GetMe)
			r.Put("/me/avatar", userHandler.UploadAvatar)
		})
	})

	router.Route("/friends", func(r chi.Router) {
		r.Use(middleware.Authenticate([]byte(jwtSecret)))
		r.Get("/", friendHandler.List)
		r.Get("/requests", friendHandler.ListPending)
		r.Post("/requests", friendHandler.SendRequest)
		r.Put("/requests/{requestID}", friendHandler.AcceptRequest)
		r.Delete("/requests/{requestID}", friendHandler.Remove)
	})

	router.Route("/tournaments", func(r chi.Router) {
		// Live sessions and the durable archive are both public reads;
		// everything that mutates a tournament goes over the websocket.
		r.Get("/live", tournamentHandler.ListLive)
		r.Get("/live/{tournamentID}", tournamentHandler.GetLive)
		r.Get("/", tournamentHandler.ListArchive)
		r.Get("/{tournamentID}", tournamentHandler.GetArchive)
	})

	router.Get("/ws", webSocketHandler.ServeWs)
}
