package http

import (
	"net/http"

	wsDelivery "medichat/internal/delivery/websocket"

	"github.com/go-chi/chi/v5"
)

func MapHttpRoutes(r *chi.Mux, httpHandler HttpHandler, websocketHandler wsDelivery.WebsocketHandler, authHandler AuthHandler, authMiddleware *AuthMiddleware) {
	r.Handle("/ws/{userId}", http.HandlerFunc(websocketHandler.HandleWebSocket))

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", http.HandlerFunc(authHandler.Register))
		r.Post("/login", http.HandlerFunc(authHandler.Login))
		r.Post("/refresh", http.HandlerFunc(authHandler.RefreshToken))
		r.Post("/logout", http.HandlerFunc(authHandler.Logout))

		// Protected auth routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Post("/logout-all", http.HandlerFunc(authHandler.LogoutAllDevices))
		})
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/messages", http.HandlerFunc(httpHandler.SendMessage))

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", http.HandlerFunc(httpHandler.ListRooms))
			r.Get("/{roomId}/messages", http.HandlerFunc(httpHandler.GetMessages))
			r.Post("/{roomId}/read", http.HandlerFunc(httpHandler.MarkRead))
			r.Put("/{roomId}/messages/{messageId}", http.HandlerFunc(httpHandler.EditMessage))
			r.Delete("/{roomId}/messages/{messageId}", http.HandlerFunc(httpHandler.DeleteMessage))
		})

		r.Route("/user", func(r chi.Router) {
			r.Get("/{id}", http.HandlerFunc(httpHandler.GetUser))
		})
	})
}
