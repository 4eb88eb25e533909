package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"medichat/infrastructure/cache"
	"medichat/infrastructure/db"
	"medichat/infrastructure/ws"
	httpHandler "medichat/internal/delivery/http"
	"medichat/internal/delivery/websocket"
	"medichat/internal/repository"
	"medichat/internal/usecase"
	"medichat/pkg/jwt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("godotenv: error loading .env file")
	}

	ctx := context.Background()

	mongoDbHost := os.Getenv("MONGODB_URI")
	mongoDbName := os.Getenv("MONGODB_DATABASE")
	mongoDb, err := db.NewMongoStore(ctx, mongoDbHost, mongoDbName)
	if err != nil {
		panic(err)
	}

	log.Println("Connected to MongoDB")

	if err := mongoDb.EnsureIndexes(ctx); err != nil {
		log.Printf("Warning: index creation failed: %v", err)
	}

	// Initialize repositories
	roomRepo := repository.NewRoomRepository(*mongoDb.DB)
	messageRepo := repository.NewMessageRepository(*mongoDb.DB)
	userRepo := repository.NewUserRepository(*mongoDb.DB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(*mongoDb.DB)

	// Initialize JWT manager
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-this-in-production" // Default for development
		log.Println("Warning: Using default JWT secret. Set JWT_SECRET in .env for production")
	}

	// Access token: 15 minutes, Refresh token: 30 days
	jwtManager := jwt.NewJWTManager(jwtSecret, 15*time.Minute, 30*24*time.Hour)

	nameCache := cache.NewMemCache(time.Minute)
	defer nameCache.Close()

	// Initialize use cases
	authUc := usecase.NewAuthUsecase(userRepo, refreshTokenRepo, jwtManager)
	userUc := usecase.NewUserUsecase(userRepo)
	convUc := usecase.NewConversationUsecase(roomRepo, messageRepo, userRepo, nameCache)

	// Check if Redis is enabled
	redisAddr := os.Getenv("REDIS_ADDR")
	useRedis := redisAddr != ""

	var hub ws.IHub
	if useRedis {
		serverID := os.Getenv("SERVER_ID")
		if serverID == "" {
			serverID = "server-1" // Default
		}

		log.Printf("Using Redis hub at %s with server ID: %s", redisAddr, serverID)
		hub = ws.NewRedisHub(redisAddr, serverID)
	} else {
		log.Println("Using in-memory hub (single server)")
		hub = ws.NewHub()
	}

	// Initialize handlers
	websocketH := websocket.NewWebsocketHandler(hub, userUc, convUc)
	httpH := httpHandler.NewHttpHandler(convUc, userUc)
	authH := httpHandler.NewAuthHandler(authUc)
	authMiddleware := httpHandler.NewAuthMiddleware(authUc)

	hub.SetOnClientUnregister(func(client *ws.UserClient) error {
		return websocketH.HandleUnregisterClient(client)
	})

	go hub.Run()

	log.Println("Websocket is running")

	// CORS middleware
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:3000")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			// Handle preflight requests
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// Map routes
	httpHandler.MapHttpRoutes(router, *httpH, *websocketH, *authH, authMiddleware)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("HTTP server is running on :%s", port)

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}
