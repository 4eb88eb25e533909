package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"medichat/internal/entity"
	"medichat/internal/usecase"
)

type contextKey string

const claimsContextKey contextKey = "claims"

type AuthMiddleware struct {
	authUc usecase.AuthUsecase
}

func NewAuthMiddleware(authUc usecase.AuthUsecase) *AuthMiddleware {
	return &AuthMiddleware{
		authUc: authUc,
	}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(w, "authorization header must be Bearer token")
			return
		}

		claims, err := m.authUc.ValidateAccessToken(parts[1])
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the token claims the middleware stored on the request
// context, or nil on unauthenticated requests.
func ClaimsFrom(ctx context.Context) *entity.TokenClaims {
	claims, _ := ctx.Value(claimsContextKey).(*entity.TokenClaims)
	return claims
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(Response{Message: message})
}
