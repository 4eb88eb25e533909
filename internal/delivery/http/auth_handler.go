package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"medichat/internal/entity"
	"medichat/internal/usecase"
)

type AuthHandler struct {
	authUc usecase.AuthUsecase
}

func NewAuthHandler(authUc usecase.AuthUsecase) *AuthHandler {
	return &AuthHandler{
		authUc: authUc,
	}
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req entity.RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" || req.Username == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "email, username, password, and name are required"})
		return
	}

	if len(req.Password) < 6 {
		writeJSON(w, http.StatusBadRequest, Response{Message: "password must be at least 6 characters"})
		return
	}

	if len(req.Username) < 3 {
		writeJSON(w, http.StatusBadRequest, Response{Message: "username must be at least 3 characters"})
		return
	}

	authResponse, err := h.authUc.Register(r.Context(), req)
	if err != nil {
		log.Printf("Register error: %v", err)

		statusCode := http.StatusInternalServerError
		message := "internal server error"

		switch {
		case errors.Is(err, usecase.ErrEmailAlreadyTaken):
			statusCode = http.StatusConflict
			message = "email already taken"
		case errors.Is(err, usecase.ErrUsernameAlreadyTaken):
			statusCode = http.StatusConflict
			message = "username already taken"
		}

		writeJSON(w, statusCode, Response{Message: message})
		return
	}

	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	authResponse.RefreshToken = "" // it travels in the cookie only

	writeJSON(w, http.StatusCreated, Response{Message: "registration successful", Data: authResponse})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "email and password are required"})
		return
	}

	authResponse, err := h.authUc.Login(r.Context(), req)
	if err != nil {
		log.Printf("Login error: %v", err)

		statusCode := http.StatusInternalServerError
		message := "internal server error"

		if errors.Is(err, usecase.ErrInvalidCredentials) {
			statusCode = http.StatusUnauthorized
			message = "invalid email or password"
		}

		writeJSON(w, statusCode, Response{Message: message})
		return
	}

	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	authResponse.RefreshToken = ""

	writeJSON(w, http.StatusOK, Response{Message: "login successful", Data: authResponse})
}

// POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	cookie, err := r.Cookie("refresh_token")
	if err == nil {
		refreshToken = cookie.Value
	}

	if refreshToken == "" {
		var req entity.RefreshTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "refresh token is required"})
		return
	}

	authResponse, err := h.authUc.RefreshToken(r.Context(), refreshToken)
	if err != nil {
		log.Printf("Refresh token error: %v", err)

		statusCode := http.StatusInternalServerError
		message := "internal server error"

		switch {
		case errors.Is(err, usecase.ErrInvalidRefreshToken),
			errors.Is(err, usecase.ErrExpiredRefreshToken),
			errors.Is(err, usecase.ErrRevokedRefreshToken):
			statusCode = http.StatusUnauthorized
			message = "invalid or expired refresh token"
		}

		writeJSON(w, statusCode, Response{Message: message})
		return
	}

	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	authResponse.RefreshToken = ""

	writeJSON(w, http.StatusOK, Response{Message: "token refreshed", Data: authResponse})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err == nil && cookie.Value != "" {
		if err := h.authUc.Logout(r.Context(), cookie.Value); err != nil {
			log.Printf("Logout error: %v", err)
		}
	}

	h.clearRefreshTokenCookie(w)
	writeJSON(w, http.StatusOK, Response{Message: "logged out"})
}

// POST /auth/logout-all
func (h *AuthHandler) LogoutAllDevices(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())

	if err := h.authUc.LogoutAllDevices(r.Context(), claims.UserId); err != nil {
		log.Printf("Logout all devices error: %v", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: "internal server error"})
		return
	}

	h.clearRefreshTokenCookie(w)
	writeJSON(w, http.StatusOK, Response{Message: "logged out from all devices"})
}

func (h *AuthHandler) setRefreshTokenCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     "/auth",
		Expires:  time.Now().Add(30 * 24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
