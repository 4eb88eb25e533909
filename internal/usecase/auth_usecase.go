package usecase

import (
	"context"
	"errors"
	"time"

	"medichat/internal/entity"
	"medichat/internal/repository"
	"medichat/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailAlreadyTaken    = errors.New("email already taken")
	ErrUsernameAlreadyTaken = errors.New("username already taken")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrExpiredRefreshToken  = errors.New("refresh token has expired")
	ErrRevokedRefreshToken  = errors.New("refresh token has been revoked")
)

type AuthUsecase interface {
	Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error)
	Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (entity.AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAllDevices(ctx context.Context, userId string) error
	ValidateAccessToken(token string) (*entity.TokenClaims, error)
}

type authUsecase struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	jwtManager       *jwt.JWTManager
}

func NewAuthUsecase(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	jwtManager *jwt.JWTManager,
) AuthUsecase {
	return &authUsecase{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtManager:       jwtManager,
	}
}

func (u *authUsecase) Register(ctx context.Context, req entity.RegisterRequest) (entity.AuthResponse, error) {
	if req.Email == "" || req.Password == "" || req.Username == "" || req.Name == "" {
		return entity.AuthResponse{}, errors.New("all fields are required")
	}

	emailExists, err := u.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	if emailExists {
		return entity.AuthResponse{}, ErrEmailAlreadyTaken
	}

	usernameExists, err := u.userRepo.UsernameExists(ctx, req.Username)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	if usernameExists {
		return entity.AuthResponse{}, ErrUsernameAlreadyTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	user := entity.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		Name:     req.Name,
		IsOnline: false,
	}

	userId, err := u.userRepo.Create(ctx, user)
	if err != nil {
		return entity.AuthResponse{}, err
	}
	user.Id = userId

	return u.issueTokens(ctx, user)
}

func (u *authUsecase) Login(ctx context.Context, req entity.LoginRequest) (entity.AuthResponse, error) {
	user, err := u.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return entity.AuthResponse{}, ErrInvalidCredentials
		}
		return entity.AuthResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return entity.AuthResponse{}, ErrInvalidCredentials
	}

	return u.issueTokens(ctx, user)
}

func (u *authUsecase) RefreshToken(ctx context.Context, refreshToken string) (entity.AuthResponse, error) {
	stored, err := u.refreshTokenRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return entity.AuthResponse{}, ErrInvalidRefreshToken
		}
		return entity.AuthResponse{}, err
	}

	if stored.IsRevoked {
		return entity.AuthResponse{}, ErrRevokedRefreshToken
	}
	if time.Now().After(stored.ExpiresAt) {
		return entity.AuthResponse{}, ErrExpiredRefreshToken
	}

	user, err := u.userRepo.Get(ctx, stored.UserId)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	// Rotate: the presented token is single-use.
	if err := u.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		return entity.AuthResponse{}, err
	}

	return u.issueTokens(ctx, user)
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	return u.refreshTokenRepo.Revoke(ctx, refreshToken)
}

func (u *authUsecase) LogoutAllDevices(ctx context.Context, userId string) error {
	return u.refreshTokenRepo.RevokeAllForUser(ctx, userId)
}

func (u *authUsecase) ValidateAccessToken(token string) (*entity.TokenClaims, error) {
	return u.jwtManager.ValidateAccessToken(token)
}

func (u *authUsecase) issueTokens(ctx context.Context, user entity.User) (entity.AuthResponse, error) {
	accessToken, err := u.jwtManager.GenerateAccessToken(user)
	if err != nil {
		return entity.AuthResponse{}, err
	}

	refreshTokenString, err := u.jwtManager.GenerateRefreshToken()
	if err != nil {
		return entity.AuthResponse{}, err
	}

	refreshToken := entity.RefreshToken{
		UserId:    user.Id,
		Token:     refreshTokenString,
		ExpiresAt: u.jwtManager.GetRefreshTokenExpiration(),
	}
	if err := u.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return entity.AuthResponse{}, err
	}

	user.Password = ""
	return entity.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		User:         user,
	}, nil
}
