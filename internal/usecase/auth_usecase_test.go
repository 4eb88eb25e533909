package usecase_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"medichat/internal/entity"
	"medichat/internal/repository"
	"medichat/internal/usecase"
	"medichat/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRefreshTokenRepo struct {
	tokens map[string]entity.RefreshToken
}

func (s *stubRefreshTokenRepo) Create(ctx context.Context, token entity.RefreshToken) error {
	s.tokens[token.Token] = token
	return nil
}

func (s *stubRefreshTokenRepo) GetByToken(ctx context.Context, token string) (entity.RefreshToken, error) {
	stored, ok := s.tokens[token]
	if !ok {
		return entity.RefreshToken{}, repository.ErrRefreshTokenNotFound
	}
	return stored, nil
}

func (s *stubRefreshTokenRepo) Revoke(ctx context.Context, token string) error {
	stored, ok := s.tokens[token]
	if ok {
		stored.IsRevoked = true
		s.tokens[token] = stored
	}
	return nil
}

func (s *stubRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userId string) error {
	for key, stored := range s.tokens {
		if stored.UserId == userId {
			stored.IsRevoked = true
			s.tokens[key] = stored
		}
	}
	return nil
}

type countingUserRepo struct {
	stubUserRepo
	nextId int
}

func (s *countingUserRepo) Create(ctx context.Context, user entity.User) (string, error) {
	s.nextId++
	user.Id = "u" + strconv.Itoa(s.nextId)
	s.users[user.Id] = user
	return user.Id, nil
}

func newAuthFixture() (usecase.AuthUsecase, *countingUserRepo, *stubRefreshTokenRepo) {
	users := &countingUserRepo{stubUserRepo: stubUserRepo{users: map[string]entity.User{}}}
	tokens := &stubRefreshTokenRepo{tokens: map[string]entity.RefreshToken{}}
	manager := jwt.NewJWTManager("test-secret", 15*time.Minute, 30*24*time.Hour)
	return usecase.NewAuthUsecase(users, tokens, manager), users, tokens
}

func TestAuthUsecase_RegisterAndLogin(t *testing.T) {
	uc, _, _ := newAuthFixture()
	ctx := context.Background()

	resp, err := uc.Register(ctx, entity.RegisterRequest{
		Username: "alice",
		Email:    "alice@hospital.example",
		Password: "hunter22",
		Name:     "Dr. Alice Cooper",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Empty(t, resp.User.Password)

	claims, err := uc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.Id, claims.UserId)

	login, err := uc.Login(ctx, entity.LoginRequest{
		Email:    "alice@hospital.example",
		Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, resp.User.Id, login.User.Id)

	_, err = uc.Login(ctx, entity.LoginRequest{
		Email:    "alice@hospital.example",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, usecase.ErrInvalidCredentials)
}

func TestAuthUsecase_DuplicateRegistration(t *testing.T) {
	uc, _, _ := newAuthFixture()
	ctx := context.Background()

	req := entity.RegisterRequest{
		Username: "alice",
		Email:    "alice@hospital.example",
		Password: "hunter22",
		Name:     "Dr. Alice Cooper",
	}
	_, err := uc.Register(ctx, req)
	require.NoError(t, err)

	_, err = uc.Register(ctx, req)
	assert.ErrorIs(t, err, usecase.ErrEmailAlreadyTaken)

	req.Email = "alice2@hospital.example"
	_, err = uc.Register(ctx, req)
	assert.ErrorIs(t, err, usecase.ErrUsernameAlreadyTaken)
}

func TestAuthUsecase_RefreshRotation(t *testing.T) {
	uc, _, tokens := newAuthFixture()
	ctx := context.Background()

	resp, err := uc.Register(ctx, entity.RegisterRequest{
		Username: "alice",
		Email:    "alice@hospital.example",
		Password: "hunter22",
		Name:     "Dr. Alice Cooper",
	})
	require.NoError(t, err)

	refreshed, err := uc.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)

	// The presented token was rotated out; a replay must fail.
	_, err = uc.RefreshToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, usecase.ErrRevokedRefreshToken)

	_, err = uc.RefreshToken(ctx, "never-issued")
	assert.ErrorIs(t, err, usecase.ErrInvalidRefreshToken)

	// Logout-all revokes the current token too.
	require.NoError(t, uc.LogoutAllDevices(ctx, resp.User.Id))
	_, err = uc.RefreshToken(ctx, refreshed.RefreshToken)
	assert.ErrorIs(t, err, usecase.ErrRevokedRefreshToken)

	assert.Len(t, tokens.tokens, 2)
}
