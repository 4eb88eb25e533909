package jwt_test

import (
	"testing"
	"time"

	"medichat/internal/entity"
	"medichat/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_AccessTokenRoundtrip(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", 15*time.Minute, 30*24*time.Hour)

	user := entity.User{
		Id:       "u1",
		Email:    "alice@hospital.example",
		Username: "alice",
	}

	token, err := manager.GenerateAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserId)
	assert.Equal(t, "alice@hospital.example", claims.Email)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", -time.Minute, time.Hour)

	token, err := manager.GenerateAccessToken(entity.User{Id: "u1"})
	require.NoError(t, err)

	_, err = manager.ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrExpiredToken)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	other := jwt.NewJWTManager("other-secret", 15*time.Minute, time.Hour)

	token, err := manager.GenerateAccessToken(entity.User{Id: "u1"})
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestJWTManager_RefreshTokensAreUnique(t *testing.T) {
	manager := jwt.NewJWTManager("test-secret", 15*time.Minute, time.Hour)

	first, err := manager.GenerateRefreshToken()
	require.NoError(t, err)
	second, err := manager.GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
