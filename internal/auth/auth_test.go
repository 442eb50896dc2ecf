package auth_test

import (
	"testing"
	"time"

	"changeTracker/internal/auth"
	"changeTracker/internal/models/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashPassword тестирует хэширование и проверку пароля
func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("пароль123")
	require.NoError(t, err)
	assert.NotEqual(t, "пароль123", hash)

	assert.True(t, auth.CheckPassword("пароль123", hash))
	assert.False(t, auth.CheckPassword("другой пароль", hash))
	assert.False(t, auth.CheckPassword("пароль123", "не хэш"))
}

// TestTokenManager_RoundTrip тестирует выпуск и разбор токена
func TestTokenManager_RoundTrip(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", time.Hour)
	u := &user.User{
		ID:    uuid.New(),
		Name:  "Иван",
		Email: "ivan@example.com",
		Role:  user.RoleAdmin,
	}

	token, err := tm.Generate(u)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, user.RoleAdmin, claims.Role)
	assert.Equal(t, "Иван", claims.Name)
	assert.Equal(t, "ivan@example.com", claims.Email)
}

// TestTokenManager_InvalidToken тестирует отбраковку чужих и битых токенов
func TestTokenManager_InvalidToken(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", time.Hour)
	other := auth.NewTokenManager("другой-секрет", time.Hour)

	u := &user.User{ID: uuid.New(), Role: user.RoleClient}

	_, err := tm.Parse("не токен вовсе")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	// токен, подписанный другим секретом
	foreign, err := other.Generate(u)
	require.NoError(t, err)
	_, err = tm.Parse(foreign)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

// TestTokenManager_Expired тестирует просроченный токен
func TestTokenManager_Expired(t *testing.T) {
	tm := auth.NewTokenManager("test-secret", time.Nanosecond)

	u := &user.User{ID: uuid.New(), Role: user.RoleClient}
	token, err := tm.Generate(u)
	require.NoError(t, err)

	time.Sleep(time.Second + 100*time.Millisecond)

	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
