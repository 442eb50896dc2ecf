package auth

import (
	"errors"
	"fmt"
	"time"

	"changeTracker/internal/models/user"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("недействительный токен")

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Claims — разобранные утверждения сессии из токена
type Claims struct {
	UserID uuid.UUID
	Role   user.Role
	Name   string
	Email  string
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (tm *TokenManager) Generate(u *user.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": u.ID.String(),
		"role":    string(u.Role),
		"name":    u.Name,
		"email":   u.Email,
		"exp":     time.Now().Add(tm.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Parse проверяет подпись и срок и возвращает утверждения.
// Роль из повреждённых метаданных деградирует до client.
func (tm *TokenManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	rawID, _ := mapClaims["user_id"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	rawRole, _ := mapClaims["role"].(string)
	name, _ := mapClaims["name"].(string)
	email, _ := mapClaims["email"].(string)

	return &Claims{
		UserID: id,
		Role:   user.ParseRole(rawRole),
		Name:   name,
		Email:  email,
	}, nil
}
