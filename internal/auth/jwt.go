package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Секрет подписи JWT. На старте генерируется случайный: без явного
// SetJWTSecret токены живут только в пределах одного процесса.
var jwtSecret []byte

// tokenExpiry — срок жизни выдаваемых токенов.
const tokenExpiry = 24 * time.Hour

func init() {
	jwtSecret = make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		// Запасной ключ только для разработки
		jwtSecret = []byte("development-secret-key-change-in-production")
	}
}

// Claims — полезная нагрузка JWT токена.
type Claims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// GenerateJWT подписывает токен для пользователя сроком на 24 часа.
func GenerateJWT(user *User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "worldsim",
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseJWT проверяет подпись и срок действия токена и возвращает claims.
func ParseJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("разбор JWT: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("JWT токен недействителен")
	}
	return claims, nil
}

// ValidateJWT — упрощённая проверка токена для мест, где детали
// ошибки не нужны.
func ValidateJWT(tokenString string) (userID uint64, isValid bool, isAdmin bool) {
	claims, err := ParseJWT(tokenString)
	if err != nil {
		return 0, false, false
	}
	return claims.UserID, true, claims.IsAdmin
}

// GenerateSecureSecret генерирует новый случайный секрет в base64.
func GenerateSecureSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("генерация секрета: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// SetJWTSecret устанавливает секрет подписи из base64-строки.
// Декодированный ключ должен быть не короче 32 байт.
func SetJWTSecret(secret string) error {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return fmt.Errorf("секрет должен быть в base64: %w", err)
	}
	if len(decoded) < 32 {
		return errors.New("секретный ключ должен быть не короче 32 байт")
	}
	jwtSecret = decoded
	return nil
}
