package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword хеширует пароль bcrypt'ом со стоимостью по умолчанию.
// Хеш самодостаточен (соль внутри), его можно хранить как есть.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword сверяет пароль с bcrypt-хешем. Возвращает false и при
// повреждённом хеше — для вызывающего это та же неудачная попытка входа.
func CheckPassword(hash string, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
