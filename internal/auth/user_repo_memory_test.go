package auth

import (
	"errors"
	"testing"
)

// TestMemoryUserRepo_DefaultUsers проверяет преднаполненные аккаунты
func TestMemoryUserRepo_DefaultUsers(t *testing.T) {
	repo, err := NewMemoryUserRepo()
	if err != nil {
		t.Fatalf("Не удалось создать репозиторий: %v", err)
	}

	testUser, err := repo.GetUserByUsername("test")
	if err != nil {
		t.Fatalf("Пользователь test должен существовать: %v", err)
	}
	if testUser.IsAdmin {
		t.Error("Пользователь test не должен быть администратором")
	}

	admin, err := repo.GetUserByUsername("ADMIN")
	if err != nil {
		t.Fatalf("Поиск имени должен быть регистронезависимым: %v", err)
	}
	if !admin.IsAdmin {
		t.Error("Пользователь admin должен быть администратором")
	}
}

// TestMemoryUserRepo_CreateAndGet проверяет создание и выборку
func TestMemoryUserRepo_CreateAndGet(t *testing.T) {
	repo, err := NewMemoryUserRepo()
	if err != nil {
		t.Fatalf("Не удалось создать репозиторий: %v", err)
	}

	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("Ошибка хеширования: %v", err)
	}

	created, err := repo.CreateUser("Observer", hash, false)
	if err != nil {
		t.Fatalf("Ошибка создания пользователя: %v", err)
	}
	if created.ID == 0 {
		t.Error("ID должен назначаться автоматически")
	}

	byID, err := repo.GetUserByID(created.ID)
	if err != nil {
		t.Fatalf("Пользователь должен находиться по ID: %v", err)
	}
	if byID.Username != "Observer" {
		t.Errorf("Имя искажено: %s", byID.Username)
	}

	// Дубликат имени в другом регистре отклоняется
	_, err = repo.CreateUser("observer", hash, false)
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("Ожидалась ErrUserExists, получено: %v", err)
	}

	// Несуществующий ID
	_, err = repo.GetUserByID(9999)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Ожидалась ErrUserNotFound, получено: %v", err)
	}
}

// TestMemoryUserRepo_ValidateCredentials проверяет аутентификацию
func TestMemoryUserRepo_ValidateCredentials(t *testing.T) {
	repo, err := NewMemoryUserRepo()
	if err != nil {
		t.Fatalf("Не удалось создать репозиторий: %v", err)
	}

	user, err := repo.ValidateCredentials("test", "test")
	if err != nil {
		t.Fatalf("Верные учетные данные отклонены: %v", err)
	}
	if user.Username != "test" {
		t.Errorf("Вернулся не тот пользователь: %s", user.Username)
	}

	// Неверный пароль
	_, err = repo.ValidateCredentials("test", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Ожидалась ErrInvalidCredentials, получено: %v", err)
	}

	// Несуществующий пользователь даёт ту же ошибку
	_, err = repo.ValidateCredentials("ghost", "test")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Ожидалась ErrInvalidCredentials, получено: %v", err)
	}
}

// TestHashPassword проверяет bcrypt-обвязку
func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("p@ssw0rd")
	if err != nil {
		t.Fatalf("Ошибка хеширования: %v", err)
	}
	if hash == "p@ssw0rd" {
		t.Fatal("Пароль не должен храниться открытым текстом")
	}

	if !CheckPassword(hash, "p@ssw0rd") {
		t.Error("Верный пароль не прошел проверку")
	}
	if CheckPassword(hash, "another") {
		t.Error("Неверный пароль прошел проверку")
	}
}
