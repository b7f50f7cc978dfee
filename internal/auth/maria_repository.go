package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MariaUserRepo реализует UserRepository поверх MariaDB.
type MariaUserRepo struct {
	db *sql.DB
}

// NewMariaUserRepo открывает подключение по DSN и создаёт таблицы,
// если их нет. Пример DSN:
//
//	worldsim:secret@tcp(localhost:3306)/worldsim?charset=utf8mb4&parseTime=True&loc=Local
func NewMariaUserRepo(dsn string) (*MariaUserRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	repo := &MariaUserRepo{db: db}
	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}

	return repo, nil
}

// createTables создает необходимые таблицы в БД
func (m *MariaUserRepo) createTables() error {
	createUsersTable := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

	if _, err := m.db.Exec(createUsersTable); err != nil {
		return fmt.Errorf("не удалось создать таблицу users: %w", err)
	}

	if err := m.createDefaultUsers(); err != nil {
		return fmt.Errorf("не удалось создать пользователей по умолчанию: %w", err)
	}

	return nil
}

// createDefaultUsers создает пользователей по умолчанию, если таблица пуста
func (m *MariaUserRepo) createDefaultUsers() error {
	var userCount int
	err := m.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount)
	if err != nil {
		return fmt.Errorf("ошибка при проверке количества пользователей: %w", err)
	}

	if userCount > 0 {
		return nil
	}

	// Администратор, пароль: ChangeMe123!
	adminHash, err := HashPassword("ChangeMe123!")
	if err != nil {
		return fmt.Errorf("ошибка хеширования пароля администратора: %w", err)
	}
	_, err = m.CreateUser("admin", adminHash, true)
	if err != nil && err != ErrUserExists {
		return fmt.Errorf("не удалось создать администратора: %w", err)
	}

	// Тестовый пользователь, пароль: test123
	testHash, err := HashPassword("test123")
	if err != nil {
		return fmt.Errorf("ошибка хеширования пароля тестового пользователя: %w", err)
	}
	_, err = m.CreateUser("test", testHash, false)
	if err != nil && err != ErrUserExists {
		return fmt.Errorf("не удалось создать тестового пользователя: %w", err)
	}

	return nil
}

// GetUserByUsername получает пользователя по имени
func (m *MariaUserRepo) GetUserByUsername(username string) (*User, error) {
	lower := strings.ToLower(username)

	query := `SELECT id, username, password_hash, is_admin, created_at, last_login
			  FROM users WHERE username = ?`

	var user User
	err := m.db.QueryRow(query, lower).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.LastLogin,
	)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}

	return &user, nil
}

// GetUserByID получает пользователя по ID
func (m *MariaUserRepo) GetUserByID(id uint64) (*User, error) {
	query := `SELECT id, username, password_hash, is_admin, created_at, last_login
			  FROM users WHERE id = ?`

	var user User
	err := m.db.QueryRow(query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.LastLogin,
	)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}

	return &user, nil
}

// CreateUser создает нового пользователя
func (m *MariaUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	lower := strings.ToLower(username)
	now := time.Now()

	query := `INSERT INTO users (username, password_hash, is_admin, created_at, last_login)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := m.db.Exec(query, lower, passwordHash, isAdmin, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении ID пользователя: %w", err)
	}

	return &User{
		ID:           uint64(userID),
		Username:     lower,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		LastLogin:    now,
	}, nil
}

// ValidateCredentials проверяет пару логин/пароль и при успехе
// обновляет время последнего входа
func (m *MariaUserRepo) ValidateCredentials(username, password string) (*User, error) {
	user, err := m.GetUserByUsername(username)
	if err == ErrUserNotFound {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if err := m.UpdateUserLastLogin(user.ID); err != nil {
		return nil, err
	}
	user.LastLogin = time.Now()
	return user, nil
}

// UpdateUserLastLogin обновляет время последнего входа пользователя
func (m *MariaUserRepo) UpdateUserLastLogin(userID uint64) error {
	query := `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := m.db.Exec(query, userID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении времени входа: %w", err)
	}

	return nil
}

// GetUserStats возвращает статистику пользователей
func (m *MariaUserRepo) GetUserStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalUsers int
	err := m.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&totalUsers)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении количества пользователей: %w", err)
	}
	stats["total_users"] = totalUsers

	var totalAdmins int
	err = m.db.QueryRow("SELECT COUNT(*) FROM users WHERE is_admin = TRUE").Scan(&totalAdmins)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении количества админов: %w", err)
	}
	stats["total_admins"] = totalAdmins

	var recentUsers int
	err = m.db.QueryRow("SELECT COUNT(*) FROM users WHERE last_login > DATE_SUB(NOW(), INTERVAL 24 HOUR)").Scan(&recentUsers)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении недавних пользователей: %w", err)
	}
	stats["recent_users_24h"] = recentUsers

	return stats, nil
}

// Close закрывает подключение к БД
func (m *MariaUserRepo) Close() error {
	return m.db.Close()
}
