package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaPositionRepo реализует PositionRepo для базы данных MariaDB/MySQL.
// Использует таблицу entity_positions для хранения позиций сущностей.
type MariaPositionRepo struct {
	db *sql.DB
}

// NewMariaPositionRepo создает новый репозиторий позиций для MariaDB.
// Автоматически создает таблицу, если она не существует.
//
// Параметры:
//
//	dsn - строка подключения к базе данных (user:pass@tcp(host:port)/dbname)
//
// Возвращает:
//
//	*MariaPositionRepo - экземпляр репозитория
//	error - ошибка при подключении или создании таблицы
func NewMariaPositionRepo(dsn string) (*MariaPositionRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaPositionRepo{db: db}

	// Создаем таблицу, если она не существует
	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

// createTable создает таблицу entity_positions, если она не существует.
func (r *MariaPositionRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS entity_positions (
			entity_id  BIGINT UNSIGNED PRIMARY KEY,
			x          DOUBLE       NOT NULL,
			y          DOUBLE       NOT NULL,
			layer      VARCHAR(64)  NOT NULL DEFAULT 'DEFAULT',
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP,
			INDEX idx_layer (layer),
			INDEX idx_updated_at (updated_at)
		) ENGINE=InnoDB
	`

	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы entity_positions: %w", err)
	}

	return nil
}

// Save сохраняет позицию сущности в базе данных.
// Использует INSERT ... ON DUPLICATE KEY UPDATE для обновления существующих записей.
func (r *MariaPositionRepo) Save(ctx context.Context, entityID uint64, pos EntityPos) error {
	// Валидация входных данных
	if entityID == 0 {
		return fmt.Errorf("недействительный entityID: %d", entityID)
	}

	if pos.Layer == "" {
		return fmt.Errorf("пустое имя слоя для сущности %d", entityID)
	}

	query := `
		INSERT INTO entity_positions (entity_id, x, y, layer)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			x = VALUES(x),
			y = VALUES(y),
			layer = VALUES(layer),
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.ExecContext(ctx, query, entityID, pos.X, pos.Y, pos.Layer)
	if err != nil {
		return fmt.Errorf("ошибка сохранения позиции для сущности %d: %w", entityID, err)
	}

	return nil
}

// Load загружает позицию сущности из базы данных.
func (r *MariaPositionRepo) Load(ctx context.Context, entityID uint64) (EntityPos, bool, error) {
	// Валидация входных данных
	if entityID == 0 {
		return EntityPos{}, false, fmt.Errorf("недействительный entityID: %d", entityID)
	}

	query := `SELECT x, y, layer FROM entity_positions WHERE entity_id = ?`

	var pos EntityPos
	err := r.db.QueryRowContext(ctx, query, entityID).Scan(&pos.X, &pos.Y, &pos.Layer)

	if err == sql.ErrNoRows {
		// Позиция не найдена - сущность ещё не сохранялась
		return EntityPos{}, false, nil
	}

	if err != nil {
		return EntityPos{}, false, fmt.Errorf("ошибка загрузки позиции для сущности %d: %w", entityID, err)
	}

	return pos, true, nil
}

// Delete удаляет сохраненную позицию сущности.
func (r *MariaPositionRepo) Delete(ctx context.Context, entityID uint64) error {
	// Валидация входных данных
	if entityID == 0 {
		return fmt.Errorf("недействительный entityID: %d", entityID)
	}

	query := `DELETE FROM entity_positions WHERE entity_id = ?`

	result, err := r.db.ExecContext(ctx, query, entityID)
	if err != nil {
		return fmt.Errorf("ошибка удаления позиции для сущности %d: %w", entityID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("позиция для сущности %d не найдена", entityID)
	}

	return nil
}

// BatchSave сохраняет позиции нескольких сущностей в одной транзакции.
// Это оптимизация для автосохранения всего мира.
func (r *MariaPositionRepo) BatchSave(ctx context.Context, positions map[uint64]EntityPos) error {
	if len(positions) == 0 {
		return nil // Нечего сохранять
	}

	// Начинаем транзакцию
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback() // Откат в случае ошибки

	// Подготавливаем запрос
	query := `
		INSERT INTO entity_positions (entity_id, x, y, layer)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			x = VALUES(x),
			y = VALUES(y),
			layer = VALUES(layer),
			updated_at = CURRENT_TIMESTAMP
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	// Выполняем запросы для каждой позиции
	for entityID, pos := range positions {
		// Валидация каждой записи
		if entityID == 0 {
			return fmt.Errorf("недействительный entityID в batch: %d", entityID)
		}
		if pos.Layer == "" {
			return fmt.Errorf("пустое имя слоя для сущности %d", entityID)
		}

		_, err = stmt.ExecContext(ctx, entityID, pos.X, pos.Y, pos.Layer)
		if err != nil {
			return fmt.Errorf("ошибка сохранения позиции для сущности %d в batch: %w", entityID, err)
		}
	}

	// Фиксируем транзакцию
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	return nil
}

// Close закрывает соединение с базой данных.
func (r *MariaPositionRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
