package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryPositionRepo реализует PositionRepo в памяти.
// Используется как fallback, когда внешняя БД недоступна,
// или для CI/локальной разработки без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryPositionRepo struct {
	mu   sync.RWMutex
	data map[uint64]EntityPos // entityID -> позиция
}

// NewMemoryPositionRepo создает новый репозиторий позиций в памяти.
//
// Возвращает:
//
//	*MemoryPositionRepo - экземпляр репозитория
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{
		data: make(map[uint64]EntityPos),
	}
}

// Save сохраняет позицию сущности в памяти.
func (r *MemoryPositionRepo) Save(ctx context.Context, entityID uint64, pos EntityPos) error {
	// Валидация входных данных
	if entityID == 0 {
		return fmt.Errorf("недействительный entityID: %d", entityID)
	}

	if pos.Layer == "" {
		return fmt.Errorf("пустое имя слоя для сущности %d", entityID)
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[entityID] = pos
	return nil
}

// Load загружает позицию сущности из памяти.
func (r *MemoryPositionRepo) Load(ctx context.Context, entityID uint64) (EntityPos, bool, error) {
	// Валидация входных данных
	if entityID == 0 {
		return EntityPos{}, false, fmt.Errorf("недействительный entityID: %d", entityID)
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return EntityPos{}, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, exists := r.data[entityID]
	return pos, exists, nil
}

// Delete удаляет сохраненную позицию сущности из памяти.
func (r *MemoryPositionRepo) Delete(ctx context.Context, entityID uint64) error {
	// Валидация входных данных
	if entityID == 0 {
		return fmt.Errorf("недействительный entityID: %d", entityID)
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[entityID]; !exists {
		return fmt.Errorf("позиция для сущности %d не найдена", entityID)
	}

	delete(r.data, entityID)
	return nil
}

// BatchSave сохраняет позиции нескольких сущностей в памяти.
func (r *MemoryPositionRepo) BatchSave(ctx context.Context, positions map[uint64]EntityPos) error {
	if len(positions) == 0 {
		return nil // Нечего сохранять
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Валидация всех записей перед сохранением
	for entityID, pos := range positions {
		if entityID == 0 {
			return fmt.Errorf("недействительный entityID в batch: %d", entityID)
		}
		if pos.Layer == "" {
			return fmt.Errorf("пустое имя слоя для сущности %d", entityID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Сохраняем все позиции
	for entityID, pos := range positions {
		r.data[entityID] = pos
	}

	return nil
}

// GetAllPositions возвращает все сохраненные позиции (для отладки).
// Этот метод не входит в интерфейс PositionRepo, но полезен для тестирования.
func (r *MemoryPositionRepo) GetAllPositions() map[uint64]EntityPos {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Создаем копию карты для безопасности
	result := make(map[uint64]EntityPos, len(r.data))
	for entityID, pos := range r.data {
		result[entityID] = pos
	}

	return result
}

// Count возвращает количество сохраненных позиций (для отладки).
func (r *MemoryPositionRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Clear очищает все сохраненные позиции (для тестов).
func (r *MemoryPositionRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[uint64]EntityPos)
}
