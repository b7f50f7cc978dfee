package storage

import "context"

// EntityPos — позиция сущности для внешних хранилищ.
// В отличие от снапшота мира, позиции пишутся часто и маленькими
// порциями, поэтому для них выделен отдельный репозиторий.
type EntityPos struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Layer string  `json:"layer"`
}

// PositionRepo определяет интерфейс для сохранения и загрузки позиций сущностей.
// Позиции привязаны к EntityID и переживают перезапуск сервера независимо
// от полных снапшотов мира.
type PositionRepo interface {
	// Save сохраняет позицию сущности в хранилище.
	// Параметры:
	//   ctx - контекст для отмены операции
	//   entityID - уникальный идентификатор сущности
	//   pos - позиция (x, y, слой)
	// Возвращает:
	//   error - ошибка при сохранении
	Save(ctx context.Context, entityID uint64, pos EntityPos) error

	// Load загружает позицию сущности из хранилища.
	// Параметры:
	//   ctx - контекст для отмены операции
	//   entityID - уникальный идентификатор сущности
	// Возвращает:
	//   EntityPos - позиция сущности
	//   bool - true если позиция найдена
	//   error - ошибка при загрузке
	Load(ctx context.Context, entityID uint64) (EntityPos, bool, error)

	// Delete удаляет сохраненную позицию сущности.
	// Параметры:
	//   ctx - контекст для отмены операции
	//   entityID - уникальный идентификатор сущности
	// Возвращает:
	//   error - ошибка при удалении
	Delete(ctx context.Context, entityID uint64) error

	// BatchSave сохраняет позиции нескольких сущностей одновременно (для автосохранения).
	// Параметры:
	//   ctx - контекст для отмены операции
	//   positions - карта entityID -> позиция
	// Возвращает:
	//   error - ошибка при сохранении
	BatchSave(ctx context.Context, positions map[uint64]EntityPos) error
}
