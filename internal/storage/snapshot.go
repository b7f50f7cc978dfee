package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrSnapshotNotFound — снапшот с указанным идентификатором не существует.
var ErrSnapshotNotFound = errors.New("снапшот не найден")

// SnapshotMeta описывает сохранённый снапшот мира.
type SnapshotMeta struct {
	ID        string    `json:"id"`         // Уникальный идентификатор (UUID)
	CreatedAt time.Time `json:"created_at"` // Время создания (UTC)
	Tick      uint64    `json:"tick"`       // Номер тика симуляции
	Width     int       `json:"width"`      // Ширина сетки в тайлах
	Height    int       `json:"height"`     // Высота сетки в тайлах
	Entities  int       `json:"entities"`   // Количество сущностей
	Layers    int       `json:"layers"`     // Количество слоёв
}

// EntityRecord — сериализуемое представление сущности в снапшоте.
type EntityRecord struct {
	ID      uint64                 `json:"id"`
	Type    uint32                 `json:"type"`
	X       float64                `json:"x"`
	Y       float64                `json:"y"`
	Layer   string                 `json:"layer"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Snapshot — полное состояние мира на момент сохранения.
// Grid хранится как сырой little-endian буфер сетки; сжатие —
// забота конкретного хранилища.
type Snapshot struct {
	Meta     SnapshotMeta        `json:"meta"`
	Grid     []byte              `json:"grid"`
	Entities []EntityRecord      `json:"entities"` // В порядке глобального списка мира
	Layers   map[string][]uint64 `json:"layers"`   // Имя слоя -> упорядоченные ID участников
}

// Validate проверяет согласованность снапшота перед сохранением или восстановлением.
func (s *Snapshot) Validate() error {
	if s.Meta.Width <= 0 || s.Meta.Height <= 0 {
		return fmt.Errorf("некорректные размеры сетки: %dx%d", s.Meta.Width, s.Meta.Height)
	}
	expected := s.Meta.Width * s.Meta.Height * 4
	if len(s.Grid) != expected {
		return fmt.Errorf("размер буфера сетки %d не совпадает с ожидаемым %d", len(s.Grid), expected)
	}
	known := make(map[uint64]bool, len(s.Entities))
	for _, e := range s.Entities {
		known[e.ID] = true
	}
	for name, members := range s.Layers {
		for _, id := range members {
			if !known[id] {
				return fmt.Errorf("слой %s ссылается на неизвестную сущность %d", name, id)
			}
		}
	}
	return nil
}

// SnapshotStore — абстракция хранилища снапшотов.
// Реализации: BadgerDB (WorldStorage) и файловая (FileSnapshotStore).
type SnapshotStore interface {
	// Save сохраняет снапшот и помечает его последним.
	Save(snap *Snapshot) error

	// Load загружает снапшот по идентификатору.
	Load(id string) (*Snapshot, error)

	// LoadLatest загружает последний сохранённый снапшот.
	// Возвращает nil, nil если снапшотов ещё нет.
	LoadLatest() (*Snapshot, error)

	// List возвращает метаданные всех снапшотов, новые первыми.
	List() ([]SnapshotMeta, error)

	// Delete удаляет снапшот по идентификатору.
	Delete(id string) error

	// Close освобождает ресурсы хранилища.
	Close() error
}
