package world

import (
	"github.com/anthive/worldsim/internal/vec"
)

// Entity — внешняя сущность, размещаемая в мире.
//
// Мир хранит только ссылки: он никогда не создаёт и не уничтожает
// сущности, их жизненным циклом владеет вызывающая сторона (менеджер
// сущностей, симуляция). Идентичность сущности — её ID: членство в
// слоях и удаление сравнивают сущности по GetID, а не по позиции.
type Entity interface {
	// GetID возвращает уникальный стабильный идентификатор сущности.
	GetID() uint64

	// GetPosition возвращает текущую позицию в координатах мира.
	GetPosition() vec.Vec2Float
}
