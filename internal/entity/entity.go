package entity

import (
	"github.com/anthive/worldsim/internal/vec"
	"github.com/anthive/worldsim/internal/world/tile"
)

// Entity — конкретная запись сущности, которой владеет симуляция.
// Мир хранит на неё только ссылку через интерфейс world.Entity:
// создание, перемещение и уничтожение записей — ответственность менеджера.
type Entity struct {
	ID       uint64                 // Уникальный идентификатор сущности
	Type     tile.EntityTypeID      // Тип сущности (муравей, еда, препятствие...)
	Position vec.Vec2Float          // Текущая позиция в координатах мира
	Layer    string                 // Слой мира, в котором состоит сущность
	Payload  map[string]interface{} // Дополнительные данные сущности
	Active   bool                   // Активна ли сущность
}

// New создаёт новую сущность
func New(id uint64, entityType tile.EntityTypeID, pos vec.Vec2Float, layer string) *Entity {
	return &Entity{
		ID:       id,
		Type:     entityType,
		Position: pos,
		Layer:    layer,
		Payload:  make(map[string]interface{}),
		Active:   true,
	}
}

// GetID возвращает уникальный идентификатор сущности (world.Entity).
func (e *Entity) GetID() uint64 { return e.ID }

// GetPosition возвращает текущую позицию сущности (world.Entity).
func (e *Entity) GetPosition() vec.Vec2Float { return e.Position }

// SetPosition устанавливает новую позицию. Пространственный индекс мира
// узнаёт о перемещении при следующем World.Update.
func (e *Entity) SetPosition(pos vec.Vec2Float) { e.Position = pos }
