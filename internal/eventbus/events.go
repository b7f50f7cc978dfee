package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий симуляции. Используются в Envelope.EventType и как
// суффиксы NATS-субжектов (world.events.<type>).
const (
	EventWorldTick       = "world.tick"       // Завершён тик симуляции
	EventEntitySpawned   = "entity.spawned"   // Создана сущность
	EventEntityDespawned = "entity.despawned" // Уничтожена сущность
	EventEntityMoved     = "entity.moved"     // Сущность переместилась
	EventTileUpdated     = "tile.updated"     // Изменено поле тайла
	EventTrailPainted    = "trail.painted"    // Обновлена интенсивность следа
	EventWorldSnapshot   = "world.snapshot"   // Сохранён снапшот мира
)

// TickPayload — полезная нагрузка world.tick.
type TickPayload struct {
	Tick       uint64  `json:"tick"`
	Entities   int     `json:"entities"`
	DurationMs float64 `json:"duration_ms"`
}

// EntityPayload — полезная нагрузка entity.spawned / entity.despawned / entity.moved.
type EntityPayload struct {
	ID    uint64  `json:"id"`
	Type  uint32  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Layer string  `json:"layer"`
}

// TilePayload — полезная нагрузка tile.updated / trail.painted.
type TilePayload struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Field string `json:"field,omitempty"` // Пусто для raw-записи
	Value uint32 `json:"value"`
	Raw   uint32 `json:"raw"` // Полное 32-битное значение тайла после записи
}

// SnapshotPayload — полезная нагрузка world.snapshot.
type SnapshotPayload struct {
	SnapshotID string `json:"snapshot_id"`
	Tick       uint64 `json:"tick"`
}

// NewEnvelope собирает конверт события: UUID, метка времени UTC и
// JSON-сериализованная полезная нагрузка.
func NewEnvelope(eventType, source string, priority int, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   1,
		Priority:  priority,
		Payload:   data,
	}, nil
}

// PublishEvent собирает конверт и отправляет его в глобальную шину.
// Ошибки сериализации и публикации возвращаются вызывающему.
func PublishEvent(ctx context.Context, eventType, source string, priority int, payload interface{}) error {
	ev, err := NewEnvelope(eventType, source, priority, payload)
	if err != nil {
		return err
	}
	return Publish(ctx, ev)
}
