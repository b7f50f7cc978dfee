package entity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anthive/worldsim/internal/vec"
	"github.com/anthive/worldsim/internal/world/tile"
)

// Manager управляет жизненным циклом сущностей: выдаёт идентификаторы,
// хранит записи и отвечает за их создание/уничтожение. Мир и слои держат
// только ссылки на записи менеджера.
type Manager struct {
	mu       sync.RWMutex
	entities map[uint64]*Entity
	nextID   uint64
}

// NewManager создаёт новый менеджер сущностей
func NewManager() *Manager {
	return &Manager{
		entities: make(map[uint64]*Entity),
		nextID:   1,
	}
}

// Spawn создаёт новую сущность и возвращает её
func (m *Manager) Spawn(entityType tile.EntityTypeID, pos vec.Vec2Float, layer string) *Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++

	e := New(id, entityType, pos, layer)
	m.entities[id] = e
	return e
}

// SpawnWithID восстанавливает сущность с заранее известным ID
// (загрузка снапшота). Счётчик идентификаторов подтягивается выше
// восстановленного, чтобы новые ID не пересекались со старыми.
func (m *Manager) SpawnWithID(id uint64, entityType tile.EntityTypeID, pos vec.Vec2Float, layer string) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[id]; exists {
		return nil, fmt.Errorf("сущность %d уже существует", id)
	}

	e := New(id, entityType, pos, layer)
	m.entities[id] = e
	if id >= m.nextID {
		m.nextID = id + 1
	}
	return e, nil
}

// Despawn уничтожает сущность и возвращает её запись, либо nil,
// если сущности с таким ID нет.
func (m *Manager) Despawn(id uint64) *Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entities[id]
	if !exists {
		return nil
	}
	e.Active = false
	delete(m.entities, id)
	return e
}

// Get возвращает сущность по ID
func (m *Manager) Get(id uint64) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok
}

// All возвращает все сущности, отсортированные по ID
func (m *Manager) All() []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count возвращает количество живых сущностей
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Reset уничтожает все сущности и сбрасывает счётчик идентификаторов.
// Используется при полном восстановлении мира из снапшота.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[uint64]*Entity)
	m.nextID = 1
}
