package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthive/worldsim/internal/vec"
	"github.com/anthive/worldsim/internal/world"
	"github.com/anthive/worldsim/internal/world/tile"
)

// Тест создания сущностей и выдачи идентификаторов
func TestManager_Spawn(t *testing.T) {
	m := NewManager()

	a := m.Spawn(tile.EntityAnt, vec.Vec2Float{X: 10, Y: 20}, world.DefaultLayer)
	b := m.Spawn(tile.EntityFood, vec.Vec2Float{X: 30, Y: 40}, "food")

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, uint64(1), a.ID, "Первая сущность должна получить ID 1")
	assert.Equal(t, uint64(2), b.ID, "Идентификаторы должны выдаваться последовательно")
	assert.True(t, a.Active, "Новая сущность должна быть активна")
	assert.Equal(t, 2, m.Count())
}

// Тест интерфейса world.Entity
func TestManager_EntityImplementsWorldEntity(t *testing.T) {
	m := NewManager()
	e := m.Spawn(tile.EntityAnt, vec.Vec2Float{X: 5, Y: 6}, world.DefaultLayer)

	var we world.Entity = e
	assert.Equal(t, uint64(1), we.GetID())
	assert.Equal(t, vec.Vec2Float{X: 5, Y: 6}, we.GetPosition())

	e.SetPosition(vec.Vec2Float{X: 7, Y: 8})
	assert.Equal(t, vec.Vec2Float{X: 7, Y: 8}, we.GetPosition(), "Позиция должна читаться через интерфейс после перемещения")
}

// Тест восстановления сущности с известным ID
func TestManager_SpawnWithID(t *testing.T) {
	m := NewManager()

	e, err := m.SpawnWithID(42, tile.EntityNest, vec.Vec2Float{X: 1, Y: 1}, world.DefaultLayer)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), e.ID)

	// Повторный ID должен быть отклонён
	_, err = m.SpawnWithID(42, tile.EntityAnt, vec.Vec2Float{}, world.DefaultLayer)
	assert.Error(t, err, "Дубликат ID должен вернуть ошибку")

	// Счётчик должен подтянуться выше восстановленного
	next := m.Spawn(tile.EntityAnt, vec.Vec2Float{}, world.DefaultLayer)
	assert.Equal(t, uint64(43), next.ID, "Новый ID должен идти после восстановленного")
}

// Тест уничтожения сущностей
func TestManager_Despawn(t *testing.T) {
	m := NewManager()
	e := m.Spawn(tile.EntityAnt, vec.Vec2Float{X: 1, Y: 2}, world.DefaultLayer)

	removed := m.Despawn(e.ID)
	require.NotNil(t, removed)
	assert.Equal(t, e.ID, removed.ID)
	assert.False(t, removed.Active, "Уничтоженная сущность должна стать неактивной")
	assert.Equal(t, 0, m.Count())

	assert.Nil(t, m.Despawn(e.ID), "Повторное уничтожение должно вернуть nil")
	assert.Nil(t, m.Despawn(999), "Уничтожение несуществующей сущности должно вернуть nil")
}

// Тест выборки всех сущностей
func TestManager_All(t *testing.T) {
	m := NewManager()
	m.Spawn(tile.EntityAnt, vec.Vec2Float{}, world.DefaultLayer)
	m.Spawn(tile.EntityFood, vec.Vec2Float{}, "food")
	m.Spawn(tile.EntityObstacle, vec.Vec2Float{}, world.DefaultLayer)

	all := m.All()
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].ID, "Список должен быть отсортирован по ID")
	assert.Equal(t, uint64(2), all[1].ID)
	assert.Equal(t, uint64(3), all[2].ID)
}

// Тест сброса менеджера
func TestManager_Reset(t *testing.T) {
	m := NewManager()
	m.Spawn(tile.EntityAnt, vec.Vec2Float{}, world.DefaultLayer)
	m.Spawn(tile.EntityAnt, vec.Vec2Float{}, world.DefaultLayer)

	m.Reset()
	assert.Equal(t, 0, m.Count())

	e := m.Spawn(tile.EntityAnt, vec.Vec2Float{}, world.DefaultLayer)
	assert.Equal(t, uint64(1), e.ID, "После сброса счётчик должен начинаться с 1")
}

// Тест конкурентного создания сущностей
func TestManager_ConcurrentSpawn(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 100

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Spawn(tile.EntityAnt, vec.Vec2Float{}, world.DefaultLayer)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, m.Count(), "Все сущности должны быть созданы без потерь")

	seen := make(map[uint64]bool)
	for _, e := range m.All() {
		assert.False(t, seen[e.ID], "ID не должны повторяться")
		seen[e.ID] = true
	}
}
