package world

import (
	"math/rand"
	"testing"

	"github.com/anthive/worldsim/internal/geom"
	"github.com/anthive/worldsim/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorld_Creation(t *testing.T) {
	// Тест создания мира
	w, err := NewWorld(64, 32)
	require.NoError(t, err, "Мир должен создаваться без ошибки")

	assert.Len(t, w.Grid().Buffer(), 64*32*4, "Буфер сетки должен занимать ровно width*height*4 байта")
	assert.Equal(t, geom.NewRect(32, 16, 32, 16), w.Bounds(), "Граница мира должна покрывать сетку с центром в середине")
	assert.Zero(t, w.EntityCount(), "Новый мир не содержит сущностей")
	assert.Zero(t, w.LayerCount(), "Новый мир не содержит слоёв")
}

func TestWorld_CreationInvalid(t *testing.T) {
	// Мир нулевого размера отклоняется
	_, err := NewWorld(0, 10)
	assert.ErrorIs(t, err, ErrGridSize, "Нулевая ширина должна давать ErrGridSize")
}

func TestWorld_InsertDefaultLayer(t *testing.T) {
	// Пустое имя слоя означает DEFAULT, слой создаётся лениво
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	w.Insert(newTestEntity(1, 10, 10), "")

	assert.Equal(t, 1, w.EntityCount(), "Сущность должна попасть в общий список")
	assert.Equal(t, []string{DefaultLayer}, w.Layers(), "Должен появиться слой DEFAULT")

	got := w.Query(w.Bounds(), DefaultLayer)
	require.Len(t, got, 1, "Сущность должна находиться в слое DEFAULT")
	assert.Equal(t, uint64(1), got[0].GetID(), "Найденная сущность должна совпадать")
}

func TestWorld_LazyLayerParameters(t *testing.T) {
	// Лениво созданный слой получает границу мира и ёмкость LayerCapacity
	w, err := NewWorld(80, 40)
	require.NoError(t, err)

	w.Insert(newTestEntity(1, 5, 5), "ants")

	l := w.Layer("ants")
	require.NotNil(t, l, "Слой ants должен существовать")
	assert.Equal(t, geom.NewRect(40, 20, 40, 20), l.tree.Boundary(), "Квадродерево слоя должно покрывать весь мир")
	assert.Equal(t, LayerCapacity, l.tree.Capacity(), "Ёмкость квадродерева слоя фиксирована")
}

func TestWorld_LayerIsolationAndAll(t *testing.T) {
	// Слои изолированы, сигнальное имя ALL объединяет их
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	ant := newTestEntity(1, 20, 20)
	rock := newTestEntity(2, 60, 60)
	w.Insert(ant, "ants")
	w.Insert(rock, "obstacles")

	assert.Len(t, w.Query(w.Bounds(), "ants"), 1, "В слое ants одна сущность")
	assert.Len(t, w.Query(w.Bounds(), "obstacles"), 1, "В слое obstacles одна сущность")

	for _, e := range w.Query(w.Bounds(), "ants") {
		assert.NotEqual(t, rock.id, e.GetID(), "Сущность из obstacles не должна видеться в ants")
	}

	all := w.Query(w.Bounds(), AllLayers)
	assert.Len(t, all, 2, "ALL должен объединить оба слоя")
}

func TestWorld_AllDuplicatesAcrossLayers(t *testing.T) {
	// Сущность в нескольких слоях встречается в ALL по разу на слой
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	e := newTestEntity(1, 50, 50)
	w.Insert(e, "ants")
	w.Insert(e, "scouts")

	all := w.Query(w.Bounds(), AllLayers)
	assert.Len(t, all, 2, "ALL не дедуплицирует сущность, состоящую в двух слоях")
	assert.Equal(t, 2, w.EntityCount(), "Каждая вставка добавляет запись в общий список")
}

func TestWorld_Remove(t *testing.T) {
	// Удаление возвращает сущность и чистит слой с общим списком
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	e := newTestEntity(1, 30, 30)
	w.Insert(e, "ants")

	removed := w.Remove(e, "ants")
	require.NotNil(t, removed, "Удаление существующей сущности должно вернуть её")
	assert.Equal(t, e.id, removed.GetID(), "Возвращена должна быть та же сущность")
	assert.Zero(t, w.EntityCount(), "Общий список должен опустеть")
	assert.Empty(t, w.Query(w.Bounds(), "ants"), "Слой не должен находить удалённую сущность")
	assert.Equal(t, 1, w.LayerCount(), "Пустой слой продолжает существовать")
}

func TestWorld_RemoveMissingLayer(t *testing.T) {
	// Имя несуществующего слоя — nil-результат, слоёв не появляется
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	e := newTestEntity(1, 30, 30)
	w.Insert(e, "ants")

	removed := w.Remove(e, "ghosts")
	assert.Nil(t, removed, "Удаление из несуществующего слоя должно вернуть nil")
	assert.Equal(t, 1, w.LayerCount(), "Несуществующий слой не должен создаваться")
	assert.Len(t, w.Query(w.Bounds(), "ants"), 1, "Членство в ants не должно пострадать")
}

func TestWorld_RemoveKeepsOtherLayers(t *testing.T) {
	// Удаление из одного слоя не трогает членство в других
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	e := newTestEntity(1, 50, 50)
	w.Insert(e, "ants")
	w.Insert(e, "scouts")

	removed := w.Remove(e, "ants")
	require.NotNil(t, removed, "Удаление из ants должно пройти")

	assert.Empty(t, w.Query(w.Bounds(), "ants"), "В ants сущности больше нет")
	assert.Len(t, w.Query(w.Bounds(), "scouts"), 1, "В scouts сущность должна остаться")
	assert.Equal(t, 1, w.EntityCount(), "Из общего списка уходит одно вхождение")
}

func TestWorld_RemoveNonMember(t *testing.T) {
	// Сущность, не состоящая в существующем слое: промах по слою не фатален
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	member := newTestEntity(1, 10, 10)
	stranger := newTestEntity(2, 20, 20)
	w.Insert(member, "ants")

	removed := w.Remove(stranger, "ants")
	assert.NotNil(t, removed, "Существующий слой даёт не-nil результат")
	assert.Len(t, w.Query(w.Bounds(), "ants"), 1, "Членство слоя не должно измениться")
	assert.Equal(t, 1, w.EntityCount(), "Общий список без вхождений чужака не меняется")
}

func TestWorld_UpdateRebuild(t *testing.T) {
	// Update — единственный механизм синхронизации индекса с позициями
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	e := newTestEntity(1, 10, 10)
	w.Insert(e, "ants")

	near := func(x, y float64) []Entity {
		return w.Query(geom.NewRect(x, y, 5, 5), "ants")
	}
	require.Len(t, near(10, 10), 1, "До перемещения сущность находится у (10,10)")

	// Сущность перемещается; индекс узнаёт об этом только после Update
	e.pos = vec.Vec2Float{X: 90, Y: 90}
	w.Update()

	assert.Len(t, near(90, 90), 1, "После Update сущность находится по новой позиции")
	assert.Empty(t, near(10, 10), "После Update старая позиция пуста")
}

func TestWorld_QueryNonexistentLayer(t *testing.T) {
	// Запрос к несуществующему слою — пустой результат, не ошибка
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	got := w.Query(w.Bounds(), "ghosts")
	assert.Empty(t, got, "Несуществующий слой должен давать пустой результат")
	assert.Zero(t, w.LayerCount(), "Запрос не должен создавать слой")
}

func TestWorld_Nearby(t *testing.T) {
	// Nearby — квадратная окрестность, не круг
	w, err := NewWorld(100, 100)
	require.NoError(t, err)

	center := newTestEntity(1, 50, 50)
	corner := newTestEntity(2, 58, 58) // евклидово ~11.3, по квадрату — внутри
	far := newTestEntity(3, 70, 50)
	w.Insert(center, "ants")
	w.Insert(corner, "ants")
	w.Insert(far, "ants")

	got := w.Nearby(center, 10, "ants")

	ids := make(map[uint64]bool)
	for _, e := range got {
		ids[e.GetID()] = true
	}
	assert.True(t, ids[center.id], "Сама сущность попадает в свою окрестность")
	assert.True(t, ids[corner.id], "Угол квадрата входит в окрестность, хотя евклидово дальше радиуса")
	assert.False(t, ids[far.id], "Сущность за пределами квадрата не входит")
}

func TestWorld_Stats(t *testing.T) {
	// Тест среза состояния мира
	w, err := NewWorld(32, 16)
	require.NoError(t, err)
	for i := uint64(1); i <= 6; i++ {
		w.Insert(newTestEntity(i, float64(i*5), float64(i*2)), "ants")
	}
	w.Insert(newTestEntity(7, 1, 1), "obstacles")

	st := w.Stats()
	assert.Equal(t, 32, st.Width, "Ширина в статистике должна совпадать")
	assert.Equal(t, 7, st.Entities, "Число сущностей должно совпадать")
	require.Contains(t, st.Layers, "ants", "Статистика должна содержать слой ants")
	assert.Equal(t, 6, st.Layers["ants"].Members, "Членство ants должно совпадать")
	assert.Equal(t, 6, st.Layers["ants"].Indexed, "Все сущности ants проиндексированы")
	assert.GreaterOrEqual(t, st.Layers["ants"].Depth, 2, "Шесть точек при ёмкости 4 делят дерево")
}

// Benchmarks

func BenchmarkWorld_Update(b *testing.B) {
	w, _ := NewWorld(1000, 1000)
	rng := rand.New(rand.NewSource(1))
	layers := []string{"ants", "food", "obstacles", "scouts"}
	for i := 0; i < 2000; i++ {
		e := newTestEntity(uint64(i+1), rng.Float64()*1000, rng.Float64()*1000)
		w.Insert(e, layers[i%len(layers)])
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Update()
	}
}

func BenchmarkWorld_QueryAll(b *testing.B) {
	w, _ := NewWorld(1000, 1000)
	rng := rand.New(rand.NewSource(1))
	layers := []string{"ants", "food", "obstacles"}
	for i := 0; i < 3000; i++ {
		e := newTestEntity(uint64(i+1), rng.Float64()*1000, rng.Float64()*1000)
		w.Insert(e, layers[i%len(layers)])
	}
	area := geom.NewRect(500, 500, 100, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = w.Query(area, AllLayers)
	}
}

func BenchmarkWorld_Nearby(b *testing.B) {
	w, _ := NewWorld(1000, 1000)
	rng := rand.New(rand.NewSource(1))
	var probe *testEntity
	for i := 0; i < 3000; i++ {
		e := newTestEntity(uint64(i+1), rng.Float64()*1000, rng.Float64()*1000)
		w.Insert(e, "ants")
		if i == 0 {
			probe = e
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = w.Nearby(probe, 25, "ants")
	}
}
