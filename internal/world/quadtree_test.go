package world

import (
	"math/rand"
	"testing"

	"github.com/anthive/worldsim/internal/geom"
	"github.com/anthive/worldsim/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEntity — минимальная сущность для тестов мира
type testEntity struct {
	id  uint64
	pos vec.Vec2Float
}

func (e *testEntity) GetID() uint64              { return e.id }
func (e *testEntity) GetPosition() vec.Vec2Float { return e.pos }

func newTestEntity(id uint64, x, y float64) *testEntity {
	return &testEntity{id: id, pos: vec.Vec2Float{X: x, Y: y}}
}

func TestQuadtree_InsertWithinCapacity(t *testing.T) {
	// Лист вмещает точки до ёмкости без деления
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 4)

	for i := uint64(1); i <= 4; i++ {
		ok := qt.Insert(newTestEntity(i, float64(i*10), float64(i*10)))
		assert.True(t, ok, "Вставка %d должна пройти", i)
	}

	assert.Equal(t, 4, qt.Len(), "Все четыре точки должны храниться")
	assert.False(t, qt.divided, "Лист не должен делиться до превышения ёмкости")
	assert.Equal(t, 1, qt.Depth(), "Глубина листа — 1")
}

func TestQuadtree_InsertOutside(t *testing.T) {
	// Точка вне границы не вставляется
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 4)

	assert.False(t, qt.Insert(newTestEntity(1, 101, 50)), "Точка правее границы должна отклоняться")
	assert.False(t, qt.Insert(newTestEntity(2, 50, -1)), "Точка выше границы должна отклоняться")
	assert.Zero(t, qt.Len(), "Отклонённые точки не должны попадать в дерево")

	// Точка ровно на границе — внутри
	assert.True(t, qt.Insert(newTestEntity(3, 100, 100)), "Точка на границе должна вставляться")
	assert.Equal(t, 1, qt.Len(), "Точка на границе должна храниться")
}

func TestQuadtree_Subdivision(t *testing.T) {
	// Превышение ёмкости делит лист и раздаёт точки детям
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 2)

	require.True(t, qt.Insert(newTestEntity(1, 10, 10))) // NW
	require.True(t, qt.Insert(newTestEntity(2, 90, 10))) // NE
	require.True(t, qt.Insert(newTestEntity(3, 10, 90))) // SW

	assert.True(t, qt.divided, "Третья вставка при ёмкости 2 должна разделить узел")
	assert.Equal(t, 3, qt.Len(), "Все точки должны пережить деление")
	assert.Empty(t, qt.points, "После деления точки уходят из родителя")

	assert.Equal(t, 1, qt.nw.Len(), "Точка (10,10) должна попасть в NW")
	assert.Equal(t, 1, qt.ne.Len(), "Точка (90,10) должна попасть в NE")
	assert.Equal(t, 1, qt.sw.Len(), "Точка (10,90) должна попасть в SW")
	assert.Equal(t, 0, qt.se.Len(), "SE должен остаться пустым")

	// Дети — четверти родителя с половинными полуразмерами
	assert.Equal(t, geom.NewRect(25, 25, 25, 25), qt.nw.Boundary(), "Граница NW должна быть четвертью родителя")
	assert.Equal(t, geom.NewRect(75, 75, 25, 25), qt.se.Boundary(), "Граница SE должна быть четвертью родителя")
	assert.Equal(t, qt.capacity, qt.nw.Capacity(), "Дети наследуют ёмкость")
}

func TestQuadtree_SharedEdgeDeterminism(t *testing.T) {
	// Точка на общем ребре четвертей достаётся первому совпавшему ребёнку
	// в порядке NW, NE, SW, SE — то есть NW для центра
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 1)

	require.True(t, qt.Insert(newTestEntity(1, 10, 10)))
	require.True(t, qt.Insert(newTestEntity(2, 50, 50))) // ровно центр, общий угол всех детей

	require.True(t, qt.divided, "Вторая вставка при ёмкости 1 должна разделить узел")
	assert.Equal(t, 2, qt.nw.Len(), "Центральная точка должна детерминированно уйти в NW")
	assert.Zero(t, qt.ne.Len()+qt.sw.Len()+qt.se.Len(), "Остальные дети должны быть пустыми")
}

func TestQuadtree_QueryCompleteness(t *testing.T) {
	// Запрос всей границы возвращает все вставленные точки
	qt := NewQuadtree(geom.NewRect(100, 100, 100, 100), 4)
	rng := rand.New(rand.NewSource(42))

	const n = 200
	for i := uint64(1); i <= n; i++ {
		e := newTestEntity(i, rng.Float64()*200, rng.Float64()*200)
		require.True(t, qt.Insert(e), "Вставка %d должна пройти", i)
	}

	got := qt.Query(qt.Boundary(), nil)
	assert.Len(t, got, n, "Запрос всей границы должен вернуть все точки")

	seen := make(map[uint64]bool, n)
	for _, e := range got {
		seen[e.GetID()] = true
	}
	assert.Len(t, seen, n, "Каждая точка должна встретиться ровно один раз")
}

func TestQuadtree_QueryMatchesBruteForce(t *testing.T) {
	// Результат запроса совпадает с прямым перебором
	qt := NewQuadtree(geom.NewRect(100, 100, 100, 100), 4)
	rng := rand.New(rand.NewSource(7))

	all := make([]*testEntity, 0, 150)
	for i := uint64(1); i <= 150; i++ {
		e := newTestEntity(i, rng.Float64()*200, rng.Float64()*200)
		require.True(t, qt.Insert(e))
		all = append(all, e)
	}

	area := geom.NewRect(60, 120, 35, 25)
	got := qt.Query(area, nil)

	want := make(map[uint64]bool)
	for _, e := range all {
		if area.Contains(e.pos) {
			want[e.id] = true
		}
	}

	assert.Len(t, got, len(want), "Размер результата должен совпадать с перебором")
	for _, e := range got {
		assert.True(t, want[e.GetID()], "Сущность %d не должна находиться вне области", e.GetID())
	}
}

func TestQuadtree_QueryDisjoint(t *testing.T) {
	// Непересекающаяся область отсекается целиком и даёт пустой результат
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 2)
	for i := uint64(1); i <= 10; i++ {
		require.True(t, qt.Insert(newTestEntity(i, float64(i*9), float64(i*9))))
	}

	got := qt.Query(geom.NewRect(500, 500, 10, 10), nil)
	assert.Empty(t, got, "Запрос вне мира должен быть пустым")
}

func TestQuadtree_QueryAccumulator(t *testing.T) {
	// Query дописывает в переданный слайс, не затирая его
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 4)
	require.True(t, qt.Insert(newTestEntity(1, 20, 20)))

	marker := newTestEntity(999, 0, 0)
	out := []Entity{marker}
	out = qt.Query(qt.Boundary(), out)

	require.Len(t, out, 2, "Результат должен дописываться в аккумулятор")
	assert.Equal(t, uint64(999), out[0].GetID(), "Существующее содержимое аккумулятора должно сохраниться")
	assert.Equal(t, uint64(1), out[1].GetID(), "Найденная точка должна быть дописана")
}

func TestQuadtree_Remove(t *testing.T) {
	// Удаление по идентичности из разделённого дерева
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 2)
	entities := make([]*testEntity, 0, 8)
	for i := uint64(1); i <= 8; i++ {
		e := newTestEntity(i, float64(i*11), float64(i*11))
		require.True(t, qt.Insert(e))
		entities = append(entities, e)
	}
	require.True(t, qt.divided, "Дерево должно разделиться")

	assert.True(t, qt.Remove(entities[3]), "Удаление существующей точки должно вернуть true")
	assert.Equal(t, 7, qt.Len(), "Число точек должно уменьшиться на одну")

	got := qt.Query(qt.Boundary(), nil)
	for _, e := range got {
		assert.NotEqual(t, entities[3].id, e.GetID(), "Удалённая точка не должна находиться запросом")
	}

	assert.False(t, qt.Remove(entities[3]), "Повторное удаление должно вернуть false")
	assert.False(t, qt.Remove(newTestEntity(100, 30, 30)), "Удаление не вставлявшейся точки должно вернуть false")
}

func TestQuadtree_RemoveStalePosition(t *testing.T) {
	// Удаление спускается по ТЕКУЩЕЙ позиции: сместившаяся точка не находится
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 1)
	e := newTestEntity(1, 10, 10)
	require.True(t, qt.Insert(e))
	require.True(t, qt.Insert(newTestEntity(2, 90, 90)))

	// Сущность переместилась в другую четверть после вставки
	e.pos = vec.Vec2Float{X: 90, Y: 10}
	assert.False(t, qt.Remove(e), "Поиск по новой позиции не должен найти устаревшую запись")
	assert.Equal(t, 2, qt.Len(), "Дерево не должно измениться")

	// Вернувшись на позицию вставки, сущность снова удаляется
	e.pos = vec.Vec2Float{X: 10, Y: 10}
	assert.True(t, qt.Remove(e), "По позиции вставки сущность должна найтись")
}

func TestQuadtree_NoMergeBack(t *testing.T) {
	// Деление одностороннее: опустевшие узлы не схлопываются
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 1)
	a := newTestEntity(1, 10, 10)
	b := newTestEntity(2, 90, 90)
	require.True(t, qt.Insert(a))
	require.True(t, qt.Insert(b))
	require.True(t, qt.divided)

	require.True(t, qt.Remove(a))
	require.True(t, qt.Remove(b))

	assert.Zero(t, qt.Len(), "Все точки удалены")
	assert.True(t, qt.divided, "Опустевшее дерево должно остаться разделённым")
	assert.NotNil(t, qt.nw, "Дети должны сохраниться")
}

func TestQuadtree_Clear(t *testing.T) {
	// Clear сбрасывает в пустой лист, сохраняя границу и ёмкость
	boundary := geom.NewRect(50, 50, 50, 50)
	qt := NewQuadtree(boundary, 2)
	for i := uint64(1); i <= 10; i++ {
		require.True(t, qt.Insert(newTestEntity(i, float64(i*9), float64(i*9))))
	}
	require.True(t, qt.divided)

	qt.Clear()

	assert.Zero(t, qt.Len(), "После Clear дерево пустое")
	assert.False(t, qt.divided, "После Clear узел снова лист")
	assert.Nil(t, qt.nw, "Дети должны быть освобождены")
	assert.Equal(t, boundary, qt.Boundary(), "Граница должна сохраниться")
	assert.Equal(t, 2, qt.Capacity(), "Ёмкость должна сохраниться")

	assert.True(t, qt.Insert(newTestEntity(100, 50, 50)), "Дерево должно быть пригодно к повторному использованию")
	assert.Equal(t, 1, qt.Len(), "Вставка после Clear должна работать")
}

func TestQuadtree_CapacityClamp(t *testing.T) {
	// Ёмкость меньше 1 поднимается до 1
	qt := NewQuadtree(geom.NewRect(50, 50, 50, 50), 0)
	assert.Equal(t, 1, qt.Capacity(), "Нулевая ёмкость должна подниматься до 1")

	qt = NewQuadtree(geom.NewRect(50, 50, 50, 50), -5)
	assert.Equal(t, 1, qt.Capacity(), "Отрицательная ёмкость должна подниматься до 1")
}

// Benchmarks

func BenchmarkQuadtree_Insert(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	entities := make([]*testEntity, 1024)
	for i := range entities {
		entities[i] = newTestEntity(uint64(i+1), rng.Float64()*1000, rng.Float64()*1000)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		qt := NewQuadtree(geom.NewRect(500, 500, 500, 500), 4)
		for _, e := range entities {
			qt.Insert(e)
		}
	}
}

func BenchmarkQuadtree_Query(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	qt := NewQuadtree(geom.NewRect(500, 500, 500, 500), 4)
	for i := 0; i < 4096; i++ {
		qt.Insert(newTestEntity(uint64(i+1), rng.Float64()*1000, rng.Float64()*1000))
	}
	area := geom.NewRect(300, 300, 50, 50)

	b.ResetTimer()
	var out []Entity
	for i := 0; i < b.N; i++ {
		out = qt.Query(area, out[:0])
	}
}
