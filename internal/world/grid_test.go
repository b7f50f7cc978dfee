package world

import (
	"errors"
	"testing"

	"github.com/anthive/worldsim/internal/world/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_Creation(t *testing.T) {
	// Тест создания сетки
	g, err := NewGrid(16, 8)
	require.NoError(t, err, "Сетка должна создаваться без ошибки")

	assert.Equal(t, 16, g.Width(), "Ширина должна совпадать")
	assert.Equal(t, 8, g.Height(), "Высота должна совпадать")
	assert.Equal(t, 128, g.Len(), "Число тайлов должно быть width*height")
	assert.Len(t, g.Buffer(), 16*8*4, "Буфер должен занимать 4 байта на тайл")

	// Свежая сетка полностью нулевая
	raw, err := g.Raw(15, 7)
	require.NoError(t, err)
	assert.Zero(t, raw, "Свежий тайл должен быть нулевым")
}

func TestGrid_CreationInvalid(t *testing.T) {
	// Недопустимые размеры должны отклоняться
	_, err := NewGrid(0, 10)
	assert.ErrorIs(t, err, ErrGridSize, "Нулевая ширина должна давать ErrGridSize")

	_, err = NewGrid(10, -1)
	assert.ErrorIs(t, err, ErrGridSize, "Отрицательная высота должна давать ErrGridSize")
}

func TestGrid_FromBuffer(t *testing.T) {
	// Тест создания сетки поверх существующего буфера
	buf := make([]byte, 4*3*4)
	g, err := NewGridFromBuffer(4, 3, buf)
	require.NoError(t, err, "Буфер правильного размера должен приниматься")

	// Буфер присваивается без копирования
	require.NoError(t, g.SetRaw(1, 0, 0x01020304))
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, buf[4:8], "Тайл должен лежать в буфере в little-endian")

	raw, err := g.Raw(1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), raw, "Сырое значение должно читаться из буфера")
}

func TestGrid_FromBufferSizeMismatch(t *testing.T) {
	// Буфер неверного размера должен отклоняться
	_, err := NewGridFromBuffer(4, 3, make([]byte, 10))
	assert.ErrorIs(t, err, ErrGridSizeMismatch, "Короткий буфер должен давать ErrGridSizeMismatch")

	_, err = NewGridFromBuffer(4, 3, make([]byte, 4*3*4+1))
	assert.ErrorIs(t, err, ErrGridSizeMismatch, "Длинный буфер должен давать ErrGridSizeMismatch")
}

func TestGrid_OutOfBounds(t *testing.T) {
	// Выход за границы — явная ошибка, не паника
	g, err := NewGrid(8, 8)
	require.NoError(t, err)

	cases := []struct{ x, y int }{
		{-1, 0}, {0, -1}, {8, 0}, {0, 8}, {100, 100},
	}
	for _, c := range cases {
		_, err := g.Raw(c.x, c.y)
		assert.ErrorIs(t, err, ErrOutOfBounds, "Raw(%d, %d) должен давать ErrOutOfBounds", c.x, c.y)

		err = g.SetRaw(c.x, c.y, 1)
		assert.ErrorIs(t, err, ErrOutOfBounds, "SetRaw(%d, %d) должен давать ErrOutOfBounds", c.x, c.y)

		_, err = g.Get(c.x, c.y, tile.Terrain)
		assert.ErrorIs(t, err, ErrOutOfBounds, "Get(%d, %d) должен давать ErrOutOfBounds", c.x, c.y)

		err = g.Set(c.x, c.y, tile.Terrain, 1)
		assert.ErrorIs(t, err, ErrOutOfBounds, "Set(%d, %d) должен давать ErrOutOfBounds", c.x, c.y)
	}

	assert.True(t, g.InBounds(0, 0), "Угол (0,0) внутри границ")
	assert.True(t, g.InBounds(7, 7), "Угол (7,7) внутри границ")
	assert.False(t, g.InBounds(8, 7), "Координата x=width вне границ")
}

func TestGrid_RawRoundTrip(t *testing.T) {
	// Тайлы независимы: запись по всем координатам читается без искажений
	g, err := NewGrid(5, 4)
	require.NoError(t, err)

	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			require.NoError(t, g.SetRaw(x, y, uint32(y*5+x+1)))
		}
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 5; x++ {
			raw, err := g.Raw(x, y)
			require.NoError(t, err)
			assert.Equal(t, uint32(y*5+x+1), raw, "Тайл (%d, %d) должен хранить своё значение", x, y)
		}
	}
}

func TestGrid_FieldAccess(t *testing.T) {
	// Контрольные значения упаковки полей
	g, err := NewGrid(4, 4)
	require.NoError(t, err)

	// Запись поля очищает его биты и не трогает соседние
	require.NoError(t, g.SetRaw(1, 1, 0xe009))
	require.NoError(t, g.Set(1, 1, tile.EntityType, 5))
	raw, err := g.Raw(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xe005), raw, "Запись entityType=5 поверх 0xe009 должна давать 0xe005")

	// Чтение terrain из сырого значения
	require.NoError(t, g.SetRaw(2, 2, 0x20000))
	v, err := g.Get(2, 2, tile.Terrain)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), v, "Сырое значение 0x20000 должно давать terrain=2")

	// Чтение entityType из сырого значения
	require.NoError(t, g.SetRaw(3, 3, 0xa))
	v, err = g.Get(3, 3, tile.EntityType)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), v, "Сырое значение 0xa должно давать entityType=10")
}

func TestGrid_FieldIsolation(t *testing.T) {
	// Запись каждого поля не искажает остальные
	g, err := NewGrid(2, 2)
	require.NoError(t, err)

	require.NoError(t, g.Set(0, 0, tile.EntityType, uint32(tile.EntityAnt)))
	require.NoError(t, g.Set(0, 0, tile.EntityID, 4095))
	require.NoError(t, g.Set(0, 0, tile.Terrain, uint32(tile.TerrainWater)))
	require.NoError(t, g.Set(0, 0, tile.HomeTrail, 7))
	require.NoError(t, g.Set(0, 0, tile.FoodTrail, 1))

	checks := []struct {
		f    tile.Field
		want uint32
	}{
		{tile.EntityType, uint32(tile.EntityAnt)},
		{tile.EntityID, 4095},
		{tile.Terrain, uint32(tile.TerrainWater)},
		{tile.HomeTrail, 7},
		{tile.FoodTrail, 1},
	}
	for _, c := range checks {
		v, err := g.Get(0, 0, c.f)
		require.NoError(t, err)
		assert.Equal(t, c.want, v, "Поле %s должно сохранить своё значение", c.f.Name)
	}
}

func TestGrid_SetOverflowSpills(t *testing.T) {
	// Set без проверки диапазона: лишние биты затирают соседнее старшее поле
	g, err := NewGrid(2, 2)
	require.NoError(t, err)

	require.NoError(t, g.Set(0, 0, tile.EntityType, 0x1F)) // 5 бит в 4-битное поле

	et, err := g.Get(0, 0, tile.EntityType)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xF), et, "В entityType остаются младшие 4 бита")

	id, err := g.Get(0, 0, tile.EntityID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id, "Пятый бит значения должен попасть в entityId")
}

func TestGrid_SetChecked(t *testing.T) {
	// SetChecked отклоняет переполнение и не трогает тайл
	g, err := NewGrid(2, 2)
	require.NoError(t, err)

	require.NoError(t, g.SetChecked(0, 0, tile.HomeTrail, 7))
	v, err := g.Get(0, 0, tile.HomeTrail)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v, "Максимальное значение должно записываться")

	err = g.SetChecked(0, 0, tile.HomeTrail, 8)
	assert.True(t, errors.Is(err, ErrValueOverflow), "Переполнение должно давать ErrValueOverflow")

	v, err = g.Get(0, 0, tile.HomeTrail)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v, "Тайл не должен измениться после отклонённой записи")
}

func TestGrid_Fill(t *testing.T) {
	// Fill записывает поле во все тайлы, не трогая остальные поля
	g, err := NewGrid(3, 3)
	require.NoError(t, err)
	require.NoError(t, g.Set(1, 1, tile.EntityType, uint32(tile.EntityNest)))

	g.Fill(tile.Terrain, uint32(tile.TerrainSand))

	for _, pos := range []struct{ x, y int }{{0, 0}, {2, 0}, {1, 1}, {2, 2}} {
		v, err := g.Get(pos.x, pos.y, tile.Terrain)
		require.NoError(t, err)
		assert.Equal(t, uint32(tile.TerrainSand), v, "Terrain тайла (%d, %d) должен быть заполнен", pos.x, pos.y)
	}

	et, err := g.Get(1, 1, tile.EntityType)
	require.NoError(t, err)
	assert.Equal(t, uint32(tile.EntityNest), et, "Fill не должен затирать другие поля")
}

// Benchmarks

func BenchmarkGrid_SetRaw(b *testing.B) {
	g, _ := NewGrid(256, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.SetRaw(i&255, (i>>8)&255, uint32(i))
	}
}

func BenchmarkGrid_GetField(b *testing.B) {
	g, _ := NewGrid(256, 256)
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			_ = g.SetRaw(x, y, uint32(x*y))
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.Get(i&255, (i>>8)&255, tile.FoodTrail)
	}
}

func BenchmarkGrid_SetField(b *testing.B) {
	g, _ := NewGrid(256, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = g.Set(i&255, (i>>8)&255, tile.HomeTrail, uint32(i)&7)
	}
}
