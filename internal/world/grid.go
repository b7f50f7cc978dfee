package world

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/anthive/worldsim/internal/world/tile"
)

// Ошибки работы с сеткой тайлов.
var (
	// ErrGridSize — недопустимые размеры сетки (ширина или высота < 1).
	ErrGridSize = errors.New("недопустимый размер сетки")
	// ErrGridSizeMismatch — длина переданного буфера не равна width*height*4.
	ErrGridSizeMismatch = errors.New("размер буфера не совпадает с размером сетки")
	// ErrOutOfBounds — координаты тайла вне границ сетки.
	ErrOutOfBounds = errors.New("координаты вне границ сетки")
	// ErrValueOverflow — значение не помещается в битовое поле (только SetChecked).
	ErrValueOverflow = errors.New("значение не помещается в поле тайла")
)

// tileBytes — размер одного тайла в буфере.
const tileBytes = 4

// Grid — битово-упакованная сетка тайлов мира.
//
// Все тайлы лежат в одном плоском буфере длиной width*height*4 байта:
// тайл (x, y) — это 32-битное слово little-endian по смещению
// 4*(y*width + x). Порядок байтов фиксирован, поэтому Buffer() пригоден
// как переносимый формат сериализации. Раскладку битов внутри тайла
// задаёт пакет tile.
//
// Чтение и запись тайла не аллоцируют. Сетка не потокобезопасна:
// доступ сериализует владелец мира.
type Grid struct {
	width  int
	height int
	data   []byte
}

// NewGrid создаёт сетку указанного размера с нулевым буфером.
func NewGrid(width, height int) (*Grid, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrGridSize, width, height)
	}
	return &Grid{
		width:  width,
		height: height,
		data:   make([]byte, width*height*tileBytes),
	}, nil
}

// NewGridFromBuffer создаёт сетку поверх существующего буфера.
// Буфер присваивается без копирования (восстановление снапшота без
// лишней аллокации); вызывающий не должен использовать его дальше.
func NewGridFromBuffer(width, height int, buf []byte) (*Grid, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrGridSize, width, height)
	}
	want := width * height * tileBytes
	if len(buf) != want {
		return nil, fmt.Errorf("%w: получено %d байт, ожидалось %d", ErrGridSizeMismatch, len(buf), want)
	}
	return &Grid{width: width, height: height, data: buf}, nil
}

// Width возвращает ширину сетки в тайлах.
func (g *Grid) Width() int { return g.width }

// Height возвращает высоту сетки в тайлах.
func (g *Grid) Height() int { return g.height }

// Len возвращает общее число тайлов.
func (g *Grid) Len() int { return g.width * g.height }

// InBounds проверяет, лежат ли координаты внутри сетки.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Buffer возвращает внутренний буфер сетки. Байты принадлежат сетке;
// для сохранения копируйте.
func (g *Grid) Buffer() []byte { return g.data }

// offset возвращает байтовое смещение тайла. Границы проверяет вызывающий.
func (g *Grid) offset(x, y int) int {
	return (y*g.width + x) * tileBytes
}

// Raw возвращает сырое 32-битное значение тайла.
func (g *Grid) Raw(x, y int) (uint32, error) {
	if !g.InBounds(x, y) {
		return 0, fmt.Errorf("тайл (%d, %d): %w", x, y, ErrOutOfBounds)
	}
	off := g.offset(x, y)
	return binary.LittleEndian.Uint32(g.data[off : off+tileBytes]), nil
}

// SetRaw записывает сырое 32-битное значение тайла целиком.
func (g *Grid) SetRaw(x, y int, raw uint32) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("тайл (%d, %d): %w", x, y, ErrOutOfBounds)
	}
	off := g.offset(x, y)
	binary.LittleEndian.PutUint32(g.data[off:off+tileBytes], raw)
	return nil
}

// Get возвращает значение одного битового поля тайла.
func (g *Grid) Get(x, y int, f tile.Field) (uint32, error) {
	raw, err := g.Raw(x, y)
	if err != nil {
		return 0, err
	}
	return f.Extract(raw), nil
}

// Set записывает значение одного битового поля тайла: биты поля
// очищаются, затем в них через OR помещается значение.
//
// ВНИМАНИЕ: значение НЕ проверяется на переполнение — значение шире поля
// молча затирает соседнее старшее поле (см. tile.Field.Pack). Горячий
// путь симуляции полагается на то, что вызывающий соблюдает диапазоны;
// строгий вариант — SetChecked.
func (g *Grid) Set(x, y int, f tile.Field, value uint32) error {
	raw, err := g.Raw(x, y)
	if err != nil {
		return err
	}
	return g.SetRaw(x, y, f.Pack(raw, value))
}

// SetChecked записывает значение поля с проверкой диапазона.
// Возвращает ErrValueOverflow, если значение шире поля.
func (g *Grid) SetChecked(x, y int, f tile.Field, value uint32) error {
	if value > f.Max() {
		return fmt.Errorf("%s=%d (максимум %d): %w", f.Name, value, f.Max(), ErrValueOverflow)
	}
	return g.Set(x, y, f, value)
}

// Fill записывает значение поля во все тайлы сетки. Значение обрезается
// по маске поля, соседние поля не затрагиваются.
func (g *Grid) Fill(f tile.Field, value uint32) {
	value &= f.Max()
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			off := g.offset(x, y)
			raw := binary.LittleEndian.Uint32(g.data[off : off+tileBytes])
			binary.LittleEndian.PutUint32(g.data[off:off+tileBytes], f.Pack(raw, value))
		}
	}
}
