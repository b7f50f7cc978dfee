package geom

import (
	"testing"

	"github.com/anthive/worldsim/internal/vec"
	"github.com/stretchr/testify/assert"
)

func TestRect_Contains(t *testing.T) {
	// Тест включающего попадания точки в прямоугольник
	r := NewRect(10, 10, 5, 5) // охват [5,15]x[5,15]

	assert.True(t, r.Contains(vec.Vec2Float{X: 10, Y: 10}), "Центр должен лежать внутри")
	assert.True(t, r.Contains(vec.Vec2Float{X: 7, Y: 12}), "Внутренняя точка должна лежать внутри")
	assert.False(t, r.Contains(vec.Vec2Float{X: 4.99, Y: 10}), "Точка левее границы должна быть снаружи")
	assert.False(t, r.Contains(vec.Vec2Float{X: 10, Y: 15.01}), "Точка выше границы должна быть снаружи")
}

func TestRect_ContainsEdges(t *testing.T) {
	// Тест включающих границ: точка на ребре и в углу считается внутренней
	r := NewRect(10, 10, 5, 5)

	assert.True(t, r.Contains(vec.Vec2Float{X: 5, Y: 10}), "Точка на левом ребре должна быть внутри")
	assert.True(t, r.Contains(vec.Vec2Float{X: 15, Y: 10}), "Точка на правом ребре должна быть внутри")
	assert.True(t, r.Contains(vec.Vec2Float{X: 10, Y: 5}), "Точка на нижнем ребре должна быть внутри")
	assert.True(t, r.Contains(vec.Vec2Float{X: 10, Y: 15}), "Точка на верхнем ребре должна быть внутри")
	assert.True(t, r.Contains(vec.Vec2Float{X: 5, Y: 5}), "Угловая точка должна быть внутри")
	assert.True(t, r.Contains(vec.Vec2Float{X: 15, Y: 15}), "Угловая точка должна быть внутри")
}

func TestRect_ContainsSharedEdge(t *testing.T) {
	// Точка на общем ребре двух соседних прямоугольников принадлежит обоим
	left := NewRect(5, 10, 5, 10)   // [0,10]x[0,20]
	right := NewRect(15, 10, 5, 10) // [10,20]x[0,20]
	p := vec.Vec2Float{X: 10, Y: 10}

	assert.True(t, left.Contains(p), "Точка на общем ребре должна принадлежать левому прямоугольнику")
	assert.True(t, right.Contains(p), "Точка на общем ребре должна принадлежать правому прямоугольнику")
}

func TestRect_Intersects(t *testing.T) {
	// Тест пересечения прямоугольников
	r := NewRect(10, 10, 5, 5)

	assert.True(t, r.Intersects(NewRect(10, 10, 1, 1)), "Вложенный прямоугольник должен пересекаться")
	assert.True(t, r.Intersects(NewRect(14, 14, 5, 5)), "Частичное перекрытие должно давать пересечение")
	assert.True(t, r.Intersects(NewRect(0, 0, 100, 100)), "Охватывающий прямоугольник должен пересекаться")
	assert.False(t, r.Intersects(NewRect(30, 30, 5, 5)), "Удалённый прямоугольник не должен пересекаться")
	assert.False(t, r.Intersects(NewRect(10, 30, 5, 4)), "Разнесённые по Y прямоугольники не должны пересекаться")
}

func TestRect_IntersectsTouching(t *testing.T) {
	// Касание границами считается пересечением
	r := NewRect(10, 10, 5, 5) // [5,15]x[5,15]

	assert.True(t, r.Intersects(NewRect(20, 10, 5, 5)), "Прямоугольник с общим ребром справа должен пересекаться")
	assert.True(t, r.Intersects(NewRect(0, 10, 5, 5)), "Прямоугольник с общим ребром слева должен пересекаться")
	assert.True(t, r.Intersects(NewRect(10, 20, 5, 5)), "Прямоугольник с общим ребром сверху должен пересекаться")
	assert.True(t, r.Intersects(NewRect(20, 20, 5, 5)), "Прямоугольник с общим углом должен пересекаться")
	assert.False(t, r.Intersects(NewRect(20.01, 10, 5, 5)), "Зазор в сотую должен исключать пересечение")
}

func TestRect_Degenerate(t *testing.T) {
	// Вырожденный прямоугольник с нулевыми полуразмерами ведёт себя как точка
	p := NewRect(3, 4, 0, 0)

	assert.True(t, p.Contains(vec.Vec2Float{X: 3, Y: 4}), "Вырожденный прямоугольник должен содержать свой центр")
	assert.False(t, p.Contains(vec.Vec2Float{X: 3.1, Y: 4}), "Вырожденный прямоугольник не должен содержать другие точки")
	assert.True(t, p.Intersects(NewRect(3, 4, 1, 1)), "Точка внутри области должна давать пересечение")
	assert.True(t, p.Intersects(NewRect(4, 4, 1, 1)), "Точка на границе области должна давать пересечение")
}

func TestRect_Edges(t *testing.T) {
	// Тест границ прямоугольника
	r := NewRect(10, 20, 3, 7)

	assert.Equal(t, 7.0, r.MinX(), "Левая граница должна быть CX-HW")
	assert.Equal(t, 13.0, r.MaxX(), "Правая граница должна быть CX+HW")
	assert.Equal(t, 13.0, r.MinY(), "Нижняя граница должна быть CY-HH")
	assert.Equal(t, 27.0, r.MaxY(), "Верхняя граница должна быть CY+HH")
}
