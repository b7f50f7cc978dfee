package world

import (
	"github.com/anthive/worldsim/internal/geom"
)

// Quadtree — точечное квадродерево над позициями сущностей.
//
// Узел — либо лист со списком точек (не более capacity), либо внутренний
// узел ровно с четырьмя детьми NW/NE/SW/SE. Ось Y растёт вниз (экранные
// координаты сетки), поэтому «север» — меньшие Y. Дети покрывают родителя
// полностью: каждый — прямоугольник с половинными полуразмерами, центр в
// середине своей четверти, та же ёмкость.
//
// Деление одностороннее: узлы не схлопываются обратно при удалении точек.
// Дерево не потокобезопасно, доступ сериализует владелец.
type Quadtree struct {
	boundary geom.Rect
	capacity int
	points   []Entity
	divided  bool

	nw, ne, sw, se *Quadtree
}

// NewQuadtree создаёт пустой лист с заданной границей и ёмкостью.
// Ёмкость меньше 1 поднимается до 1.
func NewQuadtree(boundary geom.Rect, capacity int) *Quadtree {
	if capacity < 1 {
		capacity = 1
	}
	return &Quadtree{
		boundary: boundary,
		capacity: capacity,
	}
}

// Boundary возвращает границу узла.
func (q *Quadtree) Boundary() geom.Rect { return q.boundary }

// Capacity возвращает ёмкость листа.
func (q *Quadtree) Capacity() int { return q.capacity }

// Insert добавляет сущность в дерево по её текущей позиции.
// Возвращает false, если позиция вне границы узла — сущность не вставлена.
//
// Лист, заполненный до ёмкости, делится один раз: накопленные точки
// раздаются детям, каждая — первому ребёнку, чья граница содержит её
// позицию, в фиксированном порядке NW, NE, SW, SE. Точка на общем ребре
// четвертей детерминированно достаётся первому совпавшему.
func (q *Quadtree) Insert(e Entity) bool {
	if !q.boundary.Contains(e.GetPosition()) {
		return false
	}

	if !q.divided {
		if len(q.points) < q.capacity {
			q.points = append(q.points, e)
			return true
		}
		q.subdivide()
	}

	if q.insertIntoChildren(e) {
		return true
	}

	// Граница содержит точку, но ни один ребёнок не принял её из-за
	// накопленной погрешности половинных размеров — точка остаётся в узле.
	q.points = append(q.points, e)
	return true
}

// Remove удаляет сущность из дерева, спускаясь по её ТЕКУЩЕЙ позиции.
// Сущности сравниваются по идентичности (GetID), порядок оставшихся точек
// сохраняется. Возвращает false, если сущность не найдена — например,
// когда она сместилась после вставки; это не ошибка, слой пересоберёт
// дерево при следующем обновлении мира.
// Деление узлов при удалении не откатывается.
func (q *Quadtree) Remove(e Entity) bool {
	if !q.boundary.Contains(e.GetPosition()) {
		return false
	}

	id := e.GetID()
	for i, p := range q.points {
		if p.GetID() == id {
			q.points = append(q.points[:i], q.points[i+1:]...)
			return true
		}
	}

	if !q.divided {
		return false
	}
	return q.nw.Remove(e) || q.ne.Remove(e) || q.sw.Remove(e) || q.se.Remove(e)
}

// Clear сбрасывает узел в пустой лист, сохраняя границу и ёмкость.
func (q *Quadtree) Clear() {
	q.points = nil
	q.divided = false
	q.nw, q.ne, q.sw, q.se = nil, nil, nil, nil
}

// Query собирает в out все сущности, чьи позиции лежат внутри range
// (границы включительные). Ветви, чья граница не пересекает range,
// отсекаются целиком. Дедупликации нет: out — аккумулятор, один и тот же
// слайс можно переиспользовать между запросами через out[:0].
func (q *Quadtree) Query(rng geom.Rect, out []Entity) []Entity {
	if !q.boundary.Intersects(rng) {
		return out
	}

	for _, p := range q.points {
		if rng.Contains(p.GetPosition()) {
			out = append(out, p)
		}
	}

	if q.divided {
		out = q.nw.Query(rng, out)
		out = q.ne.Query(rng, out)
		out = q.sw.Query(rng, out)
		out = q.se.Query(rng, out)
	}
	return out
}

// Len возвращает общее число точек в поддереве.
func (q *Quadtree) Len() int {
	n := len(q.points)
	if q.divided {
		n += q.nw.Len() + q.ne.Len() + q.sw.Len() + q.se.Len()
	}
	return n
}

// Depth возвращает максимальную глубину поддерева (лист — 1).
func (q *Quadtree) Depth() int {
	if !q.divided {
		return 1
	}
	d := q.nw.Depth()
	for _, c := range []*Quadtree{q.ne, q.sw, q.se} {
		if cd := c.Depth(); cd > d {
			d = cd
		}
	}
	return 1 + d
}

// subdivide создаёт четырёх детей и раздаёт им накопленные точки.
func (q *Quadtree) subdivide() {
	cx, cy := q.boundary.CX, q.boundary.CY
	hw, hh := q.boundary.HW/2, q.boundary.HH/2

	q.nw = NewQuadtree(geom.NewRect(cx-hw, cy-hh, hw, hh), q.capacity)
	q.ne = NewQuadtree(geom.NewRect(cx+hw, cy-hh, hw, hh), q.capacity)
	q.sw = NewQuadtree(geom.NewRect(cx-hw, cy+hh, hw, hh), q.capacity)
	q.se = NewQuadtree(geom.NewRect(cx+hw, cy+hh, hw, hh), q.capacity)
	q.divided = true

	pts := q.points
	q.points = nil
	for _, p := range pts {
		if !q.insertIntoChildren(p) {
			q.points = append(q.points, p)
		}
	}
}

// insertIntoChildren пытается вставить сущность в детей в порядке
// NW, NE, SW, SE.
func (q *Quadtree) insertIntoChildren(e Entity) bool {
	return q.nw.Insert(e) || q.ne.Insert(e) || q.sw.Insert(e) || q.se.Insert(e)
}
