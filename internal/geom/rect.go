package geom

import (
	"fmt"

	"github.com/anthive/worldsim/internal/vec"
)

// Rect — прямоугольник, заданный центром и полуразмерами (AABB).
// Полный охват: [CX-HW, CX+HW] по X и [CY-HH, CY+HH] по Y.
// Нулевые полуразмеры дают вырожденный прямоугольник (точку или отрезок),
// предикаты при этом продолжают работать.
type Rect struct {
	CX, CY float64 // центр
	HW, HH float64 // полуширина и полувысота
}

// NewRect создаёт прямоугольник по центру и полуразмерам.
func NewRect(cx, cy, hw, hh float64) Rect {
	return Rect{CX: cx, CY: cy, HW: hw, HH: hh}
}

// MinX возвращает левую границу.
func (r Rect) MinX() float64 { return r.CX - r.HW }

// MaxX возвращает правую границу.
func (r Rect) MaxX() float64 { return r.CX + r.HW }

// MinY возвращает нижнюю границу.
func (r Rect) MinY() float64 { return r.CY - r.HH }

// MaxY возвращает верхнюю границу.
func (r Rect) MaxY() float64 { return r.CY + r.HH }

// Contains проверяет, лежит ли точка внутри прямоугольника.
// Все четыре границы включительные: точка на ребре или в углу считается
// внутренней, поэтому точка на общем ребре двух соседних прямоугольников
// принадлежит обоим.
func (r Rect) Contains(p vec.Vec2Float) bool {
	return p.X >= r.MinX() && p.X <= r.MaxX() &&
		p.Y >= r.MinY() && p.Y <= r.MaxY()
}

// Intersects проверяет пересечение с другим прямоугольником.
// Касание границами считается пересечением: два прямоугольника с общим
// ребром пересекаются.
func (r Rect) Intersects(o Rect) bool {
	return !(o.MinX() > r.MaxX() ||
		o.MaxX() < r.MinX() ||
		o.MinY() > r.MaxY() ||
		o.MaxY() < r.MinY())
}

// String возвращает строковое представление прямоугольника.
func (r Rect) String() string {
	return fmt.Sprintf("Rect(центр=(%.2f, %.2f), полуразмер=(%.2f, %.2f))", r.CX, r.CY, r.HW, r.HH)
}
