package util

import (
	"github.com/aquilax/go-perlin"
)

// Noise — детерминированный источник 2D-шума Перлина. Один и тот же
// сид всегда даёт одну и ту же карту, поэтому генератор можно
// пересоздавать между запусками без сохранения состояния.
// После создания безопасен для конкурентного чтения.
type Noise struct {
	p *perlin.Perlin
}

// NewNoise создаёт генератор с фиксированным сидом.
// alpha=2, beta=2, 3 октавы — сглаженный рельеф без резких перепадов.
func NewNoise(seed int64) *Noise {
	return &Noise{p: perlin.NewPerlin(2.0, 2.0, 3, seed)}
}

// At возвращает значение шума в точке, нормированное в [0, 1].
func (n *Noise) At(x, y float64) float64 {
	// Noise2D возвращает значение в диапазоне [-1, 1].
	return (n.p.Noise2D(x, y) + 1.0) / 2.0
}
