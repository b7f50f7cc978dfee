package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoise_Deterministic(t *testing.T) {
	a := NewNoise(42)
	b := NewNoise(42)

	// Один сид — одна карта
	for i := 0; i < 50; i++ {
		x, y := float64(i)*0.1, float64(i)*0.07
		require.Equal(t, a.At(x, y), b.At(x, y), "расхождение в точке (%f, %f)", x, y)
	}
}

func TestNoise_Range(t *testing.T) {
	n := NewNoise(7)

	for i := 0; i < 200; i++ {
		v := n.At(float64(i)*0.13, float64(i)*0.29)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNoise_SeedMatters(t *testing.T) {
	a := NewNoise(1)
	b := NewNoise(2)

	differs := false
	for i := 0; i < 50 && !differs; i++ {
		x, y := float64(i)*0.17, float64(i)*0.11
		if a.At(x, y) != b.At(x, y) {
			differs = true
		}
	}
	assert.True(t, differs, "разные сиды дали одинаковую карту")
}
