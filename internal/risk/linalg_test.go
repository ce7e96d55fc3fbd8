package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranspose(t *testing.T) {
	t.Run("rectangular matrix", func(t *testing.T) {
		m := [][]float64{{1, 2, 3}, {4, 5, 6}}
		assert.Equal(t, [][]float64{{1, 4}, {2, 5}, {3, 6}}, transpose(m))
	})

	t.Run("empty matrix", func(t *testing.T) {
		assert.Empty(t, transpose(nil))
	})

	t.Run("involution", func(t *testing.T) {
		m := [][]float64{{1, 2}, {3, 4}, {5, 6}}
		assert.Equal(t, m, transpose(transpose(m)))
	})
}

func TestMatMul(t *testing.T) {
	t.Run("known product", func(t *testing.T) {
		a := [][]float64{{1, 2}, {3, 4}}
		b := [][]float64{{5, 6}, {7, 8}}

		got, err := matMul(a, b)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{19, 22}, {43, 50}}, got)
	})

	t.Run("inner dimension mismatch", func(t *testing.T) {
		a := [][]float64{{1, 2, 3}}
		b := [][]float64{{1, 2}, {3, 4}}

		_, err := matMul(a, b)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("empty operand", func(t *testing.T) {
		_, err := matMul(nil, [][]float64{{1}})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("ragged right operand", func(t *testing.T) {
		a := [][]float64{{1, 2}}
		b := [][]float64{{1, 2}, {3}}

		_, err := matMul(a, b)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("column vector product", func(t *testing.T) {
		a := [][]float64{{1, 2}, {3, 4}}

		got, err := matMul(a, columnVector([]float64{1, 1}))
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 7}, flattenColumn(got))
	})
}

func TestDot(t *testing.T) {
	t.Run("inner product", func(t *testing.T) {
		got, err := dot([]float64{1, 2, 3}, []float64{4, 5, 6})
		require.NoError(t, err)
		assert.Equal(t, 32.0, got)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := dot([]float64{1}, []float64{1, 2})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestCenterColumns(t *testing.T) {
	m := [][]float64{{1, 10}, {3, 20}, {5, 30}}

	centered := centerColumns(m)

	assert.Equal(t, [][]float64{{-2, -10}, {0, 0}, {2, 10}}, centered)

	// Input must not be mutated.
	assert.Equal(t, [][]float64{{1, 10}, {3, 20}, {5, 30}}, m)
}
