package risk

import "fmt"

// Dense linear algebra over [][]float64. Rows are the outer slices. All
// operations allocate fresh outputs and leave their operands untouched;
// shape violations surface as ErrDimensionMismatch.

// transpose returns Mᵀ.
func transpose(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return [][]float64{}
	}
	rows, cols := len(m), len(m[0])
	out := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		out[j] = make([]float64, rows)
		for i := 0; i < rows; i++ {
			out[j][i] = m[i][j]
		}
	}
	return out
}

// matMul computes A·B.
func matMul(a, b [][]float64) ([][]float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, fmt.Errorf("%w: empty matrix operand", ErrDimensionMismatch)
	}
	inner := len(b)
	cols := len(b[0])
	for _, row := range b {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: ragged right operand", ErrDimensionMismatch)
		}
	}

	out := make([][]float64, len(a))
	for i, arow := range a {
		if len(arow) != inner {
			return nil, fmt.Errorf("%w: %dx%d by %dx%d", ErrDimensionMismatch, len(a), len(arow), inner, cols)
		}
		row := make([]float64, cols)
		for k, aik := range arow {
			brow := b[k]
			for j := 0; j < cols; j++ {
				row[j] += aik * brow[j]
			}
		}
		out[i] = row
	}
	return out, nil
}

// dot computes the inner product of two equal-length vectors.
func dot(u, v []float64) (float64, error) {
	if len(u) != len(v) {
		return 0, fmt.Errorf("%w: vector lengths %d and %d", ErrDimensionMismatch, len(u), len(v))
	}
	var sum float64
	for i := range u {
		sum += u[i] * v[i]
	}
	return sum, nil
}

// centerColumns subtracts each column's mean from every entry. This is the
// first step of covariance estimation.
func centerColumns(m [][]float64) [][]float64 {
	if len(m) == 0 {
		return [][]float64{}
	}
	rows, cols := len(m), len(m[0])

	means := make([]float64, cols)
	for _, row := range m {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(rows)
	}

	out := make([][]float64, rows)
	for i, row := range m {
		centered := make([]float64, cols)
		for j, v := range row {
			centered[j] = v - means[j]
		}
		out[i] = centered
	}
	return out
}

// columnVector lifts a vector into an n×1 matrix for multiplication.
func columnVector(v []float64) [][]float64 {
	out := make([][]float64, len(v))
	for i, x := range v {
		out[i] = []float64{x}
	}
	return out
}

// flattenColumn collapses an n×1 matrix back into a vector.
func flattenColumn(m [][]float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = row[0]
	}
	return out
}
