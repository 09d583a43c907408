package linalg

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrSingular is returned when the best available pivot is below PivotEpsilon.
	ErrSingular = errors.New("linalg: singular or near-singular matrix")

	// ErrDimensionMismatch indicates a non-square matrix or a right-hand side
	// whose length differs from the matrix order.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrNaNInf indicates a NaN or Inf entry in the input.
	ErrNaNInf = errors.New("linalg: NaN or Inf encountered")
)

// PivotEpsilon is the smallest pivot magnitude accepted during elimination.
const PivotEpsilon = 1e-12

// Solve returns x with a·x = b. The inputs are copied and left untouched.
func Solve(a [][]float64, b []float64) ([]float64, error) {
	if err := checkShape(a, b); err != nil {
		return nil, err
	}
	m := make([][]float64, len(a))
	for i, row := range a {
		m[i] = append([]float64(nil), row...)
	}
	rhs := append([]float64(nil), b...)
	return solveInPlace(m, rhs)
}

// SolveInPlace is Solve without copying its inputs: a is reduced to an
// upper-triangular unit-diagonal matrix, b is overwritten, and the returned
// slice aliases b. Callers must own both arguments.
func SolveInPlace(a [][]float64, b []float64) ([]float64, error) {
	if err := checkShape(a, b); err != nil {
		return nil, err
	}
	return solveInPlace(a, b)
}

func checkShape(a [][]float64, b []float64) error {
	n := len(a)
	if n == 0 {
		return fmt.Errorf("%w: empty matrix", ErrDimensionMismatch)
	}
	if len(b) != n {
		return fmt.Errorf("%w: matrix is %dx%d, rhs has %d entries", ErrDimensionMismatch, n, len(a[0]), len(b))
	}
	for i, row := range a {
		if len(row) != n {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimensionMismatch, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: a[%d][%d]", ErrNaNInf, i, j)
			}
		}
		if math.IsNaN(b[i]) || math.IsInf(b[i], 0) {
			return fmt.Errorf("%w: b[%d]", ErrNaNInf, i)
		}
	}
	return nil
}

// solveInPlace runs Gaussian elimination with partial row pivoting: each
// pivot row is normalised by its diagonal, the column is eliminated from the
// rows below, and the solution is recovered by back-substitution.
func solveInPlace(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)

	for k := 0; k < n; k++ {
		p := k
		for r := k + 1; r < n; r++ {
			if math.Abs(a[r][k]) > math.Abs(a[p][k]) {
				p = r
			}
		}
		if math.Abs(a[p][k]) < PivotEpsilon {
			return nil, fmt.Errorf("%w: pivot %d is %g", ErrSingular, k, a[p][k])
		}
		if p != k {
			a[k], a[p] = a[p], a[k]
			b[k], b[p] = b[p], b[k]
		}

		pivot := a[k][k]
		for j := k; j < n; j++ {
			a[k][j] /= pivot
		}
		b[k] /= pivot

		for r := k + 1; r < n; r++ {
			factor := a[r][k]
			if factor == 0 {
				continue
			}
			for j := k; j < n; j++ {
				a[r][j] -= factor * a[k][j]
			}
			b[r] -= factor * b[k]
		}
	}

	for i := n - 1; i >= 0; i-- {
		for j := i + 1; j < n; j++ {
			b[i] -= a[i][j] * b[j]
		}
	}

	return b, nil
}
