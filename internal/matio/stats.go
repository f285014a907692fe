package matio

import (
	"errors"
	"math"

	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

// ErrAllNA indicates a column summary over nothing but missing values.
var ErrAllNA = errors.New("matio: column has no non-missing values")

// ColMin returns the smallest non-missing value in the column.
func ColMin(m bigmat.Matrix, col int) (float64, error) {
	return reduce(m, col, math.Inf(1), math.Min)
}

// ColMax returns the largest non-missing value in the column.
func ColMax(m bigmat.Matrix, col int) (float64, error) {
	return reduce(m, col, math.Inf(-1), math.Max)
}

// ColSum returns the sum of the column's non-missing values.
func ColSum(m bigmat.Matrix, col int) (float64, error) {
	return reduce(m, col, 0, func(acc, v float64) float64 { return acc + v })
}

// ColMean returns the arithmetic mean of the column's non-missing
// values.
func ColMean(m bigmat.Matrix, col int) (float64, error) {
	if err := checkCol(m, col); err != nil {
		return 0, err
	}

	sum := 0.0
	n := 0

	for row := 0; row < m.Rows(); row++ {
		v := m.Get(row, col)
		if math.IsNaN(v) {
			continue
		}

		sum += v
		n++
	}

	if n == 0 {
		return 0, ErrAllNA
	}

	return sum / float64(n), nil
}

// Which returns the row indices whose value in the column lies in
// [lo, hi]. Missing values never match.
func Which(m bigmat.Matrix, col int, lo, hi float64) ([]int, error) {
	if err := checkCol(m, col); err != nil {
		return nil, err
	}

	var rows []int

	for row := 0; row < m.Rows(); row++ {
		v := m.Get(row, col)
		if math.IsNaN(v) {
			continue
		}

		if v >= lo && v <= hi {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

func reduce(m bigmat.Matrix, col int, init float64, combine func(acc, v float64) float64) (float64, error) {
	if err := checkCol(m, col); err != nil {
		return 0, err
	}

	acc := init
	n := 0

	for row := 0; row < m.Rows(); row++ {
		v := m.Get(row, col)
		if math.IsNaN(v) {
			continue
		}

		acc = combine(acc, v)
		n++
	}

	if n == 0 {
		return 0, ErrAllNA
	}

	return acc, nil
}

func checkCol(m bigmat.Matrix, col int) error {
	if col < 0 || col >= m.Cols() {
		return bigmat.ErrColumnRange
	}

	return nil
}
