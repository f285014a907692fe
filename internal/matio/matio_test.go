package matio

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

func newMatrix(t *testing.T, rows, cols int, etype bigmat.ElementType) bigmat.Matrix {
	t.Helper()

	m, err := bigmat.NewLocal(bigmat.LocalOptions{Rows: rows, Cols: cols, Type: etype})
	require.NoError(t, err)

	return m
}

func TestReadDelim_Basic(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 3, 2, bigmat.Double)

	input := "1.5,2\n3,NA\n-4,5e2\n"
	require.NoError(t, ReadDelim(strings.NewReader(input), m, DelimOptions{}))

	require.Equal(t, 1.5, m.Get(0, 0))
	require.Equal(t, float64(2), m.Get(0, 1))
	require.True(t, math.IsNaN(m.Get(1, 1)))
	require.Equal(t, float64(500), m.Get(2, 1))
}

func TestReadDelim_HeaderAndRowNames(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 2, 2, bigmat.Int)

	input := ",alpha,beta\nr0,1,2\nr1,3,4\n"
	require.NoError(t, ReadDelim(strings.NewReader(input), m, DelimOptions{Header: true, RowNames: true}))

	require.Equal(t, []string{"alpha", "beta"}, m.ColNames())
	require.Equal(t, []string{"r0", "r1"}, m.RowNames())
	require.Equal(t, float64(4), m.Get(1, 1))
}

func TestReadDelim_RejectsBadInput(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 2, 2, bigmat.Double)

	// Wrong field count.
	err := ReadDelim(strings.NewReader("1,2,3\n"), m, DelimOptions{})
	require.ErrorIs(t, err, ErrFormat)

	// Not a number.
	err = ReadDelim(strings.NewReader("1,x\n"), m, DelimOptions{})
	require.ErrorIs(t, err, ErrFormat)

	// Too many rows.
	err = ReadDelim(strings.NewReader("1,2\n3,4\n5,6\n"), m, DelimOptions{})
	require.ErrorIs(t, err, ErrFormat)
}

func TestReadDelim_ShortInputLeavesTail(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 3, 1, bigmat.Double)

	require.NoError(t, ReadDelim(strings.NewReader("7\n"), m, DelimOptions{}))
	require.Equal(t, float64(7), m.Get(0, 0))
	require.Equal(t, float64(0), m.Get(2, 0))
}

func TestWriteDelim_RoundTrip(t *testing.T) {
	t.Parallel()

	src := newMatrix(t, 2, 3, bigmat.Short)
	require.NoError(t, src.SetColNames([]string{"a", "b", "c"}))

	src.Set(0, 0, 1)
	src.Set(0, 1, math.NaN())
	src.Set(0, 2, 3)
	src.Set(1, 0, -4)
	src.Set(1, 1, 5)
	src.Set(1, 2, 6)

	var out strings.Builder

	require.NoError(t, WriteDelim(&out, src, DelimOptions{Header: true}))
	require.Equal(t, "a,b,c\n1,NA,3\n-4,5,6\n", out.String())

	dst := newMatrix(t, 2, 3, bigmat.Short)
	require.NoError(t, ReadDelim(strings.NewReader(out.String()), dst, DelimOptions{Header: true}))

	for col := 0; col < 3; col++ {
		for row := 0; row < 2; row++ {
			want := src.Get(row, col)
			got := dst.Get(row, col)

			if math.IsNaN(want) {
				require.True(t, math.IsNaN(got))
			} else {
				require.Equal(t, want, got)
			}
		}
	}
}

func TestWriteDelim_CustomSeparatorAndNAToken(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 1, 2, bigmat.Double)
	m.Set(0, 0, 1.5)
	m.Set(0, 1, math.NaN())

	var out strings.Builder

	require.NoError(t, WriteDelim(&out, m, DelimOptions{Comma: '\t', NAString: "?"}))
	require.Equal(t, "1.5\t?\n", out.String())
}

func TestColStats(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 5, 1, bigmat.Double)
	for row, v := range []float64{3, math.NaN(), -1, 7, 2} {
		m.Set(row, 0, v)
	}

	minVal, err := ColMin(m, 0)
	require.NoError(t, err)
	require.Equal(t, float64(-1), minVal)

	maxVal, err := ColMax(m, 0)
	require.NoError(t, err)
	require.Equal(t, float64(7), maxVal)

	sum, err := ColSum(m, 0)
	require.NoError(t, err)
	require.Equal(t, float64(11), sum)

	mean, err := ColMean(m, 0)
	require.NoError(t, err)
	require.Equal(t, 2.75, mean)
}

func TestColStats_AllNA(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 2, 1, bigmat.Int)
	m.Set(0, 0, math.NaN())
	m.Set(1, 0, math.NaN())

	_, err := ColMin(m, 0)
	require.ErrorIs(t, err, ErrAllNA)

	_, err = ColMean(m, 0)
	require.ErrorIs(t, err, ErrAllNA)
}

func TestColStats_BadColumn(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 2, 1, bigmat.Int)

	_, err := ColMax(m, 1)
	require.ErrorIs(t, err, bigmat.ErrColumnRange)
}

func TestWhich(t *testing.T) {
	t.Parallel()

	m := newMatrix(t, 6, 1, bigmat.Double)
	for row, v := range []float64{1, 5, math.NaN(), 3, 10, 5} {
		m.Set(row, 0, v)
	}

	rows, err := Which(m, 0, 3, 5)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 5}, rows)

	// No matches yields an empty result, not an error.
	rows, err = Which(m, 0, 100, 200)
	require.NoError(t, err)
	require.Empty(t, rows)
}
