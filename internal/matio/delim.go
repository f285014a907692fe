// Package matio moves matrix data between bigmat storage and external
// formats, and computes simple column summaries. Missing values travel
// as a configurable NA token in text form.
package matio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/calvinalkan/bigmat/pkg/bigmat"
)

// ErrFormat indicates delimited input that does not fit the target
// matrix: wrong field count, unparseable number, or too many rows.
var ErrFormat = errors.New("matio: malformed input")

// DelimOptions configures [ReadDelim] and [WriteDelim]. The zero value
// means comma-separated, "NA" as the missing-value token, no header row,
// and no row-name column.
type DelimOptions struct {
	// Comma is the field separator. Zero means ','.
	Comma rune
	// NAString is the text form of a missing value. Empty means "NA".
	NAString string
	// Header writes/expects a first row of column names.
	Header bool
	// RowNames writes/expects a leading field holding the row name.
	RowNames bool
}

func (o DelimOptions) comma() rune {
	if o.Comma == 0 {
		return ','
	}

	return o.Comma
}

func (o DelimOptions) naString() string {
	if o.NAString == "" {
		return "NA"
	}

	return o.NAString
}

// ReadDelim fills m from delimited text, row by row. The input must have
// exactly one field per column (plus the row-name field when configured)
// and at most Rows data rows; shorter input leaves the tail untouched.
// Header and row names, when present, are installed on m.
func ReadDelim(r io.Reader, m bigmat.Matrix, opts DelimOptions) error {
	cr := csv.NewReader(r)
	cr.Comma = opts.comma()
	cr.FieldsPerRecord = -1

	wantFields := m.Cols()
	if opts.RowNames {
		wantFields++
	}

	if opts.Header {
		header, err := cr.Read()
		if err != nil {
			return fmt.Errorf("%w: header: %v", ErrFormat, err)
		}

		names := header
		if opts.RowNames && len(names) > 0 {
			names = names[1:]
		}

		if err := m.SetColNames(names); err != nil {
			return err
		}
	}

	var rowNames []string

	row := 0

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("%w: row %d: %v", ErrFormat, row, err)
		}

		if row >= m.Rows() {
			return fmt.Errorf("%w: more than %d data rows", ErrFormat, m.Rows())
		}

		if len(record) != wantFields {
			return fmt.Errorf("%w: row %d has %d fields, want %d", ErrFormat, row, len(record), wantFields)
		}

		if opts.RowNames {
			rowNames = append(rowNames, record[0])
			record = record[1:]
		}

		for col, field := range record {
			v, err := parseField(field, opts.naString())
			if err != nil {
				return fmt.Errorf("%w: row %d col %d: %v", ErrFormat, row, col, err)
			}

			m.Set(row, col, v)
		}

		row++
	}

	if opts.RowNames && row == m.Rows() {
		if err := m.SetRowNames(rowNames); err != nil {
			return err
		}
	}

	return nil
}

// WriteDelim writes every element of m as delimited text, one row per
// line, translating NA to the configured token.
func WriteDelim(w io.Writer, m bigmat.Matrix, opts DelimOptions) error {
	cw := csv.NewWriter(w)
	cw.Comma = opts.comma()

	if opts.Header {
		header := m.ColNames()
		if header == nil {
			header = make([]string, m.Cols())
			for i := range header {
				header[i] = "V" + strconv.Itoa(i)
			}
		}

		if opts.RowNames {
			header = append([]string{""}, header...)
		}

		if err := cw.Write(header); err != nil {
			return err
		}
	}

	rowNames := m.RowNames()

	record := make([]string, 0, m.Cols()+1)
	for row := 0; row < m.Rows(); row++ {
		record = record[:0]

		if opts.RowNames {
			name := strconv.Itoa(row)
			if rowNames != nil {
				name = rowNames[row]
			}

			record = append(record, name)
		}

		for col := 0; col < m.Cols(); col++ {
			record = append(record, formatField(m.Get(row, col), opts.naString()))
		}

		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func parseField(field, naString string) (float64, error) {
	if field == naString || field == "" {
		return math.NaN(), nil
	}

	return strconv.ParseFloat(field, 64)
}

func formatField(v float64, naString string) string {
	if math.IsNaN(v) {
		return naString
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}
