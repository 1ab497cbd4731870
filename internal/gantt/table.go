// Package gantt holds the ingredient-by-step table produced by the model.
package gantt

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMarker is the cell value meaning "ingredient used in this step".
const DefaultMarker = "X"

var ErrEmptyTable = errors.New("gantt table is empty")

// ParseError reports a row whose width does not match the header.
type ParseError struct {
	Line     int
	Expected int
	Got      int
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed tsv on line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed tsv on line %d: expected %d fields, got %d", e.Line, e.Expected, e.Got)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Table has one column per recipe step and one row per ingredient.
type Table struct {
	Steps []string `json:"steps"`
	Rows  []Row    `json:"rows"`
}

type Row struct {
	Ingredient string   `json:"ingredient"`
	Cells      []string `json:"cells"`
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader
}

// ParseTSV parses raw model output. The first record is the header of step
// texts. It may or may not carry a leading label for the ingredient column;
// the width of the first data row decides which.
func ParseTSV(text string) (*Table, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyTable
	}

	reader := newReader(strings.NewReader(text))

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, parseErr(err)
	}

	table := &Table{Rows: []Row{}}
	width := -1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseErr(err)
		}

		if width < 0 {
			width = len(record)
			switch width {
			case len(header) + 1:
				table.Steps = header
			case len(header):
				table.Steps = header[1:]
			default:
				line, _ := reader.FieldPos(0)
				return nil, &ParseError{Line: line, Expected: len(header) + 1, Got: width}
			}
		}

		if len(record) != width {
			line, _ := reader.FieldPos(0)
			return nil, &ParseError{Line: line, Expected: width, Got: len(record)}
		}

		table.Rows = append(table.Rows, Row{Ingredient: record[0], Cells: record[1:]})
	}

	if table.Steps == nil {
		table.Steps = header
	}

	return table, nil
}

func parseErr(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Err: csvErr.Err}
	}
	return &ParseError{Err: err}
}

// TSV serialises the table so that ParseTSV reproduces it. Line breaks inside
// a cell come back as "\n", because the CSV reader folds "\r\n" in quoted
// fields; TSV folds them up front so the output says what will be read. A
// record made of one empty field is written as "" so it is not read back as a
// blank line and skipped.
func (t Table) TSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'

	write := func(record []string) {
		if len(record) == 1 && record[0] == "" {
			w.Flush()
			buf.WriteString("\"\"\n")
			return
		}
		for i, field := range record {
			record[i] = strings.ReplaceAll(field, "\r\n", "\n")
		}
		w.Write(record)
	}

	write(append([]string(nil), t.Steps...))
	for _, row := range t.Rows {
		record := make([]string, 0, len(row.Cells)+1)
		record = append(record, row.Ingredient)
		record = append(record, row.Cells...)
		write(record)
	}
	w.Flush()

	return buf.String()
}

// Uses returns the steps in which ingredient is marked.
func (t Table) Uses(ingredient string) []string {
	steps := []string{}
	for _, row := range t.Rows {
		if row.Ingredient != ingredient {
			continue
		}
		for i, cell := range row.Cells {
			if i < len(t.Steps) && IsMarked(cell, DefaultMarker) {
				steps = append(steps, t.Steps[i])
			}
		}
	}
	return steps
}

// IsMarked reports whether a cell holds the marker, ignoring case and padding.
func IsMarked(cell, marker string) bool {
	return strings.EqualFold(strings.TrimSpace(cell), marker)
}
