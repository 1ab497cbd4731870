package gantt

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

type RenderOptions struct {
	// Marker is the cell value the model writes for "used". Defaults to "X".
	Marker string
	// Glyph replaces Marker in the rendered table. Defaults to "✓".
	Glyph string
	// MaxColumnWidth wraps long step headers. Zero keeps the library default.
	MaxColumnWidth int
	// IngredientHeader labels the first column.
	IngredientHeader string
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.Marker == "" {
		o.Marker = DefaultMarker
	}
	if o.Glyph == "" {
		o.Glyph = "✓"
	}
	return o
}

// Cells returns the display values for a row: padded to the number of steps,
// with the marker swapped for the glyph. Any other text is left as is.
func (t Table) Cells(row Row, opts RenderOptions) []string {
	opts = opts.withDefaults()

	out := make([]string, len(t.Steps))
	for i := range out {
		if i >= len(row.Cells) {
			continue
		}
		if IsMarked(row.Cells[i], opts.Marker) {
			out[i] = opts.Glyph
		} else {
			out[i] = row.Cells[i]
		}
	}
	return out
}

// Render writes the table as a static text grid.
func Render(w io.Writer, t *Table, opts RenderOptions) error {
	if t == nil || (len(t.Steps) == 0 && len(t.Rows) == 0) {
		return ErrEmptyTable
	}
	opts = opts.withDefaults()

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetRowLine(true)
	if opts.MaxColumnWidth > 0 {
		tw.SetColWidth(opts.MaxColumnWidth)
	}

	header := make([]string, 0, len(t.Steps)+1)
	header = append(header, opts.IngredientHeader)
	header = append(header, t.Steps...)
	tw.SetHeader(header)

	for _, row := range t.Rows {
		record := make([]string, 0, len(t.Steps)+1)
		record = append(record, row.Ingredient)
		record = append(record, t.Cells(row, opts)...)
		tw.Append(record)
	}

	tw.Render()
	return nil
}
