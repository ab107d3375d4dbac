// Package sheet reads scheduled events from an Excel workbook.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/notiz/notiz/internal/model"
)

// ErrInputFormat marks a workbook that cannot be read with the schema.
var ErrInputFormat = errors.New("input format error")

// RowError reports a single unreadable row. Reading may continue past it.
type RowError struct {
	Row    int
	Cell   string
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s (%s): %v", e.Row, e.Column, e.Cell, e.Err)
}

func (e *RowError) Unwrap() []error {
	return []error{ErrInputFormat, e.Err}
}

// Reader yields events one row at a time. Next returns io.EOF when the sheet
// is exhausted and a *RowError for a row it could not parse.
type Reader interface {
	Next() (model.Event, error)
}

// ExcelReader reads events from an .xlsx workbook
type ExcelReader struct {
	schema   Schema
	rows     [][]string
	date1904 bool
	cur      int // 0-based index into rows of the next row to read
}

// Open loads the worksheet selected by schema and validates its header row.
func Open(path string, schema Schema) (*ExcelReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook %s: %w", ErrInputFormat, path, err)
	}
	defer f.Close()

	name := schema.SheetName
	if name == "" {
		name = f.GetSheetName(f.GetActiveSheetIndex())
	}
	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: worksheet %q not found in %s", ErrInputFormat, name, path)
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read worksheet %q: %w", ErrInputFormat, name, err)
	}

	var date1904 bool
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	return newReader(rows, schema, date1904)
}

func newReader(rows [][]string, schema Schema, date1904 bool) (*ExcelReader, error) {
	r := &ExcelReader{
		schema:   schema,
		rows:     rows,
		date1904: date1904,
		cur:      schema.FirstRow - 1,
	}
	if err := r.checkHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExcelReader) checkHeader() error {
	if r.schema.HeaderRow <= 0 || len(r.schema.Headers) == 0 {
		return nil
	}
	cells := r.cells(r.schema.HeaderRow - 1)
	for i, want := range r.schema.Headers {
		if i >= columnCount {
			break
		}
		if normalizeHeader(cells[i]) != normalizeHeader(want) {
			return fmt.Errorf("%w: header %s is %q, expected %q",
				ErrInputFormat, r.cellName(i, r.schema.HeaderRow), cells[i], want)
		}
	}
	return nil
}

// cells returns the schema's six cells for the 0-based row index, padded
// with empty strings where the sheet has fewer columns.
func (r *ExcelReader) cells(idx int) [columnCount]string {
	var out [columnCount]string
	if idx < 0 || idx >= len(r.rows) {
		return out
	}
	row := r.rows[idx]
	for i := 0; i < columnCount; i++ {
		col := r.schema.FirstColumn - 1 + i
		if col < len(row) {
			out[i] = strings.TrimSpace(row[col])
		}
	}
	return out
}

func (r *ExcelReader) cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(r.schema.FirstColumn+col, row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row, r.schema.FirstColumn+col)
	}
	return name
}

// Next returns the next non-empty event row.
func (r *ExcelReader) Next() (model.Event, error) {
	for r.cur < len(r.rows) {
		idx := r.cur
		r.cur++

		cells := r.cells(idx)
		if isBlank(cells) {
			continue
		}
		return r.parse(idx+1, cells)
	}
	return model.Event{}, io.EOF
}

func isBlank(cells [columnCount]string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func (r *ExcelReader) parse(rowNum int, cells [columnCount]string) (model.Event, error) {
	ev := model.Event{
		Row:    rowNum,
		Label:  cells[ColLabel],
		Remark: cells[ColRemark],
	}

	due, err := ParseDate(cells[ColDueDate], r.schema.DateLayouts, r.date1904)
	if err != nil {
		return model.Event{Row: rowNum, Label: ev.Label}, &RowError{
			Row:    rowNum,
			Cell:   r.cellName(ColDueDate, rowNum),
			Column: ColumnNames[ColDueDate],
			Err:    err,
		}
	}
	ev.DueDate = due

	// The remaining dates are informational; text that is not a date
	// leaves them absent and is reported on the event.
	info := []struct {
		col int
		dst **time.Time
	}{
		{ColVisitDate, &ev.VisitDate},
		{ColLowerLimit, &ev.LowerLimit},
		{ColUpperLimit, &ev.UpperLimit},
	}
	for _, d := range info {
		t, err := ParseDate(cells[d.col], r.schema.DateLayouts, r.date1904)
		if err != nil {
			ev.Unparsed = append(ev.Unparsed, model.UnparsedCell{
				Column: ColumnNames[d.col],
				Cell:   r.cellName(d.col, rowNum),
				Value:  cells[d.col],
			})
			continue
		}
		*d.dst = t
	}

	return ev, nil
}

// ParseDate reads a date cell. Empty values are absent (nil). Numbers are
// Excel serial dates; text is tried against layouts in order.
func ParseDate(value string, layouts []string, date1904 bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, date1904)
		if err != nil {
			return nil, fmt.Errorf("invalid serial date %q: %w", value, err)
		}
		return &t, nil
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", value)
}
