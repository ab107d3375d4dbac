package sheet

import (
	"strings"

	"github.com/notiz/notiz/internal/config"
)

// Column positions relative to Schema.FirstColumn
const (
	ColLabel = iota
	ColVisitDate
	ColLowerLimit
	ColDueDate
	ColUpperLimit
	ColRemark

	columnCount
)

// ColumnNames names each column in sheet order
var ColumnNames = [columnCount]string{
	"label",
	"visit_date",
	"lower_limit",
	"due_date",
	"upper_limit",
	"remark",
}

// Schema describes where events live in a workbook. Rows and columns are
// 1-based, as shown in a spreadsheet program.
type Schema struct {
	// SheetName selects the worksheet; empty means the active sheet.
	SheetName string
	// HeaderRow, when > 0, holds column titles validated against Headers.
	HeaderRow   int
	Headers     []string
	FirstRow    int
	FirstColumn int
	// DateLayouts are tried in order for date cells stored as text.
	DateLayouts []string
}

// DefaultSchema matches the layout the events workbook has always used:
// data from row 3, column C, no header check.
func DefaultSchema() Schema {
	return Schema{
		FirstRow:    3,
		FirstColumn: 3,
		Headers:     []string{"Label", "Visit Date", "Lower Limit", "Due Date", "Upper Limit", "Remark"},
		DateLayouts: []string{"2006-01-02", "02.01.2006", "01/02/2006", "2006-01-02 15:04:05"},
	}
}

// SchemaFromConfig builds a Schema from sheet settings
func SchemaFromConfig(cfg config.SheetConfig) Schema {
	s := DefaultSchema()
	s.SheetName = cfg.Name
	s.HeaderRow = cfg.HeaderRow
	if cfg.FirstRow > 0 {
		s.FirstRow = cfg.FirstRow
	}
	if cfg.FirstColumn > 0 {
		s.FirstColumn = cfg.FirstColumn
	}
	if len(cfg.Headers) > 0 {
		s.Headers = cfg.Headers
	}
	if len(cfg.DateLayouts) > 0 {
		s.DateLayouts = cfg.DateLayouts
	}
	return s
}

// normalizeHeader folds case and drops spaces, underscores and dashes so
// "Due Date", "due_date" and "DUE-DATE" compare equal.
func normalizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}
