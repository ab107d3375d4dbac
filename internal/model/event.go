package model

import "time"

// Event is one scheduled screening read from the spreadsheet
type Event struct {
	// Row is the 1-based sheet row the event was read from
	Row        int
	Label      string
	VisitDate  *time.Time
	LowerLimit *time.Time
	DueDate    *time.Time
	UpperLimit *time.Time
	Remark     string
	// Unparsed lists informational date cells whose text is not a date
	Unparsed []UnparsedCell
}

// UnparsedCell is a cell value the reader kept out of the event
type UnparsedCell struct {
	Column string
	Cell   string
	Value  string
}

// HasDueDate reports whether the event carries a due date
func (e Event) HasDueDate() bool {
	return e.DueDate != nil
}
