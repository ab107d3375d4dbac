// Package schedule decides whether an event's due date has been reached or its
// reminder threshold has arrived. Everything here is pure: "today" is always
// passed in or taken from an injected clock.
package schedule

import "time"

// Clock returns the current time
type Clock func() time.Time

// DaysUntil returns the number of calendar days from today to due, ignoring
// the time of day. Spreadsheet dates carry no zone, so each side is read as
// the wall-clock date it holds.
func DaysUntil(due, today time.Time) int {
	return int(civil(due).Sub(civil(today)).Hours() / 24)
}

// civil maps a time onto midnight UTC of its calendar date so that day
// arithmetic never crosses a DST transition.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsDueToday reports whether due falls on today's calendar date. A nil due
// date is never due.
func IsDueToday(due *time.Time, today time.Time) bool {
	if due == nil {
		return false
	}
	return DaysUntil(*due, today) == 0
}

// IsReminderDue reports whether due is exactly leadDays calendar days after
// today. This is a one-shot check: on any other day it is false, so a run
// skipped on the reminder day misses the reminder.
func IsReminderDue(due *time.Time, today time.Time, leadDays int) bool {
	if due == nil {
		return false
	}
	return DaysUntil(*due, today) == leadDays
}

// Evaluator binds the reminder lead time, a location and a clock
type Evaluator struct {
	leadDays int
	loc      *time.Location
	now      Clock
}

// NewEvaluator creates an Evaluator. A nil location means time.Local, a nil
// clock means time.Now.
func NewEvaluator(leadDays int, loc *time.Location, now Clock) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Evaluator{leadDays: leadDays, loc: loc, now: now}
}

// LeadDays returns the configured reminder lead time
func (e *Evaluator) LeadDays() int {
	return e.leadDays
}

// Today returns the current instant in the evaluator's location
func (e *Evaluator) Today() time.Time {
	return e.now().In(e.loc)
}
