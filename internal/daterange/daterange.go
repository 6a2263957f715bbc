// Package daterange computes calendar-aligned filter windows and steps them
// backwards and forwards without ever running past today.
package daterange

import (
	"strconv"
	"time"
)

// Kind tells whether a range can be stepped by a calendar unit.
type Kind int

const (
	Custom Kind = iota
	Month
	Year
)

func (k Kind) String() string {
	switch k {
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return "custom"
	}
}

// ParseKind is the inverse of Kind.String. Unknown names are Custom.
func ParseKind(s string) Kind {
	switch s {
	case "month":
		return Month
	case "year":
		return Year
	default:
		return Custom
	}
}

// Range is an inclusive window of calendar days. A zero From or To means the
// window is open on that side.
type Range struct {
	Label string
	From  time.Time
	To    time.Time
	Kind  Kind
}

// Day truncates t to its calendar date, expressed at midnight UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return Day(time.Now().In(loc))
}

func lastDayOfMonth(first time.Time) time.Time {
	return first.AddDate(0, 1, -1)
}

func clamp(to, today time.Time) time.Time {
	if to.After(today) {
		return today
	}
	return to
}

func All() Range {
	return Range{Label: "All", Kind: Custom}
}

func Last30(today time.Time) Range {
	return Range{Label: "Last 30 days", From: Day(today).AddDate(0, 0, -30), Kind: Custom}
}

func Last90(today time.Time) Range {
	return Range{Label: "Last 3 Months", From: Day(today).AddDate(0, -3, 0), Kind: Custom}
}

func LastYear(today time.Time) Range {
	return Range{Label: "Last Year", From: Day(today).AddDate(-1, 0, 0), Kind: Custom}
}

// CurrentMonth is the month containing today, ending today.
func CurrentMonth(today time.Time) Range {
	today = Day(today)
	from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Range{Label: from.Month().String(), From: from, To: clamp(lastDayOfMonth(from), today), Kind: Month}
}

// CurrentYear is the year containing today, ending today.
func CurrentYear(today time.Time) Range {
	today = Day(today)
	from := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	return Range{Label: strconv.Itoa(from.Year()), From: from, To: clamp(to, today), Kind: Year}
}

// Custom builds a range with explicit bounds.
func NewCustom(label string, from, to time.Time) Range {
	return Range{Label: label, From: Day(from), To: Day(to), Kind: Custom}
}

func (r Range) steppable() bool {
	return (r.Kind == Month || r.Kind == Year) && !r.From.IsZero() && !r.To.IsZero()
}

func (r Range) HasPrev() bool {
	return r.Kind == Month || r.Kind == Year
}

// Prev shifts the window one calendar unit back. Custom ranges are returned unchanged.
func (r Range) Prev() Range {
	if !r.steppable() {
		return r
	}
	if r.Kind == Year {
		from := r.From.AddDate(-1, 0, 0)
		to := time.Date(from.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
		return Range{Label: strconv.Itoa(from.Year()), From: from, To: to, Kind: Year}
	}
	from := r.From.AddDate(0, -1, 0)
	return Range{Label: from.Month().String(), From: from, To: lastDayOfMonth(from), Kind: Month}
}

// HasNext reports whether the window ends before today.
func (r Range) HasNext(today time.Time) bool {
	return r.steppable() && r.To.Before(Day(today))
}

// Next shifts the window one calendar unit forward, clamping To to today.
// It returns r unchanged once the window reaches today.
func (r Range) Next(today time.Time) Range {
	if !r.HasNext(today) {
		return r
	}
	today = Day(today)
	if r.Kind == Year {
		from := r.From.AddDate(1, 0, 0)
		to := time.Date(from.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
		return Range{Label: strconv.Itoa(from.Year()), From: from, To: clamp(to, today), Kind: Year}
	}
	from := r.From.AddDate(0, 1, 0)
	return Range{Label: from.Month().String(), From: from, To: clamp(lastDayOfMonth(from), today), Kind: Month}
}

// Same reports whether two ranges would produce the same filter.
func (r Range) Same(other Range) bool {
	return r.Label == other.Label && sameDay(r.From, other.From) && sameDay(r.To, other.To)
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() && b.IsZero()
	}
	return Day(a).Equal(Day(b))
}

// Contains reports whether the calendar date of t falls inside the window.
func (r Range) Contains(t time.Time) bool {
	d := Day(t)
	if !r.From.IsZero() && d.Before(Day(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(Day(r.To)) {
		return false
	}
	return true
}

// Bounds returns the half-open instant interval [from, until) covered by the
// range in loc. Zero values mean unbounded.
func (r Range) Bounds(loc *time.Location) (from, until time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	if !r.From.IsZero() {
		from = time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, loc)
	}
	if !r.To.IsZero() {
		until = time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	}
	return from, until
}
