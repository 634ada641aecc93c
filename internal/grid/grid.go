package grid

import (
	"fmt"
	"time"

	"notioncal/internal/model"
)

// Cell is one date slot of a rendered view.
type Cell struct {
	Date time.Time
	// InMonth is false for the leading/trailing filler days of a month grid.
	// Week and day cells are always in range.
	InMonth bool
	Today   bool
	Events  []model.Event
}

// Empty reports whether no event touches the cell. The day view renders an
// explicit empty state for it.
func (c Cell) Empty() bool {
	return len(c.Events) == 0
}

// Visible reports whether ev covers day d: start <= d <= (end or start).
func Visible(ev model.Event, d time.Time) bool {
	return !d.Before(ev.Start) && !d.After(ev.LastDay())
}

// EventsOn returns, in input order, the events visible on d.
func EventsOn(events []model.Event, d time.Time) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if Visible(ev, d) {
			out = append(out, ev)
		}
	}
	return out
}

// Generate builds the cells for mode around anchor. today is the current
// calendar date used for the Today flag. Unknown modes render a month.
func Generate(anchor time.Time, mode model.ViewMode, events []model.Event, today time.Time) []Cell {
	switch mode {
	case model.ViewWeek:
		return Week(anchor, events, today)
	case model.ViewDay:
		return Day(anchor, events, today)
	default:
		return Month(anchor, events, today)
	}
}

// Month lays out the month containing anchor as whole Monday-first weeks.
// The cell count is always a multiple of 7.
func Month(anchor time.Time, events []model.Event, today time.Time) []Cell {
	anchor = model.DateOf(anchor)
	today = model.DateOf(today)

	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	leading := model.MondayOffset(first)
	daysInMonth := int(next.Sub(first).Hours() / 24)
	total := (leading + daysInMonth + 6) / 7 * 7

	cells := make([]Cell, total)
	for i := range cells {
		d := first.AddDate(0, 0, i-leading)
		cells[i] = Cell{
			Date:    d,
			InMonth: d.Month() == first.Month(),
			Today:   d.Equal(today),
			Events:  EventsOn(events, d),
		}
	}
	return cells
}

// WeekStart returns the Monday of the week containing d.
func WeekStart(d time.Time) time.Time {
	d = model.DateOf(d)
	return d.AddDate(0, 0, -model.MondayOffset(d))
}

// Week returns the seven days Monday..Sunday around anchor.
func Week(anchor time.Time, events []model.Event, today time.Time) []Cell {
	start := WeekStart(anchor)
	today = model.DateOf(today)

	cells := make([]Cell, 7)
	for i := range cells {
		d := start.AddDate(0, 0, i)
		cells[i] = Cell{
			Date:    d,
			InMonth: true,
			Today:   d.Equal(today),
			Events:  EventsOn(events, d),
		}
	}
	return cells
}

// Day returns the single cell for anchor.
func Day(anchor time.Time, events []model.Event, today time.Time) []Cell {
	d := model.DateOf(anchor)
	return []Cell{{
		Date:    d,
		InMonth: true,
		Today:   d.Equal(model.DateOf(today)),
		Events:  EventsOn(events, d),
	}}
}

// StepDays is how far one prev/next moves the anchor. Month uses a flat 30
// days rather than calendar months, so repeated steps can skip or repeat a
// month near month ends.
func StepDays(mode model.ViewMode) int {
	switch mode {
	case model.ViewWeek:
		return 7
	case model.ViewDay:
		return 1
	default:
		return 30
	}
}

// Shift moves anchor by dir steps (negative for backwards).
func Shift(anchor time.Time, mode model.ViewMode, dir int) time.Time {
	return model.AddDays(anchor, dir*StepDays(mode))
}

// Title is the header text of a view.
func Title(anchor time.Time, mode model.ViewMode) string {
	anchor = model.DateOf(anchor)
	switch mode {
	case model.ViewWeek:
		start := WeekStart(anchor)
		end := start.AddDate(0, 0, 6)
		return fmt.Sprintf("%s %d – %s %d", start.Month().String()[:3], start.Day(), end.Month().String()[:3], end.Day())
	case model.ViewDay:
		return anchor.Format("Monday, January 2, 2006")
	default:
		return anchor.Format("January 2006")
	}
}
