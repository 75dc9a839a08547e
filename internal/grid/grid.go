// Package grid lays out a month of day cells for either the personal view
// or the team heatmap. Rendering is pure: the same inputs always produce the
// same Grid.
package grid

import (
	"fmt"
	"unicode/utf8"

	"availcal/internal/calendar"
	"availcal/internal/models"
	"availcal/internal/state"
)

// Cell classes.
const (
	ClassAvailable   = "available"
	ClassUnavailable = "unavailable"
)

// Heat is the discretised team availability of a day.
type Heat int

const (
	Heat0 Heat = iota // nobody free
	Heat1             // one person free
	Heat2             // several free
	Heat3             // everyone free
)

// Class returns the cell class, e.g. "heat-2".
func (h Heat) Class() string {
	return fmt.Sprintf("heat-%d", int(h))
}

// Cell is the rendered view of one day.
type Cell struct {
	Day        int
	Date       string
	Class      string
	Initials   []string
	Toggleable bool
}

// Grid is a rendered month: Leading empty cells then one cell per day.
type Grid struct {
	Month   calendar.Month
	View    state.View
	Leading int
	Cells   []Cell
}

// Source is the data a grid is rendered from.
type Source interface {
	Has(date string) bool
	Summary(date string) (models.DaySummary, bool)
}

// Render lays out month for the given view.
func Render(month calendar.Month, view state.View, src Source) Grid {
	g := Grid{
		Month:   month,
		View:    view,
		Leading: month.FirstWeekday(),
		Cells:   make([]Cell, 0, month.Days()),
	}
	for d := 1; d <= month.Days(); d++ {
		date := month.Date(d)
		var c Cell
		switch view {
		case state.Aggregate:
			sum, ok := src.Summary(date)
			c = AggregateDay(date, sum, ok)
		default:
			c = PersonalDay(date, src.Has(date))
		}
		c.Day = d
		g.Cells = append(g.Cells, c)
	}
	return g
}

// PersonalDay renders a day of the personal view.
func PersonalDay(date string, available bool) Cell {
	return Cell{Date: date, Class: PersonalClass(available), Toggleable: true}
}

// PersonalClass maps availability to its cell class.
func PersonalClass(available bool) string {
	if available {
		return ClassAvailable
	}
	return ClassUnavailable
}

// AggregateDay renders a day of the team heatmap. Initials are only shown
// for partial availability.
func AggregateDay(date string, sum models.DaySummary, found bool) Cell {
	h := HeatFor(sum, found)
	c := Cell{Date: date, Class: h.Class()}
	if h == Heat1 || h == Heat2 {
		c.Initials = Initials(sum.AvailableUsers)
	}
	return c
}

// HeatFor buckets a day summary.
func HeatFor(sum models.DaySummary, found bool) Heat {
	switch {
	case !found:
		return Heat0
	case sum.TotalActiveUsers > 0 && sum.Count == sum.TotalActiveUsers:
		return Heat3
	case sum.Count >= 2:
		return Heat2
	case sum.Count > 0:
		return Heat1
	}
	return Heat0
}

// Initials returns the first character of each non-empty name.
func Initials(names []string) []string {
	var out []string
	for _, n := range names {
		r, size := utf8.DecodeRuneInString(n)
		if size == 0 || r == utf8.RuneError && size == 1 {
			continue
		}
		out = append(out, string(r))
	}
	return out
}

// Cell returns the cell for date, if it is on the grid.
func (g Grid) Cell(date string) (Cell, bool) {
	for _, c := range g.Cells {
		if c.Date == date {
			return c, true
		}
	}
	return Cell{}, false
}
