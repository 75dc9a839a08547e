// Package state holds the client-side mirror of the viewed month and the
// server data it is rendered from.
package state

import (
	"fmt"
	"slices"
	"strings"

	"availcal/internal/calendar"
	"availcal/internal/models"
)

// View selects which grid is shown.
type View int

const (
	Personal View = iota
	Aggregate
)

func (v View) String() string {
	if v == Aggregate {
		return "aggregate"
	}
	return "personal"
}

// ParseView parses "personal" or "aggregate".
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "personal", "me":
		return Personal, nil
	case "aggregate", "team", "heatmap":
		return Aggregate, nil
	}
	return Personal, fmt.Errorf("unknown view %q", s)
}

// ViewState is the single mutable state of a session.
// It is not safe for concurrent use; the controller serialises access.
type ViewState struct {
	Month calendar.Month
	User  *models.User
	View  View

	availability map[string]struct{}
	aggregate    []models.DaySummary
	byDate       map[string]int
}

// New creates an empty state showing month in the personal view.
func New(month calendar.Month) *ViewState {
	return &ViewState{
		Month:        month,
		View:         Personal,
		availability: make(map[string]struct{}),
		byDate:       make(map[string]int),
	}
}

// Has reports whether date is marked available.
func (s *ViewState) Has(date string) bool {
	_, ok := s.availability[date]
	return ok
}

// Add marks date available and reports whether the set changed.
func (s *ViewState) Add(date string) bool {
	if s.Has(date) {
		return false
	}
	s.availability[date] = struct{}{}
	return true
}

// Remove unmarks date and reports whether the set changed.
func (s *ViewState) Remove(date string) bool {
	if !s.Has(date) {
		return false
	}
	delete(s.availability, date)
	return true
}

// ReplaceAvailability replaces the personal availability set.
func (s *ViewState) ReplaceAvailability(dates []string) {
	s.availability = make(map[string]struct{}, len(dates))
	for _, d := range dates {
		s.availability[d] = struct{}{}
	}
}

// Availability returns the available dates in ascending order.
func (s *ViewState) Availability() []string {
	out := make([]string, 0, len(s.availability))
	for d := range s.availability {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// ReplaceAggregate replaces the team summaries. If the server sends a
// date twice the first record wins.
func (s *ViewState) ReplaceAggregate(sums []models.DaySummary) {
	s.aggregate = make([]models.DaySummary, 0, len(sums))
	s.byDate = make(map[string]int, len(sums))
	for _, sum := range sums {
		if _, dup := s.byDate[sum.Date]; dup {
			continue
		}
		s.byDate[sum.Date] = len(s.aggregate)
		s.aggregate = append(s.aggregate, sum)
	}
}

// Summary looks up the team summary for date.
func (s *ViewState) Summary(date string) (models.DaySummary, bool) {
	i, ok := s.byDate[date]
	if !ok {
		return models.DaySummary{}, false
	}
	return s.aggregate[i], true
}

// Aggregate returns a copy of the team summaries in server order.
func (s *ViewState) Aggregate() []models.DaySummary {
	return slices.Clone(s.aggregate)
}
