package controller

import "availcal/internal/state"

// Mutation sets the membership of one date in the availability set.
type Mutation struct {
	Date      string
	Available bool
}

// Apply performs the mutation on st.
func (m Mutation) Apply(st *state.ViewState) {
	if m.Available {
		st.Add(m.Date)
	} else {
		st.Remove(m.Date)
	}
}

// TogglePlan pairs an optimistic change with its precomputed inverse.
type TogglePlan struct {
	Forward Mutation
	Inverse Mutation
}

// PlanToggle reads the membership of date at call time and plans its flip.
func PlanToggle(st *state.ViewState, date string) TogglePlan {
	current := st.Has(date)
	return TogglePlan{
		Forward: Mutation{Date: date, Available: !current},
		Inverse: Mutation{Date: date, Available: current},
	}
}
