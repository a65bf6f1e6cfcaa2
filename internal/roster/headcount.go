package roster

import (
	"github.com/fyrsmithlabs/reportd/internal/vacation"
)

// Headcount derives the expected number of daily reports for a date from
// the required-submitter list minus anyone on vacation.
type Headcount struct {
	roster    *Roster
	vacations *vacation.Store
}

// NewHeadcount wires the roster and vacation store together. The vacation
// store may be nil when vacations are not tracked.
func NewHeadcount(r *Roster, v *vacation.Store) *Headcount {
	return &Headcount{roster: r, vacations: v}
}

// ExpectedHeadcount returns how many reports complete the given date.
func (h *Headcount) ExpectedHeadcount(date string) int {
	n := 0
	for _, name := range h.roster.Required() {
		if h.vacations != nil && h.vacations.IsOnVacation(name, date) {
			continue
		}
		n++
	}
	return n
}
