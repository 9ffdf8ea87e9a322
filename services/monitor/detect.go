package monitor

import (
	"slices"
)

type Detection struct {
	// every identifier, sorted
	All []string
	// identifiers accepted by the constraint, sorted
	Matching []string
	// first of Matching, "" when nothing matched
	Earliest string
	Previous Status
	Status   Status
	// the status changed in a way worth announcing
	Notify bool
}

// Detect compares a fresh listing against the last known status. moving
// from unknown to unavailable is recorded but not announced, a monitor
// that starts with nothing to offer stays quiet.
func Detect(slots []Slot, constraint Constraint, last Status) Detection {
	if constraint == nil {
		constraint = Any{}
	}

	all := make([]string, 0, len(slots))
	for _, s := range slots {
		all = append(all, s.ID)
	}
	slices.Sort(all)

	matching := make([]string, 0, len(all))
	for _, id := range all {
		if constraint.Matches(id) {
			matching = append(matching, id)
		}
	}

	d := Detection{
		All:      all,
		Matching: matching,
		Previous: last,
		Status:   StatusUnavailable,
	}
	if len(matching) > 0 {
		d.Earliest = matching[0]
		d.Status = StatusAvailable
	}
	d.Notify = d.Status != last &&
		!(last == StatusUnknown && d.Status == StatusUnavailable)
	return d
}
