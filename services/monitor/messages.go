package monitor

import (
	"strings"

	"slotwatch/services/notify"
)

type Channels struct {
	Listing  string
	Earliest string
	Status   string
	Error    string
}

// Labels name the fields of outgoing messages, endpoints that list
// showtimes rather than dates override them.
type Labels struct {
	Listing  string
	Earliest string
	Empty    string
}

var DefaultLabels = Labels{
	Listing:  "Available dates",
	Earliest: "Earliest date",
	Empty:    "No dates available",
}

func (l Labels) withDefaults() Labels {
	if l.Listing == "" {
		l.Listing = DefaultLabels.Listing
	}
	if l.Earliest == "" {
		l.Earliest = DefaultLabels.Earliest
	}
	if l.Empty == "" {
		l.Empty = DefaultLabels.Empty
	}
	return l
}

func listingFields(l Labels, d Detection) []notify.Field {
	value := l.Empty
	if len(d.All) > 0 {
		value = strings.Join(d.All, "\n")
	}
	return []notify.Field{{Name: l.Listing, Value: value}}
}

func earliestFields(l Labels, d Detection) []notify.Field {
	return []notify.Field{
		{Name: l.Earliest, Value: d.Earliest},
		{Name: l.Listing, Value: strings.Join(d.Matching, "\n")},
	}
}

func statusFields(name string, l Labels, d Detection) []notify.Field {
	if d.Status == StatusAvailable {
		return []notify.Field{
			{Name: "Status", Value: name + " is available"},
			{Name: l.Earliest, Value: d.Earliest},
		}
	}
	return []notify.Field{{Name: "Status", Value: name + " is no longer available"}}
}
