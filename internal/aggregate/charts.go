package aggregate

import (
	"strings"
	"time"

	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
)

// Summary describes a whole dataset for the overview endpoint.
type Summary struct {
	TotalEvents      int       `json:"total_events"`
	Countries        int       `json:"countries"`
	EventTypes       int       `json:"event_types"`
	Oceans           int       `json:"oceans"`
	FlaggedSmuggling int       `json:"flagged_smuggling"`
	TotalFatalities  float64   `json:"total_fatalities"`
	FirstEvent       time.Time `json:"first_event"`
	LastEvent        time.Time `json:"last_event"`
}

// Summarize computes dataset-wide totals. FirstEvent and LastEvent are zero
// when the dataset is empty.
func Summarize(events []domain.NormalizedEvent) Summary {
	var s Summary
	s.TotalEvents = len(events)

	countries := make(map[string]struct{})
	types := make(map[domain.EventType]struct{})
	oceans := make(map[string]struct{})

	for i, ev := range events {
		if ev.Country != "" {
			countries[ev.Country] = struct{}{}
		}
		types[ev.EventType] = struct{}{}
		if ev.Ocean != "" {
			oceans[ev.Ocean] = struct{}{}
		}
		if ev.SmugglingFlag {
			s.FlaggedSmuggling++
		}
		if ev.Fatalities != nil {
			s.TotalFatalities += *ev.Fatalities
		}
		if i == 0 || ev.Timestamp.Before(s.FirstEvent) {
			s.FirstEvent = ev.Timestamp
		}
		if i == 0 || ev.Timestamp.After(s.LastEvent) {
			s.LastEvent = ev.Timestamp
		}
	}

	s.Countries = len(countries)
	s.EventTypes = len(types)
	s.Oceans = len(oceans)
	return s
}

// CountsByType ranks canonical event types by frequency.
func CountsByType(events []domain.NormalizedEvent) []Bucket {
	return Group(events, GroupSpec{ByType: true})
}

// CountsBySubType ranks raw sub-event types by frequency.
func CountsBySubType(events []domain.NormalizedEvent, limit int) []Bucket {
	return Group(events, GroupSpec{BySubType: true, Limit: limit})
}

// CountsByCountry ranks countries by event count, truncated to the top n.
func CountsByCountry(events []domain.NormalizedEvent, n int) []Bucket {
	return Group(events, GroupSpec{Region: RegionCountry, Limit: n})
}

// CountsByOcean ranks ocean regions by event count.
func CountsByOcean(events []domain.NormalizedEvent) []Bucket {
	return Group(events, GroupSpec{Region: RegionOcean})
}

// DailyCounts is the per-day time series, chronological.
func DailyCounts(events []domain.NormalizedEvent) []Bucket {
	return Group(events, GroupSpec{Bucket: BucketDay, Order: OrderKey})
}

// MonthlyCounts is the per-month time series, chronological.
func MonthlyCounts(events []domain.NormalizedEvent) []Bucket {
	return Group(events, GroupSpec{Bucket: BucketMonth, Order: OrderKey})
}

// CountryTypePivot crosses the top n countries with canonical event types.
// Events outside the top countries are dropped so the pivot stays readable.
func CountryTypePivot(events []domain.NormalizedEvent, n int) []Bucket {
	top := CountsByCountry(events, n)
	keep := make(map[string]struct{}, len(top))
	for _, b := range top {
		keep[b.Key.Region] = struct{}{}
	}

	subset := make([]domain.NormalizedEvent, 0, len(events))
	for _, ev := range events {
		if _, ok := keep[ev.Country]; ok {
			subset = append(subset, ev)
		}
	}
	return Group(subset, GroupSpec{Region: RegionCountry, ByType: true, Order: OrderKey})
}

// MonthTypePivot crosses months with canonical event types, chronological.
func MonthTypePivot(events []domain.NormalizedEvent) []Bucket {
	return Group(events, GroupSpec{Bucket: BucketMonth, ByType: true, Order: OrderKey})
}

// Filter selects events for the browse endpoint. Zero-valued fields match
// everything.
type Filter struct {
	From        time.Time
	To          time.Time
	Country     string
	Ocean       string
	Type        domain.EventType
	FlaggedOnly bool

	// Limit caps the result; 0 means no cap. The cap keeps input order, so
	// repeated queries over the same snapshot return the same sample.
	Limit int
}

func (f Filter) matches(ev domain.NormalizedEvent) bool {
	if !f.From.IsZero() && ev.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ev.Timestamp.After(f.To) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(f.Country, ev.Country) {
		return false
	}
	if f.Ocean != "" && !strings.EqualFold(f.Ocean, ev.Ocean) {
		return false
	}
	if f.Type != "" && f.Type != ev.EventType {
		return false
	}
	if f.FlaggedOnly && !ev.SmugglingFlag {
		return false
	}
	return true
}

// FilterEvents returns the events matching f, in input order, capped at
// f.Limit. The input is never mutated.
func FilterEvents(events []domain.NormalizedEvent, f Filter) []domain.NormalizedEvent {
	out := make([]domain.NormalizedEvent, 0, min(len(events), capHint(f.Limit, len(events))))
	for _, ev := range events {
		if !f.matches(ev) {
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func capHint(limit, total int) int {
	if limit <= 0 {
		return total
	}
	return limit
}
