// Package aggregate groups normalized events into summary buckets for the
// presentation layer. All functions are pure and deterministic: the same
// events and spec always produce the same buckets in the same order, so
// callers can recompute on demand.
package aggregate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
)

// TimeBucket selects the time granularity of a grouping.
type TimeBucket string

const (
	BucketNone  TimeBucket = ""
	BucketHour  TimeBucket = "hour"
	BucketDay   TimeBucket = "day"
	BucketMonth TimeBucket = "month"
	BucketYear  TimeBucket = "year"
)

// ParseTimeBucket converts a query-string value to a TimeBucket.
func ParseTimeBucket(s string) (TimeBucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return BucketNone, nil
	case "hour":
		return BucketHour, nil
	case "day":
		return BucketDay, nil
	case "month":
		return BucketMonth, nil
	case "year":
		return BucketYear, nil
	default:
		return BucketNone, fmt.Errorf("unknown time bucket: %s", s)
	}
}

// RegionDim selects the spatial dimension of a grouping.
type RegionDim string

const (
	RegionNone    RegionDim = ""
	RegionOcean   RegionDim = "ocean"
	RegionCountry RegionDim = "country"
)

// ParseRegionDim converts a query-string value to a RegionDim.
func ParseRegionDim(s string) (RegionDim, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RegionNone, nil
	case "ocean":
		return RegionOcean, nil
	case "country":
		return RegionCountry, nil
	default:
		return RegionNone, fmt.Errorf("unknown region dimension: %s", s)
	}
}

// Order selects how buckets are sorted.
type Order string

const (
	// OrderCount sorts by count descending; ties break by the key's natural
	// ordering so ranked lists are reproducible.
	OrderCount Order = "count"
	// OrderKey sorts by key ascending, which is chronological for time
	// buckets. Used for time series.
	OrderKey Order = "key"
)

// ParseOrder converts a query-string value to an Order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "count":
		return OrderCount, nil
	case "key":
		return OrderKey, nil
	default:
		return OrderCount, fmt.Errorf("unknown order: %s", s)
	}
}

// StatFatalities is the built-in numeric measure. Any other stat name is
// looked up as a numeric metadata column.
const StatFatalities = "fatalities"

// GroupSpec selects the dimensions, measure, and ordering of an aggregation.
// The zero value counts everything into a single bucket.
type GroupSpec struct {
	Bucket    TimeBucket
	Region    RegionDim
	ByType    bool
	BySubType bool

	// Stat names the numeric field for mean/min/max/sum, "" for count-only.
	Stat string

	// Order defaults to OrderCount.
	Order Order

	// Limit truncates the bucket list after sorting; 0 means no limit.
	Limit int
}

// Key identifies one bucket. Unused dimensions stay zero-valued.
type Key struct {
	Time    string           `json:"time,omitempty"`
	Region  string           `json:"region,omitempty"`
	Type    domain.EventType `json:"event_type,omitempty"`
	SubType string           `json:"sub_type,omitempty"`
}

// String joins the key's non-empty dimensions with "|" for display and logs.
func (k Key) String() string {
	parts := make([]string, 0, 4)
	if k.Time != "" {
		parts = append(parts, k.Time)
	}
	if k.Region != "" {
		parts = append(parts, k.Region)
	}
	if k.Type != "" {
		parts = append(parts, string(k.Type))
	}
	if k.SubType != "" {
		parts = append(parts, k.SubType)
	}
	return strings.Join(parts, "|")
}

// less is the natural key ordering: chronological, then region, then type,
// then sub-type.
func (k Key) less(o Key) bool {
	if k.Time != o.Time {
		return k.Time < o.Time
	}
	if k.Region != o.Region {
		return k.Region < o.Region
	}
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.SubType < o.SubType
}

// Stat holds derived statistics over the measure for one bucket. Count here
// is the number of events that carried the measure, which can be smaller
// than the bucket's event count.
type Stat struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Bucket is one group of events sharing a key. Stat is nil when no measure
// was requested or no event in the bucket carried it.
type Bucket struct {
	Key   Key   `json:"key"`
	Count int   `json:"count"`
	Stat  *Stat `json:"stat,omitempty"`
}

// statAccum accumulates the running measure for one bucket.
type statAccum struct {
	n   int
	sum float64
	min float64
	max float64
	set bool
}

func (a *statAccum) accumulate(v float64) {
	if !a.set || v < a.min {
		a.min = v
	}
	if !a.set || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
	a.set = true
}

func (a statAccum) result() *Stat {
	if !a.set {
		return nil
	}
	return &Stat{
		Count: a.n,
		Sum:   a.sum,
		Mean:  a.sum / float64(a.n),
		Min:   a.min,
		Max:   a.max,
	}
}

type partial struct {
	count int
	stat  statAccum
}

// Group buckets events per spec. Every event lands in exactly one bucket, so
// the bucket counts always sum to len(events); events missing the measure
// still count but contribute no stat.
func Group(events []domain.NormalizedEvent, spec GroupSpec) []Bucket {
	partials := make(map[Key]*partial)

	for _, ev := range events {
		key := keyFor(ev, spec)
		p := partials[key]
		if p == nil {
			p = &partial{}
			partials[key] = p
		}
		p.count++
		if spec.Stat != "" {
			if v, ok := measure(ev, spec.Stat); ok {
				p.stat.accumulate(v)
			}
		}
	}

	buckets := make([]Bucket, 0, len(partials))
	for key, p := range partials {
		b := Bucket{Key: key, Count: p.count}
		if spec.Stat != "" {
			b.Stat = p.stat.result()
		}
		buckets = append(buckets, b)
	}

	sortBuckets(buckets, spec.Order)

	if spec.Limit > 0 && len(buckets) > spec.Limit {
		buckets = buckets[:spec.Limit]
	}
	return buckets
}

func keyFor(ev domain.NormalizedEvent, spec GroupSpec) Key {
	var k Key
	k.Time = FormatBucket(ev.Timestamp, spec.Bucket)
	switch spec.Region {
	case RegionOcean:
		k.Region = ev.Ocean
	case RegionCountry:
		k.Region = ev.Country
	}
	if spec.ByType {
		k.Type = ev.EventType
	}
	if spec.BySubType {
		k.SubType = ev.SubType
	}
	return k
}

// FormatBucket renders a timestamp at the given granularity. The formats
// sort lexicographically in chronological order.
func FormatBucket(t time.Time, b TimeBucket) string {
	switch b {
	case BucketHour:
		return t.UTC().Format("2006-01-02T15:00")
	case BucketDay:
		return t.UTC().Format("2006-01-02")
	case BucketMonth:
		return t.UTC().Format("2006-01")
	case BucketYear:
		return t.UTC().Format("2006")
	default:
		return ""
	}
}

// measure extracts the named numeric field from an event. Unknown fields and
// events without the value report ok=false.
func measure(ev domain.NormalizedEvent, field string) (float64, bool) {
	if field == StatFatalities {
		if ev.Fatalities == nil {
			return 0, false
		}
		return *ev.Fatalities, true
	}
	if s, ok := ev.Metadata[field]; ok {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func sortBuckets(buckets []Bucket, order Order) {
	switch order {
	case OrderKey:
		sort.SliceStable(buckets, func(i, j int) bool {
			return buckets[i].Key.less(buckets[j].Key)
		})
	default:
		sort.SliceStable(buckets, func(i, j int) bool {
			if buckets[i].Count != buckets[j].Count {
				return buckets[i].Count > buckets[j].Count
			}
			return buckets[i].Key.less(buckets[j].Key)
		})
	}
}
