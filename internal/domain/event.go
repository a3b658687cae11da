package domain

import (
	"time"
)

// RawEventRecord is one CSV row before validation, all fields as text.
// Line is the 1-based line number in the source file (the header is line 1).
// Extra holds columns outside the fixed schema, keyed by header name.
type RawEventRecord struct {
	Line       int               `json:"line"`
	Timestamp  string            `json:"timestamp"`
	Latitude   string            `json:"latitude"`
	Longitude  string            `json:"longitude"`
	EventType  string            `json:"event_type"`
	SubType    string            `json:"sub_type,omitempty"`
	Country    string            `json:"country,omitempty"`
	Location   string            `json:"location,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Fatalities string            `json:"fatalities,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// NormalizedEvent is a validated maritime event with typed fields.
// It is only ever constructed by Normalize, which guarantees the timestamp
// parsed and the coordinates are in bounds.
type NormalizedEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	EventType EventType `json:"event_type"`

	// RawType preserves the source event-type string; the relevance filter
	// matches land-event terms against it rather than the canonical type.
	RawType  string `json:"raw_type,omitempty"`
	SubType  string `json:"sub_type,omitempty"`
	Country  string `json:"country,omitempty"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`

	// Fatalities is nil when the source column is absent or non-numeric.
	Fatalities *float64 `json:"fatalities,omitempty"`

	// Ocean is set by the relevance filter from the region table.
	Ocean string `json:"ocean,omitempty"`

	SmugglingFlag  bool    `json:"smuggling_flag,omitempty"`
	SmugglingScore float64 `json:"smuggling_score,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// RejectedRow records one input row excluded during cleaning, with the
// taxonomy kind and a human-readable reason for data-quality auditing.
type RejectedRow struct {
	Line   int            `json:"line"`
	Field  string         `json:"field,omitempty"`
	Kind   ErrorKind      `json:"kind"`
	Reason string         `json:"reason"`
	Raw    RawEventRecord `json:"raw"`
}

// ExcludedEvent is a normalized event dropped by the maritime relevance
// filter, with the first failing rule as the reason.
type ExcludedEvent struct {
	Event  NormalizedEvent `json:"event"`
	Reason string          `json:"reason"`
}

// Snapshot is the result of one clean run over a source file. The pipeline
// caches snapshots keyed on the source fingerprint and serves aggregations
// from the current one.
type Snapshot struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	RefreshedAt time.Time `json:"refreshed_at"`

	Events   []NormalizedEvent `json:"events"`
	Rejects  []RejectedRow     `json:"rejects"`
	Excluded []ExcludedEvent   `json:"excluded"`

	// RowsLoaded counts data rows read from the source, including rows
	// later rejected or deduplicated.
	RowsLoaded int `json:"rows_loaded"`
	// Duplicates counts rows dropped by first-occurrence dedup. Dropped
	// duplicates are not rejects; they appear in no output list.
	Duplicates int `json:"duplicates"`
}
