package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"
)

// Geographic bounds for WGS-84 coordinates.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// timestampLayouts are the accepted source formats, tried in order. The
// legacy export format comes first because it dominates real files. Layouts
// without a zone are interpreted as UTC.
var timestampLayouts = []string{
	"1/2/2006 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a source timestamp against the accepted layouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no accepted layout matches %q", s)
}

// Normalize validates and types one raw record. Row-level failures return a
// DataError of parse or validation kind; the input is never mutated.
func Normalize(raw RawEventRecord, vocab *Vocabulary) (NormalizedEvent, error) {
	ts, err := normalizeTimestamp(raw.Line, raw.Timestamp)
	if err != nil {
		return NormalizedEvent{}, err
	}
	lat, err := normalizeCoordinate(raw.Line, "latitude", raw.Latitude, MinLatitude, MaxLatitude)
	if err != nil {
		return NormalizedEvent{}, err
	}
	lon, err := normalizeCoordinate(raw.Line, "longitude", raw.Longitude, MinLongitude, MaxLongitude)
	if err != nil {
		return NormalizedEvent{}, err
	}

	ev := NormalizedEvent{
		Timestamp:   ts,
		Latitude:    lat,
		Longitude:   lon,
		EventType:   vocab.Canonicalize(raw.EventType),
		RawType:     strings.TrimSpace(raw.EventType),
		SubType:     strings.TrimSpace(raw.SubType),
		Country:     strings.TrimSpace(raw.Country),
		Location:    strings.TrimSpace(raw.Location),
		Notes:       strings.TrimSpace(raw.Notes),
		Fatalities:  parseOptionalFloat(raw.Fatalities),
		Metadata:    copyMetadata(raw.Extra),
		ProcessedAt: clock.Now().UTC(),
	}
	ev.ID = EventID(ev)
	return ev, nil
}

func normalizeTimestamp(line int, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, NewValidationError(line, "timestamp", "missing value")
	}
	ts, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, NewParseError(line, "timestamp", "unrecognized format", err)
	}
	return ts, nil
}

func normalizeCoordinate(line int, field, s string, min, max float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError(line, field, "missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, NewParseError(line, field, fmt.Sprintf("not a number: %q", s), err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, NewValidationError(line, field, fmt.Sprintf("non-finite value %q", s))
	}
	if v < min || v > max {
		return 0, NewValidationError(line, field, fmt.Sprintf("%g outside [%g, %g]", v, min, max))
	}
	return v, nil
}

// parseOptionalFloat parses an optional numeric column. Empty or malformed
// values yield nil rather than a reject; the measure is best-effort.
func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DedupKey renders the canonical identity of an event: unix timestamp,
// coordinates rounded to six decimal places (sub-meter, absorbs float
// formatting noise), and the canonical event type.
func DedupKey(ev NormalizedEvent) string {
	return fmt.Sprintf("%d|%.6f|%.6f|%s", ev.Timestamp.Unix(), ev.Latitude, ev.Longitude, ev.EventType)
}

// DedupHash is the 128-bit murmur3 hash of the dedup key. The seen-set
// stores hashes instead of key strings to stay small on large files; at 128
// bits accidental collisions are not a practical concern.
func DedupHash(ev NormalizedEvent) [2]uint64 {
	h1, h2 := murmur3.Sum128([]byte(DedupKey(ev)))
	return [2]uint64{h1, h2}
}

// EventID produces a deterministic ID from the dedup key: the canonical type
// prefixes the first 8 bytes of the key's SHA-256, hex encoded. Reprocessing
// the same file yields the same IDs, so downstream consumers can upsert
// idempotently.
func EventID(ev NormalizedEvent) string {
	hash := sha256.Sum256([]byte(DedupKey(ev)))
	short := hex.EncodeToString(hash[:8])
	if ev.EventType == "" {
		return short
	}
	return string(ev.EventType) + "-" + short
}

// CleanResult is the outcome of normalizing a batch of raw records.
type CleanResult struct {
	Events     []NormalizedEvent
	Rejects    []RejectedRow
	Duplicates int
}

// CleanRecords normalizes records in source order, collecting row-level
// failures into the rejection list and dropping duplicates (first occurrence
// wins). Dropped duplicates are counted but not rejected. Running twice over
// the same input yields identical output.
func CleanRecords(records []RawEventRecord, vocab *Vocabulary) CleanResult {
	res := CleanResult{Events: make([]NormalizedEvent, 0, len(records))}
	seen := make(map[[2]uint64]struct{}, len(records))

	for _, raw := range records {
		ev, err := Normalize(raw, vocab)
		if err != nil {
			res.Rejects = append(res.Rejects, rejectedRow(raw, err))
			continue
		}
		key := DedupHash(ev)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		res.Events = append(res.Events, ev)
	}
	return res
}

// rejectedRow converts a row-level DataError into its audit entry.
func rejectedRow(raw RawEventRecord, err error) RejectedRow {
	var de *DataError
	if !errors.As(err, &de) {
		return RejectedRow{Line: raw.Line, Kind: KindParse, Reason: err.Error(), Raw: raw}
	}
	line := de.Line
	if line == 0 {
		line = raw.Line
	}
	reason := de.Msg
	if reason == "" && de.Cause != nil {
		reason = de.Cause.Error()
	}
	return RejectedRow{Line: line, Field: de.Field, Kind: de.Kind, Reason: reason, Raw: raw}
}
