package loader

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
)

// Canonical column names of the dataset schema.
const (
	ColEventDate  = "Event_Date"
	ColEventType  = "Event_Type"
	ColLatitude   = "Latitude"
	ColLongitude  = "Longitude"
	ColSubType    = "Sub_Event_Type"
	ColCountry    = "Country"
	ColLocation   = "Location"
	ColNotes      = "Notes"
	ColFatalities = "Fatalities"
)

// Schema describes the expected CSV columns. Required columns must appear in
// the header; optional columns are picked up when present; anything else is
// preserved into RawEventRecord.Extra.
type Schema struct {
	Required []string
	Optional []string
}

// Default returns the maritime event schema.
func Default() Schema {
	return Schema{
		Required: []string{ColEventDate, ColEventType, ColLatitude, ColLongitude},
		Optional: []string{ColSubType, ColCountry, ColLocation, ColNotes, ColFatalities},
	}
}

// columnMap is the result of resolving a header row against the schema.
// It is computed once per load; all row access afterwards is by index.
type columnMap struct {
	index map[string]int // canonical name -> column index
	extra map[int]string // column index -> header name, for columns outside the schema
	width int
}

// resolve matches the header against the schema. Matching is
// case-insensitive with spaces folded to underscores, and tolerates a UTF-8
// BOM on the first cell. Missing required columns produce a FormatError
// naming all of them at once.
func (s Schema) resolve(header []string) (columnMap, error) {
	known := make(map[string]string, len(s.Required)+len(s.Optional))
	for _, name := range s.Required {
		known[foldHeader(name)] = name
	}
	for _, name := range s.Optional {
		known[foldHeader(name)] = name
	}

	cm := columnMap{
		index: make(map[string]int, len(known)),
		extra: make(map[int]string),
		width: len(header),
	}

	for i, cell := range header {
		if i == 0 {
			cell = strings.TrimPrefix(cell, "\uFEFF")
		}
		canonical, ok := known[foldHeader(cell)]
		if !ok {
			cm.extra[i] = strings.TrimSpace(cell)
			continue
		}
		if _, dup := cm.index[canonical]; dup {
			return columnMap{}, domain.NewFormatError(fmt.Sprintf("duplicate column %s", canonical), nil)
		}
		cm.index[canonical] = i
	}

	var missing []string
	for _, name := range s.Required {
		if _, ok := cm.index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return columnMap{}, domain.NewFormatError("missing required columns: "+strings.Join(missing, ", "), nil)
	}
	return cm, nil
}

// field returns the named column's value in row, or "" when the column is
// absent from the file.
func (cm columnMap) field(row []string, canonical string) string {
	i, ok := cm.index[canonical]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// extras collects values of columns outside the schema, keyed by their
// header names. Returns nil when the file has none.
func (cm columnMap) extras(row []string) map[string]string {
	if len(cm.extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(cm.extra))
	for i, name := range cm.extra {
		if i < len(row) && name != "" {
			out[name] = row[i]
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func foldHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, " ", "_")
}
