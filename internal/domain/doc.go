// Package domain models maritime event records and the rules that turn raw
// CSV rows into validated, typed events.
//
// # Data Source
//
// Source files are conflict/incident event exports in CSV form, one event
// per row. The fixed schema names these columns (header matching is
// case-insensitive):
//
//	Event_Date      event timestamp (required)
//	Event_Type      raw category text (required)
//	Latitude        decimal degrees, -90..90 (required)
//	Longitude       decimal degrees, -180..180 (required)
//	Sub_Event_Type  raw sub-category text
//	Country         country name as reported
//	Location        free-text place name
//	Notes           free-text incident description
//	Fatalities      optional numeric measure
//
// Columns outside the schema are preserved verbatim in Metadata.
//
// # Timestamp Formats
//
// Event_Date is accepted in any of these layouts, tried in order:
//
//	1/2/2006 15:04          legacy export format, e.g. "3/15/2024 08:30"
//	RFC 3339                e.g. "2024-03-15T08:30:00Z"
//	2006-01-02T15:04:05
//	2006-01-02 15:04:05
//	2006-01-02
//
// Layouts without a zone are read as UTC. A value matching no layout rejects
// the row with a parse error.
//
// # Event-Type Vocabulary
//
// Raw Event_Type strings map onto a canonical vocabulary (collision,
// grounding, capsize, sinking, fire, explosion, piracy, smuggling,
// pollution, distress, near_miss) through an alias table; anything
// unmatched becomes "unknown" rather than rejecting the row, which keeps
// sparse or messy exports usable. The alias table can be extended from a
// YAML file, see [LoadVocabulary]. The original spelling is preserved in
// RawType for the relevance filter.
//
// # Maritime Relevance
//
// Not every row in a source export is maritime. [FilterMaritime] keeps a row
// only when all of the following hold, and records the first failing rule as
// the exclusion reason:
//
//  1. Notes mention maritime vocabulary (boat, ship, vessel, port, harbor,
//     harbour, dock, pier, coast, coastal, fishermen, fishing, naval, sea,
//     maritime, gulf) on a word boundary.
//  2. Notes do not mention "Township" (inland settlements whose reporting
//     trips the keyword list).
//  3. The country is not landlocked.
//  4. The raw type text is not a land event (protest/riot/strike family).
//  5. The coordinates fall inside an ocean bounding box. The Pacific box
//     spans longitudes 100..260; western-hemisphere longitudes fold by +360
//     before the comparison.
//  6. The country is present.
//
// Kept events carry the matched ocean name in Ocean.
//
// # Deduplication and IDs
//
// An event's identity is its timestamp (unix seconds, UTC), coordinates
// rounded to six decimal places, and canonical type. [CleanRecords] drops
// repeat identities, keeping the first occurrence. Event IDs are
// deterministic: the canonical type prefixes the first 8 bytes of the
// identity's SHA-256, so reprocessing a file reproduces the same IDs. See
// [DedupKey] and [EventID].
package domain
