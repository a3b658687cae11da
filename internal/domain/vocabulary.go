package domain

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EventType is the canonical category of a maritime event.
type EventType string

const (
	EventCollision EventType = "collision"
	EventGrounding EventType = "grounding"
	EventCapsize   EventType = "capsize"
	EventSinking   EventType = "sinking"
	EventFire      EventType = "fire"
	EventExplosion EventType = "explosion"
	EventPiracy    EventType = "piracy"
	EventSmuggling EventType = "smuggling"
	EventPollution EventType = "pollution"
	EventDistress  EventType = "distress"
	EventNearMiss  EventType = "near_miss"

	// EventUnknown absorbs raw values outside the vocabulary. Unknown types
	// are retained, never rejected, to maximize usable data.
	EventUnknown EventType = "unknown"
)

// KnownEventTypes lists the canonical vocabulary, unknown last.
var KnownEventTypes = []EventType{
	EventCollision, EventGrounding, EventCapsize, EventSinking,
	EventFire, EventExplosion, EventPiracy, EventSmuggling,
	EventPollution, EventDistress, EventNearMiss, EventUnknown,
}

// defaultAliases maps folded raw spellings to canonical types. Keys must
// already be in folded form (see foldTypeKey).
var defaultAliases = map[string]EventType{
	"collision":        EventCollision,
	"collisions":       EventCollision,
	"allision":         EventCollision,
	"vessel_collision": EventCollision,
	"ship_collision":   EventCollision,

	"grounding":   EventGrounding,
	"aground":     EventGrounding,
	"ran_aground": EventGrounding,
	"stranding":   EventGrounding,

	"capsize":   EventCapsize,
	"capsizing": EventCapsize,
	"capsized":  EventCapsize,

	"sinking":    EventSinking,
	"sank":       EventSinking,
	"sunk":       EventSinking,
	"foundering": EventSinking,

	"fire":        EventFire,
	"vessel_fire": EventFire,

	"explosion": EventExplosion,
	"blast":     EventExplosion,

	"piracy":               EventPiracy,
	"armed_robbery":        EventPiracy,
	"piracy_armed_robbery": EventPiracy,
	"hijacking":            EventPiracy,
	"hijack":               EventPiracy,

	"smuggling":   EventSmuggling,
	"trafficking": EventSmuggling,
	"contraband":  EventSmuggling,

	"pollution": EventPollution,
	"oil_spill": EventPollution,
	"spill":     EventPollution,
	"discharge": EventPollution,

	"distress":          EventDistress,
	"mayday":            EventDistress,
	"search_and_rescue": EventDistress,
	"sar":               EventDistress,

	"near_miss":      EventNearMiss,
	"close_quarters": EventNearMiss,

	"unknown": EventUnknown,
}

// Vocabulary resolves raw event-type strings to canonical types.
// The zero value is unusable; construct with DefaultVocabulary or
// LoadVocabulary.
type Vocabulary struct {
	aliases map[string]EventType
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() *Vocabulary {
	aliases := make(map[string]EventType, len(defaultAliases))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	return &Vocabulary{aliases: aliases}
}

// Canonicalize maps a raw event-type string to its canonical type.
// Matching is case-insensitive with spaces, hyphens, and slashes folded to
// underscores. Anything unmatched becomes EventUnknown.
func (v *Vocabulary) Canonicalize(raw string) EventType {
	key := foldTypeKey(raw)
	if key == "" {
		return EventUnknown
	}
	if t, ok := v.aliases[key]; ok {
		return t
	}
	return EventUnknown
}

// vocabularyFile is the YAML shape for alias overrides:
//
//	aliases:
//	  piracy: ["boarding", "armed attack"]
//	  pollution: ["ballast discharge"]
type vocabularyFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadVocabulary reads a YAML alias file and merges it over the defaults.
// Aliases may only target canonical types; an unknown target is an error so
// typos fail loudly at startup instead of silently mapping to unknown.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}

	var vf vocabularyFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}

	v := DefaultVocabulary()
	for canonical, raws := range vf.Aliases {
		target := EventType(foldTypeKey(canonical))
		if !knownEventType(target) {
			return nil, fmt.Errorf("vocabulary file %s: %q is not a canonical event type", path, canonical)
		}
		for _, raw := range raws {
			key := foldTypeKey(raw)
			if key == "" {
				continue
			}
			v.aliases[key] = target
		}
	}
	return v, nil
}

func knownEventType(t EventType) bool {
	for _, k := range KnownEventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// foldTypeKey lowercases and collapses runs of spaces, hyphens, and slashes
// into single underscores: "Piracy/Armed Robbery" -> "piracy_armed_robbery".
func foldTypeKey(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range raw {
		switch r {
		case ' ', '\t', '-', '/', '_':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
