package domain

import (
	"regexp"
	"strings"
)

// maritimeKeywordRe matches vocabulary that marks a note as maritime-related.
// Word-boundary anchored so "season" does not match "sea".
var maritimeKeywordRe = regexp.MustCompile(`(?i)\b(boat|ship|vessel|port|harbor|harbour|dock|pier|coast|coastal|fishermen|fishing|naval|sea|maritime|gulf)\b`)

// landEventTerms excludes protest/riot/strike reporting that mentions ports
// or coasts incidentally. Matched as lowercase substrings of
// "raw_type sub_type".
var landEventTerms = []string{
	"riots/protests", "riots", "protests", "peaceful protest", "civil unrest",
	"demonstrations", "strikes", "civil disorder", "political violence",
	"social unrest", "protest", "violent protest", "mass protest",
	"street protest", "political protest", "labor strike", "general strike",
	"work stoppage", "industrial action",
}

// landlockedCountries cannot host maritime events; their rows are inland
// reporting that happens to trip the keyword filter (rivers, lake ports).
var landlockedCountries = map[string]bool{
	"Afghanistan": true, "Andorra": true, "Armenia": true, "Austria": true,
	"Azerbaijan": true, "Belarus": true, "Bhutan": true, "Bolivia": true,
	"Botswana": true, "Burkina Faso": true, "Burundi": true,
	"Central African Republic": true, "Chad": true, "Czech Republic": true,
	"Czechia": true, "Eswatini": true, "Ethiopia": true, "Hungary": true,
	"Kazakhstan": true, "Kyrgyzstan": true, "Laos": true, "Lesotho": true,
	"Liechtenstein": true, "Luxembourg": true, "Mali": true, "Moldova": true,
	"Mongolia": true, "Nepal": true, "Niger": true, "North Macedonia": true,
	"Paraguay": true, "Rwanda": true, "San Marino": true, "Serbia": true,
	"Slovakia": true, "South Sudan": true, "Switzerland": true,
	"Tajikistan": true, "Turkmenistan": true, "Uganda": true,
	"Uzbekistan": true, "Vatican City": true, "Zambia": true, "Zimbabwe": true,
}

// OceanRegion is a named latitude/longitude bounding box.
/// MaxLon may exceed 180: the Pacific box spans 100..260, and western
// longitudes fold by +360 before comparison.
type OceanRegion struct {
	Name   string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// oceanRegions in priority order; the first containing box wins.
var oceanRegions = []OceanRegion{
	{Name: "Pacific", MinLat: -60, MaxLat: 60, MinLon: 100, MaxLon: 260},
	{Name: "Atlantic", MinLat: -60, MaxLat: 60, MinLon: -80, MaxLon: 20},
	{Name: "Indian", MinLat: -60, MaxLat: 30, MinLon: 20, MaxLon: 120},
	{Name: "Arctic", MinLat: 60, MaxLat: 90, MinLon: -180, MaxLon: 180},
	{Name: "Southern", MinLat: -90, MaxLat: -60, MinLon: -180, MaxLon: 180},
}

func (r OceanRegion) contains(lat, lon float64) bool {
	if lat < r.MinLat || lat > r.MaxLat {
		return false
	}
	if lon >= r.MinLon && lon <= r.MaxLon {
		return true
	}
	if r.MaxLon > 180 && lon < 0 {
		folded := lon + 360
		return folded >= r.MinLon && folded <= r.MaxLon
	}
	return false
}

// OceanFor returns the name of the ocean region containing the coordinate,
// or "" when no box matches.
func OceanFor(lat, lon float64) string {
	for _, r := range oceanRegions {
		if r.contains(lat, lon) {
			return r.Name
		}
	}
	return ""
}

// HasMaritimeKeywords reports whether the text mentions maritime vocabulary.
func HasMaritimeKeywords(text string) bool {
	return text != "" && maritimeKeywordRe.MatchString(text)
}

// IsLandEvent reports whether the raw type text describes a land-based
// protest/riot/strike event.
func IsLandEvent(rawType, subType string) bool {
	text := strings.ToLower(rawType + " " + subType)
	for _, term := range landEventTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// IsLandlocked reports whether the country cannot border an ocean.
func IsLandlocked(country string) bool {
	return landlockedCountries[country]
}

// Exclusion reasons produced by FilterMaritime, in rule order.
const (
	ExcludeNoKeywords     = "no maritime keywords"
	ExcludeTownship       = "township reference"
	ExcludeLandlocked     = "landlocked country"
	ExcludeLandEvent      = "land event type"
	ExcludeOutsideOceans  = "outside ocean regions"
	ExcludeMissingCountry = "missing country"
)

// FilterMaritime splits events into maritime-relevant and excluded. An event
// must pass every rule; the first failing rule names the exclusion reason.
// Kept events get Ocean set from the region table. Input order is preserved
// in both outputs and the input slice is not mutated.
func FilterMaritime(events []NormalizedEvent) ([]NormalizedEvent, []ExcludedEvent) {
	kept := make([]NormalizedEvent, 0, len(events))
	var excluded []ExcludedEvent

	exclude := func(ev NormalizedEvent, reason string) {
		excluded = append(excluded, ExcludedEvent{Event: ev, Reason: reason})
	}

	for _, ev := range events {
		switch {
		case !HasMaritimeKeywords(ev.Notes):
			exclude(ev, ExcludeNoKeywords)
		case strings.Contains(strings.ToLower(ev.Notes), "township"):
			exclude(ev, ExcludeTownship)
		case IsLandlocked(ev.Country):
			exclude(ev, ExcludeLandlocked)
		case IsLandEvent(ev.RawType, ev.SubType):
			exclude(ev, ExcludeLandEvent)
		default:
			ocean := OceanFor(ev.Latitude, ev.Longitude)
			if ocean == "" {
				exclude(ev, ExcludeOutsideOceans)
				continue
			}
			if ev.Country == "" {
				exclude(ev, ExcludeMissingCountry)
				continue
			}
			ev.Ocean = ocean
			kept = append(kept, ev)
		}
	}
	return kept, excluded
}
