// Package detect flags likely smuggling incidents from the free-text notes
// of normalized events. Detection is rule-based: a curated keyword list plus
// weaker context indicators that only count on longer notes. Rules ship with
// compiled-in defaults and can be overridden from a YAML file.
package detect

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
)

// defaultMinContextLen is the minimum note length, in runes, before a
// context-indicator hit alone flags an event.
const defaultMinContextLen = 50

var defaultKeywords = []string{
	"smuggling", "smuggle", "smuggled", "contraband", "illegal cargo",
	"drug trafficking", "drugs", "narcotics", "cocaine", "heroin", "marijuana",
	"weapons trafficking", "arms smuggling", "gun running", "weapons",
	"human trafficking", "human smuggling", "migrants", "undocumented",
	"cigarette smuggling", "tobacco", "alcohol smuggling", "liquor",
	"fuel smuggling", "diesel", "petrol", "oil smuggling",
	"wildlife smuggling", "ivory", "rhino horn", "endangered species",
	"counterfeit", "fake goods", "pirated", "stolen goods",
	"money laundering", "cash smuggling", "currency",
	"hidden compartment", "concealed", "secret cargo",
	"border crossing", "illegal entry", "unauthorized",
	"intercepted", "seized", "confiscated", "arrested",
	"suspicious vessel", "suspicious cargo", "unusual activity",
}

var defaultIndicators = []string{
	"intercepted", "seized", "confiscated", "arrested", "detained",
	"suspicious", "illegal", "unauthorized", "hidden", "concealed",
}

// Rules configures the detector. Empty fields inherit the defaults, so a
// YAML override can replace just one list.
type Rules struct {
	Keywords      []string `yaml:"keywords"`
	Indicators    []string `yaml:"indicators"`
	MinContextLen int      `yaml:"min_context_len"`
}

// DefaultRules returns the compiled-in rule set.
func DefaultRules() Rules {
	return Rules{
		Keywords:      append([]string(nil), defaultKeywords...),
		Indicators:    append([]string(nil), defaultIndicators...),
		MinContextLen: defaultMinContextLen,
	}
}

// LoadRules reads a YAML rules file and merges it over the defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read detection rules %s: %w", path, err)
	}

	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Rules{}, fmt.Errorf("parse detection rules %s: %w", path, err)
	}

	rules := DefaultRules()
	if len(file.Keywords) > 0 {
		rules.Keywords = file.Keywords
	}
	if len(file.Indicators) > 0 {
		rules.Indicators = file.Indicators
	}
	if file.MinContextLen > 0 {
		rules.MinContextLen = file.MinContextLen
	}
	return rules, nil
}

// Detector evaluates notes against a fixed rule set. Safe for concurrent
// use once constructed.
type Detector struct {
	keywords   []string
	indicators []string
	minContext int
	termCount  int
}

// Default returns a detector built from the compiled-in rules.
func Default() *Detector {
	d, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return d
}

// New builds a Detector from rules. Terms are lowercased and deduplicated;
// at least one keyword is required.
func New(rules Rules) (*Detector, error) {
	keywords := foldTerms(rules.Keywords)
	indicators := foldTerms(rules.Indicators)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("detection rules need at least one keyword")
	}

	minContext := rules.MinContextLen
	if minContext <= 0 {
		minContext = defaultMinContextLen
	}

	distinct := make(map[string]struct{}, len(keywords)+len(indicators))
	for _, t := range keywords {
		distinct[t] = struct{}{}
	}
	for _, t := range indicators {
		distinct[t] = struct{}{}
	}

	return &Detector{
		keywords:   keywords,
		indicators: indicators,
		minContext: minContext,
		termCount:  len(distinct),
	}, nil
}

func foldTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Result is one note's evaluation.
type Result struct {
	// Flagged is true on any keyword hit, or on an indicator hit when the
	// note is long enough to carry real context.
	Flagged bool
	// Score is the fraction of distinct rule terms the note matched.
	Score float64
	// Matched lists the distinct terms found, sorted.
	Matched []string
}

// Evaluate scores a single notes string. Matching is case-insensitive
// substring search, so "arms smuggling" also hits the "smuggling" term.
func (d *Detector) Evaluate(notes string) Result {
	folded := strings.ToLower(notes)

	matched := make(map[string]struct{})
	keywordHit := false
	for _, t := range d.keywords {
		if strings.Contains(folded, t) {
			matched[t] = struct{}{}
			keywordHit = true
		}
	}
	indicatorHit := false
	for _, t := range d.indicators {
		if strings.Contains(folded, t) {
			matched[t] = struct{}{}
			indicatorHit = true
		}
	}

	var res Result
	res.Flagged = keywordHit || (indicatorHit && utf8.RuneCountInString(notes) > d.minContext)
	if len(matched) > 0 {
		res.Score = float64(len(matched)) / float64(d.termCount)
		res.Matched = make([]string, 0, len(matched))
		for t := range matched {
			res.Matched = append(res.Matched, t)
		}
		sort.Strings(res.Matched)
	}
	return res
}

// Annotate returns a copy of events with SmugglingFlag and SmugglingScore
// filled in. The input is not modified.
func (d *Detector) Annotate(events []domain.NormalizedEvent) []domain.NormalizedEvent {
	out := make([]domain.NormalizedEvent, len(events))
	for i, ev := range events {
		res := d.Evaluate(ev.Notes)
		ev.SmugglingFlag = res.Flagged
		ev.SmugglingScore = res.Score
		out[i] = ev
	}
	return out
}
