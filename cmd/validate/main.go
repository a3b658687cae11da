// Command validate runs integrity checks over a maritime events CSV. It
// replays the file through the same loader, normalizer, deduplication,
// relevance filter, and detector the service uses, verifies the invariants
// each stage guarantees, and reports data-quality findings (rejected rows,
// duplicates, exclusions) as notes without failing on them. A non-zero exit
// means a stage produced output that violates its own contract.
//
// Usage:
//
//	go run ./cmd/validate -csv data/mock/maritime_events_sample.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/maritime-event-pipeline/internal/detect"
	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
	"github.com/couchcryptid/maritime-event-pipeline/internal/loader"
	"github.com/couchcryptid/maritime-event-pipeline/internal/source"
)

// maxListed caps per-row detail in notes; counts are always complete.
const maxListed = 10

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to the maritime events CSV to validate")
	vocabPath := flag.String("vocab", "", "optional YAML event-type vocabulary overlay")
	rulesPath := flag.String("rules", "", "optional YAML detection rules overlay")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *vocabPath, *rulesPath); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, vocabPath, rulesPath string) int {
	fmt.Println("=== Maritime Event Data Validation ===")
	fmt.Println()

	vocab, detector, err := loadOverlays(vocabPath, rulesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	res, err := loader.Load(context.Background(), source.NewLocal(csvPath), loader.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", csvPath, err)
		return 1
	}

	cleaned := domain.CleanRecords(res.Records, vocab)
	kept, excluded := domain.FilterMaritime(cleaned.Events)
	annotated := detector.Annotate(kept)

	// ── Run validation phases ──
	phases := []*phase{
		validateStructure(res),
		validateNormalization(res, cleaned),
		validateDeduplication(cleaned),
		validateRelevance(annotated, excluded, len(cleaned.Events)),
		validateDetection(detector, annotated),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d read, %d kept, %d rejected, %d duplicates, %d excluded, %d flagged\n",
		res.RowsRead, len(annotated), len(res.Rejects)+len(cleaned.Rejects),
		cleaned.Duplicates, len(excluded), flaggedCount(annotated))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// loadOverlays resolves the vocabulary and detector, applying YAML overlays
// the same way the service does at startup.
func loadOverlays(vocabPath, rulesPath string) (*domain.Vocabulary, *detect.Detector, error) {
	vocab := domain.DefaultVocabulary()
	if vocabPath != "" {
		v, err := domain.LoadVocabulary(vocabPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load vocabulary: %w", err)
		}
		vocab = v
	}

	detector := detect.Default()
	if rulesPath != "" {
		rules, err := detect.LoadRules(rulesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load detection rules: %w", err)
		}
		d, err := detect.New(rules)
		if err != nil {
			return nil, nil, fmt.Errorf("build detector: %w", err)
		}
		detector = d
	}
	return vocab, detector, nil
}

// ── Phase 1: Structure ──
// Every physical row must be accounted for: parsed into a record or rejected
// with a line number and reason.

func validateStructure(res loader.Result) *phase {
	p := &phase{name: "Phase 1: Structure (CSV rows)"}

	if got := len(res.Records) + len(res.Rejects); got != res.RowsRead {
		p.errorf("row accounting: read %d rows, records+rejects = %d", res.RowsRead, got)
	}
	for i := range res.Records {
		if res.Records[i].Line < 2 {
			p.errorf("record has line %d, data rows start at 2", res.Records[i].Line)
		}
	}
	for _, r := range res.Rejects {
		if r.Kind != domain.KindParse {
			p.errorf("line %d: structural reject has kind %q, want %q", r.Line, r.Kind, domain.KindParse)
		}
		if r.Reason == "" {
			p.errorf("line %d: structural reject has empty reason", r.Line)
		}
	}

	if n := len(res.Rejects); n > 0 {
		fmt.Printf("  Note: %d structurally invalid row(s):\n", n)
		for i, r := range res.Rejects {
			if i == maxListed {
				fmt.Printf("    ... and %d more\n", n-maxListed)
				break
			}
			fmt.Printf("    line %d: %s\n", r.Line, r.Reason)
		}
	}
	return p
}

// ── Phase 2: Normalization ──
// Kept events must satisfy the typed contract: UTC timestamps, coordinates
// in bounds, canonical types, reproducible IDs. Rejects must carry a line,
// a kind, and a reason.

func validateNormalization(res loader.Result, cleaned domain.CleanResult) *phase {
	p := &phase{name: "Phase 2: Normalization (types and bounds)"}

	accounted := len(cleaned.Events) + len(cleaned.Rejects) + cleaned.Duplicates
	if accounted != len(res.Records) {
		p.errorf("event accounting: %d records in, %d events+rejects+duplicates out", len(res.Records), accounted)
	}

	for i := range cleaned.Events {
		checkEvent(p, &cleaned.Events[i])
	}

	for _, r := range cleaned.Rejects {
		if r.Kind != domain.KindParse && r.Kind != domain.KindValidation {
			p.errorf("line %d: reject kind %q, want parse or validation", r.Line, r.Kind)
		}
		if r.Line < 2 {
			p.errorf("reject points at line %d, data rows start at 2", r.Line)
		}
		if r.Reason == "" {
			p.errorf("line %d: reject has empty reason", r.Line)
		}
	}

	if n := len(cleaned.Rejects); n > 0 {
		fmt.Printf("  Note: %d rejected row(s):\n", n)
		for i, r := range cleaned.Rejects {
			if i == maxListed {
				fmt.Printf("    ... and %d more\n", n-maxListed)
				break
			}
			fmt.Printf("    line %d: %s: %s\n", r.Line, r.Field, r.Reason)
		}
	}
	return p
}

func checkEvent(p *phase, ev *domain.NormalizedEvent) {
	pf := func(format string, args ...any) {
		p.errorf("event %s: "+format, append([]any{ev.ID}, args...)...)
	}

	if ev.ID == "" {
		p.errorf("event with empty ID at %s", ev.Timestamp.Format(time.RFC3339))
	} else if ev.EventType != "" && !strings.HasPrefix(ev.ID, string(ev.EventType)+"-") {
		pf("id missing type prefix %q-", ev.EventType)
	}
	if got := domain.EventID(*ev); got != ev.ID {
		pf("id not reproducible: recomputed %s", got)
	}

	if ev.Timestamp.IsZero() {
		pf("timestamp is zero")
	} else if ev.Timestamp.Location() != time.UTC {
		pf("timestamp zone is %s, want UTC", ev.Timestamp.Location())
	}
	if ev.Latitude < domain.MinLatitude || ev.Latitude > domain.MaxLatitude {
		pf("latitude %g outside [%g, %g]", ev.Latitude, domain.MinLatitude, domain.MaxLatitude)
	}
	if ev.Longitude < domain.MinLongitude || ev.Longitude > domain.MaxLongitude {
		pf("longitude %g outside [%g, %g]", ev.Longitude, domain.MinLongitude, domain.MaxLongitude)
	}
	if !knownType(ev.EventType) {
		pf("event type %q not in canonical vocabulary", ev.EventType)
	}
	if ev.ProcessedAt.IsZero() {
		pf("processed_at is zero")
	}
}

func knownType(t domain.EventType) bool {
	for _, k := range domain.KnownEventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ── Phase 3: Deduplication ──
// No two surviving events may share an identity key; first occurrence wins.

func validateDeduplication(cleaned domain.CleanResult) *phase {
	p := &phase{name: "Phase 3: Deduplication (identity keys)"}

	seen := map[string]string{}
	for i := range cleaned.Events {
		ev := &cleaned.Events[i]
		key := domain.DedupKey(*ev)
		if prev, dup := seen[key]; dup {
			p.errorf("events %s and %s share identity key %s", prev, ev.ID, key)
			continue
		}
		seen[key] = ev.ID
	}

	if cleaned.Duplicates > 0 {
		fmt.Printf("  Note: %d duplicate row(s) dropped, first occurrence kept\n", cleaned.Duplicates)
	}
	return p
}

// ── Phase 4: Relevance ──
// Kept events must pass every maritime rule and carry the ocean their
// coordinates resolve to; excluded events must name a known reason.

func validateRelevance(annotated []domain.NormalizedEvent, excluded []domain.ExcludedEvent, total int) *phase {
	p := &phase{name: "Phase 4: Relevance (maritime filter)"}

	if got := len(annotated) + len(excluded); got != total {
		p.errorf("relevance accounting: %d events in, %d kept+excluded out", total, got)
	}

	for i := range annotated {
		checkKeptRelevance(p, &annotated[i])
	}

	validReasons := map[string]bool{
		domain.ExcludeNoKeywords:     true,
		domain.ExcludeTownship:       true,
		domain.ExcludeLandlocked:     true,
		domain.ExcludeLandEvent:      true,
		domain.ExcludeOutsideOceans:  true,
		domain.ExcludeMissingCountry: true,
	}
	reasonCounts := map[string]int{}
	for i := range excluded {
		ex := &excluded[i]
		if !validReasons[ex.Reason] {
			p.errorf("event %s: unknown exclusion reason %q", ex.Event.ID, ex.Reason)
		}
		if ex.Event.Ocean != "" {
			p.errorf("event %s: excluded but ocean is set to %q", ex.Event.ID, ex.Event.Ocean)
		}
		reasonCounts[ex.Reason]++
	}

	if len(excluded) > 0 {
		fmt.Printf("  Note: %d excluded event(s):", len(excluded))
		for _, reason := range sortedKeys(reasonCounts) {
			fmt.Printf(" %s=%d", reason, reasonCounts[reason])
		}
		fmt.Println()
	}
	return p
}

func checkKeptRelevance(p *phase, ev *domain.NormalizedEvent) {
	pf := func(format string, args ...any) {
		p.errorf("event %s: "+format, append([]any{ev.ID}, args...)...)
	}

	if !domain.HasMaritimeKeywords(ev.Notes) {
		pf("kept without maritime keywords in notes")
	}
	if strings.Contains(strings.ToLower(ev.Notes), "township") {
		pf("kept despite township reference")
	}
	if domain.IsLandlocked(ev.Country) {
		pf("kept despite landlocked country %q", ev.Country)
	}
	if domain.IsLandEvent(ev.RawType, ev.SubType) {
		pf("kept despite land event type %q", ev.RawType)
	}
	if ev.Country == "" {
		pf("kept with missing country")
	}
	if want := domain.OceanFor(ev.Latitude, ev.Longitude); want == "" {
		pf("kept outside ocean regions (%.2f, %.2f)", ev.Latitude, ev.Longitude)
	} else if ev.Ocean != want {
		pf("ocean is %q, coordinates resolve to %q", ev.Ocean, want)
	}
}

// ── Phase 5: Detection ──
// Flags and scores must be reproducible from the notes alone, scores stay in
// [0, 1], and a flagged event always matched at least one term.

func validateDetection(d *detect.Detector, annotated []domain.NormalizedEvent) *phase {
	p := &phase{name: "Phase 5: Detection (smuggling rules)"}

	for i := range annotated {
		ev := &annotated[i]
		res := d.Evaluate(ev.Notes)
		if res.Flagged != ev.SmugglingFlag {
			p.errorf("event %s: flag %v not reproducible, re-evaluated %v", ev.ID, ev.SmugglingFlag, res.Flagged)
		}
		if !floatEq(res.Score, ev.SmugglingScore) {
			p.errorf("event %s: score %g not reproducible, re-evaluated %g", ev.ID, ev.SmugglingScore, res.Score)
		}
		if ev.SmugglingScore < 0 || ev.SmugglingScore > 1 {
			p.errorf("event %s: score %g outside [0, 1]", ev.ID, ev.SmugglingScore)
		}
		if ev.SmugglingFlag && ev.SmugglingScore == 0 {
			p.errorf("event %s: flagged with zero score", ev.ID)
		}
	}

	if n := flaggedCount(annotated); n > 0 {
		fmt.Printf("  Note: %d event(s) flagged as likely smuggling\n", n)
	}
	return p
}

// ── Helpers ──

func flaggedCount(events []domain.NormalizedEvent) int {
	n := 0
	for i := range events {
		if events[i].SmugglingFlag {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
