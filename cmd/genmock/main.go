// Command genmock writes the deterministic maritime sample CSV used by the
// test suites and for local development. The rows are chosen so that every
// pipeline outcome appears: kept events across four months and three oceans,
// an exact duplicate, one row per exclusion reason, parse and validation
// rejects, and a structurally short row. After writing the file it replays it
// through the real pipeline stages so the printed counts match what the
// pipeline produces.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/maritime_events_sample.csv
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/maritime-event-pipeline/internal/detect"
	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
	"github.com/couchcryptid/maritime-event-pipeline/internal/loader"
	"github.com/couchcryptid/maritime-event-pipeline/internal/source"
)

var header = []string{
	"Event_Date", "Event_Type", "Sub_Event_Type", "Country", "Location",
	"Latitude", "Longitude", "Notes", "Fatalities",
}

// rows is the sample in source order. Line numbers quoted in test assertions
// count the header as line 1, so the first row here lands on line 2.
var rows = [][]string{
	// Kept: piracy in the Indian and Atlantic, smuggling off Batam (the note
	// keywords flag it), a collision and a rescue in the Pacific.
	{"03/15/2024 08:30", "Piracy", "Armed boarding", "Somalia", "Eyl", "7.98", "49.82",
		"Armed men boarded a fishing vessel off the coast and stole the catch before fleeing toward shore.", "0"},
	{"03/18/2024 14:00", "Piracy", "Hijacking", "Nigeria", "Bonny Island", "4.45", "7.17",
		"Gunmen hijacked a supply boat near the harbor entrance and demanded ransom for the crew.", "2"},
	{"04/02/2024 06:15", "Smuggling", "Contraband seizure", "Indonesia", "Batam", "1.08", "104.03",
		"Customs intercepted a speed boat carrying contraband cigarettes; three suspects were arrested at sea.", "0"},
	{"04/20/2024 11:45", "Collision", "Vessel collision", "United States", "Long Beach", "33.74", "-118.22",
		"A container ship collided with a tug near the port breakwater; no injuries reported.", "0"},
	{"04/22/2024 09:00", "Distress", "Search and rescue", "Philippines", "Cebu Strait", "10.31", "123.89",
		"Coast guard rescued twelve fishermen after their boat capsized in rough seas.", "1"},
	{"05/05/2024 17:30", "Piracy", "Armed boarding", "Somalia", "Hobyo", "5.35", "48.53",
		"Skiffs approached a cargo vessel; warning shots fired and the attack was repelled by naval escort.", "0"},
	// Exact duplicate of the first row: same minute, coordinates, and type.
	{"03/15/2024 08:30", "Piracy", "Armed robbery", "Somalia", "Eyl", "7.98", "49.82",
		"Duplicate report of the boarding incident filed by a second observer at the port.", "0"},
	// Excluded after normalization, one row per reason.
	{"05/10/2024 12:00", "Battle", "Armed clash", "Kenya", "Garissa", "-0.45", "39.65",
		"Militants exchanged fire with security forces near the town market.", "4"},
	{"05/12/2024 15:20", "Riots", "Violent demonstration", "South Africa", "Cape Town", "-33.92", "18.42",
		"Protesters from the coastal township blocked the harbour road with burning tires.", "0"},
	{"05/15/2024 10:10", "Battle", "Armed clash", "Ethiopia", "Bahir Dar", "11.59", "37.39",
		"Fighting spread to the lake port district where ferry boats were set alight.", "3"},
	{"05/18/2024 13:00", "Protests", "Peaceful protest", "Chile", "Valparaiso", "-33.05", "-71.62",
		"Dock workers marched through the port demanding better wages.", "0"},
	{"05/20/2024 07:45", "Piracy", "Armed boarding", "Russia", "Caspian coast", "42.0", "50.5",
		"Gunmen boarded a fishing boat on the inland sea and robbed the crew.", "0"},
	{"05/22/2024 19:30", "Distress", "Search and rescue", "", "Mediterranean", "35.2", "14.5",
		"A migrant boat issued a distress call; a merchant ship diverted to assist.", "0"},
	// Row-level rejects: latitude out of range, unparseable date, non-numeric
	// longitude, and a structurally short row.
	{"06/01/2024 08:00", "Piracy", "Armed boarding", "Somalia", "Eyl", "200.0", "49.82",
		"Boarding attempt reported against a coastal freighter.", "0"},
	{"not a date", "Collision", "Vessel collision", "Spain", "Algeciras", "36.13", "-5.45",
		"Two ships collided in the strait near the port anchorage.", "0"},
	{"06/03/2024 12:00", "Collision", "Vessel collision", "Spain", "Algeciras", "36.13", "east",
		"A ferry clipped a moored boat while leaving the port.", "0"},
	{"06/05/2024 09:30", "Grounding", "Ran aground", "Greece", "Santorini"},
	// Kept: second flagged smuggling event, Atlantic.
	{"06/10/2024 04:50", "Smuggling", "Contraband seizure", "Morocco", "Tangier", "35.78", "-5.81",
		"Patrol seized packages of narcotics concealed aboard a fishing boat off the coast.", "0"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", filepath.Join("data", "mock", "maritime_events_sample.csv"), "output path for the sample CSV")
	flag.Parse()

	if err := writeCSV(*out); err != nil {
		return fmt.Errorf("writing sample: %w", err)
	}
	log.Printf("wrote %d data rows: %s", len(rows), *out)

	return printStats(*out)
}

func writeCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// printStats replays the written file through the real loader, normalizer,
// relevance filter, and detector, then prints the counts the test suites
// assert on.
func printStats(path string) error {
	res, err := loader.Load(context.Background(), source.NewLocal(path), loader.Default())
	if err != nil {
		return fmt.Errorf("replaying sample: %w", err)
	}

	cleaned := domain.CleanRecords(res.Records, domain.DefaultVocabulary())
	kept, excluded := domain.FilterMaritime(cleaned.Events)
	kept = detect.Default().Annotate(kept)

	rejects := make([]domain.RejectedRow, 0, len(res.Rejects)+len(cleaned.Rejects))
	rejects = append(rejects, res.Rejects...)
	rejects = append(rejects, cleaned.Rejects...)

	kinds := map[domain.ErrorKind]int{}
	for _, r := range rejects {
		kinds[r.Kind]++
	}
	reasons := map[string]int{}
	for _, ex := range excluded {
		reasons[ex.Reason]++
	}

	flagged := 0
	types := map[domain.EventType]int{}
	oceans := map[string]int{}
	months := map[string]int{}
	for _, ev := range kept {
		if ev.SmugglingFlag {
			flagged++
		}
		types[ev.EventType]++
		oceans[ev.Ocean]++
		months[ev.Timestamp.Format("2006-01")]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Rows read: %d\n", res.RowsRead)
	fmt.Printf("Kept events: %d\n", len(kept))
	fmt.Printf("Duplicates dropped: %d\n", cleaned.Duplicates)
	fmt.Printf("Rejects: %d (parse=%d, validation=%d)\n",
		len(rejects), kinds[domain.KindParse], kinds[domain.KindValidation])
	fmt.Printf("Flagged smuggling: %d\n", flagged)
	printCounts("Excluded", reasons)
	printCounts("By type", types)
	printCounts("By ocean", oceans)
	printCounts("By month", months)
	return nil
}

func printCounts[K ~string](label string, counts map[K]int) {
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	fmt.Printf("%s:", label)
	for _, k := range keys {
		fmt.Printf(" %s=%d", string(k), counts[k])
	}
	fmt.Println()
}
