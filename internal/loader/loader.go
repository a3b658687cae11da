// Package loader reads maritime event CSV files into raw records. The header
// is checked against a typed schema exactly once; file-level problems (an
// unreadable source, a header missing required columns) abort the load,
// while structurally broken data rows become row-level rejects so one bad
// line cannot kill a whole file.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
	"github.com/couchcryptid/maritime-event-pipeline/internal/source"
)

// Result holds the outcome of one load: records in source order, plus
// rejects for rows the CSV layer could not deliver intact.
type Result struct {
	Records []domain.RawEventRecord
	Rejects []domain.RejectedRow

	// RowsRead counts all data rows encountered, including rejected ones.
	RowsRead int
}

// Load reads the dataset from src and produces raw records in source order.
// It fails with an IOError when the source cannot be opened or read, and
// with a FormatError when the header is absent or missing required columns.
func Load(ctx context.Context, src source.Source, schema Schema) (Result, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return Result{}, domain.NewIOError(fmt.Sprintf("open dataset %s", src.Name()), err)
	}
	defer rc.Close()

	return read(rc, schema)
}

// read parses CSV from r. Split from Load so tests can feed byte buffers
// without a Source.
func read(r io.Reader, schema Schema) (Result, error) {
	cr := csv.NewReader(r)
	// Field-count validation is ours: a short or long row becomes a reject
	// with its line number instead of a fatal reader error.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Result{}, domain.NewFormatError("empty file: missing header row", nil)
		}
		return Result{}, domain.NewFormatError("unreadable header row", err)
	}

	cm, err := schema.resolve(header)
	if err != nil {
		return Result{}, err
	}

	var res Result
	line := 1 // header
	for {
		line++
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Malformed CSV (e.g. a bare quote). The reader resumes at the
			// next line, so record the reject and keep going.
			res.RowsRead++
			res.Rejects = append(res.Rejects, domain.RejectedRow{
				Line:   line,
				Kind:   domain.KindParse,
				Reason: fmt.Sprintf("malformed CSV row: %v", err),
				Raw:    domain.RawEventRecord{Line: line},
			})
			continue
		}

		res.RowsRead++
		if len(row) != cm.width {
			res.Rejects = append(res.Rejects, domain.RejectedRow{
				Line:   line,
				Kind:   domain.KindParse,
				Reason: fmt.Sprintf("expected %d fields, got %d", cm.width, len(row)),
				Raw:    domain.RawEventRecord{Line: line},
			})
			continue
		}

		res.Records = append(res.Records, domain.RawEventRecord{
			Line:       line,
			Timestamp:  cm.field(row, ColEventDate),
			EventType:  cm.field(row, ColEventType),
			Latitude:   cm.field(row, ColLatitude),
			Longitude:  cm.field(row, ColLongitude),
			SubType:    cm.field(row, ColSubType),
			Country:    cm.field(row, ColCountry),
			Location:   cm.field(row, ColLocation),
			Notes:      cm.field(row, ColNotes),
			Fatalities: cm.field(row, ColFatalities),
			Extra:      cm.extras(row),
		})
	}

	return res, nil
}
