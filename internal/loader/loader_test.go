package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
	"github.com/couchcryptid/maritime-event-pipeline/internal/source"
)

const validCSV = `Event_Date,Event_Type,Sub_Event_Type,Country,Location,Latitude,Longitude,Notes
3/15/2024 08:30,Battles,Armed clash,Nigeria,Bonny,4.43,7.17,"Pirates attacked a vessel off the coast."
3/16/2024 09:00,Piracy,Boarding,Somalia,Eyl,7.98,49.82,Skiff approached a cargo ship.
`

func writeTemp(t *testing.T, content string) source.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return source.NewLocal(path)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("valid file in source order", func(t *testing.T) {
		res, err := Load(ctx, writeTemp(t, validCSV), Default())
		require.NoError(t, err)
		require.Len(t, res.Records, 2)
		assert.Empty(t, res.Rejects)
		assert.Equal(t, 2, res.RowsRead)

		first := res.Records[0]
		assert.Equal(t, 2, first.Line)
		assert.Equal(t, "3/15/2024 08:30", first.Timestamp)
		assert.Equal(t, "Battles", first.EventType)
		assert.Equal(t, "Armed clash", first.SubType)
		assert.Equal(t, "Nigeria", first.Country)
		assert.Equal(t, "4.43", first.Latitude)
		assert.Equal(t, "7.17", first.Longitude)
		assert.Equal(t, "Pirates attacked a vessel off the coast.", first.Notes)

		assert.Equal(t, 3, res.Records[1].Line)
		assert.Equal(t, "Piracy", res.Records[1].EventType)
	})

	t.Run("missing file is an io error", func(t *testing.T) {
		src := source.NewLocal(filepath.Join(t.TempDir(), "absent.csv"))
		_, err := Load(ctx, src, Default())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrIO)
		assert.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("open failure is an io error", func(t *testing.T) {
		_, err := Load(ctx, failingSource{}, Default())
		assert.ErrorIs(t, err, domain.ErrIO)
	})
}

func TestReadHeader(t *testing.T) {
	t.Run("empty file is a format error", func(t *testing.T) {
		_, err := read(strings.NewReader(""), Default())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrFormat)
		assert.Contains(t, err.Error(), "missing header")
	})

	t.Run("missing required columns named in the error", func(t *testing.T) {
		_, err := read(strings.NewReader("Event_Date,Country\n"), Default())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrFormat)
		assert.Contains(t, err.Error(), "Event_Type")
		assert.Contains(t, err.Error(), "Latitude")
		assert.Contains(t, err.Error(), "Longitude")
	})

	t.Run("case-insensitive header with BOM", func(t *testing.T) {
		csvData := "\uFEFFevent_date,EVENT_TYPE,latitude,longitude\n2024-03-15,Piracy,7.98,49.82\n"
		res, err := read(strings.NewReader(csvData), Default())
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, "2024-03-15", res.Records[0].Timestamp)
		assert.Equal(t, "Piracy", res.Records[0].EventType)
	})

	t.Run("duplicate column is a format error", func(t *testing.T) {
		_, err := read(strings.NewReader("Event_Date,Event_Date,Event_Type,Latitude,Longitude\n"), Default())
		assert.ErrorIs(t, err, domain.ErrFormat)
	})
}

func TestReadRows(t *testing.T) {
	t.Run("ragged row rejected, rest load", func(t *testing.T) {
		csvData := "Event_Date,Event_Type,Latitude,Longitude\n" +
			"2024-03-15,Piracy,7.98,49.82\n" +
			"2024-03-16,Collision\n" +
			"2024-03-17,Grounding,1.29,103.85\n"
		res, err := read(strings.NewReader(csvData), Default())
		require.NoError(t, err)
		require.Len(t, res.Records, 2)
		require.Len(t, res.Rejects, 1)
		assert.Equal(t, 4, res.RowsRead)

		reject := res.Rejects[0]
		assert.Equal(t, 3, reject.Line)
		assert.Equal(t, domain.KindParse, reject.Kind)
		assert.Contains(t, reject.Reason, "expected 4 fields, got 2")

		assert.Equal(t, 2, res.Records[0].Line)
		assert.Equal(t, 4, res.Records[1].Line)
	})

	t.Run("quoted field with commas", func(t *testing.T) {
		csvData := "Event_Date,Event_Type,Latitude,Longitude,Notes\n" +
			"2024-03-15,Piracy,7.98,49.82,\"Skiff approached, fired, withdrew.\"\n"
		res, err := read(strings.NewReader(csvData), Default())
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, "Skiff approached, fired, withdrew.", res.Records[0].Notes)
	})

	t.Run("columns outside the schema land in Extra", func(t *testing.T) {
		csvData := "Event_Date,Event_Type,Latitude,Longitude,Admin1,Source_Scale\n" +
			"2024-03-15,Piracy,7.98,49.82,Nugaal,Subnational\n"
		res, err := read(strings.NewReader(csvData), Default())
		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, "Nugaal", res.Records[0].Extra["Admin1"])
		assert.Equal(t, "Subnational", res.Records[0].Extra["Source_Scale"])
	})

	t.Run("header only yields no records", func(t *testing.T) {
		res, err := read(strings.NewReader("Event_Date,Event_Type,Latitude,Longitude\n"), Default())
		require.NoError(t, err)
		assert.Empty(t, res.Records)
		assert.Zero(t, res.RowsRead)
	})
}

type failingSource struct{}

func (failingSource) Name() string { return "boom.csv" }

func (failingSource) Fingerprint(context.Context) (source.Fingerprint, error) {
	return source.Fingerprint{}, errors.New("stat failed")
}

func (failingSource) Open(context.Context) (io.ReadCloser, error) {
	return nil, errors.New("open failed")
}
