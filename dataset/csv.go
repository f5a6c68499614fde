package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// DefaultPath is the table the trainer reads when nothing else is configured.
const DefaultPath = "accuracy_scores_100_rows.csv"

// naValues are the cell spellings treated as missing.
var naValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"-NaN": true,
	"-nan": true,
	"null": true,
	"NULL": true,
	"None": true,
	"#N/A": true,
	"<NA>": true,
}

// LoadCSV reads the table at path. See ReadCSV.
func LoadCSV(path string, schema Schema) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewParseError(path, 0, "", err)
	}
	defer f.Close()

	return ReadCSV(f, path, schema)
}

// ReadCSV parses a headed CSV table. Required columns are located by header
// name, so their order does not matter and extra columns are ignored. A row
// missing any required value is dropped, and the kept rows are numbered
// 0..n-1 in file order.
func ReadCSV(r io.Reader, source string, schema Schema) (*Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewParseError(source, 0, "", errors.New("empty file: no header row"))
	}
	if err != nil {
		return nil, errors.NewParseError(source, 1, "", err)
	}

	positions, err := locateColumns(source, header, schema)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Schema: schema, Source: source}
	p := len(schema.FeatureColumns)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewParseError(source, lineOf(err), "", err)
		}
		line, _ := reader.FieldPos(0)

		values, complete, err := parseRecord(source, line, record, positions, schema)
		if err != nil {
			return nil, err
		}
		if !complete {
			ds.Dropped++
			continue
		}
		ds.Rows = append(ds.Rows, Row{
			Index:    len(ds.Rows),
			Features: values[:p:p],
			Target:   values[p],
		})
	}

	if ds.Len() == 0 {
		return nil, errors.NewModelError("dataset.ReadCSV", "no complete rows in "+source, errors.ErrEmptyData)
	}
	return ds, nil
}

func locateColumns(source string, header []string, schema Schema) ([]int, error) {
	index := make(map[string]int, len(header))
	found := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		found[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var (
		missing   []string
		positions []int
	)
	for _, col := range schema.Columns() {
		i, ok := index[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		positions = append(positions, i)
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaError(source, missing, found)
	}
	return positions, nil
}

// parseRecord returns the required values in schema order. complete is false
// when any of them is missing.
func parseRecord(source string, line int, record []string, positions []int, schema Schema) ([]float64, bool, error) {
	cols := schema.Columns()
	values := make([]float64, len(positions))
	complete := true
	for k, pos := range positions {
		if pos >= len(record) {
			complete = false
			continue
		}
		cell := strings.TrimSpace(record[pos])
		if naValues[cell] {
			complete = false
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false, errors.NewParseError(source, line, cols[k], err)
		}
		if math.IsNaN(v) {
			complete = false
			continue
		}
		values[k] = v
	}
	return values, complete, nil
}

func lineOf(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Line
	}
	return 0
}
