// Package dataset loads the fixed-schema training table and exposes it as
// gonum matrices.
package dataset

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

// Default column names of the Goal Score table.
const (
	ColumnAccuracy  = "Accuracy"
	ColumnScore     = "Score"
	ColumnGoalScore = "Goal Score"
)

// Schema names the feature columns, in model input order, and the target.
type Schema struct {
	FeatureColumns []string `yaml:"feature_columns"`
	TargetColumn   string   `yaml:"target_column"`
}

// DefaultSchema is Accuracy, Score -> Goal Score.
func DefaultSchema() Schema {
	return Schema{
		FeatureColumns: []string{ColumnAccuracy, ColumnScore},
		TargetColumn:   ColumnGoalScore,
	}
}

// Columns returns every required column, features first.
func (s Schema) Columns() []string {
	cols := make([]string, 0, len(s.FeatureColumns)+1)
	cols = append(cols, s.FeatureColumns...)
	return append(cols, s.TargetColumn)
}

// Validate rejects schemas without features, without a target, or with
// duplicate column names.
func (s Schema) Validate() error {
	if len(s.FeatureColumns) == 0 {
		return errors.NewValidationError("feature_columns", "at least one feature column is required", s.FeatureColumns)
	}
	if s.TargetColumn == "" {
		return errors.NewValidationError("target_column", "is required", s.TargetColumn)
	}
	seen := make(map[string]bool, len(s.FeatureColumns)+1)
	for _, c := range s.Columns() {
		if c == "" {
			return errors.NewValidationError("feature_columns", "column names must not be empty", s.FeatureColumns)
		}
		if seen[c] {
			return errors.NewValidationError("feature_columns", "duplicate column", c)
		}
		seen[c] = true
	}
	return nil
}

// Row is one complete record. Index is its position in the cleaned dataset.
type Row struct {
	Index    int
	Features []float64
	Target   float64
}

// Dataset is an ordered, contiguously indexed sequence of complete rows.
type Dataset struct {
	Schema Schema
	Rows   []Row
	// Dropped counts source rows discarded because a required field was missing.
	Dropped int
	// Source is where the rows were read from, for error messages and logs.
	Source string
}

// New builds a dataset from rows, renumbering them 0..n-1.
func New(schema Schema, rows []Row) *Dataset {
	ds := &Dataset{Schema: schema, Rows: make([]Row, len(rows))}
	for i, r := range rows {
		ds.Rows[i] = Row{
			Index:    i,
			Features: append([]float64(nil), r.Features...),
			Target:   r.Target,
		}
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// NFeatures returns the number of feature columns.
func (d *Dataset) NFeatures() int {
	return len(d.Schema.FeatureColumns)
}

// X returns the n×p feature matrix.
func (d *Dataset) X() *mat.Dense {
	p := d.NFeatures()
	if d.Len() == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, 0, d.Len()*p)
	for _, r := range d.Rows {
		data = append(data, r.Features...)
	}
	return mat.NewDense(d.Len(), p, data)
}

// Y returns the n×1 target matrix.
func (d *Dataset) Y() *mat.Dense {
	if d.Len() == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(d.Len(), 1, d.Targets())
}

// Targets returns a copy of the target column.
func (d *Dataset) Targets() []float64 {
	y := make([]float64, d.Len())
	for i, r := range d.Rows {
		y[i] = r.Target
	}
	return y
}

// Column returns a copy of the named feature or target column.
func (d *Dataset) Column(name string) ([]float64, error) {
	if name == d.Schema.TargetColumn {
		return d.Targets(), nil
	}
	for j, c := range d.Schema.FeatureColumns {
		if c == name {
			col := make([]float64, d.Len())
			for i, r := range d.Rows {
				col[i] = r.Features[j]
			}
			return col, nil
		}
	}
	return nil, errors.NewSchemaError(d.Source, []string{name}, d.Schema.Columns())
}

// TargetRange returns the smallest and largest target value.
func (d *Dataset) TargetRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range d.Rows {
		lo = math.Min(lo, r.Target)
		hi = math.Max(hi, r.Target)
	}
	return lo, hi
}

// Subset returns the rows at indices, in that order, renumbered from zero.
// The receiver is not modified.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	rows := make([]Row, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, errors.NewValueError("Dataset.Subset", "row index out of range")
		}
		rows[i] = d.Rows[idx]
	}
	sub := New(d.Schema, rows)
	sub.Source = d.Source
	return sub, nil
}
