package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/lidarml/pkg/errors"
)

func TestReadCSV(t *testing.T) {
	t.Run("reads complete rows in file order", func(t *testing.T) {
		in := "Accuracy,Score,Goal Score\n0.9,0.8,85\n0.5,0.4,50\n"
		ds, err := ReadCSV(strings.NewReader(in), "mem.csv", DefaultSchema())
		require.NoError(t, err)

		require.Equal(t, 2, ds.Len())
		assert.Equal(t, 0, ds.Dropped)
		assert.Equal(t, []float64{0.9, 0.8}, ds.Rows[0].Features)
		assert.Equal(t, 85.0, ds.Rows[0].Target)
		assert.Equal(t, []float64{85, 50}, ds.Targets())
	})

	t.Run("columns located by header name", func(t *testing.T) {
		in := "id,Goal Score,Score,Accuracy,note\n1,70,0.6,0.7,x\n"
		ds, err := ReadCSV(strings.NewReader(in), "mem.csv", DefaultSchema())
		require.NoError(t, err)

		require.Equal(t, 1, ds.Len())
		assert.Equal(t, []float64{0.7, 0.6}, ds.Rows[0].Features)
		assert.Equal(t, 70.0, ds.Rows[0].Target)
	})

	t.Run("byte order mark before the header", func(t *testing.T) {
		in := "\uFEFFAccuracy,Score,Goal Score\n0.9,0.8,85\n"
		ds, err := ReadCSV(strings.NewReader(in), "bom.csv", DefaultSchema())
		require.NoError(t, err)

		require.Equal(t, 1, ds.Len())
		assert.Equal(t, []float64{0.9, 0.8}, ds.Rows[0].Features)
		assert.Equal(t, 85.0, ds.Rows[0].Target)
	})

	t.Run("drops incomplete rows and renumbers", func(t *testing.T) {
		in := strings.Join([]string{
			"Accuracy,Score,Goal Score",
			"0.1,0.2,10",
			",0.3,20",
			"0.4,NA,30",
			"0.5,0.6,",
			"0.7,0.8,NaN",
			"0.9,1.0",
			"0.2,0.3,40",
		}, "\n")
		ds, err := ReadCSV(strings.NewReader(in), "mem.csv", DefaultSchema())
		require.NoError(t, err)

		require.Equal(t, 2, ds.Len())
		assert.Equal(t, 5, ds.Dropped)
		for i, r := range ds.Rows {
			assert.Equal(t, i, r.Index)
		}
		assert.Equal(t, []float64{10, 40}, ds.Targets())
	})

	t.Run("missing column is a schema error", func(t *testing.T) {
		in := "Accuracy,Goal Score\n0.1,10\n"
		_, err := ReadCSV(strings.NewReader(in), "mem.csv", DefaultSchema())
		require.Error(t, err)

		var se *errors.SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, []string{ColumnScore}, se.Missing)
	})

	t.Run("non-numeric cell is a parse error", func(t *testing.T) {
		in := "Accuracy,Score,Goal Score\n0.1,0.2,10\nabc,0.2,10\n"
		_, err := ReadCSV(strings.NewReader(in), "mem.csv", DefaultSchema())
		require.Error(t, err)

		var pe *errors.ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, 3, pe.Line)
		assert.Equal(t, ColumnAccuracy, pe.Column)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""), "mem.csv", DefaultSchema())
		var pe *errors.ParseError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("header only", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("Accuracy,Score,Goal Score\n"), "mem.csv", DefaultSchema())
		assert.ErrorIs(t, err, errors.ErrEmptyData)
	})
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte("Accuracy,Score,Goal Score\n0.3,0.4,33\n"), 0o644))

	ds, err := LoadCSV(path, DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, path, ds.Source)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "absent.csv"), DefaultSchema())
	var pe *errors.ParseError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
