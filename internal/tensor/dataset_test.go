package tensor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatasetSplit(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	preds, resps := WindowSeries(series, 3)
	d := NewDataset(preds, resps)
	require.Equal(t, 8, d.NumExamples())

	train, test := d.Split(0.75)
	require.Equal(t, 6, train.NumExamples())
	require.Equal(t, 2, test.NumExamples())

	// First test example is the seventh original example.
	for k := 0; k < 3; k++ {
		require.Equal(t, preds.Vector(6, k), test.Predictors.Vector(0, k))
		require.Equal(t, resps.Vector(6, k), test.Responses.Vector(0, k))
	}

	// The split copies: mutating the split must not touch the source.
	train.Predictors.Set(0, 0, 0, -99)
	require.Equal(t, 1.0, preds.At(0, 0, 0))
}

func TestDatasetSplitDegenerate(t *testing.T) {
	preds, resps := WindowSeries([]float64{1, 2, 3, 4}, 2)
	d := NewDataset(preds, resps)

	train, test := d.Split(1.0)
	require.Equal(t, 2, train.NumExamples())
	require.Equal(t, 0, test.NumExamples())

	train, test = d.Split(0)
	require.Equal(t, 0, train.NumExamples())
	require.Equal(t, 2, test.NumExamples())
}

func TestNewDatasetRejectsMismatch(t *testing.T) {
	require.Panics(t, func() { NewDataset(New(1, 3, 2), New(1, 2, 2)) })
}

func TestSeriesCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	series := []float64{0.5, -1.25, 3, 0}

	require.NoError(t, SaveSeriesCSV(path, "value", series))
	loaded, err := LoadSeriesCSV(path, 0, true)
	require.NoError(t, err)
	require.InDeltaSlice(t, series, loaded, 1e-6)
}

func TestLoadSeriesCSVErrors(t *testing.T) {
	_, err := LoadSeriesCSV(filepath.Join(t.TempDir(), "missing.csv"), 0, false)
	require.ErrorContains(t, err, "failed to open file")

	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, SaveSeriesCSV(path, "value", nil))
	_, err = LoadSeriesCSV(path, 0, true)
	require.ErrorContains(t, err, "no data rows")

	_, err = LoadSeriesCSV(path, 3, false)
	require.ErrorContains(t, err, "no column 3")
}

func TestNormalizeSeries(t *testing.T) {
	norm, min, max := NormalizeSeries([]float64{2, 4, 6})
	require.Equal(t, 2.0, min)
	require.Equal(t, 6.0, max)
	require.Equal(t, []float64{0, 0.5, 1}, norm)

	for _, v := range []float64{0, 0.5, 1} {
		orig := Denormalize(v, min, max)
		require.InDelta(t, v*4+2, orig, 1e-12)
	}

	// Constant series normalizes to zeros instead of dividing by zero.
	norm, _, _ = NormalizeSeries([]float64{3, 3, 3})
	require.Equal(t, []float64{0, 0, 0}, norm)
}
