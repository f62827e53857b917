package tensor

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Dataset pairs a predictor cube with its response cube.
type Dataset struct {
	Predictors *Cube
	Responses  *Cube
}

// NewDataset wraps two cubes holding the same examples.
func NewDataset(predictors, responses *Cube) *Dataset {
	if predictors.Cols() != responses.Cols() {
		panic(fmt.Sprintf("tensor: %d predictor examples paired with %d responses", predictors.Cols(), responses.Cols()))
	}
	return &Dataset{Predictors: predictors, Responses: responses}
}

// NumExamples returns the number of paired examples.
func (d *Dataset) NumExamples() int { return d.Predictors.Cols() }

// Split divides the dataset into two by example, the first holding the given
// ratio (0 to 1) of the examples.
func (d *Dataset) Split(ratio float64) (train, test *Dataset) {
	n := d.NumExamples()
	splitIdx := int(float64(n) * ratio)
	if splitIdx < 0 {
		splitIdx = 0
	}
	if splitIdx > n {
		splitIdx = n
	}
	train = &Dataset{
		Predictors: copyExamples(d.Predictors, 0, splitIdx),
		Responses:  copyExamples(d.Responses, 0, splitIdx),
	}
	test = &Dataset{
		Predictors: copyExamples(d.Predictors, splitIdx, n),
		Responses:  copyExamples(d.Responses, splitIdx, n),
	}
	return train, test
}

// copyExamples extracts the example range [from, to) into a fresh cube.
func copyExamples(c *Cube, from, to int) *Cube {
	rows, _, slices := c.Dims()
	out := New(rows, to-from, slices)
	for j := from; j < to; j++ {
		for k := 0; k < slices; k++ {
			copy(out.Vector(j-from, k), c.Vector(j, k))
		}
	}
	return out
}

// LoadSeriesCSV reads one numeric column from a CSV file as a scalar series.
func LoadSeriesCSV(filename string, col int, hasHeader bool) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	startRow := 0
	if hasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, fmt.Errorf("csv file has no data rows")
	}

	series := make([]float64, 0, len(records)-startRow)
	for i := startRow; i < len(records); i++ {
		if col >= len(records[i]) {
			return nil, fmt.Errorf("row %d has no column %d", i, col)
		}
		v, err := strconv.ParseFloat(records[i][col], 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse value at row %d, col %d: %w", i, col, err)
		}
		series = append(series, v)
	}
	return series, nil
}

// SaveSeriesCSV writes a scalar series to a single-column CSV file.
func SaveSeriesCSV(filename, header string, series []float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{header}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, v := range series {
		if err := writer.Write([]string{strconv.FormatFloat(v, 'f', 6, 64)}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

// NormalizeSeries rescales a series to [0, 1] with min-max normalization,
// returning the observed bounds so predictions can be mapped back. A constant
// series maps to all zeros.
func NormalizeSeries(series []float64) (normalized []float64, min, max float64) {
	if len(series) == 0 {
		return nil, 0, 0
	}
	min, max = series[0], series[0]
	for _, v := range series {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	normalized = make([]float64, len(series))
	if diff := max - min; diff != 0 {
		for i, v := range series {
			normalized[i] = (v - min) / diff
		}
	}
	return normalized, min, max
}

// Denormalize maps a normalized value back to the original scale.
func Denormalize(v, min, max float64) float64 {
	return v*(max-min) + min
}
