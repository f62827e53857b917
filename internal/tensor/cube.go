// Package tensor provides the rank-3 sequence container used for
// recurrent-network data: predictors and responses are cubes indexed by
// (feature, example, time step).
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Cube is a dense rank-3 array of float64 indexed (i, j, k) where i is the
// feature dimension, j the example and k the time step. Within one time step
// the features of each example are stored contiguously, so Vector returns a
// view into the backing array without copying.
type Cube struct {
	rows   int // features
	cols   int // examples
	slices int // time steps
	data   []float64
}

// New returns a zero-filled cube with the given dimensions.
func New(rows, cols, slices int) *Cube {
	if rows <= 0 || cols <= 0 || slices <= 0 {
		panic(fmt.Sprintf("tensor: invalid cube dimensions %dx%dx%d", rows, cols, slices))
	}
	return &Cube{
		rows:   rows,
		cols:   cols,
		slices: slices,
		data:   make([]float64, rows*cols*slices),
	}
}

// FromData wraps an existing backing slice laid out slice-major, example-minor:
// element (i, j, k) lives at data[(k*cols+j)*rows+i]. The cube adopts the
// slice; it is not copied.
func FromData(rows, cols, slices int, data []float64) *Cube {
	if len(data) != rows*cols*slices {
		panic(fmt.Sprintf("tensor: backing slice has %d elements, want %d", len(data), rows*cols*slices))
	}
	return &Cube{rows: rows, cols: cols, slices: slices, data: data}
}

// Rows returns the feature dimension.
func (c *Cube) Rows() int { return c.rows }

// Cols returns the number of examples.
func (c *Cube) Cols() int { return c.cols }

// Slices returns the number of time steps.
func (c *Cube) Slices() int { return c.slices }

// Dims returns all three dimensions.
func (c *Cube) Dims() (rows, cols, slices int) { return c.rows, c.cols, c.slices }

// At returns element (i, j, k).
func (c *Cube) At(i, j, k int) float64 {
	return c.data[(k*c.cols+j)*c.rows+i]
}

// Set stores v at element (i, j, k).
func (c *Cube) Set(i, j, k int, v float64) {
	c.data[(k*c.cols+j)*c.rows+i] = v
}

// Vector returns the feature vector of example j at time step k as a view
// into the cube. Mutating the returned slice mutates the cube.
func (c *Cube) Vector(j, k int) []float64 {
	off := (k*c.cols + j) * c.rows
	return c.data[off : off+c.rows]
}

// Slice returns time step k as an examples-by-features matrix view backed by
// the cube's data.
func (c *Cube) Slice(k int) *mat.Dense {
	off := k * c.cols * c.rows
	return mat.NewDense(c.cols, c.rows, c.data[off:off+c.cols*c.rows])
}

// Data exposes the backing slice.
func (c *Cube) Data() []float64 { return c.data }

// Copy returns a deep copy of the cube.
func (c *Cube) Copy() *Cube {
	d := make([]float64, len(c.data))
	copy(d, c.data)
	return &Cube{rows: c.rows, cols: c.cols, slices: c.slices, data: d}
}

// Permute reorders the example axis in place so that example j afterwards
// holds what example perm[j] held before, identically at every time step.
// perm must be a permutation of [0, Cols).
func (c *Cube) Permute(perm []int) {
	if len(perm) != c.cols {
		panic(fmt.Sprintf("tensor: permutation has %d entries, want %d", len(perm), c.cols))
	}
	scratch := make([]float64, c.rows*c.cols)
	for k := 0; k < c.slices; k++ {
		off := k * c.cols * c.rows
		block := c.data[off : off+c.cols*c.rows]
		for j, src := range perm {
			copy(scratch[j*c.rows:(j+1)*c.rows], block[src*c.rows:(src+1)*c.rows])
		}
		copy(block, scratch)
	}
}
