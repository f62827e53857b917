// Package weights provides the parameter initialization rules applied to a
// network's flat parameter buffer. Each rule fills one layer's view of the
// buffer; fan-in and fan-out are supplied so scale-sensitive rules can adapt
// to the layer's shape.
package weights

import (
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Initializer fills a layer's parameter view with initial values.
type Initializer interface {
	Initialize(w []float64, fanIn, fanOut int)
}

// Const fills every parameter with a fixed value.
type Const struct {
	Value float64
}

// NewConst creates a constant initializer.
func NewConst(v float64) *Const { return &Const{Value: v} }

// Initialize sets every element of w to the constant.
func (c *Const) Initialize(w []float64, fanIn, fanOut int) {
	for i := range w {
		w[i] = c.Value
	}
}

// Uniform draws parameters from U(Lower, Upper).
type Uniform struct {
	Lower, Upper float64
	dist         distuv.Uniform
}

// NewUniform creates a uniform initializer with an unseeded source.
func NewUniform(lower, upper float64) *Uniform {
	return &Uniform{
		Lower: lower,
		Upper: upper,
		dist:  distuv.Uniform{Min: lower, Max: upper},
	}
}

// NewUniformSeeded creates a reproducible uniform initializer.
func NewUniformSeeded(lower, upper float64, seed uint64) *Uniform {
	return &Uniform{
		Lower: lower,
		Upper: upper,
		dist:  distuv.Uniform{Min: lower, Max: upper, Src: exprand.NewSource(seed)},
	}
}

// Initialize draws each element of w independently.
func (u *Uniform) Initialize(w []float64, fanIn, fanOut int) {
	for i := range w {
		w[i] = u.dist.Rand()
	}
}

// Gaussian draws parameters from N(Mean, StdDev²).
type Gaussian struct {
	Mean, StdDev float64
	dist         distuv.Normal
}

// NewGaussian creates a gaussian initializer with an unseeded source.
func NewGaussian(mean, stddev float64) *Gaussian {
	return &Gaussian{
		Mean:   mean,
		StdDev: stddev,
		dist:   distuv.Normal{Mu: mean, Sigma: stddev},
	}
}

// NewGaussianSeeded creates a reproducible gaussian initializer.
func NewGaussianSeeded(mean, stddev float64, seed uint64) *Gaussian {
	return &Gaussian{
		Mean:   mean,
		StdDev: stddev,
		dist:   distuv.Normal{Mu: mean, Sigma: stddev, Src: exprand.NewSource(seed)},
	}
}

// Initialize draws each element of w independently.
func (g *Gaussian) Initialize(w []float64, fanIn, fanOut int) {
	for i := range w {
		w[i] = g.dist.Rand()
	}
}

// Xavier scales a uniform draw by sqrt(2/(fanIn+fanOut)), keeping early
// activations in the responsive range of saturating nonlinearities.
type Xavier struct {
	src exprand.Source
}

// NewXavier creates an unseeded Xavier initializer.
func NewXavier() *Xavier { return &Xavier{} }

// NewXavierSeeded creates a reproducible Xavier initializer.
func NewXavierSeeded(seed uint64) *Xavier {
	return &Xavier{src: exprand.NewSource(seed)}
}

// Initialize draws each element from U(-scale, scale) with
// scale = sqrt(2/(fanIn+fanOut)).
func (x *Xavier) Initialize(w []float64, fanIn, fanOut int) {
	scale := math.Sqrt(2.0 / (float64(fanIn) + float64(fanOut)))
	dist := distuv.Uniform{Min: -scale, Max: scale, Src: x.src}
	for i := range w {
		w[i] = dist.Rand()
	}
}

// Orthogonal initializes the leading fanOut-by-fanIn block of the view with a
// (semi-)orthogonal matrix obtained from the QR decomposition of a gaussian
// draw, scaled by Gain; any trailing elements (bias sections) are zeroed. It
// is intended for layers whose view starts with a single weight matrix.
type Orthogonal struct {
	Gain float64
	dist distuv.Normal
}

// NewOrthogonal creates an orthogonal initializer with the given gain.
func NewOrthogonal(gain float64) *Orthogonal {
	return &Orthogonal{Gain: gain, dist: distuv.Normal{Mu: 0, Sigma: 1}}
}

// NewOrthogonalSeeded creates a reproducible orthogonal initializer.
func NewOrthogonalSeeded(gain float64, seed uint64) *Orthogonal {
	return &Orthogonal{
		Gain: gain,
		dist: distuv.Normal{Mu: 0, Sigma: 1, Src: exprand.NewSource(seed)},
	}
}

// Initialize fills the leading fanOut*fanIn elements with Gain*Q where Q is
// orthogonal, and zeroes the rest of the view.
func (o *Orthogonal) Initialize(w []float64, fanIn, fanOut int) {
	n := fanOut * fanIn
	if n > len(w) {
		n = len(w)
	}
	// QR needs rows >= cols; factorize the tall orientation and transpose
	// back if the weight matrix is wide.
	rows, cols := fanOut, fanIn
	transposed := false
	if rows < cols {
		rows, cols = cols, rows
		transposed = true
	}
	raw := make([]float64, rows*cols)
	for i := range raw {
		raw[i] = o.dist.Rand()
	}
	var qr mat.QR
	qr.Factorize(mat.NewDense(rows, cols, raw))
	var q mat.Dense
	qr.QTo(&q)

	for r := 0; r < fanOut; r++ {
		for c := 0; c < fanIn && r*fanIn+c < n; c++ {
			if transposed {
				w[r*fanIn+c] = o.Gain * q.At(c, r)
			} else {
				w[r*fanIn+c] = o.Gain * q.At(r, c)
			}
		}
	}
	for i := n; i < len(w); i++ {
		w[i] = 0
	}
}
