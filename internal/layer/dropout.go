package layer

import (
	"fmt"
	"math/rand"
)

// Dropout implements inverted dropout regularization. During training each
// element is zeroed with probability p and survivors are scaled by 1/(1-p).
// In deterministic mode the layer passes values through unchanged.
//
// One mask is pushed per forward step and popped per backward step, so the
// reverse-time backward pass sees exactly the mask its step used.
type Dropout struct {
	p             float64
	size          int
	deterministic bool

	outputBuf []float64
	gradInBuf []float64

	// Mask stack, one entry per forward step of the current sequence.
	masks [][]float64

	rng *rand.Rand
}

// NewDropout creates a dropout layer dropping inputs with probability p.
func NewDropout(p float64, size int) *Dropout {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability %v outside [0, 1)", p))
	}
	return &Dropout{
		p:         p,
		size:      size,
		outputBuf: make([]float64, size),
		gradInBuf: make([]float64, size),
		masks:     make([][]float64, 0, 16),
		rng:       rand.New(rand.NewSource(42)),
	}
}

// SetDeterministic toggles inference behavior: no masking, no scaling.
func (d *Dropout) SetDeterministic(deterministic bool) {
	d.deterministic = deterministic
}

// Forward applies a fresh mask in training mode and records it for the
// backward pass.
func (d *Dropout) Forward(x []float64) []float64 {
	if len(x) != d.size {
		panic(fmt.Sprintf("Dropout: input has %d elements, want %d", len(x), d.size))
	}
	if d.deterministic {
		copy(d.outputBuf, x)
		return d.outputBuf
	}

	scale := 1.0 / (1.0 - d.p)
	mask := make([]float64, d.size)
	for i := range x {
		if d.rng.Float64() < d.p {
			mask[i] = 0
			d.outputBuf[i] = 0
		} else {
			mask[i] = scale
			d.outputBuf[i] = x[i] * scale
		}
	}
	d.masks = append(d.masks, mask)
	return d.outputBuf
}

// Backward pops the most recent mask and applies it to the gradient.
func (d *Dropout) Backward(output, grad []float64) []float64 {
	if d.deterministic || len(d.masks) == 0 {
		copy(d.gradInBuf, grad)
		return d.gradInBuf
	}

	top := len(d.masks) - 1
	mask := d.masks[top]
	d.masks = d.masks[:top]

	for i := range d.gradInBuf {
		d.gradInBuf[i] = grad[i] * mask[i]
	}
	return d.gradInBuf
}

// Gradient is a no-op; the layer has no parameters.
func (d *Dropout) Gradient(input, delta []float64) {}

// ParameterCount returns 0.
func (d *Dropout) ParameterCount() int { return 0 }

// SetParameters accepts only an empty view.
func (d *Dropout) SetParameters(view []float64) {
	if len(view) != 0 {
		panic("Dropout: unexpected parameter view")
	}
}

// SetGradient accepts only an empty view.
func (d *Dropout) SetGradient(view []float64) {
	if len(view) != 0 {
		panic("Dropout: unexpected gradient view")
	}
}

// ResetCell discards masks left over from a previous sequence.
func (d *Dropout) ResetCell() {
	d.masks = d.masks[:0]
}

// InputSize returns the layer width.
func (d *Dropout) InputSize() int { return d.size }

// OutputSize returns the layer width.
func (d *Dropout) OutputSize() int { return d.size }

// Rate returns the dropout probability.
func (d *Dropout) Rate() float64 { return d.p }
