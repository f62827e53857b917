package layer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Embedding maps a token id to a dense vector. The input at each time step is
// a single-element slice holding the id; the output is the matching row of
// the embedding table. Out-of-range ids fall back to row 0, the usual slot
// for unknown tokens.
type Embedding struct {
	vocabSize int
	dim       int

	weights []float64 // view: vocabSize rows of dim
	gradW   []float64

	outputBuf []float64
	gradInBuf []float64
}

// NewEmbedding creates an embedding table with vocabSize rows of width dim.
func NewEmbedding(vocabSize, dim int) *Embedding {
	if vocabSize <= 0 || dim <= 0 {
		panic(fmt.Sprintf("Embedding: invalid table dimensions %dx%d", vocabSize, dim))
	}
	return &Embedding{
		vocabSize: vocabSize,
		dim:       dim,
		outputBuf: make([]float64, dim),
		gradInBuf: make([]float64, 1),
	}
}

func (e *Embedding) row(x []float64) int {
	if len(x) != 1 {
		panic(fmt.Sprintf("Embedding: input has %d elements, want a single token id", len(x)))
	}
	idx := int(x[0])
	if idx < 0 || idx >= e.vocabSize {
		idx = 0
	}
	return idx
}

// Forward copies the token's embedding row into the output buffer.
func (e *Embedding) Forward(x []float64) []float64 {
	idx := e.row(x)
	copy(e.outputBuf, e.weights[idx*e.dim:(idx+1)*e.dim])
	return e.outputBuf
}

// Backward returns a zero gradient; token ids are not differentiable.
func (e *Embedding) Backward(output, grad []float64) []float64 {
	e.gradInBuf[0] = 0
	return e.gradInBuf
}

// Gradient accumulates the step's delta into the looked-up row.
func (e *Embedding) Gradient(input, delta []float64) {
	idx := e.row(input)
	floats.Add(e.gradW[idx*e.dim:(idx+1)*e.dim], delta)
}

func (e *Embedding) ParameterCount() int { return e.vocabSize * e.dim }

// SetParameters adopts the embedding table view.
func (e *Embedding) SetParameters(view []float64) {
	if len(view) != e.ParameterCount() {
		panic(fmt.Sprintf("Embedding: parameter view has %d elements, want %d", len(view), e.ParameterCount()))
	}
	e.weights = view
}

// SetGradient adopts the gradient view.
func (e *Embedding) SetGradient(view []float64) {
	if len(view) != e.ParameterCount() {
		panic(fmt.Sprintf("Embedding: gradient view has %d elements, want %d", len(view), e.ParameterCount()))
	}
	e.gradW = view
}

// InputSize returns 1: one token id per step.
func (e *Embedding) InputSize() int { return 1 }

// OutputSize returns the embedding width.
func (e *Embedding) OutputSize() int { return e.dim }

// VocabSize returns the number of table rows.
func (e *Embedding) VocabSize() int { return e.vocabSize }
