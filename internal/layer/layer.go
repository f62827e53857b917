// Package layer provides the layer contract and the layer implementations a
// recurrent network composes. Layers do not own their parameters: the network
// holds one flat parameter buffer and one flat gradient buffer and hands each
// layer a view of its sub-range via SetParameters and SetGradient. Gradient
// calls accumulate into the gradient view, because with weight sharing across
// time steps every step adds its own contribution.
package layer

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// Layer is a single module in the network's forward chain.
type Layer interface {
	// Forward computes the layer output for one time step. The returned
	// slice is an internal buffer, valid until the next Forward call;
	// callers that need it later must copy it.
	Forward(x []float64) []float64

	// Backward computes the gradient with respect to the layer input,
	// given the layer's forward output for that step and the gradient
	// arriving from above. The returned slice is an internal buffer.
	Backward(output, grad []float64) []float64

	// Gradient accumulates the parameter gradient for one forward/backward
	// pair into the layer's gradient view. Layers without parameters
	// implement it as a no-op.
	Gradient(input, delta []float64)

	// ParameterCount reports the length of the parameter view this layer
	// requires. Fixed at construction.
	ParameterCount() int

	// SetParameters hands the layer its view of the network's flat
	// parameter buffer. The layer aliases the view; it must not copy.
	SetParameters(view []float64)

	// SetGradient hands the layer its view of the network's flat gradient
	// buffer.
	SetGradient(view []float64)

	// InputSize reports the expected input width.
	InputSize() int

	// OutputSize reports the produced output width.
	OutputSize() int
}

// Stateful is implemented by layers that carry recurrent state across time
// steps. ResetCell clears that state before an independent sequence.
type Stateful interface {
	ResetCell()
}

// DeterministicLayer is implemented by layers whose behavior differs between
// training and inference, such as stochastic regularizers.
type DeterministicLayer interface {
	SetDeterministic(deterministic bool)
}

// CustomInitializer is implemented by layers that overwrite the network's
// initialization rule for their own parameter block, such as normalization
// gains that must start at one. It runs after the rule has filled the view.
type CustomInitializer interface {
	CustomInitialize(view []float64)
}

// Linear is a fully connected affine layer: y = Wx + b. It has no activation;
// compose it with an Activation layer for nonlinearity.
type Linear struct {
	inSize  int
	outSize int

	// Views into the network's flat buffers.
	weights []float64 // [out*in], row-major
	biases  []float64 // [out]
	gradW   []float64
	gradB   []float64

	// Reusable buffers.
	outputBuf []float64
	gradInBuf []float64
}

// NewLinear creates a linear layer. Parameters arrive later via
// SetParameters.
func NewLinear(in, out int) *Linear {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("Linear: invalid dimensions %dx%d", in, out))
	}
	return &Linear{
		inSize:    in,
		outSize:   out,
		outputBuf: make([]float64, out),
		gradInBuf: make([]float64, in),
	}
}

// ParameterCount returns out*in weights plus out biases.
func (l *Linear) ParameterCount() int {
	return l.outSize*l.inSize + l.outSize
}

// SetParameters splits the view into the weight matrix and the bias vector.
func (l *Linear) SetParameters(view []float64) {
	if len(view) != l.ParameterCount() {
		panic(fmt.Sprintf("Linear: parameter view has %d elements, want %d", len(view), l.ParameterCount()))
	}
	l.weights = view[:l.outSize*l.inSize]
	l.biases = view[l.outSize*l.inSize:]
}

// SetGradient splits the view like SetParameters.
func (l *Linear) SetGradient(view []float64) {
	if len(view) != l.ParameterCount() {
		panic(fmt.Sprintf("Linear: gradient view has %d elements, want %d", len(view), l.ParameterCount()))
	}
	l.gradW = view[:l.outSize*l.inSize]
	l.gradB = view[l.outSize*l.inSize:]
}

func (l *Linear) weightMatrix() blas64.General {
	return blas64.General{
		Rows:   l.outSize,
		Cols:   l.inSize,
		Stride: l.inSize,
		Data:   l.weights,
	}
}

func vec(s []float64) blas64.Vector {
	return blas64.Vector{N: len(s), Inc: 1, Data: s}
}

// Forward computes Wx + b into the reusable output buffer.
func (l *Linear) Forward(x []float64) []float64 {
	if len(x) != l.inSize {
		panic(fmt.Sprintf("Linear: input has %d elements, want %d", len(x), l.inSize))
	}
	copy(l.outputBuf, l.biases)
	blas64.Gemv(blas.NoTrans, 1, l.weightMatrix(), vec(x), 1, vec(l.outputBuf))
	return l.outputBuf
}

// Backward computes W^T * grad. The forward output is not needed for an
// affine map but is part of the uniform layer contract.
func (l *Linear) Backward(output, grad []float64) []float64 {
	blas64.Gemv(blas.Trans, 1, l.weightMatrix(), vec(grad), 0, vec(l.gradInBuf))
	return l.gradInBuf
}

// Gradient accumulates dW += delta * input^T and db += delta.
func (l *Linear) Gradient(input, delta []float64) {
	blas64.Ger(1, vec(delta), vec(input), blas64.General{
		Rows:   l.outSize,
		Cols:   l.inSize,
		Stride: l.inSize,
		Data:   l.gradW,
	})
	floats.Add(l.gradB, delta)
}

// InputSize returns the input width.
func (l *Linear) InputSize() int { return l.inSize }

// OutputSize returns the output width.
func (l *Linear) OutputSize() int { return l.outSize }
