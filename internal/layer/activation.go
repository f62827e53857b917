package layer

import (
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/GoRNN/internal/activations"
)

// Activation applies a scalar activation function elementwise. It holds no
// parameters; Gradient is a no-op.
type Activation struct {
	size  int
	act   activations.Activation
	deriv activations.OutputDerivator

	outputBuf []float64
	gradInBuf []float64
}

// NewActivation wraps an activation function as a layer. The activation must
// support derivative-from-output, since the backward pass only retains layer
// outputs.
func NewActivation(size int, act activations.Activation) *Activation {
	deriv, ok := act.(activations.OutputDerivator)
	if !ok {
		panic(fmt.Sprintf("Activation: %T cannot compute its derivative from outputs", act))
	}
	return &Activation{
		size:      size,
		act:       act,
		deriv:     deriv,
		outputBuf: make([]float64, size),
		gradInBuf: make([]float64, size),
	}
}

// Forward applies the activation elementwise.
func (a *Activation) Forward(x []float64) []float64 {
	if len(x) != a.size {
		panic(fmt.Sprintf("Activation: input has %d elements, want %d", len(x), a.size))
	}
	for i, v := range x {
		a.outputBuf[i] = a.act.Activate(v)
	}
	return a.outputBuf
}

// Backward scales the incoming gradient by the activation derivative,
// computed from the stored forward output.
func (a *Activation) Backward(output, grad []float64) []float64 {
	for i := range a.gradInBuf {
		a.gradInBuf[i] = grad[i] * a.deriv.DerivativeFromOutput(output[i])
	}
	return a.gradInBuf
}

// Gradient is a no-op; the layer has no parameters.
func (a *Activation) Gradient(input, delta []float64) {}

// ParameterCount returns 0.
func (a *Activation) ParameterCount() int { return 0 }

// SetParameters accepts only an empty view.
func (a *Activation) SetParameters(view []float64) {
	if len(view) != 0 {
		panic("Activation: unexpected parameter view")
	}
}

// SetGradient accepts only an empty view.
func (a *Activation) SetGradient(view []float64) {
	if len(view) != 0 {
		panic("Activation: unexpected gradient view")
	}
}

// InputSize returns the layer width.
func (a *Activation) InputSize() int { return a.size }

// OutputSize returns the layer width.
func (a *Activation) OutputSize() int { return a.size }

// Act returns the wrapped activation function.
func (a *Activation) Act() activations.Activation { return a.act }

// LogSoftmax turns a score vector into log-probabilities. Pair it with the
// NegativeLogLikelihood output layer for classification.
type LogSoftmax struct {
	size int

	outputBuf []float64
	gradInBuf []float64
}

// NewLogSoftmax creates a log-softmax layer of the given width.
func NewLogSoftmax(size int) *LogSoftmax {
	return &LogSoftmax{
		size:      size,
		outputBuf: make([]float64, size),
		gradInBuf: make([]float64, size),
	}
}

// Forward computes x - max(x) - log(sum(exp(x - max(x)))).
func (s *LogSoftmax) Forward(x []float64) []float64 {
	if len(x) != s.size {
		panic(fmt.Sprintf("LogSoftmax: input has %d elements, want %d", len(x), s.size))
	}
	maxVal := x[0]
	for _, v := range x[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	for _, v := range x {
		sum += math.Exp(v - maxVal)
	}
	logSum := math.Log(sum)
	for i, v := range x {
		s.outputBuf[i] = v - maxVal - logSum
	}
	return s.outputBuf
}

// Backward computes grad_i - exp(output_i) * sum(grad), the log-softmax
// Jacobian applied from the stored output.
func (s *LogSoftmax) Backward(output, grad []float64) []float64 {
	sum := 0.0
	for _, g := range grad {
		sum += g
	}
	for i := range s.gradInBuf {
		s.gradInBuf[i] = grad[i] - math.Exp(output[i])*sum
	}
	return s.gradInBuf
}

// Gradient is a no-op; the layer has no parameters.
func (s *LogSoftmax) Gradient(input, delta []float64) {}

// ParameterCount returns 0.
func (s *LogSoftmax) ParameterCount() int { return 0 }

// SetParameters accepts only an empty view.
func (s *LogSoftmax) SetParameters(view []float64) {
	if len(view) != 0 {
		panic("LogSoftmax: unexpected parameter view")
	}
}

// SetGradient accepts only an empty view.
func (s *LogSoftmax) SetGradient(view []float64) {
	if len(view) != 0 {
		panic("LogSoftmax: unexpected gradient view")
	}
}

// InputSize returns the layer width.
func (s *LogSoftmax) InputSize() int { return s.size }

// OutputSize returns the layer width.
func (s *LogSoftmax) OutputSize() int { return s.size }
