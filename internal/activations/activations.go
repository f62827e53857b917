// Package activations provides activation functions optimized for performance.
package activations

import "math"

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x)
	Derivative(x float64) float64
}

// OutputDerivator is implemented by activations whose derivative is
// expressible from the activation value alone. Backward passes that retain
// only layer outputs depend on this form.
type OutputDerivator interface {
	// DerivativeFromOutput computes f'(x) given y = f(x).
	DerivativeFromOutput(y float64) float64
}

// Identity passes values through unchanged.
type Identity struct{}

// Activate returns x.
func (Identity) Activate(x float64) float64 { return x }

// Derivative returns 1.
func (Identity) Derivative(x float64) float64 { return 1 }

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Sigmoid activation function.
type Sigmoid struct{}

// sigmoid computes the sigmoid function
// Inline for performance
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

// LeakyReLU activation function to prevent dying neurons.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0
}

// NewLeakyReLU creates a LeakyReLU with the given alpha value.
func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*x
func (l *LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha
func (l *LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}

// SoftmaxInPlace normalizes x into a probability distribution, in place.
// Softmax is a vector operation, so it has no scalar Activation form.
func SoftmaxInPlace(x []float64) {
	// Find max for numerical stability
	maxVal := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxVal {
			maxVal = x[i]
		}
	}

	sum := 0.0
	for i := range x {
		x[i] = math.Exp(x[i] - maxVal)
		sum += x[i]
	}

	for i := range x {
		x[i] /= sum
	}
}

// DerivativeFromOutput returns 1.
func (Identity) DerivativeFromOutput(y float64) float64 { return 1 }

// DerivativeFromOutput returns 1 if y > 0, else 0.
func (ReLU) DerivativeFromOutput(y float64) float64 {
	if y > 0 {
		return 1
	}
	return 0
}

// DerivativeFromOutput computes y * (1 - y).
func (Sigmoid) DerivativeFromOutput(y float64) float64 {
	return y * (1 - y)
}

// DerivativeFromOutput returns 1 if y > 0, else alpha.
func (l *LeakyReLU) DerivativeFromOutput(y float64) float64 {
	if y > 0 {
		return 1
	}
	return l.Alpha
}

// DerivativeFromOutput computes 1 - y^2.
func (Tanh) DerivativeFromOutput(y float64) float64 {
	return 1 - y*y
}
