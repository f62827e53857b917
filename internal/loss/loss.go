// Package loss provides the output-layer contract: each loss scores a
// network output against a target and produces the error signal that seeds
// backpropagation. The network sums per-step, per-example losses, so every
// Forward here scores exactly one output vector.
package loss

import "math"

// BackwardInPlacer is an optional interface for losses that support in-place
// gradient computation to avoid allocations.
type BackwardInPlacer interface {
	BackwardInPlace(yPred, yTrue, grad []float64)
}

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the loss between predicted and true values.
	Forward(yPred, yTrue []float64) float64

	// Backward computes the gradient of the loss w.r.t. prediction.
	// This creates a new slice and should be avoided in hot loops.
	Backward(yPred, yTrue []float64) []float64
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (m MSE) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("MSE: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yPred[i] - yTrue[i]
		sum += diff * diff
	}
	return sum / float64(n)
}

// Backward computes gradient: dL/dy_pred = (2/n) * (y_pred - y_true)
// Note: Returned slice is newly allocated for safety.
func (m MSE) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	m.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (m MSE) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("MSE: slices must have same length")
	}

	factor := 2.0 / float64(n)
	for i := 0; i < n; i++ {
		grad[i] = factor * (yPred[i] - yTrue[i])
	}
}

// L1 (Mean Absolute Error) loss.
type L1 struct{}

// Forward computes mean absolute error: (1/n) * sum(|y_pred - y_true|)
func (l L1) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("L1: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yPred[i] - yTrue[i])
	}
	return sum / float64(n)
}

// Backward computes gradient: dL/dy_pred = (1/n) * sign(y_pred - y_true)
func (l L1) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	l.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (l L1) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("L1: slices must have same length")
	}

	factor := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		diff := yPred[i] - yTrue[i]
		switch {
		case diff > 0:
			grad[i] = factor
		case diff < 0:
			grad[i] = -factor
		default:
			grad[i] = 0
		}
	}
}

// Huber loss for robust regression.
type Huber struct {
	Delta float64 // Threshold for quadratic/linear transition
}

// NewHuber creates a Huber loss with the given delta.
func NewHuber(delta float64) *Huber {
	return &Huber{Delta: delta}
}

// Forward computes Huber loss.
func (h Huber) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("Huber: prediction and target must have same length")
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := math.Abs(yPred[i] - yTrue[i])
		if diff <= h.Delta {
			sum += 0.5 * diff * diff
		} else {
			sum += h.Delta * (diff - 0.5*h.Delta)
		}
	}
	return sum / float64(n)
}

// Backward computes gradient for Huber loss.
func (h Huber) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	h.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (h Huber) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("Huber: slices must have same length")
	}

	factor := 1.0 / float64(n)
	for i := 0; i < n; i++ {
		diff := yPred[i] - yTrue[i]
		if math.Abs(diff) <= h.Delta {
			grad[i] = diff * factor
		} else {
			grad[i] = h.Delta * math.Copysign(1, diff) * factor
		}
	}
}

// CrossEntropy loss for classification over probability vectors.
type CrossEntropy struct{}

// Forward computes cross entropy: -sum(y_true * log(y_pred + eps))
func (c CrossEntropy) Forward(yPred, yTrue []float64) float64 {
	n := len(yPred)
	if n != len(yTrue) {
		panic("CrossEntropy: prediction and target must have same length")
	}

	const eps = 1e-10
	var sum float64
	for i := 0; i < n; i++ {
		// Clip prediction to avoid log(0)
		pred := yPred[i]
		if pred < eps {
			pred = eps
		}
		sum -= yTrue[i] * math.Log(pred)
	}
	return sum / float64(n)
}

// Backward computes gradient for cross entropy with softmax.
// For cross entropy + softmax, gradient simplifies to (y_pred - y_true).
func (c CrossEntropy) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	c.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (c CrossEntropy) BackwardInPlace(yPred, yTrue, grad []float64) {
	n := len(yPred)
	if n != len(yTrue) || n != len(grad) {
		panic("CrossEntropy: slices must have same length")
	}

	for i := 0; i < n; i++ {
		grad[i] = yPred[i] - yTrue[i]
	}
}

// NegativeLogLikelihood scores a vector of log-probabilities against a class
// index. The target holds a single element: the index of the true class.
// Pair it with a LogSoftmax terminal layer for classification.
type NegativeLogLikelihood struct{}

// Forward returns -yPred[class] where class = yTrue[0].
func (n NegativeLogLikelihood) Forward(yPred, yTrue []float64) float64 {
	class := n.classIndex(yPred, yTrue)
	return -yPred[class]
}

// Backward returns the gradient: -1 at the true class, 0 elsewhere.
func (n NegativeLogLikelihood) Backward(yPred, yTrue []float64) []float64 {
	grad := make([]float64, len(yPred))
	n.BackwardInPlace(yPred, yTrue, grad)
	return grad
}

// BackwardInPlace computes gradient and stores it in the grad slice.
func (n NegativeLogLikelihood) BackwardInPlace(yPred, yTrue, grad []float64) {
	if len(grad) != len(yPred) {
		panic("NegativeLogLikelihood: gradient and prediction must have same length")
	}
	class := n.classIndex(yPred, yTrue)
	for i := range grad {
		grad[i] = 0
	}
	grad[class] = -1
}

func (n NegativeLogLikelihood) classIndex(yPred, yTrue []float64) int {
	if len(yTrue) != 1 {
		panic("NegativeLogLikelihood: target must hold a single class index")
	}
	class := int(yTrue[0])
	if class < 0 || class >= len(yPred) {
		panic("NegativeLogLikelihood: class index out of range")
	}
	return class
}
