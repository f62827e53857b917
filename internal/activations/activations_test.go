// Package activations provides unit tests for activation functions.
package activations

import (
	"math"
	"testing"
)

// TestIdentity tests the passthrough activation.
func TestIdentity(t *testing.T) {
	id := Identity{}

	for _, x := range []float64{-2.5, 0, 1.5} {
		if got := id.Activate(x); got != x {
			t.Errorf("Identity(%v) = %v, want %v", x, got, x)
		}
		if got := id.Derivative(x); got != 1 {
			t.Errorf("Identity.Derivative(%v) = %v, want 1", x, got)
		}
	}
}

// TestReLU tests ReLU activation.
func TestReLU(t *testing.T) {
	relu := ReLU{}

	tests := []struct {
		input    float64
		expected float64
	}{
		{-1.0, 0.0}, // Negative -> 0
		{0.0, 0.0},  // Zero -> 0
		{1.0, 1.0},  // Positive -> identity
		{2.5, 2.5},  // Larger positive -> identity
		{-0.1, 0.0}, // Small negative -> 0
	}

	for _, tt := range tests {
		output := relu.Activate(tt.input)
		if math.Abs(output-tt.expected) > 1e-9 {
			t.Errorf("ReLU(%v) = %v, want %v", tt.input, output, tt.expected)
		}
	}
}

// TestReLUDerivative tests ReLU derivative.
func TestReLUDerivative(t *testing.T) {
	relu := ReLU{}

	tests := []struct {
		input    float64
		expected float64
	}{
		{-1.0, 0.0}, // Negative -> 0
		{0.0, 0.0},  // At zero, derivative is 0 (x must be > 0)
		{1.0, 1.0},  // Positive -> 1
		{2.5, 1.0},  // Larger positive -> 1
	}

	for _, tt := range tests {
		output := relu.Derivative(tt.input)
		if math.Abs(output-tt.expected) > 1e-9 {
			t.Errorf("ReLU.Derivative(%v) = %v, want %v", tt.input, output, tt.expected)
		}
	}
}

// TestSigmoid tests Sigmoid activation.
func TestSigmoid(t *testing.T) {
	sig := Sigmoid{}

	tests := []struct {
		input    float64
		expected float64
	}{
		{math.Inf(-1), 0.0}, // -inf -> 0
		{-2.0, 1 / (1 + math.Exp(2))},
		{0.0, 0.5}, // Zero -> 0.5
		{2.0, 1 / (1 + math.Exp(-2))},
		{math.Inf(1), 1.0}, // +inf -> 1
	}

	for _, tt := range tests {
		output := sig.Activate(tt.input)
		if math.Abs(output-tt.expected) > 1e-9 {
			t.Errorf("Sigmoid(%v) = %v, want %v", tt.input, output, tt.expected)
		}
	}
}

// TestSigmoidDerivative tests that the derivative peaks at zero.
func TestSigmoidDerivative(t *testing.T) {
	sig := Sigmoid{}

	if got := sig.Derivative(0); math.Abs(got-0.25) > 1e-9 {
		t.Errorf("Sigmoid.Derivative(0) = %v, want 0.25", got)
	}
	if sig.Derivative(3) >= sig.Derivative(0) {
		t.Error("Sigmoid derivative must decay away from zero")
	}
}

// TestLeakyReLU tests LeakyReLU with a custom slope.
func TestLeakyReLU(t *testing.T) {
	lrelu := NewLeakyReLU(0.01)

	tests := []struct {
		input    float64
		expected float64
	}{
		{-2.0, -0.02},
		{0.0, 0.0},
		{3.0, 3.0},
	}

	for _, tt := range tests {
		output := lrelu.Activate(tt.input)
		if math.Abs(output-tt.expected) > 1e-9 {
			t.Errorf("LeakyReLU(%v) = %v, want %v", tt.input, output, tt.expected)
		}
	}

	if got := lrelu.Derivative(-1); got != 0.01 {
		t.Errorf("LeakyReLU.Derivative(-1) = %v, want 0.01", got)
	}
	if got := lrelu.Derivative(1); got != 1.0 {
		t.Errorf("LeakyReLU.Derivative(1) = %v, want 1", got)
	}
}

// TestTanh tests Tanh activation and derivative.
func TestTanh(t *testing.T) {
	tanh := Tanh{}

	if got := tanh.Activate(0); got != 0 {
		t.Errorf("Tanh(0) = %v, want 0", got)
	}
	if got := tanh.Activate(100); math.Abs(got-1) > 1e-9 {
		t.Errorf("Tanh(100) = %v, want 1", got)
	}
	if got := tanh.Derivative(0); got != 1 {
		t.Errorf("Tanh.Derivative(0) = %v, want 1", got)
	}

	x := 0.7
	want := 1 - math.Tanh(x)*math.Tanh(x)
	if got := tanh.Derivative(x); math.Abs(got-want) > 1e-9 {
		t.Errorf("Tanh.Derivative(%v) = %v, want %v", x, got, want)
	}
}

// TestSoftmaxInPlace tests normalization and stability.
func TestSoftmaxInPlace(t *testing.T) {
	x := []float64{1, 2, 3}
	SoftmaxInPlace(x)

	sum := 0.0
	for _, v := range x {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("softmax sum = %v, want 1", sum)
	}
	if !(x[2] > x[1] && x[1] > x[0]) {
		t.Errorf("softmax must preserve order, got %v", x)
	}

	// Large logits must not overflow.
	big := []float64{1000, 1001, 1002}
	SoftmaxInPlace(big)
	for i, v := range big {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("softmax overflow at %d: %v", i, v)
		}
	}
}
