package layer

import (
	"math"
	"testing"

	"github.com/FlavioCFOliveira/GoRNN/internal/activations"
)

func TestActivationForward(t *testing.T) {
	a := NewActivation(3, activations.Tanh{})

	out := a.Forward([]float64{-1, 0, 1})

	want := []float64{math.Tanh(-1), 0, math.Tanh(1)}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-12 {
			t.Errorf("Forward[%d] = %f, expected %f", i, out[i], want[i])
		}
	}
}

func TestActivationBackwardFromOutput(t *testing.T) {
	// The backward pass must recover tanh'(x) = 1 - tanh(x)^2 from the
	// stored output alone.
	a := NewActivation(2, activations.Tanh{})
	out := a.Forward([]float64{0.5, -0.3})
	stored := append([]float64(nil), out...)

	gradIn := a.Backward(stored, []float64{1, 1})

	for i, y := range stored {
		want := 1 - y*y
		if math.Abs(gradIn[i]-want) > 1e-12 {
			t.Errorf("Backward[%d] = %f, expected %f", i, gradIn[i], want)
		}
	}
}

func TestActivationNoParameters(t *testing.T) {
	a := NewActivation(4, activations.Sigmoid{})
	if a.ParameterCount() != 0 {
		t.Errorf("ParameterCount = %d, expected 0", a.ParameterCount())
	}
	a.SetParameters(nil)
	a.SetGradient(nil)
	a.Gradient(nil, nil)
}

// plainAct implements Activation but not OutputDerivator.
type plainAct struct{}

func (plainAct) Activate(x float64) float64 { return x * x }

func (plainAct) Derivative(x float64) float64 { return 2 * x }

func TestActivationRejectsUnderivableFunction(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for activation without output derivative")
		}
	}()
	NewActivation(2, plainAct{})
}

func TestLogSoftmaxForward(t *testing.T) {
	s := NewLogSoftmax(3)

	out := s.Forward([]float64{1, 2, 3})

	// exp of the outputs must form a probability distribution.
	sum := 0.0
	for _, v := range out {
		sum += math.Exp(v)
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("exp(output) sums to %f, expected 1", sum)
	}
	// Scores keep their order.
	if !(out[0] < out[1] && out[1] < out[2]) {
		t.Errorf("Output order not preserved: %v", out)
	}
}

func TestLogSoftmaxForwardStability(t *testing.T) {
	s := NewLogSoftmax(2)

	out := s.Forward([]float64{1000, 1001})

	for i, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("Output[%d] = %f for large inputs", i, v)
		}
	}
}

func TestLogSoftmaxBackwardSumsToZero(t *testing.T) {
	// The log-softmax Jacobian maps any gradient to one orthogonal to the
	// all-ones direction.
	s := NewLogSoftmax(4)
	out := s.Forward([]float64{0.1, -0.4, 2, 0.7})
	stored := append([]float64(nil), out...)

	gradIn := s.Backward(stored, []float64{0.3, -1, 0.2, 0.5})

	sum := 0.0
	for _, v := range gradIn {
		sum += v
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("Backward gradient sums to %g, expected 0", sum)
	}
}
