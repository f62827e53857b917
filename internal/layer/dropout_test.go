package layer

import (
	"math"
	"testing"
)

func TestDropoutForwardTraining(t *testing.T) {
	// Roughly half the elements should be zeroed with p=0.5.
	d := NewDropout(0.5, 100)

	input := make([]float64, 100)
	for i := range input {
		input[i] = 1.0
	}

	output := d.Forward(input)

	nonZero := 0
	for _, v := range output {
		if v != 0 {
			nonZero++
		}
	}
	if nonZero < 30 || nonZero > 70 {
		t.Errorf("Expected ~50%% non-zero outputs, got %d/100", nonZero)
	}

	// Survivors carry the inverted-dropout scale.
	for i, v := range output {
		if v != 0 && math.Abs(v-2.0) > 1e-12 {
			t.Errorf("Output[%d] = %f, expected 2.0 (scaled survivor)", i, v)
		}
	}
}

func TestDropoutForwardDeterministic(t *testing.T) {
	// In deterministic mode inputs pass through unchanged.
	d := NewDropout(0.5, 100)
	d.SetDeterministic(true)

	input := make([]float64, 100)
	for i := range input {
		input[i] = float64(i)
	}

	output := d.Forward(input)

	for i := range input {
		if output[i] != input[i] {
			t.Errorf("Output[%d] = %f, expected %f", i, output[i], input[i])
		}
	}
}

func TestDropoutBackwardMatchesMask(t *testing.T) {
	// With ones in and ones back, the gradient must equal the forward
	// output elementwise: both are the mask.
	d := NewDropout(0.5, 10)

	input := make([]float64, 10)
	for i := range input {
		input[i] = 1.0
	}
	output := append([]float64(nil), d.Forward(input)...)

	grad := make([]float64, 10)
	for i := range grad {
		grad[i] = 1.0
	}
	gradIn := d.Backward(output, grad)

	for i := range output {
		if math.Abs(gradIn[i]-output[i]) > 1e-12 {
			t.Errorf("Grad[%d] = %f, expected %f", i, gradIn[i], output[i])
		}
	}
}

func TestDropoutMaskStackPopsInReverse(t *testing.T) {
	// Each backward step must see the mask of the matching forward step.
	d := NewDropout(0.5, 50)

	input := make([]float64, 50)
	for i := range input {
		input[i] = 1.0
	}

	var outputs [][]float64
	for step := 0; step < 3; step++ {
		outputs = append(outputs, append([]float64(nil), d.Forward(input)...))
	}

	grad := make([]float64, 50)
	for i := range grad {
		grad[i] = 1.0
	}
	for step := 2; step >= 0; step-- {
		gradIn := d.Backward(outputs[step], grad)
		for i := range gradIn {
			if math.Abs(gradIn[i]-outputs[step][i]) > 1e-12 {
				t.Fatalf("Step %d grad[%d] = %f, expected %f", step, i, gradIn[i], outputs[step][i])
			}
		}
	}
}

func TestDropoutResetCellDiscardsMasks(t *testing.T) {
	d := NewDropout(0.5, 10)

	input := make([]float64, 10)
	for i := range input {
		input[i] = 1.0
	}
	d.Forward(input)
	d.Forward(input)
	d.ResetCell()

	// With no stored masks the backward pass falls back to passthrough.
	grad := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	gradIn := d.Backward(nil, grad)
	for i := range grad {
		if gradIn[i] != grad[i] {
			t.Errorf("Grad[%d] = %f, expected passthrough %f", i, gradIn[i], grad[i])
		}
	}
}

func TestDropoutNoParameters(t *testing.T) {
	d := NewDropout(0.5, 10)
	if d.ParameterCount() != 0 {
		t.Errorf("ParameterCount = %d, expected 0", d.ParameterCount())
	}
	d.SetParameters(nil)
	d.SetGradient(nil)
}

func TestDropoutRejectsBadProbability(t *testing.T) {
	for _, p := range []float64{-0.1, 1.0, 1.5} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for p=%v", p)
				}
			}()
			NewDropout(p, 10)
		}()
	}
}

func BenchmarkDropoutForward(b *testing.B) {
	d := NewDropout(0.5, 1024)

	input := make([]float64, 1024)
	for i := range input {
		input[i] = 1.0
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Forward(input)
		d.ResetCell()
	}
}
