package layer

import (
	"math"
	"testing"
)

func identityNormParams(size int) []float64 {
	params := make([]float64, 2*size)
	for i := 0; i < size; i++ {
		params[i] = 1
	}
	return params
}

func TestLayerNormForwardNormalizes(t *testing.T) {
	ln := NewLayerNorm(4)
	ln.SetParameters(identityNormParams(4))

	out := ln.Forward([]float64{0.5, -0.3, 0.2, -0.8})

	mean := 0.0
	for _, v := range out {
		mean += v
	}
	mean /= 4
	if math.Abs(mean) > 1e-9 {
		t.Errorf("Output mean = %g, expected 0", mean)
	}

	variance := 0.0
	for _, v := range out {
		variance += (v - mean) * (v - mean)
	}
	variance /= 4
	if math.Abs(variance-1) > 1e-3 {
		t.Errorf("Output variance = %f, expected 1", variance)
	}
}

func TestLayerNormAffine(t *testing.T) {
	ln := NewLayerNorm(3)
	// gamma = 2, beta = 0.5 on every channel.
	ln.SetParameters([]float64{2, 2, 2, 0.5, 0.5, 0.5})

	plain := NewLayerNorm(3)
	plain.SetParameters(identityNormParams(3))

	x := []float64{1.0, -2.0, 0.5}
	got := append([]float64(nil), ln.Forward(x)...)
	norm := plain.Forward(x)

	for i := range got {
		want := 2*norm[i] + 0.5
		if math.Abs(got[i]-want) > 1e-12 {
			t.Errorf("Output[%d] = %f, expected %f", i, got[i], want)
		}
	}
}

func TestLayerNormCustomInitialize(t *testing.T) {
	ln := NewLayerNorm(3)
	view := []float64{9, 9, 9, 9, 9, 9}

	ln.CustomInitialize(view)

	want := []float64{1, 1, 1, 0, 0, 0}
	for i := range want {
		if view[i] != want[i] {
			t.Errorf("view[%d] = %f, expected %f", i, view[i], want[i])
		}
	}
}

func TestLayerNormBackwardBeforeForward(t *testing.T) {
	ln := NewLayerNorm(3)
	ln.SetParameters(identityNormParams(3))

	gradIn := ln.Backward(nil, []float64{1, 1, 1})

	for i, v := range gradIn {
		if v != 0 {
			t.Errorf("Grad[%d] = %f, expected 0 with no stored steps", i, v)
		}
	}
}

func TestLayerNormGradientCheckSingleStep(t *testing.T) {
	ln := NewLayerNorm(4)
	params := randomParams(ln.ParameterCount(), 31)
	inputs := [][]float64{{0.5, -0.3, 0.2, -0.8}}
	checkGradients(t, ln, params, inputs)
}

func TestLayerNormGradientCheckThroughTime(t *testing.T) {
	// Three steps exercise the stored-step stack: each backward pop must see
	// its own step's normalization context.
	ln := NewLayerNorm(3)
	params := randomParams(ln.ParameterCount(), 32)
	inputs := [][]float64{
		{0.9, -0.4, 0.1},
		{-0.6, 0.8, 0.3},
		{0.2, -1.1, 0.7},
	}
	checkGradients(t, ln, params, inputs)
}

func TestLayerNormSizes(t *testing.T) {
	ln := NewLayerNorm(6)
	if ln.InputSize() != 6 {
		t.Errorf("InputSize = %d, expected 6", ln.InputSize())
	}
	if ln.OutputSize() != 6 {
		t.Errorf("OutputSize = %d, expected 6", ln.OutputSize())
	}
	if ln.ParameterCount() != 12 {
		t.Errorf("ParameterCount = %d, expected 12", ln.ParameterCount())
	}
}
