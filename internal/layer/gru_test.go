package layer

import (
	"math"
	"testing"
)

func TestGRUParameterCount(t *testing.T) {
	// 3H*(D+H+1): update, reset and candidate blocks.
	tests := []struct {
		in, out, want int
	}{
		{1, 1, 9},
		{3, 4, 96},
		{10, 20, 1860},
	}
	for _, tt := range tests {
		g := NewGRU(tt.in, tt.out)
		if got := g.ParameterCount(); got != tt.want {
			t.Errorf("NewGRU(%d, %d).ParameterCount() = %d, expected %d", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestGRUForwardShapeAndRange(t *testing.T) {
	g := NewGRU(3, 5)
	g.SetParameters(randomParams(g.ParameterCount(), 21))

	out := g.Forward([]float64{0.1, -0.2, 0.3})

	if len(out) != 5 {
		t.Fatalf("Output length = %d, expected 5", len(out))
	}
	// h interpolates between hPrev = 0 and a tanh candidate.
	for i, v := range out {
		if v <= -1 || v >= 1 {
			t.Errorf("Output[%d] = %f outside (-1, 1)", i, v)
		}
	}
}

func TestGRUResetCellRestartsSequence(t *testing.T) {
	g := NewGRU(2, 3)
	g.SetParameters(randomParams(g.ParameterCount(), 22))

	x := []float64{0.4, 0.6}
	first := append([]float64(nil), g.Forward(x)...)
	g.Forward(x)

	g.ResetCell()
	restart := g.Forward(x)

	for i := range first {
		if math.Abs(first[i]-restart[i]) > 1e-12 {
			t.Errorf("After ResetCell output[%d] = %f, expected %f", i, restart[i], first[i])
		}
	}
}

func TestGRUForwardResumesAfterBackwardWindow(t *testing.T) {
	g := NewGRU(2, 3)
	params := randomParams(g.ParameterCount(), 26)
	g.SetParameters(params)
	g.SetGradient(make([]float64, g.ParameterCount()))

	inputs := [][]float64{{0.2, -0.1}, {0.7, 0.3}, {-0.4, 0.5}}

	g.ResetCell()
	var want []float64
	for _, x := range inputs {
		want = append([]float64(nil), g.Forward(x)...)
	}

	g.ResetCell()
	var outs [][]float64
	for _, x := range inputs[:2] {
		outs = append(outs, append([]float64(nil), g.Forward(x)...))
	}
	for ts := 1; ts >= 0; ts-- {
		gr := g.Backward(outs[ts], []float64{1, 1, 1})
		g.Gradient(inputs[ts], gr)
	}
	got := g.Forward(inputs[2])

	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Resumed output[%d] = %f, expected %f", i, got[i], want[i])
		}
	}
}

func TestGRUBackwardBeforeForward(t *testing.T) {
	g := NewGRU(2, 3)
	g.SetParameters(randomParams(g.ParameterCount(), 23))

	gradIn := g.Backward(nil, []float64{1, 1, 1})

	for i, v := range gradIn {
		if v != 0 {
			t.Errorf("Grad[%d] = %f, expected 0 with no stored steps", i, v)
		}
	}
}

func TestGRUGradientCheckSingleStep(t *testing.T) {
	g := NewGRU(3, 4)
	params := randomParams(g.ParameterCount(), 24)
	inputs := [][]float64{{0.3, -0.1, 0.2}}
	checkGradients(t, g, params, inputs)
}

func TestGRUGradientCheckThroughTime(t *testing.T) {
	// Three steps exercise the carried hidden gradient, including the
	// reset-gate path through the candidate.
	g := NewGRU(2, 3)
	params := randomParams(g.ParameterCount(), 25)
	inputs := [][]float64{
		{0.5, -0.2},
		{-0.3, 0.8},
		{0.1, 0.1},
	}
	checkGradients(t, g, params, inputs)
}

func BenchmarkGRUForward(b *testing.B) {
	g := NewGRU(64, 64)
	g.SetParameters(randomParams(g.ParameterCount(), 1))
	x := randomParams(64, 2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Forward(x)
		if i%128 == 127 {
			g.ResetCell()
		}
	}
}
