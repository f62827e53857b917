package layer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// layerNormEpsilon keeps the variance strictly positive.
const layerNormEpsilon = 1e-5

// LayerNorm normalizes each time step's vector to zero mean and unit variance
// and applies a learned elementwise gain and shift. The parameter view is
// [gamma | beta]; CustomInitialize starts gamma at one and beta at zero
// regardless of the network's initialization rule.
//
// The normalized vector and inverse deviation of every forward step are
// pushed on a stack and popped in reverse during the backward pass, the same
// discipline the recurrent cells follow.
type LayerNorm struct {
	size int

	// Parameter views into the network arena.
	gamma []float64
	beta  []float64

	gradGamma []float64
	gradBeta  []float64

	// Per-step normalization context of the current window.
	storedNorm   [][]float64
	storedInvStd []float64
	timeStep     int

	// Context of the step most recently popped by Backward, read by the
	// Gradient call that follows.
	poppedNorm []float64

	outputBuf []float64
	gradInBuf []float64
	dNormBuf  []float64
}

// NewLayerNorm creates a layer normalization layer of the given width.
func NewLayerNorm(size int) *LayerNorm {
	if size <= 0 {
		panic(fmt.Sprintf("LayerNorm: invalid width %d", size))
	}
	return &LayerNorm{
		size:      size,
		outputBuf: make([]float64, size),
		gradInBuf: make([]float64, size),
		dNormBuf:  make([]float64, size),
	}
}

// Forward normalizes x across its components and applies the affine map.
func (l *LayerNorm) Forward(x []float64) []float64 {
	if len(x) != l.size {
		panic(fmt.Sprintf("LayerNorm: input has %d elements, want %d", len(x), l.size))
	}
	mean := stat.Mean(x, nil)
	invStd := 1 / math.Sqrt(stat.PopVariance(x, nil)+layerNormEpsilon)

	if l.timeStep >= len(l.storedNorm) {
		l.storedNorm = append(l.storedNorm, make([]float64, l.size))
		l.storedInvStd = append(l.storedInvStd, 0)
	}
	norm := l.storedNorm[l.timeStep]
	l.storedInvStd[l.timeStep] = invStd
	l.timeStep++

	for i, v := range x {
		norm[i] = (v - mean) * invStd
		l.outputBuf[i] = l.gamma[i]*norm[i] + l.beta[i]
	}
	return l.outputBuf
}

// Backward pops the most recent step and returns the input gradient. The mean
// and deviation are themselves functions of the input, so the incoming
// gradient is recentered and decorrelated from the normalized vector before
// the inverse deviation is applied.
func (l *LayerNorm) Backward(output, grad []float64) []float64 {
	ts := l.timeStep - 1
	if ts < 0 {
		for i := range l.gradInBuf {
			l.gradInBuf[i] = 0
		}
		l.poppedNorm = nil
		return l.gradInBuf
	}
	norm := l.storedNorm[ts]
	invStd := l.storedInvStd[ts]
	l.timeStep--
	l.poppedNorm = norm

	for i := range l.dNormBuf {
		l.dNormBuf[i] = grad[i] * l.gamma[i]
	}
	m1 := floats.Sum(l.dNormBuf) / float64(l.size)
	m2 := floats.Dot(l.dNormBuf, norm) / float64(l.size)
	for i := range l.gradInBuf {
		l.gradInBuf[i] = (l.dNormBuf[i] - m1 - norm[i]*m2) * invStd
	}
	return l.gradInBuf
}

// Gradient accumulates the gain and shift gradients for the step popped by
// the preceding Backward call.
func (l *LayerNorm) Gradient(input, delta []float64) {
	if l.poppedNorm == nil {
		return
	}
	for i := range delta {
		l.gradGamma[i] += delta[i] * l.poppedNorm[i]
	}
	floats.Add(l.gradBeta, delta)
}

// ParameterCount returns the gain plus shift width.
func (l *LayerNorm) ParameterCount() int { return 2 * l.size }

// SetParameters splits the view into the gain and shift vectors.
func (l *LayerNorm) SetParameters(view []float64) {
	if len(view) != l.ParameterCount() {
		panic(fmt.Sprintf("LayerNorm: parameter view has %d elements, want %d", len(view), l.ParameterCount()))
	}
	l.gamma = view[:l.size]
	l.beta = view[l.size:]
}

// SetGradient splits the view like SetParameters.
func (l *LayerNorm) SetGradient(view []float64) {
	if len(view) != l.ParameterCount() {
		panic(fmt.Sprintf("LayerNorm: gradient view has %d elements, want %d", len(view), l.ParameterCount()))
	}
	l.gradGamma = view[:l.size]
	l.gradBeta = view[l.size:]
}

// CustomInitialize starts the gain at one and the shift at zero.
func (l *LayerNorm) CustomInitialize(view []float64) {
	for i := 0; i < l.size; i++ {
		view[i] = 1
		view[l.size+i] = 0
	}
}

// ResetCell discards step context left over from a previous sequence.
func (l *LayerNorm) ResetCell() {
	l.timeStep = 0
	l.poppedNorm = nil
}

// InputSize returns the layer width.
func (l *LayerNorm) InputSize() int { return l.size }

// OutputSize returns the layer width.
func (l *LayerNorm) OutputSize() int { return l.size }
