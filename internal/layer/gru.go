package layer

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoRNN/internal/activations"
)

// GRU is a gated recurrent unit cell with update and reset gates and a tanh
// candidate. Like LSTM it stores per-step state, pops it during the backward
// pass, and carries the hidden error across steps internally, dropping the
// carry at the bottom of the stored window. The hidden state survives the
// pops so forward processing can resume after a truncated backward window.
//
// The hidden update is h = (1-z)*g + z*hPrev. The candidate applies the reset
// gate to the previous hidden state before its recurrent product, so the
// recurrent weights split into a 2H x H block for the update and reset gates
// and an H x H block for the candidate. The parameter view is
// [Wx | Wh | Whc | b] with Wx of shape 3H x D and b of length 3H, gate order
// [update, reset, candidate].
type GRU struct {
	inSize  int
	outSize int

	inputWeights         []float64 // 3H x D
	gateRecurrentWeights []float64 // 2H x H
	candRecurrentWeights []float64 // H x H
	biases               []float64 // 3H

	gradInputWeights         []float64
	gradGateRecurrentWeights []float64
	gradCandRecurrentWeights []float64
	gradBiases               []float64

	gateAct activations.Sigmoid
	cellAct activations.Tanh

	// Current recurrent state, independent of the stored step stack.
	hiddenBuf []float64

	// State just before the oldest stored step.
	windowStartHidden []float64

	// Per-step state since the start of the current window. Entries at and
	// beyond timeStep are stale and never read.
	storedGates  [][]float64 // activated [z r g] per step
	storedHidden [][]float64
	timeStep     int

	dhCarry []float64

	preActBuf  []float64 // 3H
	dGatesBuf  []float64 // 3H
	candRecBuf []float64
	outputBuf  []float64
	hPrevBuf   []float64
	rhPrevBuf  []float64
	gradInBuf  []float64
}

// NewGRU creates a GRU cell mapping inSize inputs to outSize hidden units.
func NewGRU(inSize, outSize int) *GRU {
	if inSize <= 0 || outSize <= 0 {
		panic(fmt.Sprintf("GRU: invalid cell dimensions %dx%d", inSize, outSize))
	}
	return &GRU{
		inSize:  inSize,
		outSize: outSize,

		hiddenBuf:         make([]float64, outSize),
		windowStartHidden: make([]float64, outSize),

		dhCarry: make([]float64, outSize),

		preActBuf:  make([]float64, 3*outSize),
		dGatesBuf:  make([]float64, 3*outSize),
		candRecBuf: make([]float64, outSize),
		outputBuf:  make([]float64, outSize),
		hPrevBuf:   make([]float64, outSize),
		rhPrevBuf:  make([]float64, outSize),
		gradInBuf:  make([]float64, inSize),
	}
}

func (g *GRU) inputMatrix(data []float64) blas64.General {
	return blas64.General{Rows: 3 * g.outSize, Cols: g.inSize, Stride: g.inSize, Data: data}
}

func (g *GRU) gateRecurrentMatrix(data []float64) blas64.General {
	return blas64.General{Rows: 2 * g.outSize, Cols: g.outSize, Stride: g.outSize, Data: data}
}

func (g *GRU) candRecurrentMatrix(data []float64) blas64.General {
	return blas64.General{Rows: g.outSize, Cols: g.outSize, Stride: g.outSize, Data: data}
}

// Forward advances the cell by one time step and returns the hidden state.
func (g *GRU) Forward(x []float64) []float64 {
	H := g.outSize

	if g.timeStep == 0 {
		copy(g.windowStartHidden, g.hiddenBuf)
	}
	copy(g.hPrevBuf, g.hiddenBuf)

	// preAct = b + Wx*x for all three blocks, then the recurrent
	// contribution for the update and reset gates.
	copy(g.preActBuf, g.biases)
	blas64.Gemv(blas.NoTrans, 1, g.inputMatrix(g.inputWeights), vec(x), 1, vec(g.preActBuf))
	blas64.Gemv(blas.NoTrans, 1, g.gateRecurrentMatrix(g.gateRecurrentWeights), vec(g.hPrevBuf), 1, vec(g.preActBuf[:2*H]))

	gates := g.preActBuf
	for i := 0; i < H; i++ {
		gates[i] = g.gateAct.Activate(gates[i])
		gates[H+i] = g.gateAct.Activate(gates[H+i])
		g.rhPrevBuf[i] = gates[H+i] * g.hPrevBuf[i]
	}

	// Candidate sees the reset-gated hidden state.
	blas64.Gemv(blas.NoTrans, 1, g.candRecurrentMatrix(g.candRecurrentWeights), vec(g.rhPrevBuf), 1, vec(g.preActBuf[2*H:]))
	for i := 0; i < H; i++ {
		gates[2*H+i] = g.cellAct.Activate(gates[2*H+i])
		g.outputBuf[i] = (1-gates[i])*gates[2*H+i] + gates[i]*g.hPrevBuf[i]
	}

	g.storedGates = push(g.storedGates, g.timeStep, gates)
	g.storedHidden = push(g.storedHidden, g.timeStep, g.outputBuf)
	g.timeStep++

	copy(g.hiddenBuf, g.outputBuf)
	return g.outputBuf
}

// Backward pops the most recent step and returns the gradient with respect to
// that step's input. The hidden error carried from the following step is
// added internally; the gate deltas are kept for the Gradient call that
// follows.
func (g *GRU) Backward(output, grad []float64) []float64 {
	H := g.outSize
	ts := g.timeStep - 1
	if ts < 0 {
		for i := range g.gradInBuf {
			g.gradInBuf[i] = 0
		}
		return g.gradInBuf
	}

	gates := g.storedGates[ts]
	if ts > 0 {
		copy(g.hPrevBuf, g.storedHidden[ts-1])
	} else {
		copy(g.hPrevBuf, g.windowStartHidden)
	}

	d := g.dGatesBuf
	for i := 0; i < H; i++ {
		dh := grad[i] + g.dhCarry[i]
		z, cand := gates[i], gates[2*H+i]

		d[i] = dh * (g.hPrevBuf[i] - cand) * g.gateAct.DerivativeFromOutput(z)
		d[2*H+i] = dh * (1 - z) * g.cellAct.DerivativeFromOutput(cand)

		// Direct path h -> hPrev; gate paths are added below.
		g.dhCarry[i] = dh * z
	}

	// Reset-gate delta flows through the candidate's recurrent product.
	blas64.Gemv(blas.Trans, 1, g.candRecurrentMatrix(g.candRecurrentWeights), vec(d[2*H:]), 0, vec(g.candRecBuf))
	for i := 0; i < H; i++ {
		r := gates[H+i]
		d[H+i] = g.candRecBuf[i] * g.hPrevBuf[i] * g.gateAct.DerivativeFromOutput(r)
		g.dhCarry[i] += r * g.candRecBuf[i]
		g.rhPrevBuf[i] = r * g.hPrevBuf[i]
	}
	blas64.Gemv(blas.Trans, 1, g.gateRecurrentMatrix(g.gateRecurrentWeights), vec(d[:2*H]), 1, vec(g.dhCarry))

	blas64.Gemv(blas.Trans, 1, g.inputMatrix(g.inputWeights), vec(d), 0, vec(g.gradInBuf))

	g.timeStep--
	if g.timeStep == 0 {
		// Bottom of the stored window: drop the carry into older steps.
		for i := range g.dhCarry {
			g.dhCarry[i] = 0
		}
	}
	return g.gradInBuf
}

// Gradient accumulates the parameter gradients for the step popped by the
// preceding Backward call. input is that step's input vector.
func (g *GRU) Gradient(input, delta []float64) {
	H := g.outSize
	blas64.Ger(1, vec(g.dGatesBuf), vec(input), g.inputMatrix(g.gradInputWeights))
	blas64.Ger(1, vec(g.dGatesBuf[:2*H]), vec(g.hPrevBuf), g.gateRecurrentMatrix(g.gradGateRecurrentWeights))
	blas64.Ger(1, vec(g.dGatesBuf[2*H:]), vec(g.rhPrevBuf), g.candRecurrentMatrix(g.gradCandRecurrentWeights))
	floats.Add(g.gradBiases, g.dGatesBuf)
}

// ParameterCount returns 3H*(D+H+1).
func (g *GRU) ParameterCount() int {
	return 3 * g.outSize * (g.inSize + g.outSize + 1)
}

// SetParameters splits the arena view into the input, gate-recurrent,
// candidate-recurrent and bias blocks.
func (g *GRU) SetParameters(view []float64) {
	if len(view) != g.ParameterCount() {
		panic(fmt.Sprintf("GRU: parameter view has %d elements, want %d", len(view), g.ParameterCount()))
	}
	nIn := 3 * g.outSize * g.inSize
	nGate := 2 * g.outSize * g.outSize
	nCand := g.outSize * g.outSize
	g.inputWeights = view[:nIn]
	g.gateRecurrentWeights = view[nIn : nIn+nGate]
	g.candRecurrentWeights = view[nIn+nGate : nIn+nGate+nCand]
	g.biases = view[nIn+nGate+nCand:]
}

// SetGradient splits the gradient view the same way as SetParameters.
func (g *GRU) SetGradient(view []float64) {
	if len(view) != g.ParameterCount() {
		panic(fmt.Sprintf("GRU: gradient view has %d elements, want %d", len(view), g.ParameterCount()))
	}
	nIn := 3 * g.outSize * g.inSize
	nGate := 2 * g.outSize * g.outSize
	nCand := g.outSize * g.outSize
	g.gradInputWeights = view[:nIn]
	g.gradGateRecurrentWeights = view[nIn : nIn+nGate]
	g.gradCandRecurrentWeights = view[nIn+nGate : nIn+nGate+nCand]
	g.gradBiases = view[nIn+nGate+nCand:]
}

// ResetCell clears the recurrent state, the stored steps and the carried
// error so the next Forward starts a fresh sequence.
func (g *GRU) ResetCell() {
	g.timeStep = 0
	for i := range g.hiddenBuf {
		g.hiddenBuf[i] = 0
		g.windowStartHidden[i] = 0
		g.dhCarry[i] = 0
	}
}

func (g *GRU) InputSize() int { return g.inSize }

func (g *GRU) OutputSize() int { return g.outSize }
