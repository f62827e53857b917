package layer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoRNN/internal/activations"
)

// LSTM is a long short-term memory cell. It stores the gate outputs, cell
// state and hidden state of every forward step since the last backward
// window, and pops them in reverse order during the backward pass. The
// recurrent error is carried across steps internally: Backward folds the
// hidden and cell gradients from step t+1 into step t before returning the
// input gradient. When the pass reaches the oldest stored step the carry is
// dropped, so steps before the stored window receive no credit.
//
// The hidden and cell state survive the pops, so forward processing can
// resume where it left off after a truncated backward window. Only ResetCell
// clears them.
//
// Gate order is [input, forget, cell, output]; the parameter view is split
// as [Wx | Wh | b] with Wx of shape 4H x D, Wh of shape 4H x H and b of
// length 4H.
type LSTM struct {
	inSize  int
	outSize int

	// Parameter views into the network arena.
	inputWeights     []float64 // 4H x D
	recurrentWeights []float64 // 4H x H
	biases           []float64 // 4H

	gradInputWeights     []float64
	gradRecurrentWeights []float64
	gradBiases           []float64

	gateAct activations.Sigmoid
	cellAct activations.Tanh

	// Current recurrent state, independent of the stored step stacks.
	hiddenBuf []float64
	cellBuf   []float64

	// State just before the oldest stored step, needed when the backward
	// pass reaches the bottom of the window.
	windowStartHidden []float64
	windowStartCell   []float64

	// Per-step state since the start of the current window. Entries at and
	// beyond timeStep are stale and never read.
	storedGates  [][]float64 // 4H per step
	storedCells  [][]float64
	storedHidden [][]float64
	timeStep     int

	// Recurrent error carried from step t+1 to step t.
	dhCarry []float64
	dcCarry []float64

	preActBuf []float64 // 4H
	dGatesBuf []float64 // 4H
	outputBuf []float64
	cPrevBuf  []float64
	hPrevBuf  []float64
	gradInBuf []float64
}

// NewLSTM creates an LSTM cell mapping inSize inputs to outSize hidden units.
func NewLSTM(inSize, outSize int) *LSTM {
	if inSize <= 0 || outSize <= 0 {
		panic(fmt.Sprintf("LSTM: invalid cell dimensions %dx%d", inSize, outSize))
	}
	return &LSTM{
		inSize:  inSize,
		outSize: outSize,

		hiddenBuf:         make([]float64, outSize),
		cellBuf:           make([]float64, outSize),
		windowStartHidden: make([]float64, outSize),
		windowStartCell:   make([]float64, outSize),

		dhCarry: make([]float64, outSize),
		dcCarry: make([]float64, outSize),

		preActBuf: make([]float64, 4*outSize),
		dGatesBuf: make([]float64, 4*outSize),
		outputBuf: make([]float64, outSize),
		cPrevBuf:  make([]float64, outSize),
		hPrevBuf:  make([]float64, outSize),
		gradInBuf: make([]float64, inSize),
	}
}

func (l *LSTM) inputMatrix(data []float64) blas64.General {
	return blas64.General{Rows: 4 * l.outSize, Cols: l.inSize, Stride: l.inSize, Data: data}
}

func (l *LSTM) recurrentMatrix(data []float64) blas64.General {
	return blas64.General{Rows: 4 * l.outSize, Cols: l.outSize, Stride: l.outSize, Data: data}
}

// push copies src into stack[step], growing the stack on first use and
// reusing step slices afterwards.
func push(stack [][]float64, step int, src []float64) [][]float64 {
	if step >= len(stack) {
		stack = append(stack, make([]float64, len(src)))
	}
	copy(stack[step], src)
	return stack
}

// Forward advances the cell by one time step and returns the hidden state.
func (l *LSTM) Forward(x []float64) []float64 {
	H := l.outSize

	if l.timeStep == 0 {
		copy(l.windowStartHidden, l.hiddenBuf)
		copy(l.windowStartCell, l.cellBuf)
	}

	// preAct = b + Wx*x + Wh*hPrev, laid out as [i f g o].
	copy(l.preActBuf, l.biases)
	blas64.Gemv(blas.NoTrans, 1, l.inputMatrix(l.inputWeights), vec(x), 1, vec(l.preActBuf))
	blas64.Gemv(blas.NoTrans, 1, l.recurrentMatrix(l.recurrentWeights), vec(l.hiddenBuf), 1, vec(l.preActBuf))

	// Sigmoid on the input, forget and output gates, tanh on the cell
	// candidate.
	gates := l.preActBuf
	for i := 0; i < H; i++ {
		gates[i] = l.gateAct.Activate(gates[i])
		gates[H+i] = l.gateAct.Activate(gates[H+i])
		gates[2*H+i] = l.cellAct.Activate(gates[2*H+i])
		gates[3*H+i] = l.gateAct.Activate(gates[3*H+i])
	}

	for i := 0; i < H; i++ {
		l.cellBuf[i] = gates[H+i]*l.cellBuf[i] + gates[i]*gates[2*H+i]
		l.hiddenBuf[i] = gates[3*H+i] * math.Tanh(l.cellBuf[i])
	}

	l.storedGates = push(l.storedGates, l.timeStep, gates)
	l.storedCells = push(l.storedCells, l.timeStep, l.cellBuf)
	l.storedHidden = push(l.storedHidden, l.timeStep, l.hiddenBuf)
	l.timeStep++

	copy(l.outputBuf, l.hiddenBuf)
	return l.outputBuf
}

// Backward pops the most recent step and returns the gradient with respect to
// that step's input. The incoming grad is the downstream error at the popped
// step; the hidden and cell errors carried from the following step are added
// internally. The gate deltas are kept for the Gradient call that follows.
func (l *LSTM) Backward(output, grad []float64) []float64 {
	H := l.outSize
	ts := l.timeStep - 1
	if ts < 0 {
		for i := range l.gradInBuf {
			l.gradInBuf[i] = 0
		}
		return l.gradInBuf
	}

	gates := l.storedGates[ts]
	c := l.storedCells[ts]
	if ts > 0 {
		copy(l.cPrevBuf, l.storedCells[ts-1])
		copy(l.hPrevBuf, l.storedHidden[ts-1])
	} else {
		copy(l.cPrevBuf, l.windowStartCell)
		copy(l.hPrevBuf, l.windowStartHidden)
	}

	d := l.dGatesBuf
	for i := 0; i < H; i++ {
		dh := grad[i] + l.dhCarry[i]
		tanhC := math.Tanh(c[i])
		dc := dh*gates[3*H+i]*(1-tanhC*tanhC) + l.dcCarry[i]

		d[i] = dc * gates[2*H+i] * l.gateAct.DerivativeFromOutput(gates[i])
		d[H+i] = dc * l.cPrevBuf[i] * l.gateAct.DerivativeFromOutput(gates[H+i])
		d[2*H+i] = dc * gates[i] * l.cellAct.DerivativeFromOutput(gates[2*H+i])
		d[3*H+i] = dh * tanhC * l.gateAct.DerivativeFromOutput(gates[3*H+i])

		l.dcCarry[i] = dc * gates[H+i]
	}

	blas64.Gemv(blas.Trans, 1, l.recurrentMatrix(l.recurrentWeights), vec(d), 0, vec(l.dhCarry))
	blas64.Gemv(blas.Trans, 1, l.inputMatrix(l.inputWeights), vec(d), 0, vec(l.gradInBuf))

	l.timeStep--
	if l.timeStep == 0 {
		// Bottom of the stored window: the carry would credit steps that
		// are no longer retained.
		for i := range l.dhCarry {
			l.dhCarry[i] = 0
			l.dcCarry[i] = 0
		}
	}
	return l.gradInBuf
}

// Gradient accumulates the parameter gradients for the step popped by the
// preceding Backward call. input is that step's input vector.
func (l *LSTM) Gradient(input, delta []float64) {
	blas64.Ger(1, vec(l.dGatesBuf), vec(input), l.inputMatrix(l.gradInputWeights))
	blas64.Ger(1, vec(l.dGatesBuf), vec(l.hPrevBuf), l.recurrentMatrix(l.gradRecurrentWeights))
	floats.Add(l.gradBiases, l.dGatesBuf)
}

// ParameterCount returns 4H*(D+H+1).
func (l *LSTM) ParameterCount() int {
	return 4 * l.outSize * (l.inSize + l.outSize + 1)
}

// SetParameters splits the arena view into the input, recurrent and bias
// blocks.
func (l *LSTM) SetParameters(view []float64) {
	if len(view) != l.ParameterCount() {
		panic(fmt.Sprintf("LSTM: parameter view has %d elements, want %d", len(view), l.ParameterCount()))
	}
	nIn := 4 * l.outSize * l.inSize
	nRec := 4 * l.outSize * l.outSize
	l.inputWeights = view[:nIn]
	l.recurrentWeights = view[nIn : nIn+nRec]
	l.biases = view[nIn+nRec:]
}

// SetGradient splits the gradient view the same way as SetParameters.
func (l *LSTM) SetGradient(view []float64) {
	if len(view) != l.ParameterCount() {
		panic(fmt.Sprintf("LSTM: gradient view has %d elements, want %d", len(view), l.ParameterCount()))
	}
	nIn := 4 * l.outSize * l.inSize
	nRec := 4 * l.outSize * l.outSize
	l.gradInputWeights = view[:nIn]
	l.gradRecurrentWeights = view[nIn : nIn+nRec]
	l.gradBiases = view[nIn+nRec:]
}

// ResetCell clears the recurrent state, the stored steps and the carried
// error so the next Forward starts a fresh sequence.
func (l *LSTM) ResetCell() {
	l.timeStep = 0
	for i := range l.hiddenBuf {
		l.hiddenBuf[i] = 0
		l.cellBuf[i] = 0
		l.windowStartHidden[i] = 0
		l.windowStartCell[i] = 0
		l.dhCarry[i] = 0
		l.dcCarry[i] = 0
	}
}

func (l *LSTM) InputSize() int { return l.inSize }

func (l *LSTM) OutputSize() int { return l.outSize }
