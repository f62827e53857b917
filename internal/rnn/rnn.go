// Package rnn implements a recurrent network container trained with
// truncated backpropagation through time. A network is an ordered stack of
// layers sharing one flat parameter buffer and one flat gradient buffer;
// training data is a rank-3 cube indexed (feature, sequence, time step).
//
// Sequences are processed in tumbling windows of at most rho steps: each
// window runs forward, caching every layer's per-step output, and then
// backward over just those steps. Recurrent state flows across window
// boundaries, but gradient credit does not, which is the truncation that
// bounds BPTT depth and memory.
//
// The network satisfies the decomposable objective contract the optimizers
// in the opt package drive: Evaluate, EvaluateWithGradient, Gradient,
// NumFunctions and Shuffle, where function i is the i'th sequence.
package rnn

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/opt"
	"github.com/FlavioCFOliveira/GoRNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

// Network is a stack of layers unrolled over time.
type Network struct {
	rho    int
	single bool

	layers      []layer.Layer
	outputLayer loss.Loss
	init        weights.Initializer

	// Flat buffers; each layer aliases its sub-range.
	parameter []float64
	gradient  []float64
	offsets   []int

	// Set by Train; drives the objective contract.
	predictors *tensor.Cube
	responses  *tensor.Cube

	initialized bool

	// Per-step output cache for the current window, one slot per window
	// step per layer.
	outputs [][][]float64

	// Delta entering each layer at the current step. These alias layer
	// buffers that stay valid through the step's gradient pass.
	deltas [][]float64

	lossGradBuf []float64

	rng *rand.Rand
}

// New creates a network with BPTT depth rho, per-step scoring, a negative
// log likelihood output layer and uniform initialization in [-1, 1].
func New(rho int) *Network {
	return NewWithOptions(rho, false, loss.NegativeLogLikelihood{}, weights.NewUniform(-1, 1))
}

// NewWithOptions creates a network with BPTT depth rho. If single is true
// only the final time step is scored against the single response slice.
func NewWithOptions(rho int, single bool, outputLayer loss.Loss, init weights.Initializer) *Network {
	if rho < 1 {
		panic(fmt.Sprintf("rnn: rho must be at least 1, got %d", rho))
	}
	if outputLayer == nil || init == nil {
		panic("rnn: output layer and initializer must not be nil")
	}
	return &Network{
		rho:         rho,
		single:      single,
		outputLayer: outputLayer,
		init:        init,
		rng:         rand.New(rand.NewSource(42)),
	}
}

// Add appends a layer to the forward chain. Adding a layer invalidates any
// previously initialized parameters.
func (n *Network) Add(l layer.Layer) {
	n.layers = append(n.layers, l)
	n.initialized = false
}

// Reset validates the layer chain and binds every layer to its view of the
// flat parameter and gradient buffers. It is idempotent: if the buffers
// already have the right size their values are kept.
func (n *Network) Reset() error {
	if len(n.layers) == 0 {
		return errors.New("rnn: network has no layers")
	}
	for i := 1; i < len(n.layers); i++ {
		if n.layers[i].InputSize() != n.layers[i-1].OutputSize() {
			return fmt.Errorf("rnn: layer %d expects %d inputs but layer %d produces %d outputs",
				i, n.layers[i].InputSize(), i-1, n.layers[i-1].OutputSize())
		}
	}

	total := 0
	n.offsets = n.offsets[:0]
	for _, ly := range n.layers {
		n.offsets = append(n.offsets, total)
		total += ly.ParameterCount()
	}
	if len(n.parameter) != total {
		n.parameter = make([]float64, total)
		n.gradient = make([]float64, total)
		n.initialized = false
	}
	for i, ly := range n.layers {
		end := n.offsets[i] + ly.ParameterCount()
		ly.SetParameters(n.parameter[n.offsets[i]:end])
		ly.SetGradient(n.gradient[n.offsets[i]:end])
	}
	return nil
}

// ResetParameters initializes every layer's parameter view with the
// network's initialization rule, resetting structure first if needed.
func (n *Network) ResetParameters() error {
	if err := n.Reset(); err != nil {
		return err
	}
	for i, ly := range n.layers {
		view := n.parameter[n.offsets[i] : n.offsets[i]+ly.ParameterCount()]
		n.init.Initialize(view, ly.InputSize(), ly.OutputSize())
		if c, ok := ly.(layer.CustomInitializer); ok {
			c.CustomInitialize(view)
		}
	}
	n.initialized = true
	return nil
}

// ResetCells clears the recurrent state of every stateful layer, so the next
// forward step starts an independent sequence.
func (n *Network) ResetCells() {
	for _, ly := range n.layers {
		if s, ok := ly.(layer.Stateful); ok {
			s.ResetCell()
		}
	}
}

func (n *Network) setDeterministic(deterministic bool) {
	for _, ly := range n.layers {
		if d, ok := ly.(layer.DeterministicLayer); ok {
			d.SetDeterministic(deterministic)
		}
	}
}

// Train fits the network to the given sequences. predictors is a
// (features, sequences, T) cube; responses is (targets, sequences, T), or
// (targets, sequences, 1) in single mode. Parameters are initialized with
// the network's initialization rule unless already initialized, so repeated
// Train calls continue from the current values. The returned loss is the
// optimizer's final objective value.
func (n *Network) Train(predictors, responses *tensor.Cube, optimizer opt.Optimizer, callbacks ...opt.Callback) (float64, error) {
	if predictors == nil || responses == nil {
		return 0, errors.New("rnn: nil training data")
	}
	if err := n.Reset(); err != nil {
		return 0, err
	}
	if got, want := predictors.Rows(), n.layers[0].InputSize(); got != want {
		return 0, fmt.Errorf("rnn: predictors have %d features but the first layer expects %d", got, want)
	}
	if predictors.Cols() != responses.Cols() {
		return 0, fmt.Errorf("rnn: %d predictor sequences but %d response sequences", predictors.Cols(), responses.Cols())
	}
	if n.single {
		if responses.Slices() != 1 {
			return 0, fmt.Errorf("rnn: single mode expects responses with one time step, got %d", responses.Slices())
		}
	} else if responses.Slices() != predictors.Slices() {
		return 0, fmt.Errorf("rnn: predictors have %d time steps but responses have %d", predictors.Slices(), responses.Slices())
	}

	n.predictors = predictors
	n.responses = responses
	if !n.initialized {
		if err := n.ResetParameters(); err != nil {
			return 0, err
		}
	}
	n.ensureScratch()

	return optimizer.Optimize(n, n.parameter, callbacks...), nil
}

// Predict runs a deterministic forward pass over every sequence in
// predictors and returns an (outputs, sequences, T) cube holding the
// network output at every time step. In single mode the last slice is the
// sequence-level prediction.
func (n *Network) Predict(predictors *tensor.Cube) (*tensor.Cube, error) {
	if predictors == nil {
		return nil, errors.New("rnn: nil predictors")
	}
	if err := n.Reset(); err != nil {
		return nil, err
	}
	if !n.initialized {
		if err := n.ResetParameters(); err != nil {
			return nil, err
		}
	}
	if got, want := predictors.Rows(), n.layers[0].InputSize(); got != want {
		return nil, fmt.Errorf("rnn: predictors have %d features but the first layer expects %d", got, want)
	}
	n.setDeterministic(true)

	T := predictors.Slices()
	results := tensor.New(n.layers[len(n.layers)-1].OutputSize(), predictors.Cols(), T)
	for j := 0; j < predictors.Cols(); j++ {
		n.ResetCells()
		for t := 0; t < T; t++ {
			cur := predictors.Vector(j, t)
			for _, ly := range n.layers {
				cur = ly.Forward(cur)
			}
			copy(results.Vector(j, t), cur)
		}
	}
	return results, nil
}

// Evaluate returns the summed loss of the sequences in [begin, begin+batchSize)
// without touching the gradient buffer. A nil params uses the current
// parameters; otherwise params is copied in and must match the parameter
// count. Stochastic layers follow the deterministic flag. A NaN or Inf sum
// is returned as-is for the optimizer to detect.
func (n *Network) Evaluate(params []float64, begin, batchSize int, deterministic bool) float64 {
	n.requireData()
	n.ensureInitialized()
	n.adoptParameters(params)
	n.checkBatch(begin, batchSize)
	n.setDeterministic(deterministic)
	n.ensureScratch()

	total := 0.0
	for i := begin; i < begin+batchSize; i++ {
		total += n.evaluateSequence(i, false)
	}
	return total
}

// EvaluateWithGradient computes the summed loss of the sequences in
// [begin, begin+batchSize) and writes the aggregated parameter gradient into
// gradient, which must match the parameter count. The gradient buffer is
// zeroed exactly once before accumulation; every window of every sequence
// then adds its contribution, which is the weight-sharing sum BPTT requires.
func (n *Network) EvaluateWithGradient(params []float64, begin, batchSize int, gradient []float64) float64 {
	n.requireData()
	n.ensureInitialized()
	n.adoptParameters(params)
	n.checkBatch(begin, batchSize)
	if len(gradient) != len(n.gradient) {
		panic(fmt.Sprintf("rnn: gradient vector has %d elements, want %d", len(gradient), len(n.gradient)))
	}
	n.setDeterministic(false)
	n.ensureScratch()

	for i := range n.gradient {
		n.gradient[i] = 0
	}
	total := 0.0
	for i := begin; i < begin+batchSize; i++ {
		total += n.evaluateSequence(i, true)
	}
	if len(gradient) > 0 && &gradient[0] != &n.gradient[0] {
		copy(gradient, n.gradient)
	}
	return total
}

// Gradient computes the aggregated parameter gradient of the sequences in
// [begin, begin+batchSize), discarding the loss value.
func (n *Network) Gradient(params []float64, begin, batchSize int, gradient []float64) {
	n.EvaluateWithGradient(params, begin, batchSize, gradient)
}

// NumFunctions returns the number of separable objective terms: one per
// training sequence.
func (n *Network) NumFunctions() int {
	if n.predictors == nil {
		return 0
	}
	return n.predictors.Cols()
}

// Shuffle permutes the training sequences, keeping each predictor sequence
// paired with its responses.
func (n *Network) Shuffle() {
	if n.predictors == nil {
		return
	}
	perm := n.rng.Perm(n.predictors.Cols())
	n.predictors.Permute(perm)
	n.responses.Permute(perm)
}

// Rho returns the maximum BPTT depth.
func (n *Network) Rho() int { return n.rho }

// Single reports whether only the final time step is scored.
func (n *Network) Single() bool { return n.single }

// Layers returns the layer chain.
func (n *Network) Layers() []layer.Layer { return n.layers }

// OutputLayer returns the error metric scored against the responses.
func (n *Network) OutputLayer() loss.Loss { return n.outputLayer }

// Parameters returns the live flat parameter buffer. It is nil until the
// network has been reset.
func (n *Network) Parameters() []float64 { return n.parameter }

// ParameterCount returns the summed parameter count of all layers.
func (n *Network) ParameterCount() int {
	total := 0
	for _, ly := range n.layers {
		total += ly.ParameterCount()
	}
	return total
}

// evaluateSequence scores sequence j, optionally running the backward pass
// of every window to accumulate gradients.
func (n *Network) evaluateSequence(j int, withGradient bool) float64 {
	T := n.predictors.Slices()
	W := min(n.rho, T)
	n.ResetCells()

	total := 0.0
	for start := 0; start < T; start += W {
		end := min(start+W, T)
		for t := start; t < end; t++ {
			cur := n.predictors.Vector(j, t)
			for li, ly := range n.layers {
				cur = ly.Forward(cur)
				if withGradient {
					copy(n.outputs[li][t-start], cur)
				}
			}
			if !n.single || t == T-1 {
				total += n.outputLayer.Forward(cur, n.target(j, t))
			}
		}
		if withGradient {
			n.backwardWindow(j, start, end)
		}
	}
	return total
}

// backwardWindow walks the cached steps [start, end) in reverse, propagating
// the output-layer error down the stack at each step and accumulating every
// layer's parameter gradient.
func (n *Network) backwardWindow(j, start, end int) {
	T := n.predictors.Slices()
	L := len(n.layers)
	for t := end - 1; t >= start; t-- {
		slot := t - start
		if !n.single || t == T-1 {
			n.lossGrad(n.outputs[L-1][slot], n.target(j, t))
		} else {
			for i := range n.lossGradBuf {
				n.lossGradBuf[i] = 0
			}
		}

		delta := n.lossGradBuf
		for l := L - 1; l >= 0; l-- {
			n.deltas[l] = delta
			delta = n.layers[l].Backward(n.outputs[l][slot], delta)
		}
		for l := L - 1; l >= 0; l-- {
			n.layers[l].Gradient(n.stepInput(j, t, l, slot), n.deltas[l])
		}
	}
}

// target returns the response vector scored at step t.
func (n *Network) target(j, t int) []float64 {
	if n.single {
		return n.responses.Vector(j, 0)
	}
	return n.responses.Vector(j, t)
}

// stepInput returns the input layer l saw at step t of sequence j.
func (n *Network) stepInput(j, t, l, slot int) []float64 {
	if l == 0 {
		return n.predictors.Vector(j, t)
	}
	return n.outputs[l-1][slot]
}

// lossGrad writes the output-layer gradient into the loss gradient buffer.
func (n *Network) lossGrad(yPred, yTrue []float64) {
	if in, ok := n.outputLayer.(loss.BackwardInPlacer); ok {
		in.BackwardInPlace(yPred, yTrue, n.lossGradBuf)
		return
	}
	copy(n.lossGradBuf, n.outputLayer.Backward(yPred, yTrue))
}

func (n *Network) requireData() {
	if n.predictors == nil {
		panic("rnn: no training data; Train binds the sequences the objective evaluates")
	}
}

func (n *Network) checkBatch(begin, batchSize int) {
	if begin < 0 || batchSize < 1 || begin+batchSize > n.NumFunctions() {
		panic(fmt.Sprintf("rnn: batch [%d, %d) out of range for %d sequences", begin, begin+batchSize, n.NumFunctions()))
	}
}

// ensureInitialized lazily initializes parameters so evaluation works on a
// freshly assembled network.
func (n *Network) ensureInitialized() {
	if n.parameter != nil {
		return
	}
	if err := n.ResetParameters(); err != nil {
		panic(err)
	}
}

// adoptParameters copies an explicit parameter vector into the arena. The
// optimizers pass the arena itself, which is left untouched.
func (n *Network) adoptParameters(params []float64) {
	if params == nil {
		return
	}
	if len(params) != len(n.parameter) {
		panic(fmt.Sprintf("rnn: parameter vector has %d elements, want %d", len(params), len(n.parameter)))
	}
	if len(params) == 0 || &params[0] == &n.parameter[0] {
		return
	}
	copy(n.parameter, params)
}

// ensureScratch sizes the per-window output cache and the loss gradient
// buffer for the currently bound data.
func (n *Network) ensureScratch() {
	W := min(n.rho, n.predictors.Slices())
	if len(n.outputs) != len(n.layers) {
		n.outputs = make([][][]float64, len(n.layers))
	}
	for l, ly := range n.layers {
		for len(n.outputs[l]) < W {
			n.outputs[l] = append(n.outputs[l], make([]float64, ly.OutputSize()))
		}
	}
	if len(n.deltas) != len(n.layers) {
		n.deltas = make([][]float64, len(n.layers))
	}
	if out := n.layers[len(n.layers)-1].OutputSize(); len(n.lossGradBuf) != out {
		n.lossGradBuf = make([]float64, out)
	}
}
