// Package opt provides comprehensive unit tests for optimizers.
package opt

import (
	"math"
	"testing"
)

// quadratic is a toy decomposable objective: term i is |params - center_i|^2.
// The full-batch minimum is the centroid of the centers.
type quadratic struct {
	centers  [][]float64
	shuffles int
	batches  [][2]int
}

func (q *quadratic) Evaluate(params []float64, begin, batchSize int, deterministic bool) float64 {
	total := 0.0
	for i := begin; i < begin+batchSize; i++ {
		for d := range params {
			diff := params[d] - q.centers[i][d]
			total += diff * diff
		}
	}
	return total
}

func (q *quadratic) EvaluateWithGradient(params []float64, begin, batchSize int, gradient []float64) float64 {
	q.batches = append(q.batches, [2]int{begin, batchSize})
	for d := range gradient {
		gradient[d] = 0
	}
	total := 0.0
	for i := begin; i < begin+batchSize; i++ {
		for d := range params {
			diff := params[d] - q.centers[i][d]
			total += diff * diff
			gradient[d] += 2 * diff
		}
	}
	return total
}

func (q *quadratic) Gradient(params []float64, begin, batchSize int, gradient []float64) {
	q.EvaluateWithGradient(params, begin, batchSize, gradient)
}

func (q *quadratic) NumFunctions() int { return len(q.centers) }

func (q *quadratic) Shuffle() { q.shuffles++ }

// TestOptimizerInterface tests that all optimizers satisfy the interfaces.
func TestOptimizerInterface(t *testing.T) {
	var _ Optimizer = &SGD{}
	var _ Optimizer = &Adam{}
	var _ Optimizer = &AdamW{}
	var _ Optimizer = &RMSProp{}

	var _ LearningRater = &SGD{}
	var _ LearningRater = &Adam{}
	var _ LearningRater = &AdamW{}
	var _ LearningRater = &RMSProp{}
}

// TestSGDConvergesOnQuadratic tests that full-batch SGD finds the centroid.
func TestSGDConvergesOnQuadratic(t *testing.T) {
	q := &quadratic{centers: [][]float64{{1, 3}, {3, 5}}}
	params := []float64{10, -10}

	sgd := NewSGD(0.1)
	sgd.Momentum = 0
	sgd.BatchSize = 2
	sgd.Epochs = 200
	sgd.Shuffle = false

	loss := sgd.Optimize(q, params)

	// Minimum of the mean objective is the centroid (2, 4).
	if math.Abs(params[0]-2) > 1e-3 || math.Abs(params[1]-4) > 1e-3 {
		t.Errorf("params = %v, expected near [2 4]", params)
	}
	if math.IsNaN(loss) {
		t.Error("Optimize returned NaN on a well-behaved objective")
	}
}

// TestSGDMomentumConverges tests that the momentum path also converges.
func TestSGDMomentumConverges(t *testing.T) {
	q := &quadratic{centers: [][]float64{{1, 3}, {3, 5}}}
	params := []float64{10, -10}

	sgd := NewSGD(0.05)
	sgd.BatchSize = 2
	sgd.Epochs = 300
	sgd.Shuffle = false

	sgd.Optimize(q, params)

	if math.Abs(params[0]-2) > 1e-3 || math.Abs(params[1]-4) > 1e-3 {
		t.Errorf("params = %v, expected near [2 4]", params)
	}
}

// TestAdamConvergesOnQuadratic tests Adam on the same objective.
func TestAdamConvergesOnQuadratic(t *testing.T) {
	q := &quadratic{centers: [][]float64{{1, 3}, {3, 5}}}
	params := []float64{10, -10}

	adam := NewAdam(0.5)
	adam.BatchSize = 2
	adam.Epochs = 300
	adam.Shuffle = false

	adam.Optimize(q, params)

	if math.Abs(params[0]-2) > 1e-2 || math.Abs(params[1]-4) > 1e-2 {
		t.Errorf("params = %v, expected near [2 4]", params)
	}
}

// TestRMSPropConvergesOnQuadratic tests RMSProp on the same objective.
func TestRMSPropConvergesOnQuadratic(t *testing.T) {
	q := &quadratic{centers: [][]float64{{1, 3}, {3, 5}}}
	params := []float64{10, -10}

	rms := NewRMSProp(0.5)
	rms.BatchSize = 2
	rms.Epochs = 300
	rms.Shuffle = false

	rms.Optimize(q, params)

	if math.Abs(params[0]-2) > 1e-2 || math.Abs(params[1]-4) > 1e-2 {
		t.Errorf("params = %v, expected near [2 4]", params)
	}
}

// TestAdamWZeroDecayMatchesAdam tests that AdamW with zero weight decay
// takes exactly Adam's trajectory.
func TestAdamWZeroDecayMatchesAdam(t *testing.T) {
	centers := [][]float64{{1, 3}, {3, 5}}

	paramsA := []float64{10, -10}
	adam := NewAdam(0.1)
	adam.BatchSize = 2
	adam.Epochs = 50
	adam.Shuffle = false
	adam.Optimize(&quadratic{centers: centers}, paramsA)

	paramsW := []float64{10, -10}
	adamW := NewAdamW(0.1, 0)
	adamW.BatchSize = 2
	adamW.Epochs = 50
	adamW.Shuffle = false
	adamW.Optimize(&quadratic{centers: centers}, paramsW)

	for i := range paramsA {
		if math.Abs(paramsA[i]-paramsW[i]) > 1e-12 {
			t.Errorf("params[%d]: Adam %v, AdamW(0) %v", i, paramsA[i], paramsW[i])
		}
	}
}

// TestAdamWDecayShrinksParameters tests that weight decay biases the
// solution toward the origin.
func TestAdamWDecayShrinksParameters(t *testing.T) {
	centers := [][]float64{{5, 5}}

	plain := []float64{5, 5}
	a := NewAdamW(0.1, 0)
	a.BatchSize = 1
	a.Epochs = 100
	a.Shuffle = false
	a.Optimize(&quadratic{centers: centers}, plain)

	decayed := []float64{5, 5}
	d := NewAdamW(0.1, 0.1)
	d.BatchSize = 1
	d.Epochs = 100
	d.Shuffle = false
	d.Optimize(&quadratic{centers: centers}, decayed)

	for i := range plain {
		if math.Abs(decayed[i]) >= math.Abs(plain[i]) {
			t.Errorf("param %d: decayed %v should be closer to zero than %v", i, decayed[i], plain[i])
		}
	}
}

// TestShuffleOncePerEpoch tests that the objective is shuffled exactly once
// per epoch.
func TestShuffleOncePerEpoch(t *testing.T) {
	q := &quadratic{centers: [][]float64{{0}, {0}, {0}}}
	params := []float64{1}

	sgd := NewSGD(0.01)
	sgd.BatchSize = 3
	sgd.Epochs = 5

	sgd.Optimize(q, params)

	if q.shuffles != 5 {
		t.Errorf("Shuffle called %d times, expected 5", q.shuffles)
	}
}

// TestBatchPartitioning tests that every epoch visits contiguous batches
// covering all terms, with a short final batch.
func TestBatchPartitioning(t *testing.T) {
	q := &quadratic{centers: [][]float64{{0}, {0}, {0}, {0}, {0}}}
	params := []float64{1}

	sgd := NewSGD(0.01)
	sgd.BatchSize = 2
	sgd.Epochs = 1
	sgd.Shuffle = false

	sgd.Optimize(q, params)

	expected := [][2]int{{0, 2}, {2, 2}, {4, 1}}
	if len(q.batches) != len(expected) {
		t.Fatalf("saw %d batches, expected %d", len(q.batches), len(expected))
	}
	for i, b := range q.batches {
		if b != expected[i] {
			t.Errorf("batch %d = %v, expected %v", i, b, expected[i])
		}
	}
}

// nanObjective reports NaN on the first gradient evaluation.
type nanObjective struct {
	quadratic
	steps int
}

func (n *nanObjective) EvaluateWithGradient(params []float64, begin, batchSize int, gradient []float64) float64 {
	n.steps++
	return math.NaN()
}

// TestOptimizeAbortsOnNaN tests that a NaN batch loss stops training
// immediately and is returned to the caller.
func TestOptimizeAbortsOnNaN(t *testing.T) {
	n := &nanObjective{quadratic: quadratic{centers: [][]float64{{0}, {0}}}}
	params := []float64{1}
	before := params[0]

	sgd := NewSGD(0.1)
	sgd.BatchSize = 2
	sgd.Epochs = 10
	sgd.Shuffle = false

	loss := sgd.Optimize(n, params)

	if !math.IsNaN(loss) {
		t.Errorf("loss = %v, expected NaN", loss)
	}
	if n.steps != 1 {
		t.Errorf("objective evaluated %d times after divergence, expected 1", n.steps)
	}
	if params[0] != before {
		t.Errorf("params changed after a NaN loss: %v", params[0])
	}
}

// TestClipNorm tests gradient norm clipping.
func TestClipNorm(t *testing.T) {
	grad := []float64{3, 4}
	clipNorm(grad, 1)
	if math.Abs(grad[0]-0.6) > 1e-12 || math.Abs(grad[1]-0.8) > 1e-12 {
		t.Errorf("clipped grad = %v, expected [0.6 0.8]", grad)
	}

	small := []float64{0.3, 0.4}
	clipNorm(small, 1)
	if small[0] != 0.3 || small[1] != 0.4 {
		t.Errorf("grad below the norm bound changed: %v", small)
	}
}

// TestMaxGradNormLimitsStep tests that clipping bounds the parameter step.
func TestMaxGradNormLimitsStep(t *testing.T) {
	q := &quadratic{centers: [][]float64{{1000}}}
	params := []float64{0}

	sgd := NewSGD(1)
	sgd.Momentum = 0
	sgd.BatchSize = 1
	sgd.Epochs = 1
	sgd.Shuffle = false
	sgd.MaxGradNorm = 1

	sgd.Optimize(q, params)

	// Unclipped the step would be lr * 2 * 1000; clipped it is lr * 1.
	if math.Abs(params[0]-1) > 1e-12 {
		t.Errorf("params[0] = %v, expected 1 with clipped gradient", params[0])
	}
}

// TestOptimizeEmptyObjective tests that an objective with no terms reports
// NaN instead of looping.
func TestOptimizeEmptyObjective(t *testing.T) {
	q := &quadratic{}
	params := []float64{1}

	sgd := NewSGD(0.1)
	loss := sgd.Optimize(q, params)

	if !math.IsNaN(loss) {
		t.Errorf("loss = %v, expected NaN for an empty objective", loss)
	}
}

// TestMeanLossReported tests the returned loss is the epoch mean per term.
func TestMeanLossReported(t *testing.T) {
	// Zero learning rate keeps params at the start point, so the loss is
	// exactly the mean objective there: ((1-1)^2 + (1-3)^2) / 2 = 2.
	q := &quadratic{centers: [][]float64{{1}, {3}}}
	params := []float64{1}

	sgd := NewSGD(0)
	sgd.Momentum = 0
	sgd.BatchSize = 2
	sgd.Epochs = 3
	sgd.Shuffle = false

	loss := sgd.Optimize(q, params)

	if math.Abs(loss-2) > 1e-12 {
		t.Errorf("loss = %v, expected 2", loss)
	}
}
