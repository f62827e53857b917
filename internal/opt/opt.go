// Package opt provides mini-batch gradient descent optimizers for
// decomposable objective functions, plus learning rate schedulers and
// training callbacks.
//
// An objective exposes itself as a sum of separable terms; the optimizers
// here walk contiguous batches of those terms each epoch, average the batch
// gradient and apply an update rule (SGD with momentum, Adam, AdamW or
// RMSProp) to the parameter vector in place.
package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Function is a decomposable objective: a sum of NumFunctions() terms
// evaluated over contiguous batches [begin, begin+batchSize). Evaluate
// scores a batch; EvaluateWithGradient also writes the summed batch
// gradient into gradient. Shuffle reorders the terms between epochs.
type Function interface {
	Evaluate(params []float64, begin, batchSize int, deterministic bool) float64
	EvaluateWithGradient(params []float64, begin, batchSize int, gradient []float64) float64
	Gradient(params []float64, begin, batchSize int, gradient []float64)
	NumFunctions() int
	Shuffle()
}

// Optimizer minimizes a Function by updating params in place. The returned
// value is the mean loss per term over the last epoch, or the offending
// value if a batch loss came back NaN or Inf.
type Optimizer interface {
	Optimize(f Function, params []float64, callbacks ...Callback) float64
}

// LearningRater exposes a mutable learning rate; schedulers drive it.
type LearningRater interface {
	LR() float64
	SetLR(lr float64)
}

// settings holds the epoch-loop knobs shared by every optimizer here.
type settings struct {
	batchSize   int
	epochs      int
	shuffle     bool
	maxGradNorm float64
}

// descend runs the shared mini-batch loop: per epoch, optionally shuffle,
// then for each batch evaluate with gradient, average the gradient over the
// batch, optionally clip its norm and apply the update rule. A NaN or Inf
// batch loss aborts training and is returned unchanged so the caller can
// tell divergence from convergence.
func descend(f Function, params []float64, cfg settings, step func(params, grad []float64), callbacks []Callback) float64 {
	numFunctions := f.NumFunctions()
	if numFunctions == 0 {
		return math.NaN()
	}
	if cfg.batchSize < 1 {
		cfg.batchSize = 1
	}
	if cfg.batchSize > numFunctions {
		cfg.batchSize = numFunctions
	}
	if cfg.epochs < 1 {
		cfg.epochs = 1
	}

	grad := make([]float64, len(params))
	for _, c := range callbacks {
		c.OnTrainBegin(f)
	}

	finalLoss := math.NaN()
	stop := false
	for epoch := 0; epoch < cfg.epochs && !stop; epoch++ {
		for _, c := range callbacks {
			c.OnEpochBegin(epoch, f)
		}
		if cfg.shuffle {
			f.Shuffle()
		}

		epochLoss := 0.0
		batch := 0
		for begin := 0; begin < numFunctions; begin += cfg.batchSize {
			size := min(cfg.batchSize, numFunctions-begin)
			for _, c := range callbacks {
				c.OnBatchBegin(batch, f)
			}

			batchLoss := f.EvaluateWithGradient(params, begin, size, grad)
			if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
				for _, c := range callbacks {
					c.OnTrainEnd(f)
				}
				return batchLoss
			}

			floats.Scale(1/float64(size), grad)
			if cfg.maxGradNorm > 0 {
				clipNorm(grad, cfg.maxGradNorm)
			}
			step(params, grad)

			epochLoss += batchLoss
			for _, c := range callbacks {
				c.OnBatchEnd(batch, batchLoss/float64(size), f)
			}
			batch++
		}

		finalLoss = epochLoss / float64(numFunctions)
		for _, c := range callbacks {
			if c.OnEpochEnd(epoch, finalLoss, f) {
				stop = true
			}
		}
	}

	for _, c := range callbacks {
		c.OnTrainEnd(f)
	}
	return finalLoss
}

// clipNorm rescales grad so its L2 norm does not exceed maxNorm.
func clipNorm(grad []float64, maxNorm float64) {
	norm := floats.Norm(grad, 2)
	if norm > maxNorm {
		floats.Scale(maxNorm/norm, grad)
	}
}

// SGD is stochastic gradient descent with classical momentum.
type SGD struct {
	LearningRate float64
	Momentum     float64
	BatchSize    int
	Epochs       int
	Shuffle      bool
	MaxGradNorm  float64 // 0 disables gradient clipping

	velocity []float64
}

// NewSGD creates an SGD optimizer with momentum 0.9, batch size 32 and
// 20 epochs.
func NewSGD(learningRate float64) *SGD {
	return &SGD{
		LearningRate: learningRate,
		Momentum:     0.9,
		BatchSize:    32,
		Epochs:       20,
		Shuffle:      true,
	}
}

// Optimize minimizes f, updating params in place.
func (s *SGD) Optimize(f Function, params []float64, callbacks ...Callback) float64 {
	cfg := settings{batchSize: s.BatchSize, epochs: s.Epochs, shuffle: s.Shuffle, maxGradNorm: s.MaxGradNorm}
	return descend(f, params, cfg, s.step, callbacks)
}

func (s *SGD) step(params, grad []float64) {
	if len(s.velocity) != len(params) {
		s.velocity = make([]float64, len(params))
	}
	for i := range params {
		s.velocity[i] = s.Momentum*s.velocity[i] - s.LearningRate*grad[i]
		params[i] += s.velocity[i]
	}
}

// LR returns the current learning rate.
func (s *SGD) LR() float64 { return s.LearningRate }

// SetLR sets the learning rate.
func (s *SGD) SetLR(lr float64) { s.LearningRate = lr }

// Adam is the Adam optimizer with bias-corrected first and second moment
// estimates.
type Adam struct {
	LearningRate float64
	Beta1        float64 // decay rate of the first moment estimate
	Beta2        float64 // decay rate of the second moment estimate
	Epsilon      float64
	BatchSize    int
	Epochs       int
	Shuffle      bool
	MaxGradNorm  float64

	m, v []float64
	t    int
}

// NewAdam creates an Adam optimizer with the usual defaults: beta1 0.9,
// beta2 0.999, epsilon 1e-8, batch size 32 and 20 epochs.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		BatchSize:    32,
		Epochs:       20,
		Shuffle:      true,
	}
}

// Optimize minimizes f, updating params in place.
func (a *Adam) Optimize(f Function, params []float64, callbacks ...Callback) float64 {
	cfg := settings{batchSize: a.BatchSize, epochs: a.Epochs, shuffle: a.Shuffle, maxGradNorm: a.MaxGradNorm}
	return descend(f, params, cfg, a.step, callbacks)
}

func (a *Adam) step(params, grad []float64) {
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.t = 0
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i := range params {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*grad[i]
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*grad[i]*grad[i]
		params[i] -= a.LearningRate * (a.m[i] / c1) / (math.Sqrt(a.v[i]/c2) + a.Epsilon)
	}
}

// LR returns the current learning rate.
func (a *Adam) LR() float64 { return a.LearningRate }

// SetLR sets the learning rate.
func (a *Adam) SetLR(lr float64) { a.LearningRate = lr }

// AdamW is Adam with decoupled weight decay: the decay is applied directly
// to the parameters instead of being folded into the gradient.
type AdamW struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
	BatchSize    int
	Epochs       int
	Shuffle      bool
	MaxGradNorm  float64

	m, v []float64
	t    int
}

// NewAdamW creates an AdamW optimizer with Adam's defaults and the given
// weight decay.
func NewAdamW(learningRate, weightDecay float64) *AdamW {
	return &AdamW{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		WeightDecay:  weightDecay,
		BatchSize:    32,
		Epochs:       20,
		Shuffle:      true,
	}
}

// Optimize minimizes f, updating params in place.
func (a *AdamW) Optimize(f Function, params []float64, callbacks ...Callback) float64 {
	cfg := settings{batchSize: a.BatchSize, epochs: a.Epochs, shuffle: a.Shuffle, maxGradNorm: a.MaxGradNorm}
	return descend(f, params, cfg, a.step, callbacks)
}

func (a *AdamW) step(params, grad []float64) {
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.t = 0
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i := range params {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*grad[i]
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*grad[i]*grad[i]
		params[i] -= a.LearningRate * ((a.m[i]/c1)/(math.Sqrt(a.v[i]/c2)+a.Epsilon) + a.WeightDecay*params[i])
	}
}

// LR returns the current learning rate.
func (a *AdamW) LR() float64 { return a.LearningRate }

// SetLR sets the learning rate.
func (a *AdamW) SetLR(lr float64) { a.LearningRate = lr }

// RMSProp scales each update by a running average of squared gradients.
type RMSProp struct {
	LearningRate float64
	Alpha        float64 // decay rate of the squared-gradient average
	Epsilon      float64
	BatchSize    int
	Epochs       int
	Shuffle      bool
	MaxGradNorm  float64

	cache []float64
}

// NewRMSProp creates an RMSProp optimizer with alpha 0.99, epsilon 1e-8,
// batch size 32 and 20 epochs.
func NewRMSProp(learningRate float64) *RMSProp {
	return &RMSProp{
		LearningRate: learningRate,
		Alpha:        0.99,
		Epsilon:      1e-8,
		BatchSize:    32,
		Epochs:       20,
		Shuffle:      true,
	}
}

// Optimize minimizes f, updating params in place.
func (r *RMSProp) Optimize(f Function, params []float64, callbacks ...Callback) float64 {
	cfg := settings{batchSize: r.BatchSize, epochs: r.Epochs, shuffle: r.Shuffle, maxGradNorm: r.MaxGradNorm}
	return descend(f, params, cfg, r.step, callbacks)
}

func (r *RMSProp) step(params, grad []float64) {
	if len(r.cache) != len(params) {
		r.cache = make([]float64, len(params))
	}
	for i := range params {
		r.cache[i] = r.Alpha*r.cache[i] + (1-r.Alpha)*grad[i]*grad[i]
		params[i] -= r.LearningRate * grad[i] / (math.Sqrt(r.cache[i]) + r.Epsilon)
	}
}

// LR returns the current learning rate.
func (r *RMSProp) LR() float64 { return r.LearningRate }

// SetLR sets the learning rate.
func (r *RMSProp) SetLR(lr float64) { r.LearningRate = lr }
