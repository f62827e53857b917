package gornn

import (
	"github.com/FlavioCFOliveira/GoRNN/internal/activations"
	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/opt"
	"github.com/FlavioCFOliveira/GoRNN/internal/rnn"
	"github.com/FlavioCFOliveira/GoRNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

// Re-export common types and functions for easier access
type (
	Model       = rnn.Network
	Cube        = tensor.Cube
	Layer       = layer.Layer
	Optimizer   = opt.Optimizer
	Scheduler   = opt.Scheduler
	Callback    = opt.Callback
	Loss        = loss.Loss
	Initializer = weights.Initializer
)

// Model creation
func New(rho int) *Model {
	return rnn.New(rho)
}

func NewWithOptions(rho int, single bool, outputLayer Loss, init Initializer) *Model {
	return rnn.NewWithOptions(rho, single, outputLayer, init)
}

// Data cubes
func NewCube(rows, cols, slices int) *Cube {
	return tensor.New(rows, cols, slices)
}

func CubeFromData(rows, cols, slices int, data []float64) *Cube {
	return tensor.FromData(rows, cols, slices, data)
}

func WindowSeries(series []float64, window int) (predictors, responses *Cube) {
	return tensor.WindowSeries(series, window)
}

// Activations
var (
	Identity = activations.Identity{}
	ReLU     = activations.ReLU{}
	Sigmoid  = activations.Sigmoid{}
	Tanh     = activations.Tanh{}
)

func LeakyReLU(alpha float64) activations.Activation {
	return activations.NewLeakyReLU(alpha)
}

// Layers
func Linear(in, out int) Layer {
	return layer.NewLinear(in, out)
}

func Activation(size int, act activations.Activation) Layer {
	return layer.NewActivation(size, act)
}

func LogSoftmax(size int) Layer {
	return layer.NewLogSoftmax(size)
}

func LayerNorm(size int) Layer {
	return layer.NewLayerNorm(size)
}

func LSTM(in, out int) Layer {
	return layer.NewLSTM(in, out)
}

func GRU(in, out int) Layer {
	return layer.NewGRU(in, out)
}

func Dropout(prob float64, in int) Layer {
	return layer.NewDropout(prob, in)
}

func Embedding(numEmbeddings, embeddingDim int) Layer {
	return layer.NewEmbedding(numEmbeddings, embeddingDim)
}

// Initializers
func Const(value float64) Initializer {
	return weights.NewConst(value)
}

func Uniform(lower, upper float64) Initializer {
	return weights.NewUniform(lower, upper)
}

func Gaussian(mean, stddev float64) Initializer {
	return weights.NewGaussian(mean, stddev)
}

func Xavier() Initializer {
	return weights.NewXavier()
}

func Orthogonal(gain float64) Initializer {
	return weights.NewOrthogonal(gain)
}

// Optimizers
func SGD(lr float64) *opt.SGD {
	return opt.NewSGD(lr)
}

func Adam(lr float64) *opt.Adam {
	return opt.NewAdam(lr)
}

func AdamW(lr, weightDecay float64) *opt.AdamW {
	return opt.NewAdamW(lr, weightDecay)
}

func RMSProp(lr float64) *opt.RMSProp {
	return opt.NewRMSProp(lr)
}

// Schedulers
func StepLR(optimizer opt.LearningRater, stepSize int, gamma float64) *opt.StepLR {
	return opt.NewStepLR(optimizer, stepSize, gamma)
}

func ExponentialLR(optimizer opt.LearningRater, gamma float64) *opt.ExponentialLR {
	return opt.NewExponentialLR(optimizer, gamma)
}

func ReduceLROnPlateau(optimizer opt.LearningRater, factor float64, patience int, threshold, minLR float64) *opt.ReduceLROnPlateau {
	return opt.NewReduceLROnPlateau(optimizer, factor, patience, threshold, minLR)
}

func CosineAnnealingLR(optimizer opt.LearningRater, tMax int, minLR float64) *opt.CosineAnnealingLR {
	return opt.NewCosineAnnealingLR(optimizer, tMax, minLR)
}

// Callbacks
func Logger(interval int) opt.Logger {
	return opt.Logger{Interval: interval}
}

func ModelCheckpoint(filename string) Callback {
	return opt.NewModelCheckpoint(filename)
}

func EarlyStopping(patience int, threshold float64) *opt.EarlyStopping {
	return opt.NewEarlyStopping(patience, threshold)
}

func SchedulerCallback(scheduler Scheduler) Callback {
	return opt.NewSchedulerCallback(scheduler)
}

func CSVLogger(filename string, append bool) Callback {
	return opt.NewCSVLogger(filename, append)
}

// Losses
var (
	MSE          = loss.MSE{}
	L1           = loss.L1{}
	CrossEntropy = loss.CrossEntropy{}
	NLLLoss      = loss.NegativeLogLikelihood{}
)

func Huber(delta float64) Loss {
	return loss.NewHuber(delta)
}

// Model Persistence
func Load(filename string) (*Model, error) {
	return rnn.Load(filename)
}
