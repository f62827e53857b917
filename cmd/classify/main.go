// Package main - Sequence Classification Example
// Classifies synthetic sequences (rising, falling, oscillating) from the
// final-step output of a GRU network.
package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/opt"
	"github.com/FlavioCFOliveira/GoRNN/internal/rnn"
	"github.com/FlavioCFOliveira/GoRNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

const (
	numExamples = 600
	timeSteps   = 20
	hiddenSize  = 16
	numClasses  = 3
)

var classNames = [numClasses]string{"rising", "falling", "oscillating"}

func main() {
	fmt.Println("=============================================================")
	fmt.Println("  GoRNN - Sequence Classification")
	fmt.Println("=============================================================")
	fmt.Println()

	// Step 1: Generate labeled sequences
	fmt.Println("--- Step 1: Generating Sequences ---")
	predictors, responses := generateSequences(numExamples)
	data := tensor.NewDataset(predictors, responses)
	train, test := data.Split(0.8)
	fmt.Printf("Classes: %v\n", classNames)
	fmt.Printf("Training sequences: %d\n", train.NumExamples())
	fmt.Printf("Testing sequences: %d\n", test.NumExamples())
	fmt.Println()

	// Step 2: Build the network
	fmt.Println("--- Step 2: Building the Network ---")
	fmt.Printf("Architecture: GRU(1->%d) -> Linear(%d->%d) -> LogSoftmax\n",
		hiddenSize, hiddenSize, numClasses)
	fmt.Println("Mode: single response per sequence, scored at the final step")
	fmt.Println("Loss: Negative Log Likelihood")
	fmt.Println("Optimizer: SGD (lr=0.05, momentum=0.9) with StepLR decay")
	fmt.Println()

	network := rnn.NewWithOptions(timeSteps, true, loss.NegativeLogLikelihood{}, weights.NewXavierSeeded(42))
	network.Add(layer.NewGRU(1, hiddenSize))
	network.Add(layer.NewLinear(hiddenSize, numClasses))
	network.Add(layer.NewLogSoftmax(numClasses))

	// Step 3: Train
	fmt.Println("--- Step 3: Training ---")
	sgd := opt.NewSGD(0.05)
	sgd.Epochs = 45
	sgd.BatchSize = 16
	sgd.MaxGradNorm = 5

	finalLoss, err := network.Train(train.Predictors, train.Responses, sgd,
		opt.Logger{Interval: 5},
		opt.NewSchedulerCallback(opt.NewStepLR(sgd, 15, 0.5)),
		opt.NewEarlyStopping(10, 1e-5),
	)
	if err != nil {
		log.Fatal("Error training:", err)
	}
	if math.IsNaN(finalLoss) || math.IsInf(finalLoss, 0) {
		log.Fatal("Training diverged, loss: ", finalLoss)
	}
	fmt.Printf("Training complete, final loss: %.4f (lr decayed to %.4f)\n", finalLoss, sgd.LR())
	fmt.Println()

	// Step 4: Evaluate
	fmt.Println("--- Step 4: Evaluating ---")
	trainAcc, _, err := accuracy(network, train)
	if err != nil {
		log.Fatal("Error evaluating:", err)
	}
	testAcc, confusion, err := accuracy(network, test)
	if err != nil {
		log.Fatal("Error evaluating:", err)
	}
	fmt.Printf("Training accuracy: %.1f%%\n", trainAcc*100)
	fmt.Printf("Testing accuracy: %.1f%%\n", testAcc*100)
	fmt.Println()

	fmt.Println("Confusion matrix (rows actual, columns predicted):")
	fmt.Printf("%14s", "")
	for _, name := range classNames {
		fmt.Printf("%14s", name)
	}
	fmt.Println()
	for i, name := range classNames {
		fmt.Printf("%14s", name)
		for j := range classNames {
			fmt.Printf("%14d", confusion[i][j])
		}
		fmt.Println()
	}
	fmt.Println()

	fmt.Println("=============================================================")
	fmt.Println("  Sequence Classification Complete!")
	fmt.Println("=============================================================")
}

// generateSequences builds an interleaved three-class dataset: rising ramps,
// falling ramps and sine oscillations, all with gaussian noise.
func generateSequences(count int) (*tensor.Cube, *tensor.Cube) {
	rng := rand.New(rand.NewSource(42))
	predictors := tensor.New(1, count, timeSteps)
	responses := tensor.New(1, count, 1)

	for j := 0; j < count; j++ {
		class := j % numClasses
		start := rng.Float64()*0.4 - 0.2
		slope := 0.02 + rng.Float64()*0.04
		amp := 0.4 + rng.Float64()*0.4
		phase := rng.Float64() * 2 * math.Pi

		for ts := 0; ts < timeSteps; ts++ {
			var v float64
			switch class {
			case 0:
				v = start + slope*float64(ts)
			case 1:
				v = start - slope*float64(ts)
			case 2:
				v = amp * math.Sin(0.8*float64(ts)+phase)
			}
			predictors.Set(0, j, ts, v+rng.NormFloat64()*0.02)
		}
		responses.Set(0, j, 0, float64(class))
	}
	return predictors, responses
}

// accuracy scores final-step argmax predictions against the labels.
func accuracy(network *rnn.Network, d *tensor.Dataset) (float64, [numClasses][numClasses]int, error) {
	var confusion [numClasses][numClasses]int
	out, err := network.Predict(d.Predictors)
	if err != nil {
		return 0, confusion, err
	}
	correct := 0
	for j := 0; j < d.NumExamples(); j++ {
		predicted := argmax(out.Vector(j, timeSteps-1))
		actual := int(d.Responses.At(0, j, 0))
		confusion[actual][predicted]++
		if predicted == actual {
			correct++
		}
	}
	return float64(correct) / float64(d.NumExamples()), confusion, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
