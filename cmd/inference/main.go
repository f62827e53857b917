// Package main - Model Persistence and Inference Example
// Loads a saved network (training one on first run), inspects it, runs
// predictions and fine-tunes it from its saved parameters.
package main

import (
	"fmt"
	"log"
	"math"
	"os"

	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/opt"
	"github.com/FlavioCFOliveira/GoRNN/internal/rnn"
	"github.com/FlavioCFOliveira/GoRNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

const (
	modelFile  = "inference_model.bin"
	window     = 20
	hiddenSize = 16
)

func main() {
	fmt.Println("=============================================================")
	fmt.Println("  GoRNN - Model Persistence and Inference")
	fmt.Println("=============================================================")
	fmt.Println()

	// Step 1: Ensure a trained model exists
	fmt.Println("--- Step 1: Locating a Trained Model ---")
	if _, err := os.Stat(modelFile); err != nil {
		fmt.Println("No saved model found, training one first...")
		if err := trainModel(); err != nil {
			log.Fatal("Error training:", err)
		}
		fmt.Printf("Model trained and saved to %s\n", modelFile)
	} else {
		fmt.Printf("Reusing %s from a previous run\n", modelFile)
	}
	fmt.Println()

	// Step 2: Load and inspect
	fmt.Println("--- Step 2: Loading the Model ---")
	network, err := rnn.Load(modelFile)
	if err != nil {
		log.Fatal("Error loading model:", err)
	}
	describe(network)
	fmt.Println()

	// Step 3: One-step predictions on a fresh segment
	fmt.Println("--- Step 3: Predictions on a Fresh Segment ---")
	predictors, responses := tensor.WindowSeries(freshSegment(window+8), window)
	out, err := network.Predict(predictors)
	if err != nil {
		log.Fatal("Error predicting:", err)
	}
	fmt.Println("Final-step predictions against the true next value:")
	for j := 0; j < predictors.Cols(); j++ {
		actual := responses.At(0, j, window-1)
		predicted := out.At(0, j, window-1)
		fmt.Printf("  Sequence %d: Actual=%.4f, Predicted=%.4f (err %.4f)\n",
			j+1, actual, predicted, math.Abs(actual-predicted))
	}
	fmt.Println()

	// Step 4: Closed-loop extrapolation
	fmt.Println("--- Step 4: Closed-Loop Extrapolation ---")
	recent := freshSegment(window)
	fmt.Println("Feeding each prediction back as the next input:")
	for i := 0; i < 8; i++ {
		seq := tensor.New(1, 1, window)
		for ts, v := range recent {
			seq.Set(0, 0, ts, v)
		}
		pred, err := network.Predict(seq)
		if err != nil {
			log.Fatal("Error predicting:", err)
		}
		next := pred.At(0, 0, window-1)
		fmt.Printf("  t+%d: %.4f\n", i+1, next)
		recent = append(recent[1:], next)
	}
	fmt.Println()

	// Step 5: Warm-start fine-tuning
	fmt.Println("--- Step 5: Fine-Tuning from Saved Parameters ---")
	tunePreds, tuneResps := tensor.WindowSeries(trainingSeries(), window)
	before := meanSquaredError(network, tunePreds, tuneResps)

	rms := opt.NewRMSProp(0.0005)
	rms.Epochs = 5
	rms.BatchSize = 16
	rms.MaxGradNorm = 5
	if _, err := network.Train(tunePreds, tuneResps, rms); err != nil {
		log.Fatal("Error fine-tuning:", err)
	}
	after := meanSquaredError(network, tunePreds, tuneResps)
	fmt.Printf("MSE before fine-tuning: %.6f\n", before)
	fmt.Printf("MSE after 5 more epochs: %.6f\n", after)

	if err := network.Save(modelFile); err != nil {
		log.Fatal("Error saving model:", err)
	}
	fmt.Printf("Updated model saved to %s\n", modelFile)
	fmt.Println()

	fmt.Println("=============================================================")
	fmt.Println("  Inference Complete!")
	fmt.Println("=============================================================")
}

// describe prints the structure recovered from the archive.
func describe(network *rnn.Network) {
	mode := "one response per step"
	if network.Single() {
		mode = "single response per sequence"
	}
	fmt.Printf("BPTT window: %d steps\n", network.Rho())
	fmt.Printf("Mode: %s\n", mode)
	fmt.Printf("Parameters: %d\n", network.ParameterCount())
	fmt.Println("Layers:")
	for i, ly := range network.Layers() {
		fmt.Printf("  %d: %T (%d -> %d)\n", i+1, ly, ly.InputSize(), ly.OutputSize())
	}
}

// trainingSeries is the clean sine wave the model learns.
func trainingSeries() []float64 {
	series := make([]float64, 400)
	for i := range series {
		series[i] = math.Sin(0.15 * float64(i))
	}
	return series
}

// freshSegment starts past the training series so the model sees new values.
func freshSegment(count int) []float64 {
	series := make([]float64, count)
	for i := range series {
		series[i] = math.Sin(0.15 * float64(i+500))
	}
	return series
}

func trainModel() error {
	predictors, responses := tensor.WindowSeries(trainingSeries(), window)

	network := rnn.NewWithOptions(window, false, loss.MSE{}, weights.NewXavierSeeded(1))
	network.Add(layer.NewLSTM(1, hiddenSize))
	network.Add(layer.NewLinear(hiddenSize, 1))

	rms := opt.NewRMSProp(0.002)
	rms.Epochs = 30
	rms.BatchSize = 16
	rms.MaxGradNorm = 5

	finalLoss, err := network.Train(predictors, responses, rms, opt.Logger{Interval: 10})
	if err != nil {
		return err
	}
	if math.IsNaN(finalLoss) || math.IsInf(finalLoss, 0) {
		return fmt.Errorf("training diverged, loss: %g", finalLoss)
	}
	return network.Save(modelFile)
}

// meanSquaredError averages the squared error over every step.
func meanSquaredError(network *rnn.Network, predictors, responses *tensor.Cube) float64 {
	out, err := network.Predict(predictors)
	if err != nil {
		log.Fatal("Error predicting:", err)
	}
	sum := 0.0
	count := 0
	for j := 0; j < predictors.Cols(); j++ {
		for ts := 0; ts < responses.Slices(); ts++ {
			diff := out.At(0, j, ts) - responses.At(0, j, ts)
			sum += diff * diff
			count++
		}
	}
	return sum / float64(count)
}
