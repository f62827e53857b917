// Package main - LSTM Time Series Training Example
// Trains a recurrent network on a noisy sine wave with truncated BPTT and
// verifies the saved model.
package main

import (
	"fmt"
	"log"
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/opt"
	"github.com/FlavioCFOliveira/GoRNN/internal/rnn"
	"github.com/FlavioCFOliveira/GoRNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

const (
	seriesLen  = 2000
	window     = 30 // time steps per training sequence
	bpttSteps  = 15 // backpropagation truncated to this many steps
	hiddenSize = 32
)

func main() {
	fmt.Println("=============================================================")
	fmt.Println("  GoRNN - LSTM Time Series Prediction")
	fmt.Println("=============================================================")
	fmt.Println()

	// Step 1: Generate time series data
	fmt.Println("--- Step 1: Generating Time Series Data ---")
	series := generateSeries(seriesLen)
	if err := tensor.SaveSeriesCSV("sine_series.csv", "value", series); err != nil {
		log.Fatal("Error saving CSV:", err)
	}
	fmt.Printf("Generated %d values saved to sine_series.csv\n", len(series))
	fmt.Println()

	// Step 2: Load and normalize
	fmt.Println("--- Step 2: Loading and Normalizing Data ---")
	series, err := tensor.LoadSeriesCSV("sine_series.csv", 0, true)
	if err != nil {
		log.Fatal("Error loading CSV:", err)
	}
	norm, minV, maxV := tensor.NormalizeSeries(series)
	fmt.Printf("Loaded %d values, range [%.4f, %.4f] mapped to [0, 1]\n", len(series), minV, maxV)
	fmt.Println()

	// Step 3: Window into sequences and split
	fmt.Println("--- Step 3: Creating Training Sequences ---")
	predictors, responses := tensor.WindowSeries(norm, window)
	data := tensor.NewDataset(predictors, responses)
	train, test := data.Split(0.8)
	fmt.Printf("Sequences of %d steps, each step predicting the next value\n", window)
	fmt.Printf("Training sequences: %d\n", train.NumExamples())
	fmt.Printf("Testing sequences: %d\n", test.NumExamples())
	fmt.Println()

	// Step 4: Build the network
	fmt.Println("--- Step 4: Building the Network ---")
	fmt.Printf("Architecture: LSTM(1->%d) -> Linear(%d->1)\n", hiddenSize, hiddenSize)
	fmt.Printf("BPTT window: %d of %d steps\n", bpttSteps, window)
	fmt.Println("Loss: MSE")
	fmt.Println("Optimizer: Adam (lr=0.005)")
	fmt.Println()

	network := rnn.NewWithOptions(bpttSteps, false, loss.MSE{}, weights.NewXavierSeeded(42))
	network.Add(layer.NewLSTM(1, hiddenSize))
	network.Add(layer.NewLinear(hiddenSize, 1))

	// Step 5: Train
	fmt.Println("--- Step 5: Training ---")
	adam := opt.NewAdam(0.005)
	adam.Epochs = 40
	adam.BatchSize = 32
	adam.MaxGradNorm = 5

	finalLoss, err := network.Train(train.Predictors, train.Responses, adam,
		opt.Logger{Interval: 5},
		opt.NewEarlyStopping(8, 1e-6),
		opt.NewCSVLogger("training_log.csv", false),
	)
	if err != nil {
		log.Fatal("Error training:", err)
	}
	if math.IsNaN(finalLoss) || math.IsInf(finalLoss, 0) {
		log.Fatal("Training diverged, loss: ", finalLoss)
	}
	fmt.Printf("Training complete, final loss: %.6f\n", finalLoss)
	fmt.Println("Per-epoch log written to training_log.csv")
	fmt.Println()

	// Step 6: Evaluate
	fmt.Println("--- Step 6: Evaluating Model ---")
	trainMSE, trainMAE, err := evaluate(network, train)
	if err != nil {
		log.Fatal("Error evaluating:", err)
	}
	fmt.Printf("Training MSE: %.6f  MAE: %.6f\n", trainMSE, trainMAE)

	testMSE, testMAE, err := evaluate(network, test)
	if err != nil {
		log.Fatal("Error evaluating:", err)
	}
	fmt.Printf("Testing MSE: %.6f  MAE: %.6f\n", testMSE, testMAE)

	actual, predicted, err := finalStepPairs(network, test)
	if err != nil {
		log.Fatal("Error evaluating:", err)
	}
	fmt.Printf("Final-step correlation on test set: %.4f\n", stat.Correlation(actual, predicted, nil))
	fmt.Println()

	// Step 7: Sample predictions
	fmt.Println("--- Step 7: Sample Predictions ---")
	fmt.Println("Final step of the first test sequences (original scale):")
	fmt.Println("----------------------------------------")
	for i := 0; i < min(8, len(actual)); i++ {
		a := tensor.Denormalize(actual[i], minV, maxV)
		p := tensor.Denormalize(predicted[i], minV, maxV)
		fmt.Printf("Sequence %d: Actual=%.4f, Predicted=%.4f (err %.4f)\n", i+1, a, p, math.Abs(a-p))
	}
	fmt.Println()

	// Step 8: Save and verify
	fmt.Println("--- Step 8: Saving and Verifying Model ---")
	if err := network.Save("sine_model.bin"); err != nil {
		log.Fatal("Error saving model:", err)
	}
	fmt.Println("Model saved to sine_model.bin")

	loaded, err := rnn.Load("sine_model.bin")
	if err != nil {
		log.Fatal("Error loading model:", err)
	}
	originalOut, err := network.Predict(test.Predictors)
	if err != nil {
		log.Fatal("Error predicting:", err)
	}
	loadedOut, err := loaded.Predict(test.Predictors)
	if err != nil {
		log.Fatal("Error predicting:", err)
	}
	maxDiff := 0.0
	for i, v := range originalOut.Data() {
		if d := math.Abs(v - loadedOut.Data()[i]); d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff > 1e-9 {
		log.Fatalf("Loaded model diverges from original by %g", maxDiff)
	}
	fmt.Println("Loaded model matches the original")
	fmt.Println()

	// Step 9: Closed-loop forecast
	fmt.Println("--- Step 9: Forecasting Beyond the Series ---")
	fmt.Println("Feeding each prediction back as the next input:")
	recent := append([]float64(nil), norm[len(norm)-window:]...)
	for i := 0; i < 10; i++ {
		next, err := forecastNext(loaded, recent)
		if err != nil {
			log.Fatal("Error forecasting:", err)
		}
		fmt.Printf("  t+%d: %.4f\n", i+1, tensor.Denormalize(next, minV, maxV))
		recent = append(recent[1:], next)
	}
	fmt.Println()

	fmt.Println("=============================================================")
	fmt.Println("  LSTM Training and Inference Complete!")
	fmt.Println("=============================================================")
	fmt.Printf("Summary:\n")
	fmt.Printf("  - Training sequences: %d\n", train.NumExamples())
	fmt.Printf("  - Testing sequences: %d\n", test.NumExamples())
	fmt.Printf("  - Training MSE: %.6f\n", trainMSE)
	fmt.Printf("  - Testing MSE: %.6f\n", testMSE)
	fmt.Printf("  - Model saved: sine_model.bin\n")
}

// generateSeries produces a sine wave with a slow secondary cycle and
// gaussian noise.
func generateSeries(count int) []float64 {
	noise := distuv.Normal{Mu: 0, Sigma: 0.05, Src: exprand.NewSource(42)}
	series := make([]float64, count)
	for i := range series {
		t := float64(i) / float64(count-1) * 16 * math.Pi
		series[i] = math.Sin(t) + 0.1*math.Sin(t/4) + noise.Rand()
	}
	return series
}

// evaluate computes MSE and MAE over every step of every sequence.
func evaluate(network *rnn.Network, d *tensor.Dataset) (mse, mae float64, err error) {
	out, err := network.Predict(d.Predictors)
	if err != nil {
		return 0, 0, err
	}
	sumSq, sumAbs := 0.0, 0.0
	count := 0
	for j := 0; j < d.NumExamples(); j++ {
		for ts := 0; ts < d.Responses.Slices(); ts++ {
			diff := out.At(0, j, ts) - d.Responses.At(0, j, ts)
			sumSq += diff * diff
			sumAbs += math.Abs(diff)
			count++
		}
	}
	return sumSq / float64(count), sumAbs / float64(count), nil
}

// finalStepPairs collects the actual and predicted values at the last step of
// each sequence.
func finalStepPairs(network *rnn.Network, d *tensor.Dataset) (actual, predicted []float64, err error) {
	out, err := network.Predict(d.Predictors)
	if err != nil {
		return nil, nil, err
	}
	last := d.Responses.Slices() - 1
	for j := 0; j < d.NumExamples(); j++ {
		actual = append(actual, d.Responses.At(0, j, last))
		predicted = append(predicted, out.At(0, j, last))
	}
	return actual, predicted, nil
}

// forecastNext runs one sequence through the network and returns the final
// step's prediction.
func forecastNext(network *rnn.Network, recent []float64) (float64, error) {
	seq := tensor.New(1, 1, len(recent))
	for ts, v := range recent {
		seq.Set(0, 0, ts, v)
	}
	out, err := network.Predict(seq)
	if err != nil {
		return 0, err
	}
	return out.At(0, 0, len(recent)-1), nil
}
