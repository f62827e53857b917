// Package main - Token-Level Text Generation Example
// Trains a GRU language model over BPE tokens and samples continuations.
package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/opt"
	"github.com/FlavioCFOliveira/GoRNN/internal/rnn"
	"github.com/FlavioCFOliveira/GoRNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

const (
	window      = 12 // tokens per training sequence
	bpttSteps   = 6  // backpropagation truncated to this many steps
	embedDim    = 24
	hiddenSize  = 48
	temperature = 0.8
	generateLen = 40
)

const corpus = `The river runs down to the sea. The sea gives its water to the sky.
The sky carries the water as rain. The rain falls back on the hills.
The hills send the water to the river. The river runs down to the sea.
In spring the river is fast and cold. In summer the river is slow and warm.
In autumn the leaves ride the river. In winter the ice holds the river still.
The fisherman knows the river by heart. The ferryman crosses it twice a day.
The miller borrows the river for his wheel. The children follow it to the sea.
The river runs down to the sea. The sea gives its water to the sky.`

func main() {
	fmt.Println("=============================================================")
	fmt.Println("  GoRNN - GRU Language Model")
	fmt.Println("=============================================================")
	fmt.Println()

	// Step 1: Tokenize the corpus
	fmt.Println("--- Step 1: Tokenizing the Corpus ---")
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Fatal("Error loading tokenizer:", err)
	}
	bpeIDs := enc.Encode(corpus, nil, nil)
	fmt.Printf("Corpus: %d characters, %d BPE tokens\n", len(corpus), len(bpeIDs))
	fmt.Println()

	// Step 2: Build a dense vocabulary
	fmt.Println("--- Step 2: Building the Vocabulary ---")
	vocab := newVocabulary(bpeIDs)
	stream := vocab.compress(bpeIDs)
	fmt.Printf("Distinct tokens: %d (BPE ids remapped to dense classes)\n", vocab.size())
	fmt.Println()

	// Step 3: Window into next-token sequences
	fmt.Println("--- Step 3: Creating Training Sequences ---")
	predictors, responses := tensor.WindowSeries(stream, window)
	fmt.Printf("Sequences: %d of %d steps, each step predicting the next token\n",
		predictors.Cols(), window)
	fmt.Println()

	// Step 4: Build the network
	fmt.Println("--- Step 4: Building the Network ---")
	fmt.Printf("Architecture: Embedding(%d->%d) -> GRU(%d->%d) -> LayerNorm -> Linear(%d->%d) -> LogSoftmax\n",
		vocab.size(), embedDim, embedDim, hiddenSize, hiddenSize, vocab.size())
	fmt.Printf("BPTT window: %d of %d steps\n", bpttSteps, window)
	fmt.Println("Loss: Negative Log Likelihood")
	fmt.Println("Optimizer: AdamW (lr=0.01, weight decay=1e-4)")
	fmt.Println()

	network := rnn.NewWithOptions(bpttSteps, false, loss.NegativeLogLikelihood{}, weights.NewGaussianSeeded(0, 0.2, 42))
	network.Add(layer.NewEmbedding(vocab.size(), embedDim))
	network.Add(layer.NewGRU(embedDim, hiddenSize))
	network.Add(layer.NewLayerNorm(hiddenSize))
	network.Add(layer.NewLinear(hiddenSize, vocab.size()))
	network.Add(layer.NewLogSoftmax(vocab.size()))

	// Step 5: Train
	fmt.Println("--- Step 5: Training ---")
	adamw := opt.NewAdamW(0.01, 1e-4)
	adamw.Epochs = 80
	adamw.BatchSize = 16
	adamw.MaxGradNorm = 1

	finalLoss, err := network.Train(predictors, responses, adamw,
		opt.Logger{Interval: 10},
		opt.NewModelCheckpoint("textgen_model.bin"),
	)
	if err != nil {
		log.Fatal("Error training:", err)
	}
	if math.IsNaN(finalLoss) || math.IsInf(finalLoss, 0) {
		log.Fatal("Training diverged, loss: ", finalLoss)
	}
	fmt.Printf("Training complete, final loss: %.4f\n", finalLoss)
	fmt.Println("Best epochs checkpointed to textgen_model.bin")
	fmt.Println()

	// Step 6: Perplexity
	fmt.Println("--- Step 6: Perplexity ---")
	total := network.Evaluate(nil, 0, network.NumFunctions(), true)
	perStep := total / float64(network.NumFunctions()*window)
	fmt.Printf("Mean NLL per token: %.4f\n", perStep)
	fmt.Printf("Perplexity: %.2f (vocabulary %d)\n", math.Exp(perStep), vocab.size())
	fmt.Println()

	// Step 7: Generate text
	fmt.Println("--- Step 7: Generating Text ---")
	seed := stream[:window]
	seedTokens := make([]int, window)
	for i, v := range seed {
		seedTokens[i] = int(v)
	}
	fmt.Printf("Seed: %q\n", vocab.decode(enc, seedTokens))
	fmt.Printf("Sampling %d tokens at temperature %.1f:\n", generateLen, temperature)
	fmt.Println()

	generated, err := generate(network, seed, generateLen, rand.New(rand.NewSource(7)))
	if err != nil {
		log.Fatal("Error generating:", err)
	}
	text := vocab.decode(enc, generated)
	fmt.Printf("  %s\n", strings.TrimSpace(text))
	fmt.Println()

	fmt.Println("=============================================================")
	fmt.Println("  Text Generation Complete!")
	fmt.Println("=============================================================")
}

// vocabulary remaps the sparse BPE token ids actually present in the corpus
// onto dense class indices the embedding table can hold.
type vocabulary struct {
	dense map[int]int
	bpe   []int
}

func newVocabulary(ids []int) *vocabulary {
	v := &vocabulary{dense: make(map[int]int)}
	for _, id := range ids {
		if _, ok := v.dense[id]; !ok {
			v.dense[id] = len(v.bpe)
			v.bpe = append(v.bpe, id)
		}
	}
	return v
}

func (v *vocabulary) size() int { return len(v.bpe) }

// compress maps BPE ids to dense classes as a float64 stream for windowing.
func (v *vocabulary) compress(ids []int) []float64 {
	stream := make([]float64, len(ids))
	for i, id := range ids {
		stream[i] = float64(v.dense[id])
	}
	return stream
}

// decode maps dense classes back through the BPE vocabulary to text.
func (v *vocabulary) decode(enc *tiktoken.Tiktoken, classes []int) string {
	ids := make([]int, len(classes))
	for i, c := range classes {
		ids[i] = v.bpe[c]
	}
	return enc.Decode(ids)
}

// generate runs closed-loop sampling: each sampled token is appended to the
// context window for the next step.
func generate(network *rnn.Network, seed []float64, count int, rng *rand.Rand) ([]int, error) {
	context := append([]float64(nil), seed...)
	var out []int
	for i := 0; i < count; i++ {
		seq := tensor.New(1, 1, len(context))
		for ts, v := range context {
			seq.Set(0, 0, ts, v)
		}
		pred, err := network.Predict(seq)
		if err != nil {
			return nil, err
		}
		next := sampleToken(pred.Vector(0, len(context)-1), temperature, rng)
		out = append(out, next)
		context = append(context[1:], float64(next))
	}
	return out, nil
}

// sampleToken draws a class from temperature-scaled log probabilities.
func sampleToken(logProbs []float64, temperature float64, rng *rand.Rand) int {
	scaled := make([]float64, len(logProbs))
	maxLP := math.Inf(-1)
	for i, lp := range logProbs {
		scaled[i] = lp / temperature
		if scaled[i] > maxLP {
			maxLP = scaled[i]
		}
	}
	sum := 0.0
	for i := range scaled {
		scaled[i] = math.Exp(scaled[i] - maxLP)
		sum += scaled[i]
	}
	r := rng.Float64() * sum
	for i, p := range scaled {
		r -= p
		if r <= 0 {
			return i
		}
	}
	return len(scaled) - 1
}
