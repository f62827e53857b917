package rnn

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/FlavioCFOliveira/GoRNN/internal/activations"
	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

// formatVersion is the current archive layout. Version 1 archives predate
// the configurable output layer and load with the default negative log
// likelihood.
const formatVersion = 2

// LayerConfig holds the configuration needed to reconstruct a layer.
type LayerConfig struct {
	Type        string
	InSize      int
	OutSize     int
	Activation  string  // for Activation layers
	Probability float64 // for Dropout layers
	Alpha       float64 // for LeakyReLU activations
}

// ExtractLayerConfig extracts the reconstruction config from a layer.
func ExtractLayerConfig(l layer.Layer) (LayerConfig, error) {
	switch v := l.(type) {
	case *layer.Linear:
		return LayerConfig{Type: "Linear", InSize: v.InputSize(), OutSize: v.OutputSize()}, nil
	case *layer.LSTM:
		return LayerConfig{Type: "LSTM", InSize: v.InputSize(), OutSize: v.OutputSize()}, nil
	case *layer.GRU:
		return LayerConfig{Type: "GRU", InSize: v.InputSize(), OutSize: v.OutputSize()}, nil
	case *layer.Embedding:
		return LayerConfig{Type: "Embedding", InSize: v.VocabSize(), OutSize: v.OutputSize()}, nil
	case *layer.Dropout:
		return LayerConfig{Type: "Dropout", InSize: v.InputSize(), OutSize: v.OutputSize(), Probability: v.Rate()}, nil
	case *layer.LogSoftmax:
		return LayerConfig{Type: "LogSoftmax", InSize: v.InputSize(), OutSize: v.OutputSize()}, nil
	case *layer.LayerNorm:
		return LayerConfig{Type: "LayerNorm", InSize: v.InputSize(), OutSize: v.OutputSize()}, nil
	case *layer.Activation:
		name, alpha, err := activationName(v.Act())
		if err != nil {
			return LayerConfig{}, err
		}
		return LayerConfig{Type: "Activation", InSize: v.InputSize(), OutSize: v.OutputSize(), Activation: name, Alpha: alpha}, nil
	default:
		return LayerConfig{}, fmt.Errorf("unsupported layer type: %T", l)
	}
}

// CreateLayer reconstructs the layer this config describes.
func (c *LayerConfig) CreateLayer() (layer.Layer, error) {
	switch c.Type {
	case "Linear":
		return layer.NewLinear(c.InSize, c.OutSize), nil
	case "LSTM":
		return layer.NewLSTM(c.InSize, c.OutSize), nil
	case "GRU":
		return layer.NewGRU(c.InSize, c.OutSize), nil
	case "Embedding":
		return layer.NewEmbedding(c.InSize, c.OutSize), nil
	case "Dropout":
		return layer.NewDropout(c.Probability, c.InSize), nil
	case "LogSoftmax":
		return layer.NewLogSoftmax(c.InSize), nil
	case "LayerNorm":
		return layer.NewLayerNorm(c.InSize), nil
	case "Activation":
		act, err := activationByName(c.Activation, c.Alpha)
		if err != nil {
			return nil, err
		}
		return layer.NewActivation(c.InSize, act), nil
	default:
		return nil, fmt.Errorf("unsupported layer type: %s", c.Type)
	}
}

func activationName(a activations.Activation) (string, float64, error) {
	switch v := a.(type) {
	case activations.Identity:
		return "Identity", 0, nil
	case activations.ReLU:
		return "ReLU", 0, nil
	case activations.Sigmoid:
		return "Sigmoid", 0, nil
	case activations.Tanh:
		return "Tanh", 0, nil
	case *activations.LeakyReLU:
		return "LeakyReLU", v.Alpha, nil
	default:
		return "", 0, fmt.Errorf("unsupported activation type: %T", a)
	}
}

func activationByName(name string, alpha float64) (activations.Activation, error) {
	switch name {
	case "Identity":
		return activations.Identity{}, nil
	case "ReLU":
		return activations.ReLU{}, nil
	case "Sigmoid":
		return activations.Sigmoid{}, nil
	case "Tanh":
		return activations.Tanh{}, nil
	case "LeakyReLU":
		return activations.NewLeakyReLU(alpha), nil
	default:
		return nil, fmt.Errorf("unsupported activation type: %s", name)
	}
}

func lossName(l loss.Loss) (string, float64, error) {
	switch v := l.(type) {
	case loss.MSE:
		return "MSE", 0, nil
	case loss.L1:
		return "L1", 0, nil
	case *loss.Huber:
		return "Huber", v.Delta, nil
	case loss.CrossEntropy:
		return "CrossEntropy", 0, nil
	case loss.NegativeLogLikelihood:
		return "NegativeLogLikelihood", 0, nil
	default:
		return "", 0, fmt.Errorf("unsupported output layer type: %T", l)
	}
}

func lossByName(name string, delta float64) (loss.Loss, error) {
	switch name {
	case "MSE":
		return loss.MSE{}, nil
	case "L1":
		return loss.L1{}, nil
	case "Huber":
		return loss.NewHuber(delta), nil
	case "CrossEntropy":
		return loss.CrossEntropy{}, nil
	case "NegativeLogLikelihood":
		return loss.NegativeLogLikelihood{}, nil
	default:
		return nil, fmt.Errorf("unsupported output layer type: %s", name)
	}
}

// Save writes the network to a file.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return n.Encode(file)
}

// Load reads a network from a file.
func Load(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Encode writes the network to w: format version, BPTT settings, the output
// layer, the layer configs and the flat parameter buffer.
func (n *Network) Encode(w io.Writer) error {
	if n.parameter == nil {
		if err := n.ResetParameters(); err != nil {
			return err
		}
	} else if err := n.Reset(); err != nil {
		return err
	}

	encoder := gob.NewEncoder(w)

	if err := encoder.Encode(int32(formatVersion)); err != nil {
		return fmt.Errorf("failed to encode format version: %w", err)
	}
	if err := encoder.Encode(int32(n.rho)); err != nil {
		return fmt.Errorf("failed to encode rho: %w", err)
	}
	if err := encoder.Encode(n.single); err != nil {
		return fmt.Errorf("failed to encode single flag: %w", err)
	}

	name, delta, err := lossName(n.outputLayer)
	if err != nil {
		return err
	}
	if err := encoder.Encode(name); err != nil {
		return fmt.Errorf("failed to encode output layer: %w", err)
	}
	if name == "Huber" {
		if err := encoder.Encode(delta); err != nil {
			return fmt.Errorf("failed to encode Huber delta: %w", err)
		}
	}

	if err := encoder.Encode(int32(len(n.layers))); err != nil {
		return fmt.Errorf("failed to encode layer count: %w", err)
	}
	for i, l := range n.layers {
		cfg, err := ExtractLayerConfig(l)
		if err != nil {
			return fmt.Errorf("failed to encode layer %d: %w", i, err)
		}
		if err := encoder.Encode(cfg); err != nil {
			return fmt.Errorf("failed to encode layer %d: %w", i, err)
		}
	}

	if err := encoder.Encode(n.parameter); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	return nil
}

// Decode reads a network from r, accepting both format versions.
func Decode(r io.Reader) (*Network, error) {
	decoder := gob.NewDecoder(r)

	var version int32
	if err := decoder.Decode(&version); err != nil {
		return nil, fmt.Errorf("failed to read format version: %w", err)
	}
	if version < 1 || version > formatVersion {
		return nil, fmt.Errorf("unsupported model format version %d", version)
	}

	var rho int32
	if err := decoder.Decode(&rho); err != nil {
		return nil, fmt.Errorf("failed to read rho: %w", err)
	}
	var single bool
	if err := decoder.Decode(&single); err != nil {
		return nil, fmt.Errorf("failed to read single flag: %w", err)
	}

	outputLayer := loss.Loss(loss.NegativeLogLikelihood{})
	if version >= 2 {
		var name string
		if err := decoder.Decode(&name); err != nil {
			return nil, fmt.Errorf("failed to read output layer: %w", err)
		}
		var delta float64
		if name == "Huber" {
			if err := decoder.Decode(&delta); err != nil {
				return nil, fmt.Errorf("failed to read Huber delta: %w", err)
			}
		}
		var err error
		outputLayer, err = lossByName(name, delta)
		if err != nil {
			return nil, err
		}
	}

	var numLayers int32
	if err := decoder.Decode(&numLayers); err != nil {
		return nil, fmt.Errorf("failed to read layer count: %w", err)
	}

	n := NewWithOptions(int(rho), single, outputLayer, weights.NewUniform(-1, 1))
	for i := 0; i < int(numLayers); i++ {
		var cfg LayerConfig
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read layer %d: %w", i, err)
		}
		l, err := cfg.CreateLayer()
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild layer %d: %w", i, err)
		}
		n.Add(l)
	}

	var params []float64
	if err := decoder.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to read parameters: %w", err)
	}
	if err := n.Reset(); err != nil {
		return nil, err
	}
	if len(params) != len(n.parameter) {
		return nil, fmt.Errorf("archive holds %d parameters but the network needs %d", len(params), len(n.parameter))
	}
	copy(n.parameter, params)
	n.initialized = true

	return n, nil
}
