package rnn

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoRNN/internal/activations"
	"github.com/FlavioCFOliveira/GoRNN/internal/layer"
	"github.com/FlavioCFOliveira/GoRNN/internal/loss"
	"github.com/FlavioCFOliveira/GoRNN/internal/tensor"
	"github.com/FlavioCFOliveira/GoRNN/internal/weights"
)

// stubLayer implements the layer contract but has no serialization mapping.
type stubLayer struct{}

func (stubLayer) Forward(x []float64) []float64             { return x }
func (stubLayer) Backward(output, grad []float64) []float64 { return grad }
func (stubLayer) Gradient(input, delta []float64)           {}
func (stubLayer) ParameterCount() int                       { return 0 }
func (stubLayer) SetParameters(view []float64)              {}
func (stubLayer) SetGradient(view []float64)                {}
func (stubLayer) InputSize() int                            { return 1 }
func (stubLayer) OutputSize() int                           { return 1 }

// encodeLegacyArchive writes a version 1 archive by hand: the layout before
// the output layer became configurable.
func encodeLegacyArchive(t *testing.T, rho int32, single bool, configs []LayerConfig, params []float64) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	require.NoError(t, enc.Encode(int32(1)))
	require.NoError(t, enc.Encode(rho))
	require.NoError(t, enc.Encode(single))
	require.NoError(t, enc.Encode(int32(len(configs))))
	for _, cfg := range configs {
		require.NoError(t, enc.Encode(cfg))
	}
	require.NoError(t, enc.Encode(params))
	return &buf
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n := NewWithOptions(7, false, loss.NegativeLogLikelihood{}, weights.NewUniformSeeded(-0.5, 0.5, 6))
	n.Add(layer.NewEmbedding(12, 4))
	n.Add(layer.NewGRU(4, 6))
	n.Add(layer.NewLayerNorm(6))
	n.Add(layer.NewLinear(6, 5))
	n.Add(layer.NewActivation(5, activations.NewLeakyReLU(0.1)))
	n.Add(layer.NewDropout(0.3, 5))
	n.Add(layer.NewLogSoftmax(5))
	require.NoError(t, n.ResetParameters())

	var buf bytes.Buffer
	require.NoError(t, n.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, n.Rho(), decoded.Rho())
	require.Equal(t, n.Single(), decoded.Single())
	require.Len(t, decoded.Layers(), len(n.Layers()))
	for i := range n.Layers() {
		wantCfg, err := ExtractLayerConfig(n.Layers()[i])
		require.NoError(t, err)
		gotCfg, err := ExtractLayerConfig(decoded.Layers()[i])
		require.NoError(t, err)
		require.Equal(t, wantCfg, gotCfg, "layer %d", i)
	}
	require.Equal(t, n.Parameters(), decoded.Parameters())

	// Token sequences with class targets; both networks must score them
	// identically.
	predictors := tensor.New(1, 2, 3)
	responses := tensor.New(1, 2, 3)
	for j := 0; j < 2; j++ {
		for ts := 0; ts < 3; ts++ {
			predictors.Set(0, j, ts, float64((j*3+ts)%12))
			responses.Set(0, j, ts, float64((j+ts)%5))
		}
	}
	bind(n, predictors, responses)
	bind(decoded, predictors, responses)
	require.Equal(t, n.Evaluate(nil, 0, 2, true), decoded.Evaluate(nil, 0, 2, true))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")

	n := NewWithOptions(4, true, loss.MSE{}, weights.NewUniformSeeded(-0.5, 0.5, 27))
	n.Add(layer.NewLSTM(2, 5))
	n.Add(layer.NewLinear(5, 1))
	require.NoError(t, n.ResetParameters())
	require.NoError(t, n.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, n.Parameters(), loaded.Parameters())
	require.True(t, loaded.Single())

	predictors := randomCube(2, 3, 4, 104)
	responses := randomCube(1, 3, 1, 105)
	bind(n, predictors, responses)
	bind(loaded, predictors, responses)
	require.Equal(t, n.Evaluate(nil, 0, 3, true), loaded.Evaluate(nil, 0, 3, true))
}

func TestOutputLayerSurvivesRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		l    loss.Loss
	}{
		{"MSE", loss.MSE{}},
		{"L1", loss.L1{}},
		{"Huber", loss.NewHuber(2.5)},
		{"CrossEntropy", loss.CrossEntropy{}},
		{"NegativeLogLikelihood", loss.NegativeLogLikelihood{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := NewWithOptions(3, false, tc.l, weights.NewUniformSeeded(-1, 1, 28))
			n.Add(layer.NewLinear(2, 2))

			var buf bytes.Buffer
			require.NoError(t, n.Encode(&buf))
			decoded, err := Decode(&buf)
			require.NoError(t, err)
			require.Equal(t, tc.l, decoded.OutputLayer())
		})
	}
}

func TestDecodeLegacyFormatDefaultsLoss(t *testing.T) {
	configs := []LayerConfig{
		{Type: "Linear", InSize: 3, OutSize: 4},
		{Type: "Linear", InSize: 4, OutSize: 2},
	}
	params := make([]float64, 3*4+4+4*2+2)
	for i := range params {
		params[i] = float64(i) / 10
	}
	buf := encodeLegacyArchive(t, 5, false, configs, params)

	n, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n.Rho())
	require.False(t, n.Single())
	require.IsType(t, loss.NegativeLogLikelihood{}, n.OutputLayer())
	require.Equal(t, params, n.Parameters())
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(int32(99)))

	_, err := Decode(&buf)
	require.ErrorContains(t, err, "unsupported model format version 99")
}

func TestDecodeRejectsParameterMismatch(t *testing.T) {
	configs := []LayerConfig{{Type: "Linear", InSize: 2, OutSize: 2}}
	buf := encodeLegacyArchive(t, 3, false, configs, []float64{1, 2, 3})

	_, err := Decode(buf)
	require.ErrorContains(t, err, "archive holds 3 parameters")
}

func TestDecodeRejectsUnknownLayerType(t *testing.T) {
	configs := []LayerConfig{{Type: "Deconvolution", InSize: 2, OutSize: 2}}
	buf := encodeLegacyArchive(t, 3, false, configs, []float64{})

	_, err := Decode(buf)
	require.ErrorContains(t, err, "failed to rebuild layer 0")
}

func TestEncodeRejectsUnsupportedLayer(t *testing.T) {
	n := New(2)
	n.Add(stubLayer{})

	var buf bytes.Buffer
	err := n.Encode(&buf)
	require.ErrorContains(t, err, "unsupported layer type")
}

func TestEncodeInitializesFreshNetwork(t *testing.T) {
	n := New(3)
	n.Add(layer.NewLinear(2, 2))

	var buf bytes.Buffer
	require.NoError(t, n.Encode(&buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Parameters(), n.ParameterCount())
	require.Equal(t, n.Parameters(), decoded.Parameters())
}
