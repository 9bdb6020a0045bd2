package profile_classifier

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

func tinyNetwork(t *testing.T) *DenseNetwork {
	t.Helper()
	n, err := NewDenseNetwork(2, []DenseLayer{
		{Weights: [][]float64{{1, 0}, {0, -1}}, Bias: []float64{0, 0}, Activation: ActivationReLU},
		{Weights: [][]float64{{1, 1}}, Bias: []float64{0}, Activation: ActivationSigmoid},
	})
	require.NoError(t, err)
	return n
}

func TestDenseNetwork_Predict(t *testing.T) {
	n := tinyNetwork(t)

	// relu(1)=1, relu(-2)=0 -> sigmoid(1)
	p, err := n.Predict([]float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-1)), p, 1e-12)

	// relu(-3)=0, relu(0)=0 -> sigmoid(0)
	p, err = n.Predict([]float64{-3, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)
}

func TestDenseNetwork_OutputInUnitInterval(t *testing.T) {
	n := tinyNetwork(t)
	for _, x := range []float64{-1e6, -10, 0, 10, 1e6} {
		p, err := n.Predict([]float64{x, -x})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestDenseNetwork_Deterministic(t *testing.T) {
	n := tinyNetwork(t)
	want, err := n.Predict([]float64{0.3, -0.7})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := n.Predict([]float64{0.3, -0.7})
			assert.NoError(t, err)
			assert.Equal(t, math.Float64bits(want), math.Float64bits(got))
		}()
	}
	wg.Wait()
}

func TestDenseNetwork_InputWidthMismatch(t *testing.T) {
	n := tinyNetwork(t)
	_, err := n.Predict([]float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed))
}

func TestDenseNetwork_Activations(t *testing.T) {
	assert.Equal(t, 0.0, ActivationReLU.apply(-2))
	assert.Equal(t, 2.0, ActivationReLU.apply(2))
	assert.Equal(t, math.Tanh(0.5), ActivationTanh.apply(0.5))
	assert.Equal(t, -4.0, ActivationLinear.apply(-4))
	assert.InDelta(t, 0.0, ActivationSigmoid.apply(-800), 1e-300)
	assert.Equal(t, 1.0, ActivationSigmoid.apply(800))
}

func TestNewDenseNetwork_Invalid(t *testing.T) {
	relu := ActivationReLU
	sig := ActivationSigmoid
	cases := map[string][]DenseLayer{
		"no layers":       nil,
		"empty layer":     {{Weights: nil, Bias: nil, Activation: sig}},
		"bias mismatch":   {{Weights: [][]float64{{1, 1}}, Bias: []float64{0, 0}, Activation: sig}},
		"bad activation":  {{Weights: [][]float64{{1, 1}}, Bias: []float64{0}, Activation: "softmax"}},
		"input width":     {{Weights: [][]float64{{1, 1, 1}}, Bias: []float64{0}, Activation: sig}},
		"final width":     {{Weights: [][]float64{{1, 1}, {1, 1}}, Bias: []float64{0, 0}, Activation: sig}},
		"final not sigm":  {{Weights: [][]float64{{1, 1}}, Bias: []float64{0}, Activation: relu}},
		"non-finite":      {{Weights: [][]float64{{math.NaN(), 1}}, Bias: []float64{0}, Activation: sig}},
		"hidden mismatch": {{Weights: [][]float64{{1, 1}}, Bias: []float64{0}, Activation: relu}, {Weights: [][]float64{{1, 1}}, Bias: []float64{0}, Activation: sig}},
	}
	for name, layers := range cases {
		_, err := NewDenseNetwork(2, layers)
		require.Error(t, err, name)
		assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed), name)
	}
}

func TestNewDenseNetwork_CopiesWeights(t *testing.T) {
	w := [][]float64{{1, 1}}
	n, err := NewDenseNetwork(2, []DenseLayer{{Weights: w, Bias: []float64{0}, Activation: ActivationSigmoid}})
	require.NoError(t, err)
	w[0][0] = 1000

	p, err := n.Predict([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)
	assert.Equal(t, 2, n.InputDimension())
	assert.Equal(t, 1, n.Layers())
	assert.Equal(t, "DenseNetwork[2 1]", n.String())
}
