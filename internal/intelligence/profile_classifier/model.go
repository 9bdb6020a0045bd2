package profile_classifier

import (
	"fmt"
	"math"

	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// Scorer maps a scaled feature vector to a fake probability in [0, 1].
type Scorer interface {
	Predict(vector []float64) (float64, error)
}

// Activation is a dense layer's element-wise non-linearity.
type Activation string

const (
	ActivationReLU    Activation = "relu"
	ActivationSigmoid Activation = "sigmoid"
	ActivationTanh    Activation = "tanh"
	ActivationLinear  Activation = "linear"
)

func (a Activation) valid() bool {
	switch a {
	case ActivationReLU, ActivationSigmoid, ActivationTanh, ActivationLinear:
		return true
	}
	return false
}

func (a Activation) apply(x float64) float64 {
	switch a {
	case ActivationReLU:
		if x < 0 {
			return 0
		}
		return x
	case ActivationSigmoid:
		return sigmoid(x)
	case ActivationTanh:
		return math.Tanh(x)
	default:
		return x
	}
}

// sigmoid is split on sign so exp never overflows.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// DenseLayer is one fully connected layer. Weights are indexed [out][in].
type DenseLayer struct {
	Weights    [][]float64
	Bias       []float64
	Activation Activation
}

func (l DenseLayer) inputs() int  { return len(l.Weights[0]) }
func (l DenseLayer) outputs() int { return len(l.Weights) }

// DenseNetwork is a feed-forward network of dense layers ending in a single
// sigmoid unit. It has no mutable state after construction.
type DenseNetwork struct {
	layers []DenseLayer
}

// NewDenseNetwork validates the layer shapes against inputDim and deep-copies
// the parameters.
func NewDenseNetwork(inputDim int, layers []DenseLayer) (*DenseNetwork, error) {
	if len(layers) == 0 {
		return nil, scoringErrorf("network has no layers")
	}
	width := inputDim
	copied := make([]DenseLayer, len(layers))
	for li, l := range layers {
		if len(l.Weights) == 0 {
			return nil, scoringErrorf("layer %d has no units", li)
		}
		if len(l.Bias) != len(l.Weights) {
			return nil, scoringErrorf("layer %d has %d units but %d biases", li, len(l.Weights), len(l.Bias))
		}
		if !l.Activation.valid() {
			return nil, scoringErrorf("layer %d has unknown activation %q", li, l.Activation)
		}
		weights := make([][]float64, len(l.Weights))
		for ui, row := range l.Weights {
			if len(row) != width {
				return nil, scoringErrorf("layer %d unit %d expects %d inputs, previous width is %d", li, ui, len(row), width)
			}
			for _, w := range row {
				if math.IsNaN(w) || math.IsInf(w, 0) {
					return nil, scoringErrorf("layer %d unit %d has a non-finite weight", li, ui)
				}
			}
			weights[ui] = append([]float64(nil), row...)
		}
		copied[li] = DenseLayer{
			Weights:    weights,
			Bias:       append([]float64(nil), l.Bias...),
			Activation: l.Activation,
		}
		width = len(l.Weights)
	}

	last := copied[len(copied)-1]
	if last.outputs() != 1 {
		return nil, scoringErrorf("final layer must have 1 unit, has %d", last.outputs())
	}
	if last.Activation != ActivationSigmoid {
		return nil, scoringErrorf("final layer activation must be sigmoid, is %q", last.Activation)
	}
	return &DenseNetwork{layers: copied}, nil
}

// InputDimension is the width of vectors Predict accepts.
func (n *DenseNetwork) InputDimension() int { return n.layers[0].inputs() }

// Layers returns the number of dense layers.
func (n *DenseNetwork) Layers() int { return len(n.layers) }

// Predict runs the forward pass.
func (n *DenseNetwork) Predict(vector []float64) (float64, error) {
	if len(vector) != n.InputDimension() {
		return 0, scoringErrorf("network expects %d inputs, got %d", n.InputDimension(), len(vector))
	}
	act := vector
	for _, l := range n.layers {
		next := make([]float64, l.outputs())
		for u, row := range l.Weights {
			sum := l.Bias[u]
			for i, w := range row {
				sum += w * act[i]
			}
			next[u] = l.Activation.apply(sum)
		}
		act = next
	}
	p := act[0]
	if math.IsNaN(p) {
		return 0, scoringErrorf("network produced NaN")
	}
	return p, nil
}

func (n *DenseNetwork) String() string {
	widths := make([]int, 0, len(n.layers)+1)
	widths = append(widths, n.InputDimension())
	for _, l := range n.layers {
		widths = append(widths, l.outputs())
	}
	return fmt.Sprintf("DenseNetwork%v", widths)
}

func scoringErrorf(format string, args ...interface{}) *errors.AppError {
	return errors.Newf(errors.ErrCodeScoringFailed, format, args...)
}

var _ Scorer = (*DenseNetwork)(nil)
