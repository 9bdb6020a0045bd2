package profile_classifier

import (
	"fmt"
	"math"

	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// Scaler maps a raw feature vector onto the scale the network was trained on.
type Scaler interface {
	Transform(vector []float64) ([]float64, error)
}

// StandardScaler applies (x - mean) / scale per feature. Parameters are copied
// on construction and never mutated, so one instance can serve every request.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler validates and copies the fitted parameters. A zero or
// non-finite scale is rejected since it would divide by zero at request time.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, errors.New(errors.ErrCodeArtifactLoadFailed, "scaler has no features")
	}
	if len(mean) != len(scale) {
		return nil, errors.Newf(errors.ErrCodeArtifactLoadFailed,
			"scaler mean has %d entries but scale has %d", len(mean), len(scale))
	}
	for i := range mean {
		if math.IsNaN(mean[i]) || math.IsInf(mean[i], 0) {
			return nil, errors.Newf(errors.ErrCodeArtifactLoadFailed, "scaler mean[%d] is not finite", i)
		}
		if scale[i] == 0 || math.IsNaN(scale[i]) || math.IsInf(scale[i], 0) {
			return nil, errors.Newf(errors.ErrCodeArtifactLoadFailed,
				"scaler scale[%d] must be finite and non-zero, got %v", i, scale[i])
		}
	}
	return &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: append([]float64(nil), scale...),
	}, nil
}

// Dimension is the number of features the scaler was fitted on.
func (s *StandardScaler) Dimension() int { return len(s.mean) }

// Transform returns a new scaled vector. The input is not modified.
func (s *StandardScaler) Transform(vector []float64) ([]float64, error) {
	if len(vector) != len(s.mean) {
		return nil, errors.DimensionMismatch(len(s.mean), len(vector))
	}
	out := make([]float64, len(vector))
	for i, x := range vector {
		out[i] = (x - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

// String is used in startup logs.
func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(dim=%d)", len(s.mean))
}

var _ Scaler = (*StandardScaler)(nil)
