// Package profile_classifier implements the fake-profile scoring pipeline:
// feature extraction, standard scaling and a dense network scorer, composed by
// Engine.
package profile_classifier

import (
	"context"
	"time"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// DefaultThreshold is the probability at or above which a profile is fake.
const DefaultThreshold = 0.5

// Prediction is the output of one classification.
type Prediction struct {
	FakeProbability float64 `json:"fake_probability"`
	IsFake          bool    `json:"is_fake"`
}

// Verdict returns the metric label of the prediction.
func (p *Prediction) Verdict() string {
	if p.IsFake {
		return common.VerdictFake
	}
	return common.VerdictGenuine
}

// EngineConfig parameterizes an Engine.
type EngineConfig struct {
	ModelName    string
	ModelVersion string
	Threshold    float64
}

// Classifier is the scoring contract the application layer depends on.
type Classifier interface {
	Classify(ctx context.Context, features FeatureVector) (*Prediction, error)
	ClassifyVector(ctx context.Context, vector []float64) (*Prediction, error)
}

// Engine composes a Scaler and a Scorer under a decision threshold. It holds
// no mutable state and is safe for concurrent use.
type Engine struct {
	scaler  Scaler
	scorer  Scorer
	metrics common.IntelligenceMetrics
	logger  logging.Logger
	config  EngineConfig
}

// NewEngine creates an Engine. The threshold must lie strictly inside (0, 1).
func NewEngine(
	scaler Scaler,
	scorer Scorer,
	metrics common.IntelligenceMetrics,
	logger logging.Logger,
	cfg EngineConfig,
) (*Engine, error) {
	if scaler == nil {
		return nil, errors.New(errors.ErrCodeScoringFailed, "scaler is required")
	}
	if scorer == nil {
		return nil, errors.New(errors.ErrCodeScoringFailed, "scorer is required")
	}
	if !(cfg.Threshold > 0 && cfg.Threshold < 1) {
		return nil, errors.Newf(errors.ErrCodeScoringFailed, "threshold %v is outside (0, 1)", cfg.Threshold)
	}
	if metrics == nil {
		metrics = common.NewNoopIntelligenceMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		scaler:  scaler,
		scorer:  scorer,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}, nil
}

// NewEngineFromArtifacts is NewEngine over a loaded artifact pair.
func NewEngineFromArtifacts(arts *Artifacts, threshold float64, metrics common.IntelligenceMetrics, logger logging.Logger) (*Engine, error) {
	if arts == nil {
		return nil, errors.New(errors.ErrCodeScoringFailed, "artifacts are required")
	}
	return NewEngine(arts.Scaler, arts.Network, metrics, logger, EngineConfig{
		ModelName:    arts.ModelName,
		ModelVersion: arts.ModelVersion,
		Threshold:    threshold,
	})
}

// Threshold returns the decision threshold.
func (e *Engine) Threshold() float64 { return e.config.Threshold }

// ModelVersion returns the version of the loaded network.
func (e *Engine) ModelVersion() string { return e.config.ModelVersion }

// Classify scores an extracted feature vector.
func (e *Engine) Classify(ctx context.Context, features FeatureVector) (*Prediction, error) {
	return e.classify(ctx, features.Slice(), common.ModeUsername)
}

// ClassifyVector scores a raw vector supplied by a caller. A wrong length is
// reported as DimensionMismatch before any arithmetic happens.
func (e *Engine) ClassifyVector(ctx context.Context, vector []float64) (*Prediction, error) {
	if len(vector) != FeatureDimension {
		err := errors.DimensionMismatch(FeatureDimension, len(vector))
		e.record(ctx, common.ModeFeatures, time.Now(), nil, err)
		return nil, err
	}
	return e.classify(ctx, vector, common.ModeFeatures)
}

func (e *Engine) classify(ctx context.Context, vector []float64, mode string) (pred *Prediction, err error) {
	start := time.Now()
	defer func() { e.record(ctx, mode, start, pred, err) }()

	scaled, err := e.scaler.Transform(vector)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeDimensionMismatch) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeScoringFailed, "failed to scale features")
	}

	p, err := e.scorer.Predict(scaled)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeScoringFailed, "failed to score features")
	}
	if p < 0 || p > 1 {
		return nil, errors.Newf(errors.ErrCodeScoringFailed, "scorer returned %v, outside [0, 1]", p)
	}

	return &Prediction{FakeProbability: p, IsFake: p >= e.config.Threshold}, nil
}

func (e *Engine) record(ctx context.Context, mode string, start time.Time, pred *Prediction, err error) {
	params := &common.InferenceMetricParams{
		ModelName:    e.config.ModelName,
		ModelVersion: e.config.ModelVersion,
		Mode:         mode,
		DurationMs:   common.MillisecondsSince(start),
		Success:      err == nil,
		Verdict:      common.VerdictNone,
	}
	if pred != nil {
		params.Verdict = pred.Verdict()
		params.Probability = pred.FakeProbability
	}
	e.metrics.RecordInference(ctx, params)

	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Debug("classification failed", logging.String("mode", mode))
	}
}

var _ Classifier = (*Engine)(nil)
