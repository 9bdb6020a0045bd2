// Package detection is the application service that runs the fake-profile
// pipeline for the HTTP API, the messaging worker and the CLI.
package detection

import (
	"context"
	"time"

	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	classifier "github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/profile_classifier"
	pkgerrors "github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// Input-validation messages surfaced verbatim to API callers.
const (
	MsgUsernameRequired = "Username is required"
	MsgFeaturesRequired = "Features are required"
	MsgFeaturesLength   = "Features must contain exactly 11 values"
	MsgFeaturesNumeric  = "Features must be numbers"
)

// Result is the outcome of one prediction.
type Result struct {
	FakeProbability float64          `json:"fake_probability"`
	IsFake          bool             `json:"is_fake"`
	Features        []float64        `json:"features"`
	Profile         *profile.Profile `json:"profile,omitempty"`
	ModelVersion    string           `json:"model_version,omitempty"`
	ClassifiedAt    time.Time        `json:"classified_at"`
}

// Inspection is a fetched profile with its extracted features, unscored.
type Inspection struct {
	Profile  *profile.Profile             `json:"profile"`
	Features []classifier.LabelledFeature `json:"features"`
}

// ResultPublisher receives every successful username prediction.
type ResultPublisher interface {
	PublishResult(ctx context.Context, username string, result *Result) error
}

// Service runs the pipeline in its two input modes.
type Service interface {
	// PredictFromVector scores a caller-supplied raw feature vector.
	PredictFromVector(ctx context.Context, features []float64) (*Result, error)

	// PredictFromUsername fetches the profile, extracts features and scores them.
	PredictFromUsername(ctx context.Context, username string) (*Result, error)

	// Inspect fetches the profile and extracts features without scoring.
	Inspect(ctx context.Context, username string) (*Inspection, error)
}

// Config tunes the service.
type Config struct {
	// FetchTimeout bounds the profile source call only. Zero means no
	// deadline beyond the caller's.
	FetchTimeout time.Duration
	ModelVersion string
}

// Option customizes the service.
type Option func(*detectionService)

// WithPublisher attaches a ResultPublisher.
func WithPublisher(p ResultPublisher) Option {
	return func(s *detectionService) { s.publisher = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *detectionService) { s.now = now }
}

type detectionService struct {
	source     profile.Source
	classifier classifier.Classifier
	publisher  ResultPublisher
	logger     logging.Logger
	cfg        Config
	now        func() time.Time
}

// NewService wires the pipeline. source may be nil for deployments that only
// score vectors; username calls then fail with an internal error.
func NewService(source profile.Source, clf classifier.Classifier, logger logging.Logger, cfg Config, opts ...Option) (Service, error) {
	if clf == nil {
		return nil, pkgerrors.New(pkgerrors.ErrCodeInternal, "classifier is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &detectionService{
		source:     source,
		classifier: clf,
		logger:     logger.Named("detection"),
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *detectionService) PredictFromVector(ctx context.Context, features []float64) (*Result, error) {
	if len(features) == 0 {
		return nil, pkgerrors.InvalidInput(MsgFeaturesRequired)
	}
	if len(features) != classifier.FeatureDimension {
		return nil, pkgerrors.InvalidInput(MsgFeaturesLength).
			WithCause(pkgerrors.DimensionMismatch(classifier.FeatureDimension, len(features)))
	}

	pred, err := s.classifier.ClassifyVector(ctx, features)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.ErrCodeDimensionMismatch) {
			return nil, pkgerrors.InvalidInput(MsgFeaturesLength).WithCause(err)
		}
		return nil, s.scoringError(err)
	}
	return s.result(pred, features, nil), nil
}

func (s *detectionService) PredictFromUsername(ctx context.Context, username string) (*Result, error) {
	prof, fv, err := s.fetchAndExtract(ctx, username)
	if err != nil {
		return nil, err
	}

	pred, err := s.classifier.Classify(ctx, fv)
	if err != nil {
		return nil, s.scoringError(err)
	}
	res := s.result(pred, fv.Slice(), prof)

	log := s.logger.WithContext(ctx)
	log.Info("profile classified",
		logging.String(logging.FieldUsername, prof.Username),
		logging.Float64("fake_probability", res.FakeProbability),
		logging.Bool("is_fake", res.IsFake))

	if s.publisher != nil {
		if perr := s.publisher.PublishResult(ctx, prof.Username, res); perr != nil {
			log.WithError(perr).Warn("failed to publish classification result",
				logging.String(logging.FieldUsername, prof.Username))
		}
	}
	return res, nil
}

func (s *detectionService) Inspect(ctx context.Context, username string) (*Inspection, error) {
	prof, fv, err := s.fetchAndExtract(ctx, username)
	if err != nil {
		return nil, err
	}
	return &Inspection{Profile: prof, Features: fv.Labelled()}, nil
}

func (s *detectionService) fetchAndExtract(ctx context.Context, username string) (*profile.Profile, classifier.FeatureVector, error) {
	username = profile.NormalizeUsername(username)
	if username == "" {
		return nil, classifier.FeatureVector{}, pkgerrors.InvalidInput(MsgUsernameRequired)
	}
	if s.source == nil {
		return nil, classifier.FeatureVector{}, pkgerrors.New(pkgerrors.ErrCodeInternal, "no profile source configured")
	}

	prof, err := s.fetch(ctx, username)
	if err != nil {
		return nil, classifier.FeatureVector{}, err
	}

	fv, err := classifier.Extract(prof.Attributes)
	if err != nil {
		return nil, classifier.FeatureVector{}, pkgerrors.Wrap(err, pkgerrors.ErrCodeExtractionFailed, "failed to extract features")
	}
	return prof, fv, nil
}

func (s *detectionService) fetch(ctx context.Context, username string) (*profile.Profile, error) {
	fetchCtx := ctx
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	prof, err := s.source.Fetch(fetchCtx, username)
	switch {
	case err == nil && prof == nil:
		return nil, pkgerrors.New(pkgerrors.ErrCodeExtractionFailed, "profile source returned no profile")
	case err == nil:
		return prof, nil
	case pkgerrors.IsProfileNotFound(err):
		s.logger.WithContext(ctx).Info("profile not found", logging.String(logging.FieldUsername, username))
		return nil, err
	default:
		s.logger.WithContext(ctx).WithError(err).Warn("profile fetch failed",
			logging.String(logging.FieldUsername, username),
			logging.String("source", s.source.Name()))
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrCodeExtractionFailed,
			"failed to fetch profile")
	}
}

func (s *detectionService) scoringError(err error) error {
	if pkgerrors.IsCode(err, pkgerrors.ErrCodeScoringFailed) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrCodeScoringFailed, "failed to score profile")
}

func (s *detectionService) result(pred *classifier.Prediction, features []float64, prof *profile.Profile) *Result {
	return &Result{
		FakeProbability: pred.FakeProbability,
		IsFake:          pred.IsFake,
		Features:        append([]float64(nil), features...),
		Profile:         prof,
		ModelVersion:    s.cfg.ModelVersion,
		ClassifiedAt:    s.now().UTC(),
	}
}
