package profile_classifier

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Predict(vector []float64) (float64, error) {
	args := m.Called(vector)
	return args.Get(0).(float64), args.Error(1)
}

func loadDefaultEngine(t *testing.T, metrics common.IntelligenceMetrics) *Engine {
	t.Helper()
	arts, err := NewArtifactLoader(nil, nil, nil).Load(context.Background(), ArtifactSpec{
		Source:     SourceFile,
		ScalerPath: filepath.Join("testdata", "scaler.yaml"),
		ModelPath:  filepath.Join("testdata", "network.yaml"),
		ModelName:  "profile-classifier",
		Dimension:  FeatureDimension,
	})
	require.NoError(t, err)
	e, err := NewEngineFromArtifacts(arts, DefaultThreshold, metrics, nil)
	require.NoError(t, err)
	return e
}

func TestNewEngine_Validation(t *testing.T) {
	s := unitScaler(t, FeatureDimension)
	scorer := new(mockScorer)

	_, err := NewEngine(nil, scorer, nil, nil, EngineConfig{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed))
	_, err = NewEngine(s, nil, nil, nil, EngineConfig{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed))
	_, err = NewEngine(s, scorer, nil, nil, EngineConfig{Threshold: 1.5})
	assert.Error(t, err)
	_, err = NewEngineFromArtifacts(nil, 0.5, nil, nil)
	assert.Error(t, err)

	e, err := NewEngine(s, scorer, nil, nil, EngineConfig{Threshold: DefaultThreshold})
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, e.Threshold())
}

func TestNewEngine_RejectsThresholdOutsideOpenInterval(t *testing.T) {
	s := unitScaler(t, FeatureDimension)
	scorer := new(mockScorer)

	for _, th := range []float64{0, 1, -0.1, 1.5, math.NaN()} {
		_, err := NewEngine(s, scorer, nil, nil, EngineConfig{Threshold: th})
		require.Error(t, err, "threshold %v", th)
		assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed))
	}
}

func TestEngine_ThresholdIsInclusive(t *testing.T) {
	cases := []struct {
		p    float64
		fake bool
	}{
		{0.4999, false},
		{0.5, true},
		{0.93, true},
		{0, false},
		{1, true},
	}
	for _, tc := range cases {
		scorer := new(mockScorer)
		scorer.On("Predict", mock.Anything).Return(tc.p, nil)
		e, err := NewEngine(unitScaler(t, FeatureDimension), scorer, nil, nil, EngineConfig{Threshold: 0.5})
		require.NoError(t, err)

		pred, err := e.ClassifyVector(context.Background(), make([]float64, FeatureDimension))
		require.NoError(t, err)
		assert.Equal(t, tc.p, pred.FakeProbability)
		assert.Equal(t, tc.fake, pred.IsFake, "p=%v", tc.p)
		assert.Equal(t, pred.FakeProbability >= e.Threshold(), pred.IsFake)
	}
}

func TestEngine_CustomThreshold(t *testing.T) {
	scorer := new(mockScorer)
	scorer.On("Predict", mock.Anything).Return(0.6, nil)
	e, err := NewEngine(unitScaler(t, FeatureDimension), scorer, nil, nil, EngineConfig{Threshold: 0.7})
	require.NoError(t, err)

	pred, err := e.ClassifyVector(context.Background(), make([]float64, FeatureDimension))
	require.NoError(t, err)
	assert.False(t, pred.IsFake)
}

func TestEngine_ClassifyVector_DimensionMismatch(t *testing.T) {
	metrics := common.NewInMemoryIntelligenceMetrics()
	scorer := new(mockScorer)
	e, err := NewEngine(unitScaler(t, FeatureDimension), scorer, metrics, nil, EngineConfig{ModelName: "m", Threshold: DefaultThreshold})
	require.NoError(t, err)

	_, err = e.ClassifyVector(context.Background(), make([]float64, 10))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
	scorer.AssertNotCalled(t, "Predict", mock.Anything)

	recorded := metrics.GetRecordedInferences()
	require.Len(t, recorded, 1)
	assert.False(t, recorded[0].Success)
	assert.Equal(t, common.ModeFeatures, recorded[0].Mode)
}

func TestEngine_ScorerFailure(t *testing.T) {
	scorer := new(mockScorer)
	scorer.On("Predict", mock.Anything).Return(0.0, assert.AnError)
	e, err := NewEngine(unitScaler(t, FeatureDimension), scorer, nil, nil, EngineConfig{Threshold: DefaultThreshold})
	require.NoError(t, err)

	_, err = e.ClassifyVector(context.Background(), make([]float64, FeatureDimension))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestEngine_ScorerOutOfRange(t *testing.T) {
	scorer := new(mockScorer)
	scorer.On("Predict", mock.Anything).Return(1.2, nil)
	e, err := NewEngine(unitScaler(t, FeatureDimension), scorer, nil, nil, EngineConfig{Threshold: DefaultThreshold})
	require.NoError(t, err)

	_, err = e.ClassifyVector(context.Background(), make([]float64, FeatureDimension))
	assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed))
}

func TestEngine_ScalerWidthDisagreesWithScorer(t *testing.T) {
	e, err := NewEngine(unitScaler(t, 3), tinyNetwork(t), nil, nil, EngineConfig{Threshold: DefaultThreshold})
	require.NoError(t, err)

	_, err = e.ClassifyVector(context.Background(), make([]float64, FeatureDimension))
	assert.True(t, errors.IsCode(err, errors.ErrCodeDimensionMismatch))
}

func TestEngine_DefaultArtifacts_GenuineProfile(t *testing.T) {
	metrics := common.NewInMemoryIntelligenceMetrics()
	e := loadDefaultEngine(t, metrics)

	fv, err := Extract(johnDoe())
	require.NoError(t, err)
	pred, err := e.Classify(context.Background(), fv)
	require.NoError(t, err)

	assert.Less(t, pred.FakeProbability, 0.5)
	assert.False(t, pred.IsFake)

	recorded := metrics.GetRecordedInferences()
	require.Len(t, recorded, 1)
	assert.Equal(t, common.VerdictGenuine, recorded[0].Verdict)
	assert.Equal(t, "2024.1", recorded[0].ModelVersion)
}

func TestEngine_DefaultArtifacts_BotProfile(t *testing.T) {
	e := loadDefaultEngine(t, nil)

	fv, err := Extract(profile.Attributes{
		Username:      "user84629137",
		PostCount:     0,
		FollowerCount: 12,
		FolloweeCount: 2000,
	})
	require.NoError(t, err)
	pred, err := e.Classify(context.Background(), fv)
	require.NoError(t, err)

	assert.Greater(t, pred.FakeProbability, 0.5)
	assert.True(t, pred.IsFake)
}

func TestEngine_Deterministic_Concurrent(t *testing.T) {
	e := loadDefaultEngine(t, nil)
	vector := []float64{1, 0, 2, 0, 0, 0, 0, 0, 10, 500, 300}
	want, err := e.ClassifyVector(context.Background(), vector)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.ClassifyVector(context.Background(), vector)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
