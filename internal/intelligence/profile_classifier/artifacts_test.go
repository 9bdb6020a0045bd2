package profile_classifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	"github.com/turtacn/FakeProfile-Intelligence/internal/testutil"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

type mockObjectFetcher struct {
	mock.Mock
}

func (m *mockObjectFetcher) GetObjectBytes(ctx context.Context, bucket, object string) ([]byte, error) {
	args := m.Called(ctx, bucket, object)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func fileSpec() ArtifactSpec {
	return ArtifactSpec{
		Source:     SourceFile,
		ScalerPath: filepath.Join("testdata", "scaler.yaml"),
		ModelPath:  filepath.Join("testdata", "network.yaml"),
		ModelName:  "profile-classifier",
		Dimension:  FeatureDimension,
	}
}

func TestArtifactLoader_LoadFromFile(t *testing.T) {
	metrics := common.NewInMemoryIntelligenceMetrics()
	logger := testutil.NewMockLogger()
	loader := NewArtifactLoader(nil, metrics, logger)

	arts, err := loader.Load(context.Background(), fileSpec())
	require.NoError(t, err)

	assert.Equal(t, FeatureDimension, arts.Scaler.Dimension())
	assert.Equal(t, FeatureDimension, arts.Network.InputDimension())
	assert.Equal(t, "2024.1", arts.ModelVersion)
	assert.Equal(t, "2024.1", arts.ScalerVersion)
	assert.Equal(t, "profile-classifier", arts.ModelName)

	loads := metrics.GetModelLoads()
	require.Len(t, loads, 1)
	assert.True(t, loads[0].Success)
	assert.Equal(t, "2024.1", loads[0].Version)
	assert.True(t, logger.HasMessage("info", "classifier artifacts loaded"))
}

func TestArtifactLoader_MissingFile(t *testing.T) {
	metrics := common.NewInMemoryIntelligenceMetrics()
	loader := NewArtifactLoader(nil, metrics, nil)

	spec := fileSpec()
	spec.ModelPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := loader.Load(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactLoadFailed))

	loads := metrics.GetModelLoads()
	require.Len(t, loads, 1)
	assert.False(t, loads[0].Success)
}

func TestArtifactLoader_EmptyPath(t *testing.T) {
	spec := fileSpec()
	spec.ScalerPath = ""
	_, err := NewArtifactLoader(nil, nil, nil).Load(context.Background(), spec)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactLoadFailed))
}

func TestArtifactLoader_DimensionDisagreement(t *testing.T) {
	dir := t.TempDir()
	scalerPath := filepath.Join(dir, "scaler.yaml")
	require.NoError(t, os.WriteFile(scalerPath, []byte("version: x\nmean: [0, 0]\nscale: [1, 1]\n"), 0o600))

	spec := fileSpec()
	spec.ScalerPath = scalerPath
	_, err := NewArtifactLoader(nil, nil, nil).Load(context.Background(), spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scaler artifact has 2 features, expected 11")
}

func TestArtifactLoader_BadNetworkIsScoringError(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "network.yaml")
	body := "version: bad\nlayers:\n  - activation: relu\n    weights: [[1, 2]]\n    bias: [0]\n"
	require.NoError(t, os.WriteFile(modelPath, []byte(body), 0o600))

	spec := fileSpec()
	spec.ModelPath = modelPath
	_, err := NewArtifactLoader(nil, nil, nil).Load(context.Background(), spec)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeScoringFailed))
}

func TestArtifactLoader_LoadFromObjectStorage(t *testing.T) {
	scaler, err := os.ReadFile(filepath.Join("testdata", "scaler.yaml"))
	require.NoError(t, err)
	network, err := os.ReadFile(filepath.Join("testdata", "network.yaml"))
	require.NoError(t, err)

	fetcher := new(mockObjectFetcher)
	fetcher.On("GetObjectBytes", mock.Anything, "models", "fpi/scaler.yaml").Return(scaler, nil)
	fetcher.On("GetObjectBytes", mock.Anything, "models", "fpi/network.yaml").Return(network, nil)

	arts, err := NewArtifactLoader(fetcher, nil, nil).Load(context.Background(), ArtifactSpec{
		Source:       SourceMinIO,
		Bucket:       "models",
		ScalerObject: "fpi/scaler.yaml",
		ModelObject:  "fpi/network.yaml",
		ModelName:    "profile-classifier",
		Dimension:    FeatureDimension,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024.1", arts.ModelVersion)
	fetcher.AssertExpectations(t)
}

func TestArtifactLoader_ObjectStorageFailure(t *testing.T) {
	fetcher := new(mockObjectFetcher)
	fetcher.On("GetObjectBytes", mock.Anything, "models", "scaler.yaml").Return(nil, assert.AnError)

	_, err := NewArtifactLoader(fetcher, nil, nil).Load(context.Background(), ArtifactSpec{
		Source: SourceMinIO, Bucket: "models", ScalerObject: "scaler.yaml", ModelObject: "network.yaml",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactLoadFailed))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestArtifactLoader_ObjectStorageNotConfigured(t *testing.T) {
	_, err := NewArtifactLoader(nil, nil, nil).Load(context.Background(), ArtifactSpec{Source: SourceMinIO})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object storage is not configured")
}

func TestArtifactLoader_UnknownSource(t *testing.T) {
	_, err := NewArtifactLoader(nil, nil, nil).Load(context.Background(), ArtifactSpec{Source: "ftp"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactLoadFailed))
}

func TestParseArtifacts_JSON(t *testing.T) {
	s, err := ParseScalerArtifact([]byte(`{"version":"j1","mean":[1,2],"scale":[3,4]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, s.Mean)

	n, err := ParseNetworkArtifact([]byte(`{"version":"j1","layers":[{"activation":"sigmoid","weights":[[1,2]],"bias":[0]}]}`))
	require.NoError(t, err)
	require.Len(t, n.Layers, 1)
	assert.Equal(t, ActivationSigmoid, n.Layers[0].Activation)
}

func TestParseArtifacts_Malformed(t *testing.T) {
	_, err := ParseScalerArtifact([]byte("mean: [1, 2"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactLoadFailed))
	_, err = ParseNetworkArtifact([]byte("layers: {"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeArtifactLoadFailed))
}
