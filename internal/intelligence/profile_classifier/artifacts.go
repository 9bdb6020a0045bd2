package profile_classifier

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/common"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// ScalerArtifact is the serialized form of a fitted StandardScaler.
type ScalerArtifact struct {
	Version  string    `yaml:"version" json:"version"`
	Features []string  `yaml:"features,omitempty" json:"features,omitempty"`
	Mean     []float64 `yaml:"mean" json:"mean"`
	Scale    []float64 `yaml:"scale" json:"scale"`
}

// LayerArtifact is one serialized dense layer.
type LayerArtifact struct {
	Activation Activation  `yaml:"activation" json:"activation"`
	Weights    [][]float64 `yaml:"weights" json:"weights"`
	Bias       []float64   `yaml:"bias" json:"bias"`
}

// NetworkArtifact is the serialized form of a DenseNetwork.
type NetworkArtifact struct {
	Version string          `yaml:"version" json:"version"`
	Layers  []LayerArtifact `yaml:"layers" json:"layers"`
}

// ObjectFetcher reads whole objects from a bucket. The MinIO client
// implements it.
type ObjectFetcher interface {
	GetObjectBytes(ctx context.Context, bucket, object string) ([]byte, error)
}

// ArtifactSpec says where the artifacts live and what width they must accept.
type ArtifactSpec struct {
	// Source is "file" or "minio".
	Source       string
	ScalerPath   string
	ModelPath    string
	Bucket       string
	ScalerObject string
	ModelObject  string
	ModelName    string
	Dimension    int
}

// Artifact sources.
const (
	SourceFile  = "file"
	SourceMinIO = "minio"
)

// Artifacts is the loaded, validated pair used to build an Engine.
type Artifacts struct {
	Scaler        *StandardScaler
	Network       *DenseNetwork
	ModelName     string
	ScalerVersion string
	ModelVersion  string
}

// ArtifactLoader reads scaler and network artifacts from disk or object storage.
type ArtifactLoader struct {
	fetcher ObjectFetcher
	metrics common.IntelligenceMetrics
	logger  logging.Logger
}

// NewArtifactLoader creates a loader. fetcher may be nil when only file
// artifacts are used.
func NewArtifactLoader(fetcher ObjectFetcher, metrics common.IntelligenceMetrics, logger logging.Logger) *ArtifactLoader {
	if metrics == nil {
		metrics = common.NewNoopIntelligenceMetrics()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ArtifactLoader{fetcher: fetcher, metrics: metrics, logger: logger}
}

// Load reads both artifacts described by spec and checks that the scaler and
// the network agree with spec.Dimension. Every failure carries
// ErrCodeArtifactLoadFailed or ErrCodeScoringFailed and is fatal to startup.
func (l *ArtifactLoader) Load(ctx context.Context, spec ArtifactSpec) (*Artifacts, error) {
	start := time.Now()
	arts, err := l.load(ctx, spec)

	version := "unknown"
	if arts != nil {
		version = arts.ModelVersion
	}
	l.metrics.RecordModelLoad(ctx, spec.ModelName, version, common.MillisecondsSince(start), err == nil)

	if err != nil {
		l.logger.WithError(err).Error("failed to load classifier artifacts",
			logging.String("source", spec.Source),
			logging.String("model", spec.ModelName))
		return nil, err
	}
	l.logger.Info("classifier artifacts loaded",
		logging.String("source", spec.Source),
		logging.String("model", spec.ModelName),
		logging.String("model_version", arts.ModelVersion),
		logging.String("scaler_version", arts.ScalerVersion),
		logging.String("network", arts.Network.String()))
	return arts, nil
}

func (l *ArtifactLoader) load(ctx context.Context, spec ArtifactSpec) (*Artifacts, error) {
	if spec.Dimension <= 0 {
		spec.Dimension = FeatureDimension
	}

	var scalerRaw, modelRaw []byte
	var err error
	switch spec.Source {
	case SourceFile, "":
		if scalerRaw, err = readFile(spec.ScalerPath); err != nil {
			return nil, err
		}
		if modelRaw, err = readFile(spec.ModelPath); err != nil {
			return nil, err
		}
	case SourceMinIO:
		if l.fetcher == nil {
			return nil, errors.New(errors.ErrCodeArtifactLoadFailed, "object storage is not configured")
		}
		if scalerRaw, err = l.fetch(ctx, spec.Bucket, spec.ScalerObject); err != nil {
			return nil, err
		}
		if modelRaw, err = l.fetch(ctx, spec.Bucket, spec.ModelObject); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf(errors.ErrCodeArtifactLoadFailed, "unknown artifact source %q", spec.Source)
	}

	scalerArt, err := ParseScalerArtifact(scalerRaw)
	if err != nil {
		return nil, err
	}
	netArt, err := ParseNetworkArtifact(modelRaw)
	if err != nil {
		return nil, err
	}
	return BuildArtifacts(spec.ModelName, spec.Dimension, scalerArt, netArt)
}

func (l *ArtifactLoader) fetch(ctx context.Context, bucket, object string) ([]byte, error) {
	data, err := l.fetcher.GetObjectBytes(ctx, bucket, object)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactLoadFailed,
			fmt.Sprintf("failed to fetch %s/%s", bucket, object))
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeArtifactLoadFailed, "artifact path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactLoadFailed, "failed to read artifact")
	}
	return data, nil
}

// ParseScalerArtifact decodes a YAML (or JSON) scaler artifact.
func ParseScalerArtifact(data []byte) (*ScalerArtifact, error) {
	var art ScalerArtifact
	if err := yaml.Unmarshal(data, &art); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactLoadFailed, "failed to decode scaler artifact")
	}
	return &art, nil
}

// ParseNetworkArtifact decodes a YAML (or JSON) network artifact.
func ParseNetworkArtifact(data []byte) (*NetworkArtifact, error) {
	var art NetworkArtifact
	if err := yaml.Unmarshal(data, &art); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactLoadFailed, "failed to decode network artifact")
	}
	return &art, nil
}

// BuildArtifacts constructs the scaler and network and checks both against
// dimension.
func BuildArtifacts(modelName string, dimension int, scalerArt *ScalerArtifact, netArt *NetworkArtifact) (*Artifacts, error) {
	if len(scalerArt.Mean) != dimension {
		return nil, errors.Newf(errors.ErrCodeArtifactLoadFailed,
			"scaler artifact has %d features, expected %d", len(scalerArt.Mean), dimension)
	}
	if len(scalerArt.Features) > 0 && len(scalerArt.Features) != dimension {
		return nil, errors.Newf(errors.ErrCodeArtifactLoadFailed,
			"scaler artifact names %d features, expected %d", len(scalerArt.Features), dimension)
	}
	scaler, err := NewStandardScaler(scalerArt.Mean, scalerArt.Scale)
	if err != nil {
		return nil, err
	}

	layers := make([]DenseLayer, len(netArt.Layers))
	for i, la := range netArt.Layers {
		layers[i] = DenseLayer{Weights: la.Weights, Bias: la.Bias, Activation: la.Activation}
	}
	network, err := NewDenseNetwork(dimension, layers)
	if err != nil {
		return nil, err
	}

	return &Artifacts{
		Scaler:        scaler,
		Network:       network,
		ModelName:     modelName,
		ScalerVersion: scalerArt.Version,
		ModelVersion:  netArt.Version,
	}, nil
}
