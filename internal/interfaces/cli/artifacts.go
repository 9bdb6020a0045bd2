package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/storage/minio"
	classifier "github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/profile_classifier"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// ArtifactStore is the object storage surface of the artifacts commands.
type ArtifactStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObjectBytes(ctx context.Context, req minio.PutRequest) (*minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]minio.ObjectInfo, error)
}

// StoreFactory connects to the artifact store.
type StoreFactory func(cfg *config.Config, logger logging.Logger) (ArtifactStore, func() error, error)

func defaultStoreFactory(cfg *config.Config, logger logging.Logger) (ArtifactStore, func() error, error) {
	if cfg.Storage.MinIO.Endpoint == "" {
		return nil, nil, errors.InvalidInput("storage.minio.endpoint is not configured")
	}
	// No bucket in the config: push may create it.
	c, err := minio.NewMinIOClient(minio.ConfigFromStorage(cfg.Storage.MinIO, ""), logger)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// ArtifactList is what artifacts push and list print.
type ArtifactList struct {
	Bucket  string             `json:"bucket"`
	Objects []minio.ObjectInfo `json:"objects"`
}

func (l *ArtifactList) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Bucket: %s\n\n", l.Bucket)
	rows := make([][]string, 0, len(l.Objects))
	for _, o := range l.Objects {
		modified := "-"
		if !o.LastModified.IsZero() {
			modified = o.LastModified.UTC().Format("2006-01-02 15:04:05")
		}
		version := o.Metadata["Version"]
		if version == "" {
			version = o.Metadata["version"]
		}
		if version == "" {
			version = "-"
		}
		rows = append(rows, []string{o.Key, strconv.FormatInt(o.Size, 10), version, modified})
	}
	return writeTable(w, []string{"Object", "Size", "Version", "Modified"}, rows)
}

func newArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Publish and list classifier artifacts in object storage",
	}
	cmd.AddCommand(newArtifactsPushCmd(), newArtifactsListCmd())
	return cmd
}

func newArtifactsPushCmd() *cobra.Command {
	var scalerPath, modelPath string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Validate local scaler and network artifacts and upload them",
		Long: "Validate the scaler and network files the same way the servers load them, then\n" +
			"upload them to classifier.bucket under classifier.scaler_object and classifier.model_object.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cl := cc.Config.Classifier
			if scalerPath == "" {
				scalerPath = cl.ScalerPath
			}
			if modelPath == "" {
				modelPath = cl.ModelPath
			}

			scalerData, modelData, arts, err := readArtifacts(cl, scalerPath, modelPath)
			if err != nil {
				return err
			}

			ctx, cancel := cc.WithTimeout(cmd.Context())
			defer cancel()
			store, closeFn, err := cc.newStore(cc.Config, cc.Logger)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.EnsureBucket(ctx, cl.Bucket); err != nil {
				return err
			}
			out := &ArtifactList{Bucket: cl.Bucket}
			uploads := []minio.PutRequest{
				{Object: cl.ScalerObject, Data: scalerData, Metadata: map[string]string{"version": arts.ScalerVersion, "kind": "scaler"}},
				{Object: cl.ModelObject, Data: modelData, Metadata: map[string]string{"version": arts.ModelVersion, "kind": "network"}},
			}
			for _, req := range uploads {
				req.Bucket = cl.Bucket
				req.ContentType = "application/yaml"
				info, err := store.PutObjectBytes(ctx, req)
				if err != nil {
					return err
				}
				out.Objects = append(out.Objects, *info)
			}
			cc.Logger.Info("Artifacts published",
				logging.String("bucket", cl.Bucket),
				logging.String("model_version", arts.ModelVersion))
			return PrintResult(cmd, out)
		},
	}
	cmd.Flags().StringVar(&scalerPath, "scaler", "", "scaler artifact file (default: classifier.scaler_path)")
	cmd.Flags().StringVar(&modelPath, "model", "", "network artifact file (default: classifier.model_path)")
	return cmd
}

// readArtifacts reads both files and builds them against the configured
// dimension so that only loadable artifacts are published.
func readArtifacts(cl config.ClassifierConfig, scalerPath, modelPath string) ([]byte, []byte, *classifier.Artifacts, error) {
	scalerData, err := os.ReadFile(scalerPath)
	if err != nil {
		return nil, nil, nil, errors.InvalidInput(fmt.Sprintf("cannot read scaler artifact: %v", err))
	}
	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, nil, nil, errors.InvalidInput(fmt.Sprintf("cannot read network artifact: %v", err))
	}
	scalerArt, err := classifier.ParseScalerArtifact(scalerData)
	if err != nil {
		return nil, nil, nil, err
	}
	netArt, err := classifier.ParseNetworkArtifact(modelData)
	if err != nil {
		return nil, nil, nil, err
	}
	arts, err := classifier.BuildArtifacts(cl.ModelName, cl.Dimension, scalerArt, netArt)
	if err != nil {
		return nil, nil, nil, err
	}
	return scalerData, modelData, arts, nil
}

func newArtifactsListCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cl := cc.Config.Classifier
			if !cmd.Flags().Changed("prefix") {
				if dir := path.Dir(cl.ScalerObject); dir != "." {
					prefix = dir + "/"
				}
			}

			ctx, cancel := cc.WithTimeout(cmd.Context())
			defer cancel()
			store, closeFn, err := cc.newStore(cc.Config, cc.Logger)
			if err != nil {
				return err
			}
			defer closeFn()

			objs, err := store.ListObjects(ctx, cl.Bucket, prefix)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &ArtifactList{Bucket: cl.Bucket, Objects: objs})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "object key prefix (default: directory of classifier.scaler_object)")
	return cmd
}
