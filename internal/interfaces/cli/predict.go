package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/FakeProfile-Intelligence/internal/application/detection"
	"github.com/turtacn/FakeProfile-Intelligence/internal/domain/profile"
	classifier "github.com/turtacn/FakeProfile-Intelligence/internal/intelligence/profile_classifier"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/client"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// PredictionOutput is what predict and predict-features print.
type PredictionOutput struct {
	Username        string        `json:"username,omitempty"`
	FakeProbability float64       `json:"fake_probability"`
	IsFake          bool          `json:"is_fake"`
	ProfileInfo     *profile.Info `json:"profile_info,omitempty"`
	Features        []float64     `json:"features,omitempty"`
	ModelVersion    string        `json:"model_version,omitempty"`
	Source          string        `json:"source"`
}

func verdict(isFake bool) string {
	if isFake {
		return color.RedString("FAKE")
	}
	return color.GreenString("GENUINE")
}

func (o *PredictionOutput) renderText(w io.Writer) error {
	if o.Username != "" {
		fmt.Fprintf(w, "Username: %s\n", o.Username)
	}
	fmt.Fprintf(w, "Fake probability: %.4f\n", o.FakeProbability)
	fmt.Fprintf(w, "Verdict: %s\n", verdict(o.IsFake))
	if o.ModelVersion != "" {
		fmt.Fprintf(w, "Model: %s\n", o.ModelVersion)
	}
	fmt.Fprintf(w, "Source: %s\n", o.Source)
	if o.ProfileInfo != nil {
		fmt.Fprintln(w)
		if err := renderInfo(w, o.ProfileInfo); err != nil {
			return err
		}
	}
	if len(o.Features) == len(classifier.FeatureLabels) {
		fmt.Fprintln(w)
		return renderFeatures(w, classifier.FeatureLabels[:], o.Features)
	}
	return nil
}

func renderInfo(w io.Writer, info *profile.Info) error {
	rows := [][]string{
		{"Username", info.Username},
		{"Full name", info.FullName},
		{"Private", strconv.FormatBool(info.IsPrivate)},
		{"Posts", strconv.FormatInt(info.NumPosts, 10)},
		{"Followers", strconv.FormatInt(info.NumFollowers, 10)},
		{"Follows", strconv.FormatInt(info.NumFollows, 10)},
	}
	if info.ExternalURL != "" {
		rows = append(rows, []string{"External URL", info.ExternalURL})
	}
	if info.Biography != "" {
		rows = append(rows, []string{"Biography", strings.ReplaceAll(info.Biography, "\n", " ")})
	}
	return writeTable(w, []string{"Field", "Value"}, rows)
}

func renderFeatures(w io.Writer, labels []string, values []float64) error {
	rows := make([][]string, 0, len(values))
	for i, v := range values {
		rows = append(rows, []string{strconv.Itoa(i), labels[i], strconv.FormatFloat(v, 'g', 6, 64)})
	}
	return writeTable(w, []string{"#", "Feature", "Value"}, rows)
}

func outputFromResult(username string, res *detection.Result) *PredictionOutput {
	out := &PredictionOutput{
		Username:        username,
		FakeProbability: res.FakeProbability,
		IsFake:          res.IsFake,
		ModelVersion:    res.ModelVersion,
		Source:          "local",
	}
	if res.Profile != nil {
		info := res.Profile.Info()
		out.ProfileInfo = &info
	}
	if username == "" {
		out.Features = res.Features
	}
	return out
}

func outputFromPrediction(username string, p *client.Prediction, server string) *PredictionOutput {
	out := &PredictionOutput{
		Username:        username,
		FakeProbability: p.FakeProbability,
		IsFake:          p.IsFake,
		Source:          server,
	}
	if p.ProfileInfo != nil {
		info := profile.Info(*p.ProfileInfo)
		out.ProfileInfo = &info
	}
	return out
}

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <username>",
		Short: "Fetch an account and score it",
		Long:  "Fetch the public profile of <username>, extract its features and report the fake probability.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cc.WithTimeout(cmd.Context())
			defer cancel()
			username := strings.TrimSpace(args[0])

			if cc.Remote() {
				c, err := cc.NewClient()
				if err != nil {
					return err
				}
				pred, err := c.PredictUsername(ctx, username)
				if err != nil {
					return err
				}
				return PrintResult(cmd, outputFromPrediction(username, pred, c.BaseURL()))
			}

			svc, closeFn, err := cc.NewService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := svc.PredictFromUsername(ctx, username)
			if err != nil {
				return err
			}
			return PrintResult(cmd, outputFromResult(username, res))
		},
	}
}

func newPredictFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict-features <v1,v2,...,v11>",
		Short: "Score a raw feature vector",
		Long: "Score a comma-separated vector of the eleven raw account features, in order:\n" +
			strings.Join(classifier.FeatureLabels[:], ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			features, err := ParseFeatures(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := cc.WithTimeout(cmd.Context())
			defer cancel()

			if cc.Remote() {
				c, err := cc.NewClient()
				if err != nil {
					return err
				}
				pred, err := c.PredictFeatures(ctx, features)
				if err != nil {
					return err
				}
				out := outputFromPrediction("", pred, c.BaseURL())
				out.Features = features
				return PrintResult(cmd, out)
			}

			svc, closeFn, err := cc.NewService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := svc.PredictFromVector(ctx, features)
			if err != nil {
				return err
			}
			return PrintResult(cmd, outputFromResult("", res))
		},
	}
}

// ParseFeatures parses a comma-separated list of numbers. Length is checked
// by the pipeline.
func ParseFeatures(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.InvalidInput(detection.MsgFeaturesRequired)
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("feature %d: %q is not a number", i, strings.TrimSpace(p)))
		}
		out = append(out, v)
	}
	return out, nil
}

// InspectOutput is what inspect prints.
type InspectOutput struct {
	Profile  profile.Info                 `json:"profile"`
	Features []classifier.LabelledFeature `json:"features"`
}

func (o *InspectOutput) renderText(w io.Writer) error {
	if err := renderInfo(w, &o.Profile); err != nil {
		return err
	}
	fmt.Fprintln(w)
	labels := make([]string, len(o.Features))
	values := make([]float64, len(o.Features))
	for i, f := range o.Features {
		labels[i], values[i] = f.Label, f.Value
	}
	return renderFeatures(w, labels, values)
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <username>",
		Short: "Show an account's profile and extracted features without scoring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cc.WithTimeout(cmd.Context())
			defer cancel()

			svc, closeFn, err := cc.NewService(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			insp, err := svc.Inspect(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return PrintResult(cmd, &InspectOutput{Profile: insp.Profile.Info(), Features: insp.Features})
		},
	}
}
