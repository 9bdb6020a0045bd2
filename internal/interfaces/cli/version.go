package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/turtacn/FakeProfile-Intelligence/internal/app"
)

// VersionOutput is what version prints.
type VersionOutput struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func (v *VersionOutput) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Version:  %s\n", v.Version)
	fmt.Fprintf(w, "Commit:   %s\n", v.Commit)
	fmt.Fprintf(w, "Built:    %s\n", v.BuildDate)
	fmt.Fprintf(w, "Go:       %s\n", v.GoVersion)
	fmt.Fprintf(w, "Platform: %s\n", v.Platform)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, &VersionOutput{
				Version:   app.Version,
				Commit:    app.GitCommit,
				BuildDate: app.BuildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			})
		},
	}
}
