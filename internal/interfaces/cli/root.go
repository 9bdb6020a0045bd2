// Package cli implements the fpi operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/FakeProfile-Intelligence/internal/app"
	"github.com/turtacn/FakeProfile-Intelligence/internal/application/detection"
	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/client"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	Timeout      time.Duration
	ServerAddr   string
}

// ServiceFactory builds the in-process detection pipeline. The returned
// closer releases its clients.
type ServiceFactory func(ctx context.Context, cfg *config.Config, logger logging.Logger) (detection.Service, func() error, error)

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration
	ServerAddr   string

	newService ServiceFactory
	newStore   StoreFactory
}

// NewService builds the local pipeline for one command invocation.
func (c *CLIContext) NewService(ctx context.Context) (detection.Service, func() error, error) {
	return c.newService(ctx, c.Config, c.Logger)
}

// NewClient returns an API client for --server.
func (c *CLIContext) NewClient() (*client.Client, error) {
	return client.NewClient(c.ServerAddr,
		client.WithTimeout(c.Timeout),
		client.WithUserAgent("fpi-cli/"+app.Version))
}

// Remote reports whether commands should call the API server.
func (c *CLIContext) Remote() bool {
	return c.ServerAddr != ""
}

// WithTimeout derives the per-command deadline from --timeout.
func (c *CLIContext) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func defaultServiceFactory(ctx context.Context, cfg *config.Config, logger logging.Logger) (detection.Service, func() error, error) {
	rt, err := app.New(ctx, cfg, logger, app.Options{Component: "cli"})
	if err != nil {
		return nil, nil, err
	}
	return rt.Service, rt.Close, nil
}

// Dependencies are the factories commands use to reach the pipeline and
// the artifact store. Nil fields use the real implementations.
type Dependencies struct {
	Service ServiceFactory
	Store   StoreFactory
}

// NewRootCommand creates the root command wired to the real pipeline.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(Dependencies{})
}

// NewRootCommandWith creates the root command with custom dependencies.
func NewRootCommandWith(deps Dependencies) *cobra.Command {
	if deps.Service == nil {
		deps.Service = defaultServiceFactory
	}
	if deps.Store == nil {
		deps.Store = defaultStoreFactory
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fpi",
		Short: "FakeProfile-Intelligence CLI: score social media accounts as fake or genuine",
		Long: "fpi fetches public profile information, extracts the eleven account features\n" +
			"and scores them with the trained classifier, locally or through the API server.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", app.Version, app.GitCommit, app.BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, deps)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: search ./configs/config.yaml, ~/.fpi/config.yaml, /etc/fpi/config.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (text, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-command timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "API server base URL; when set, predictions are made remotely")

	cmd.AddCommand(
		newInspectCmd(),
		newPredictCmd(),
		newPredictFeaturesCmd(),
		newArtifactsCmd(),
		newVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, deps Dependencies) error {
	format := strings.ToLower(opts.OutputFormat)
	if format != OutputText && format != OutputJSON {
		return errors.InvalidInput(fmt.Sprintf("unknown output format %q (text, json)", opts.OutputFormat))
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: format,
		Timeout:      opts.Timeout,
		ServerAddr:   strings.TrimSpace(opts.ServerAddr),
		newService:   deps.Service,
		newStore:     deps.Store,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads --config, else the first config file found on the search
// path, else defaults plus FPI_* environment overrides.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{filepath.Join("configs", "config.yaml")}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".fpi", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/fpi/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger creates a console logger on stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            string(level),
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLI context not initialized")
	}
	return cliCtx, nil
}

// Execute runs the CLI with os.Args.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// textRenderer is implemented by command results with a human-readable form.
type textRenderer interface {
	renderText(w io.Writer) error
}

// PrintResult writes data as indented JSON or, for text output, through its
// text renderer.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := OutputText
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}

	out := cmd.OutOrStdout()
	if tr, ok := data.(textRenderer); ok && format == OutputText {
		return tr.renderText(out)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// writeTable renders rows under header.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", describeError(err))
}

func describeError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s (HTTP %d, code %s, request %s)", apiErr.Message, apiErr.StatusCode, apiErr.Code, apiErr.RequestID)
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return fmt.Sprintf("%s [%s]", appErr.Message, appErr.Code)
	}
	return err.Error()
}
