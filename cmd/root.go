// Package cmd defines and implements the CLI commands for the docbridge executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/docbridge/internal/config"
	"github.com/JakeFAU/docbridge/internal/logstream"
	"github.com/JakeFAU/docbridge/internal/progress"
	"github.com/JakeFAU/docbridge/internal/server"
	"github.com/JakeFAU/docbridge/internal/service"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

const closeTimeout = 30 * time.Second

// Tools is the subset of the tool service the commands call.
type Tools interface {
	Convert(ctx context.Context, req service.ConvertRequest, notifier progress.Notifier) service.ConvertResponse
	GetInfo(ctx context.Context, req service.InfoRequest) service.InfoResponse
}

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Start(ctx context.Context)
	Run(ctx context.Context) error
	Close(ctx context.Context) error
	Tools() Tools
}

type serverApp struct {
	*server.App
}

func (a serverApp) Tools() Tools {
	return a.Service()
}

// newApp is the application factory. It's a variable so we can
// replace it with a fake factory in our tests. Quiet apps only print
// warnings so a progress bar can own the terminal.
var newApp = func(ctx context.Context, cfg *config.Config, quiet bool) (App, error) {
	opts := server.Options{}
	if quiet {
		stream := logstream.NewBroadcaster()
		opts.Stream = stream
		opts.Logger = quietLogger(stream, logstream.ParseLevel(cfg.LogStream.Level), os.Stderr)
	}
	app, err := server.Build(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}
	return serverApp{App: app}, nil
}

func quietLogger(stream *logstream.Broadcaster, streamLevel zapcore.Level, w io.Writer) *zap.Logger {
	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.WarnLevel,
	)
	return zap.New(zapcore.NewTee(console, logstream.NewCore(stream, streamLevel)))
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docbridge",
		Short: "PDF to DOCX conversion tools with live progress.",
		Long: `docbridge converts PDF documents to Word (DOCX) files and reports
document metadata. It runs as an HTTP tool service or as a one-shot CLI.
Progress is derived from the converter's own log lines and streamed to
callers as (current, total) pairs.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			quiet := cmd.Name() != "serve" && !verbose
			appInstance, err := newApp(cmd.Context(), &cfg, quiet)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config, if present")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print info logs from CLI commands")

	cmd.AddCommand(newServeCmd(), newConvertCmd(), newInfoCmd())

	return cmd
}

// loadEnvFile exports variables from path without overriding ones already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// withApp resolves the App built by the root command and closes it once fn
// returns, whether or not fn failed.
func withApp(fn func(cmd *cobra.Command, args []string, app App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), closeTimeout)
			defer cancel()
			if cerr := appInstance.Close(ctx); cerr != nil && err == nil {
				err = fmt.Errorf("close application: %w", cerr)
			}
		}()
		return fn(cmd, args, appInstance)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
