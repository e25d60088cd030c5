package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/salesops/internal/archive"
	"github.com/JonMunkholm/salesops/internal/config"
	"github.com/JonMunkholm/salesops/internal/core"
	"github.com/JonMunkholm/salesops/internal/logging"
	"github.com/JonMunkholm/salesops/internal/store"
)

const userAgent = "importctl/1.0"

// backend is what the commands run against.
type backend struct {
	service *core.Service
	reset   func(ctx context.Context) error
	close   func()
}

type app struct {
	stdout io.Writer
	stderr io.Writer

	logLevel string
	jsonOut  bool

	logger  *slog.Logger
	connect func(ctx context.Context, logger *slog.Logger) (*backend, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, connect: connectDatabase}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Validate and import daily activity CSV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			format := "text"
			if a.jsonOut {
				format = "json"
			}
			a.logger = logging.New(a.stderr, a.logLevel, format)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print results and logs as JSON")

	root.AddCommand(
		newValidateCmd(a),
		newImportCmd(a),
		newTemplateCmd(a),
		newResetCmd(a),
	)
	return root
}

// open connects to the backend and returns a context carrying the CLI's
// audit metadata and logger.
func (a *app) open(ctx context.Context) (context.Context, *backend, error) {
	b, err := a.connect(ctx, a.logger)
	if err != nil {
		return ctx, nil, withCode(exitConnection, err)
	}
	ctx = core.ContextWithUserAgent(ctx, userAgent)
	ctx = logging.WithLogger(ctx, a.logger)
	return ctx, b, nil
}

// connectDatabase builds the production backend from the environment.
func connectDatabase(ctx context.Context, logger *slog.Logger) (*backend, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	db := store.New(pool)
	if cfg.Database.EnsureSchema {
		if err := db.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	logger.Info("connected to database", "name", store.DatabaseName(cfg.Database.URL))

	opts := []core.Option{core.WithRunRecorder(db)}
	if cfg.Archive.Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		opts = append(opts, core.WithArchiver(archive.NewS3Archiver(awsCfg, cfg.Archive.Bucket, cfg.Archive.Prefix)))
	}

	service := core.NewService(db, core.ServiceConfig{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: 1,
		Timeout:       cfg.Import.Timeout,
	}, opts...)

	return &backend{service: service, reset: db.Reset, close: pool.Close}, nil
}
