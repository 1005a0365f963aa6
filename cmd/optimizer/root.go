package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serving-optimizer/internal/app"
	"serving-optimizer/internal/config"
)

// rootOptions holds the persistent flags. Flags left unset keep the value from
// the config file or the environment.
type rootOptions struct {
	configFile string
	model      string
	basePath   string
	workDir    string
	host       string
	restPort   int
	grpcPort   int
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "optimizer",
		Short: "Export, freeze, optimize, serve and benchmark TensorFlow models",
		Long: `optimizer drives the framework's graph tools to turn a trained model into a
smaller, faster SavedModel under a versioned base path, serves it with
tensorflow_model_server and measures REST predict latency against it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "YAML config file (environment variables still override it)")
	pf.StringVarP(&opts.model, "model", "m", "", "model name (default from SERVING_MODEL_NAME)")
	pf.StringVar(&opts.basePath, "base-path", "", "model base path watched by the model server")
	pf.StringVar(&opts.workDir, "work-dir", "", "directory for intermediate graphs")
	pf.StringVar(&opts.host, "host", "", "model server host")
	pf.IntVar(&opts.restPort, "rest-port", 0, "model server REST port")
	pf.IntVar(&opts.grpcPort, "grpc-port", 0, "model server gRPC port")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newExportCmd(opts),
		newFreezeCmd(opts),
		newOptimizeCmd(opts),
		newDescribeCmd(opts),
		newReexportCmd(opts),
		newPipelineCmd(opts),
		newServeCmd(opts),
		newBenchmarkCmd(opts),
		newVersionsCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Serving.ModelName = o.model
	}
	if flags.Changed("base-path") {
		cfg.Layout.BasePath = o.basePath
	}
	if flags.Changed("work-dir") {
		cfg.Layout.WorkDir = o.workDir
	}
	if flags.Changed("host") {
		cfg.Serving.Host = o.host
	}
	if flags.Changed("rest-port") {
		cfg.Serving.RESTPort = o.restPort
	}
	if flags.Changed("grpc-port") {
		cfg.Serving.GRPCPort = o.grpcPort
	}
	if flags.Changed("log-level") {
		cfg.Logger.Level = o.logLevel
	}

	initLogger(cfg)
	o.cfg = cfg
	return nil
}

// withApp builds the adapters for one command and cancels the context on
// SIGINT or SIGTERM.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.WithError(err).Warn("close adapters")
		}
	}()

	return fn(ctx, a)
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
