package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/owalsh/gridstage/internal/pkg/archive/mongodb"
	"github.com/owalsh/gridstage/internal/pkg/archive/natshandler"
	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/config"
	"github.com/owalsh/gridstage/internal/pkg/session"
	"github.com/owalsh/gridstage/internal/pkg/solver"
	"github.com/owalsh/gridstage/internal/pkg/solver/virtualsolver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "gridstage",
		Short:         "Build power-system models one filtered batch at a time",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config/gridstage.yaml", "session configuration file")
	root.AddCommand(
		newRunCmd(&cfgPath),
		newInteractiveCmd(&cfgPath),
		newShowCmd(&cfgPath),
		newInspectCmd(&cfgPath),
		newServeCmd(&cfgPath),
	)
	return root
}

func loadConfig(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func newSession(cfg config.Config, logger *zap.Logger) (*session.Session, error) {
	opt, err := buildOptimizer(cfg, logger)
	if err != nil {
		return nil, err
	}
	backend := catalog.FileSource{Path: cfg.Catalog}
	return session.New(cfg, backend, opt, logger)
}

func buildOptimizer(cfg config.Config, logger *zap.Logger) (solver.Optimizer, error) {
	switch cfg.Optimize.Solver {
	case "", "virtual":
		return virtualsolver.New(cfg.TrackedCarrier, cfg.ReverseLinks, logger), nil
	default:
		return nil, fmt.Errorf("solver %q: no backend available", cfg.Optimize.Solver)
	}
}

// attachArchives wires the configured event sinks to the session and returns
// a stop function. Sinks are optional; an empty endpoint disables a sink.
func attachArchives(s *session.Session, cfg config.Config, logger *zap.Logger, cmd *cobra.Command) (func(), error) {
	var stops []func()

	if cfg.Archive.MongoURI != "" {
		h, err := mongodb.New(mongodb.Config{
			URI:      cfg.Archive.MongoURI,
			Database: cfg.Archive.MongoDatabase,
		}, s, logger)
		if err != nil {
			return nil, err
		}
		go h.Process(cmd.Context())
		stops = append(stops, h.StopProcess)
	}

	if cfg.Archive.NATSServer != "" {
		h, err := natshandler.New(natshandler.Config{
			Server: cfg.Archive.NATSServer,
		}, s, logger)
		if err != nil {
			return nil, err
		}
		go h.Process()
		stops = append(stops, h.StopProcess)
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}, nil
}
