package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riskibarqy/softball-stats/internal/app"
	"github.com/riskibarqy/softball-stats/internal/config"
	"github.com/riskibarqy/softball-stats/internal/observability"
	"github.com/riskibarqy/softball-stats/internal/platform/logging"
)

const (
	observabilityStopTimeout = 5 * time.Second

	logSampleFirst      = 50
	logSampleThereafter = 100
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logOpts []logging.Option
	if cfg.AppEnv != config.EnvDev {
		logOpts = append(logOpts, logging.WithSampling(time.Second, logSampleFirst, logSampleThereafter))
	}
	logger := logging.NewJSON(cfg.LogLevel, logOpts...).With(
		"service", cfg.ServiceName,
		"env", cfg.AppEnv,
	)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof", "error", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}

	exitCode := 0
	if err := application.Run(ctx); err != nil {
		logger.Error("app stopped with error", "error", err)
		exitCode = 1
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), observabilityStopTimeout)
	defer cancel()
	if err := pprofSrv.Stop(stopCtx); err != nil {
		logger.Warn("stop pprof", "error", err)
	}
	if err := stopProfiler(); err != nil {
		logger.Warn("stop pyroscope", "error", err)
	}
	if err := shutdownTracing(stopCtx); err != nil {
		logger.Warn("shutdown uptrace", "error", err)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
