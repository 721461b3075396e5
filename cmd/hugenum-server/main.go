package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/hugenum/internal/config"
	"github.com/mohammed-shakir/hugenum/internal/health"
	"github.com/mohammed-shakir/hugenum/internal/logger"
	"github.com/mohammed-shakir/hugenum/internal/metrics"
	"github.com/mohammed-shakir/hugenum/internal/observability"
	"github.com/mohammed-shakir/hugenum/internal/server"
	"github.com/mohammed-shakir/hugenum/internal/sim"
	"github.com/mohammed-shakir/hugenum/internal/tuneevents"
	"github.com/mohammed-shakir/hugenum/internal/valuestore"
	"github.com/mohammed-shakir/hugenum/pkg/decimal"
	"github.com/mohammed-shakir/hugenum/pkg/engine"
)

var (
	Version  = "dev"
	Revision = ""
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	runID := logger.NewID()
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		RunID:     runID,
		Component: "hugenum-server",
	}, os.Stdout)
	log := logger.NewSlog(&zl)
	warn := logger.Throttled(&zl, 5, time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runID, log, warn); err != nil {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, runID string, log, warn *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mp := metrics.Init(metrics.Config{
		Path:  cfg.MetricsPath,
		Build: metrics.BuildInfo{Version: Version, Revision: Revision, RunID: runID},
	})
	engMetrics := observability.New(mp.Registerer())
	httpMetrics := observability.NewHTTP(mp.Registerer())
	ioMetrics := observability.NewIO(mp.Registerer())

	ready := map[string]health.Checker{}
	deps := server.Deps{
		Log:         log,
		HTTP:        httpMetrics,
		Metrics:     mp.Handler(),
		MetricsPath: mp.Path(),
		Ready:       ready,
	}

	var store sim.Store
	if cfg.Store.RedisAddr != "" {
		vs, err := valuestore.New(ctx, valuestore.Config{
			Addr:   cfg.Store.RedisAddr,
			Prefix: cfg.Store.Prefix,
			TTL:    cfg.Store.TTL,
		}, ioMetrics)
		if err != nil {
			return err
		}
		defer func() { _ = vs.Close() }()
		store = vs
		deps.Values = vs
		ready["redis"] = vs.Ping
		log.Info("value store enabled", "addr", cfg.Store.RedisAddr)
	}

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithWarnLogger(warn),
		engine.WithMetrics(engMetrics),
	}
	if cfg.Events.Enabled {
		pub, err := tuneevents.New(tuneevents.Config{
			Brokers: cfg.Events.BrokerList(),
			Topic:   cfg.Events.Topic,
			Queue:   cfg.Events.Queue,
			RunID:   runID,
		}, log, ioMetrics)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, engine.WithSink(pub))
		log.Info("tuning events enabled", "topic", cfg.Events.Topic)
	}
	eng := engine.New(cfg, opts...)

	s := sim.New(eng, sim.Config{
		Tick:         cfg.SimTick,
		PersistEvery: cfg.PersistEach,
		TuneOnStart:  cfg.Tuner.Enabled,
	}, store, log)
	for _, p := range demoProducers() {
		if err := s.Add(p); err != nil {
			return err
		}
	}
	if err := s.Restore(ctx); err != nil {
		log.Warn("restore values", "err", err)
	}
	deps.Snapshots = s

	simErr := make(chan error, 1)
	go func() { simErr <- s.Run(ctx) }()

	log.Info("starting hugenum-server", "addr", cfg.Addr, "version", Version)
	srvErr := server.Run(ctx, cfg.Addr, server.NewRouter(deps), log)
	cancel()
	return errors.Join(srvErr, <-simErr)
}

// demoProducers is a small incremental economy whose values climb from
// ordinary numbers into tetrational territory.
func demoProducers() []sim.Producer {
	return []sim.Producer{
		{Name: "gold", Value: decimal.New(10), Factor: decimal.New(1.05), CostBase: decimal.New(10)},
		{Name: "gems", Value: decimal.One(), Factor: decimal.New(1.5), CostBase: decimal.New(1e3)},
		{Name: "stars", Value: decimal.New(1e300), Factor: decimal.New(1e50)},
		{Name: "towers", Value: decimal.MustParse("ee20"), Factor: decimal.MustParse("e1e10")},
	}
}
