// Command iamcore runs the identity core as a single process: the
// SQLite event store, the projection runtime and an optional NATS
// JetStream relay, supervised with ordered startup and graceful
// shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/eventstore/sqlite"
	"github.com/authapp/zitadel-sub003/pkg/nats"
	"github.com/authapp/zitadel-sub003/pkg/observability"
	"github.com/authapp/zitadel-sub003/pkg/projection"
	"github.com/authapp/zitadel-sub003/pkg/projection/models"
	"github.com/authapp/zitadel-sub003/pkg/runner"
)

var version = "dev"

type config struct {
	dsn           string
	logLevel      string
	environment   string
	sweepInterval time.Duration

	natsURL      string
	natsEmbedded bool
	natsStoreDir string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.dsn, "db", "iam.db", "SQLite database path")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.environment, "environment", "development", "deployment environment reported in telemetry")
	flag.DurationVar(&cfg.sweepInterval, "sweep-interval", 10*time.Second, "projection gap-repair interval")
	flag.StringVar(&cfg.natsURL, "nats-url", "", "NATS server URL for the event relay, empty disables it")
	flag.BoolVar(&cfg.natsEmbedded, "nats-embedded", false, "run an embedded NATS server and relay into it")
	flag.StringVar(&cfg.natsStoreDir, "nats-store-dir", "nats-data", "JetStream storage directory for the embedded server")
	flag.Parse()

	logger := newLogger(cfg.logLevel)
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("iamcore exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	ctx, stop := runner.SignalContext(ctx)
	defer stop()

	telemetry, err := observability.Init(ctx, observability.Config{
		ServiceName:    "iamcore",
		ServiceVersion: version,
		Environment:    cfg.environment,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	bus := eventstore.NewBus()
	store, err := sqlite.New(
		sqlite.WithDSN(cfg.dsn),
		sqlite.WithBus(bus),
		sqlite.WithMetrics(telemetry.Metrics),
	)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}

	checkpoints, err := projection.NewCheckpointStore(store.DB())
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("open checkpoint store: %w", err)
	}

	runtime := projection.NewRuntime(store, bus, checkpoints,
		projection.WithRuntimeLogger(logger),
		projection.WithRuntimeMetrics(telemetry.Metrics),
		projection.WithSweepInterval(cfg.sweepInterval),
	)
	for _, p := range []projection.Projection{
		models.NewUsersProjection(),
		models.NewOrgsProjection(),
		models.NewOrgMembersProjection(),
		models.NewIDPsProjection(),
		models.NewUserGrantsProjection(),
		models.NewLabelPoliciesProjection(),
		models.NewDeviceAuthsProjection(),
	} {
		if err := runtime.Register(p); err != nil {
			_ = store.Close()
			return fmt.Errorf("register projection: %w", err)
		}
	}

	services := []runner.Service{
		&storeService{store: store},
		&projectionService{runtime: runtime},
	}
	if cfg.natsEmbedded || cfg.natsURL != "" {
		services = append(services, &relayService{
			cfg:     cfg,
			bus:     bus,
			logger:  logger,
			metrics: telemetry.Metrics,
		})
	}

	return runner.New(services, runner.WithLogger(runner.NewSlogLogger(logger))).Run(ctx)
}

type storeService struct {
	store *sqlite.Store
}

func (s *storeService) Name() string { return "eventstore" }

func (s *storeService) Start(ctx context.Context) error {
	return s.store.Health(ctx)
}

func (s *storeService) Stop(context.Context) error {
	return s.store.Close()
}

func (s *storeService) HealthCheck(ctx context.Context) error {
	return s.store.Health(ctx)
}

type projectionService struct {
	runtime *projection.Runtime
	cancel  context.CancelFunc
	done    chan error
}

func (s *projectionService) Name() string { return "projections" }

func (s *projectionService) Start(context.Context) error {
	// The workers outlive the start context and run until Stop.
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- s.runtime.Start(ctx)
	}()
	return nil
}

func (s *projectionService) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case err := <-s.done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *projectionService) HealthCheck(ctx context.Context) error {
	return s.runtime.Health(ctx)
}

// relayService owns the optional embedded NATS server and the relay
// that exports committed events to JetStream.
type relayService struct {
	cfg     config
	bus     *eventstore.Bus
	logger  *slog.Logger
	metrics *observability.Metrics

	embedded *nats.EmbeddedServer
	relay    *nats.Relay
	cancel   context.CancelFunc
	done     chan error
}

func (s *relayService) Name() string { return "nats-relay" }

func (s *relayService) Start(context.Context) error {
	relayConfig := nats.DefaultConfig()
	if s.cfg.natsEmbedded {
		embedded, err := nats.StartEmbeddedServer(s.cfg.natsStoreDir)
		if err != nil {
			return err
		}
		s.embedded = embedded
		relayConfig.URL = embedded.URL()
	} else {
		relayConfig.URL = s.cfg.natsURL
	}

	relay, err := nats.NewRelay(relayConfig, s.bus,
		[]eventstore.AggregateType{
			domain.InstanceAggregate,
			domain.OrgAggregate,
			domain.UserAggregate,
			domain.UserGrantAggregate,
			domain.AuthRequestAggregate,
			domain.DeviceAuthAggregate,
		},
		nats.WithRelayLogger(s.logger),
		nats.WithRelayMetrics(s.metrics),
	)
	if err != nil {
		if s.embedded != nil {
			s.embedded.Shutdown()
		}
		return err
	}
	s.relay = relay

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() {
		s.done <- relay.Run(ctx)
	}()
	return nil
}

func (s *relayService) Stop(ctx context.Context) error {
	s.cancel()
	var errs []error
	select {
	case err := <-s.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	if err := s.relay.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.embedded != nil {
		s.embedded.Shutdown()
	}
	return errors.Join(errs...)
}
