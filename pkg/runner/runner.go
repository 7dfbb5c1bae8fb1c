package runner

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Runner starts services in registration order and stops them in
// reverse order when the context ends or a start fails.
type Runner struct {
	services        []Service
	logger          Logger
	startupTimeout  time.Duration
	shutdownTimeout time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithStartupTimeout bounds each service's Start call.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.startupTimeout = timeout
	}
}

// WithShutdownTimeout bounds the whole shutdown sequence.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(r *Runner) {
		r.shutdownTimeout = timeout
	}
}

// New creates a Runner over the services, in start order.
func New(services []Service, opts ...Option) *Runner {
	r := &Runner{
		services:        services,
		logger:          NewNoopLogger(),
		startupTimeout:  time.Minute,
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts every service and blocks until ctx is cancelled, then shuts
// down gracefully. A failed start stops the already started services and
// returns the start error.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("starting services", "count", len(r.services))

	var started []Service
	for _, service := range r.services {
		startCtx, cancel := context.WithTimeout(ctx, r.startupTimeout)
		err := service.Start(startCtx)
		cancel()
		if err != nil {
			r.logger.Error("service start failed", "service", service.Name(), "error", err)
			stopErr := r.stop(started)
			return errors.Join(fmt.Errorf("start %s: %w", service.Name(), err), stopErr)
		}
		started = append(started, service)
		r.logger.Info("service started", "service", service.Name())
	}

	<-ctx.Done()
	r.logger.Info("shutting down", "timeout", r.shutdownTimeout)
	return r.stop(started)
}

// stop stops the services in reverse start order. The whole sequence
// shares one deadline so a hanging service cannot block shutdown forever.
func (r *Runner) stop(services []Service) error {
	if len(services) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		service := services[i]
		if err := ctx.Err(); err != nil {
			r.logger.Error("shutdown timeout exceeded", "timeout", r.shutdownTimeout)
			errs = append(errs, fmt.Errorf("shutdown timeout exceeded after %s", r.shutdownTimeout))
			break
		}
		if err := service.Stop(ctx); err != nil {
			r.logger.Error("service stop failed", "service", service.Name(), "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", service.Name(), err))
			continue
		}
		r.logger.Info("service stopped", "service", service.Name())
	}
	return errors.Join(errs...)
}

// HealthCheck runs the health checks of every service implementing
// HealthChecker.
func (r *Runner) HealthCheck(ctx context.Context) error {
	for _, service := range r.services {
		checker, ok := service.(HealthChecker)
		if !ok {
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("service %s unhealthy: %w", service.Name(), err)
		}
	}
	return nil
}
