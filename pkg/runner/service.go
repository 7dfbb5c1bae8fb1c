// Package runner manages the lifecycle of the process' long-running
// services: ordered startup, signal-driven graceful shutdown in reverse
// order, and aggregated health checks.
package runner

import "context"

// Service is one long-running component. Start must return once the
// service is ready; background work belongs in goroutines the service
// owns and stops in Stop.
type Service interface {
	// Name identifies the service in logs and errors.
	Name() string

	// Start brings the service up. It must respect ctx cancellation.
	Start(ctx context.Context) error

	// Stop shuts the service down within the ctx deadline.
	Stop(ctx context.Context) error
}

// HealthChecker is implemented by services that can report liveness.
type HealthChecker interface {
	Service

	HealthCheck(ctx context.Context) error
}

// ServiceFunc adapts start/stop closures into a Service.
type ServiceFunc struct {
	ServiceName string
	OnStart     func(ctx context.Context) error
	OnStop      func(ctx context.Context) error
}

func (s ServiceFunc) Name() string {
	return s.ServiceName
}

func (s ServiceFunc) Start(ctx context.Context) error {
	if s.OnStart == nil {
		return nil
	}
	return s.OnStart(ctx)
}

func (s ServiceFunc) Stop(ctx context.Context) error {
	if s.OnStop == nil {
		return nil
	}
	return s.OnStop(ctx)
}
