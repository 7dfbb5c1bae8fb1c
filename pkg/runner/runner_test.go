package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/runner"
)

type recordingService struct {
	name    string
	events  *[]string
	failure error
}

func (s *recordingService) Name() string {
	return s.name
}

func (s *recordingService) Start(context.Context) error {
	if s.failure != nil {
		return s.failure
	}
	*s.events = append(*s.events, "start:"+s.name)
	return nil
}

func (s *recordingService) Stop(context.Context) error {
	*s.events = append(*s.events, "stop:"+s.name)
	return nil
}

func TestRunnerStartsInOrderStopsInReverse(t *testing.T) {
	var events []string
	r := runner.New([]runner.Service{
		&recordingService{name: "store", events: &events},
		&recordingService{name: "projections", events: &events},
		&recordingService{name: "relay", events: &events},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []string{
		"start:store", "start:projections", "start:relay",
		"stop:relay", "stop:projections", "stop:store",
	}, events)
}

func TestRunnerFailedStartStopsStartedServices(t *testing.T) {
	var events []string
	boom := errors.New("port in use")
	r := runner.New([]runner.Service{
		&recordingService{name: "store", events: &events},
		&recordingService{name: "relay", events: &events, failure: boom},
	})

	err := r.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start:store", "stop:store"}, events)
}

func TestRunnerHealthCheck(t *testing.T) {
	var events []string
	healthy := &recordingService{name: "store", events: &events}
	r := runner.New([]runner.Service{healthy, unhealthyService{}})

	err := r.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "projections unhealthy")
}

type unhealthyService struct{}

func (unhealthyService) Name() string                { return "projections" }
func (unhealthyService) Start(context.Context) error { return nil }
func (unhealthyService) Stop(context.Context) error  { return nil }
func (unhealthyService) HealthCheck(context.Context) error {
	return errors.New("checkpoint stale")
}
