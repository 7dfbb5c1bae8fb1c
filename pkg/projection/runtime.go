package projection

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/idgen"
	"github.com/authapp/zitadel-sub003/pkg/observability"
)

// Runtime drives registered projections: an initial catch-up from the
// log, live triggers from the subscription bus, and a periodic sweeper
// that closes any gap the bus may have dropped. Every path reduces to
// the same catch-up query, so events are applied exactly once in
// position order.
type Runtime struct {
	es          eventstore.EventStore
	bus         *eventstore.Bus
	checkpoints *CheckpointStore
	logger      *slog.Logger
	metrics     *observability.Metrics
	now         func() time.Time

	owner          string
	batchSize      uint64
	sweepInterval  time.Duration
	lockLease      time.Duration
	staleThreshold time.Duration

	projections map[string]*registration
	triggers    map[string]chan struct{}
}

type registration struct {
	projection Projection
	reducers   map[eventstore.AggregateType]map[eventstore.EventType]Reduce
	interest   map[eventstore.AggregateType][]eventstore.EventType
}

// RuntimeOption configures the runtime.
type RuntimeOption func(*Runtime)

// WithBatchSize sets how many events one catch-up transaction processes.
func WithBatchSize(size uint64) RuntimeOption {
	return func(r *Runtime) {
		r.batchSize = size
	}
}

// WithSweepInterval sets how often the gap sweeper re-runs catch-up.
func WithSweepInterval(interval time.Duration) RuntimeOption {
	return func(r *Runtime) {
		r.sweepInterval = interval
	}
}

// WithLockLease sets how long a projection lock is held before other
// runtime instances may steal it.
func WithLockLease(lease time.Duration) RuntimeOption {
	return func(r *Runtime) {
		r.lockLease = lease
	}
}

// WithStaleThreshold sets the staleness window after which a lagging
// projection is reported unhealthy.
func WithStaleThreshold(threshold time.Duration) RuntimeOption {
	return func(r *Runtime) {
		r.staleThreshold = threshold
	}
}

// WithRuntimeLogger sets the structured logger.
func WithRuntimeLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithRuntimeMetrics attaches the telemetry instruments. Applied batches
// and failed catch-ups are recorded per projection.
func WithRuntimeMetrics(metrics *observability.Metrics) RuntimeOption {
	return func(r *Runtime) {
		r.metrics = metrics
	}
}

// WithRuntimeClock overrides the runtime clock, used by tests.
func WithRuntimeClock(now func() time.Time) RuntimeOption {
	return func(r *Runtime) {
		r.now = now
	}
}

// NewRuntime creates a projection runtime on top of the event store and
// its subscription bus.
func NewRuntime(es eventstore.EventStore, bus *eventstore.Bus, checkpoints *CheckpointStore, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		es:             es,
		bus:            bus,
		checkpoints:    checkpoints,
		logger:         slog.Default(),
		now:            time.Now,
		owner:          idgen.MustGenerateSortableID(),
		batchSize:      200,
		sweepInterval:  10 * time.Second,
		lockLease:      30 * time.Second,
		staleThreshold: 5 * time.Minute,
		projections:    make(map[string]*registration),
		triggers:       make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a projection. Must be called before Start.
func (r *Runtime) Register(projection Projection) error {
	name := projection.Name()
	if _, exists := r.projections[name]; exists {
		return apperr.AlreadyExists(nil, "PROJ-Run01", "projection already registered").
			With("projection", name)
	}

	reg := &registration{
		projection: projection,
		reducers:   make(map[eventstore.AggregateType]map[eventstore.EventType]Reduce),
		interest:   make(map[eventstore.AggregateType][]eventstore.EventType),
	}
	for _, aggregateReducer := range projection.Reducers() {
		byEvent := reg.reducers[aggregateReducer.Aggregate]
		if byEvent == nil {
			byEvent = make(map[eventstore.EventType]Reduce)
			reg.reducers[aggregateReducer.Aggregate] = byEvent
		}
		for eventType, reduce := range aggregateReducer.EventReducers {
			byEvent[eventType] = reduce
			reg.interest[aggregateReducer.Aggregate] = append(reg.interest[aggregateReducer.Aggregate], eventType)
		}
	}

	r.projections[name] = reg
	r.triggers[name] = make(chan struct{}, 1)
	return nil
}

// Start initializes every projection's schema and runs one worker per
// projection until the context ends.
func (r *Runtime) Start(ctx context.Context) error {
	for name, reg := range r.projections {
		if err := reg.projection.Init(ctx, r.checkpoints.DB()); err != nil {
			return apperr.Internal(err, "PROJ-Run02", "projection init failed").
				With("projection", name)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	for name, reg := range r.projections {
		group.Go(func() error {
			return r.runWorker(ctx, name, reg)
		})
	}
	return group.Wait()
}

// Trigger nudges a projection to catch up immediately, used after a
// write when the caller wants read-your-own-writes latency.
func (r *Runtime) Trigger(projectionName string) {
	trigger, ok := r.triggers[projectionName]
	if !ok {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

func (r *Runtime) runWorker(ctx context.Context, name string, reg *registration) error {
	// Subscribing before the first catch-up closes the window between
	// reading the log and receiving live notifications.
	sub := r.bus.Subscribe(reg.interest)
	defer sub.Unsubscribe()

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	r.catchUpWithRetry(ctx, name, reg)

	for {
		select {
		case <-ctx.Done():
			r.releaseLock(name)
			return nil
		case <-ticker.C:
			r.catchUpWithRetry(ctx, name, reg)
		case <-r.triggers[name]:
			r.catchUpWithRetry(ctx, name, reg)
		case _, ok := <-sub.Events():
			if !ok {
				return nil
			}
			// A live event is only a signal; the catch-up query decides
			// what actually gets applied, in position order.
			r.catchUpWithRetry(ctx, name, reg)
		}
	}
}

// catchUpWithRetry runs catch-up under exponential backoff. Errors are
// logged, never fatal; the next sweep retries from the checkpoint.
func (r *Runtime) catchUpWithRetry(ctx context.Context, name string, reg *registration) {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.Retry(func() error {
		return r.catchUp(ctx, name, reg)
	}, backoff.WithMaxRetries(policy, 5))
	if err != nil && ctx.Err() == nil {
		r.metrics.RecordProjectionError(ctx, name)
		r.logger.ErrorContext(ctx, "projection catch-up failed",
			"projection", name, "error", err)
	}
}

// catchUp applies every unprocessed event of interest in batches. Each
// batch commits rows and checkpoint together.
func (r *Runtime) catchUp(ctx context.Context, name string, reg *registration) error {
	locked, err := r.checkpoints.AcquireLock(ctx, name, r.owner, r.now().Add(r.lockLease))
	if err != nil {
		return err
	}
	if !locked {
		return nil
	}

	for {
		checkpoint, err := r.checkpoints.Load(ctx, name)
		if err != nil {
			return err
		}
		events, err := r.es.Search(ctx, r.interestQuery(reg, checkpoint.Position).WithLimit(r.batchSize))
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		if err := r.processBatch(ctx, name, reg, events); err != nil {
			return err
		}
		if uint64(len(events)) < r.batchSize {
			return nil
		}
	}
}

func (r *Runtime) interestQuery(reg *registration, after eventstore.Position) *eventstore.SearchQuery {
	filters := make([]*eventstore.Filter, 0, len(reg.interest))
	for aggregateType, eventTypes := range reg.interest {
		filters = append(filters, &eventstore.Filter{
			AggregateTypes: []eventstore.AggregateType{aggregateType},
			EventTypes:     eventTypes,
			PositionAfter:  after,
		})
	}
	return eventstore.NewSearchQuery(filters...)
}

// processBatch applies one batch of events and advances the checkpoint
// in a single transaction.
func (r *Runtime) processBatch(ctx context.Context, name string, reg *registration, events []*eventstore.Event) error {
	start := time.Now()
	tx, err := r.checkpoints.DB().BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal(err, "PROJ-Run03", "unable to begin projection transaction")
	}
	defer tx.Rollback()

	for _, event := range events {
		reduce, ok := reg.reducers[event.AggregateType][event.Type]
		if !ok {
			continue
		}
		statements, err := reduce(event)
		if err != nil {
			return apperr.Internal(err, "PROJ-Run04", "projection reducer failed").
				With("projection", name).
				With("event_type", string(event.Type))
		}
		for _, statement := range statements {
			if statement == nil {
				continue
			}
			if err := statement.Exec(ctx, tx); err != nil {
				return err
			}
		}
	}

	last := events[len(events)-1]
	err = r.checkpoints.SaveInTx(ctx, tx, &Checkpoint{
		ProjectionName:  name,
		Position:        last.Position,
		LastProcessedAt: r.now(),
	})
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal(err, "PROJ-Run05", "unable to commit projection transaction")
	}

	r.metrics.RecordProjectionBatch(ctx, name, len(events), time.Since(start))
	r.logger.DebugContext(ctx, "projection batch applied",
		"projection", name, "events", len(events))
	return nil
}

// Reset drops the projected rows and the checkpoint atomically, then
// triggers an immediate rebuild.
func (r *Runtime) Reset(ctx context.Context, projectionName string) error {
	reg, ok := r.projections[projectionName]
	if !ok {
		return apperr.NotFound(nil, "PROJ-Run06", "projection not registered").
			With("projection", projectionName)
	}

	tx, err := r.checkpoints.DB().BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal(err, "PROJ-Run07", "unable to begin reset transaction")
	}
	defer tx.Rollback()

	if err := reg.projection.Reset(ctx, tx); err != nil {
		return err
	}
	if err := r.checkpoints.DeleteInTx(ctx, tx, projectionName); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal(err, "PROJ-Run08", "unable to commit reset transaction")
	}

	r.Trigger(projectionName)
	return nil
}

// Health reports an error when any projection lags behind the log for
// longer than the staleness threshold. A projection without checkpoint
// state is healthy; it has not had a chance to run yet.
func (r *Runtime) Health(ctx context.Context) error {
	var stale []string
	for name, reg := range r.projections {
		checkpoint, err := r.checkpoints.Load(ctx, name)
		if err != nil {
			return err
		}
		latest, err := r.latestRelevantPosition(ctx, reg)
		if err != nil {
			return err
		}
		if latest.IsZero() || !latest.After(checkpoint.Position) {
			continue
		}
		// A zero LastProcessedAt means the projection never ran; only a
		// checkpoint that stopped advancing counts as stale.
		if checkpoint.LastProcessedAt.IsZero() {
			continue
		}
		if r.now().Sub(checkpoint.LastProcessedAt) > r.staleThreshold {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		return apperr.Internal(nil, "PROJ-Run09", "projections stale").
			With("projections", strings.Join(stale, ","))
	}
	return nil
}

func (r *Runtime) latestRelevantPosition(ctx context.Context, reg *registration) (eventstore.Position, error) {
	latest := eventstore.ZeroPosition
	for aggregateType, eventTypes := range reg.interest {
		position, err := r.es.LatestPosition(ctx, &eventstore.Filter{
			AggregateTypes: []eventstore.AggregateType{aggregateType},
			EventTypes:     eventTypes,
		})
		if err != nil {
			return eventstore.ZeroPosition, err
		}
		if position.After(latest) {
			latest = position
		}
	}
	return latest, nil
}

func (r *Runtime) releaseLock(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.checkpoints.ReleaseLock(ctx, name, r.owner); err != nil {
		r.logger.Warn("unable to release projection lock", "projection", name, "error", err)
	}
}
