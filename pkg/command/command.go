// Package command implements the write-side command engine: input
// validation, authorization, write-model loading, change detection and
// atomic event emission with optimistic concurrency.
package command

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/idgen"
	"github.com/authapp/zitadel-sub003/pkg/observability"
)

// PermissionChecker authorizes a subject for an action on a resource.
// Implementations receive the permission name, the resource owner (org)
// and the specific resource id.
type PermissionChecker interface {
	Check(ctx context.Context, permission, resourceOwner, resourceID string) error
}

// FeatureChecker gates commands behind feature flags.
type FeatureChecker interface {
	Enabled(ctx context.Context, instanceID, feature string) bool
}

// QuotaChecker gates commands behind usage quotas.
type QuotaChecker interface {
	Check(ctx context.Context, instanceID, unit string) error
}

type allowAll struct{}

func (allowAll) Check(context.Context, string, string, string) error { return nil }
func (allowAll) Enabled(context.Context, string, string) bool        { return true }

type noQuota struct{}

func (noQuota) Check(context.Context, string, string) error { return nil }

// Commands is the command engine. One instance is shared by all handlers;
// write models are created per command and never shared.
type Commands struct {
	eventstore  eventstore.EventStore
	idGenerator idgen.Generator
	permissions PermissionChecker
	features    FeatureChecker
	quotas      QuotaChecker
	logger      *slog.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
	now         func() time.Time

	emailCodeLifetime  time.Duration
	deviceCodeLifetime time.Duration
}

// Option configures the command engine.
type Option func(*Commands)

// WithIDGenerator replaces the default sortable id generator.
func WithIDGenerator(generator idgen.Generator) Option {
	return func(c *Commands) {
		c.idGenerator = generator
	}
}

// WithPermissionChecker installs the authorization backend. Without one,
// every check passes (intended for tests and embedded use).
func WithPermissionChecker(checker PermissionChecker) Option {
	return func(c *Commands) {
		c.permissions = checker
	}
}

// WithFeatureChecker installs the feature-flag gate.
func WithFeatureChecker(checker FeatureChecker) Option {
	return func(c *Commands) {
		c.features = checker
	}
}

// WithQuotaChecker installs the quota gate.
func WithQuotaChecker(checker QuotaChecker) Option {
	return func(c *Commands) {
		c.quotas = checker
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Commands) {
		c.logger = logger
	}
}

// WithMetrics attaches the telemetry instruments. Every push records its
// duration and outcome under the emitted event type.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Commands) {
		c.metrics = metrics
	}
}

// WithTracer sets the tracer for command spans, noop when absent.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Commands) {
		c.tracer = tracer
	}
}

// WithClock overrides the engine clock, used by tests and the sweeper.
func WithClock(now func() time.Time) Option {
	return func(c *Commands) {
		c.now = now
	}
}

// WithDeviceCodeLifetime sets how long device authorizations stay valid.
func WithDeviceCodeLifetime(lifetime time.Duration) Option {
	return func(c *Commands) {
		c.deviceCodeLifetime = lifetime
	}
}

// New creates the command engine on top of the event store.
func New(es eventstore.EventStore, opts ...Option) *Commands {
	c := &Commands{
		eventstore:         es,
		idGenerator:        idgen.NewSortable(),
		permissions:        allowAll{},
		features:           allowAll{},
		quotas:             noQuota{},
		logger:             slog.Default(),
		tracer:             noop.NewTracerProvider().Tracer("command"),
		now:                time.Now,
		emailCodeLifetime:  time.Hour,
		deviceCodeLifetime: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// checkPermission authorizes the current caller. System tokens bypass
// the checker entirely.
func (c *Commands) checkPermission(ctx context.Context, permission, resourceOwner, resourceID string) error {
	if IsSystemCall(ctx) {
		return nil
	}
	if err := c.permissions.Check(ctx, permission, resourceOwner, resourceID); err != nil {
		return apperr.PermissionDenied(err, "COMMAND-Perm01", "permission denied").
			With("permission", permission).
			With("resource_owner", resourceOwner)
	}
	return nil
}

func (c *Commands) nextID() (string, error) {
	id, err := c.idGenerator.Next()
	if err != nil {
		return "", apperr.Internal(err, "COMMAND-ID01", "id generation failed")
	}
	return id, nil
}

// instanceID resolves the tenant of the current call.
func (c *Commands) instanceID(ctx context.Context) (string, error) {
	id := CtxDataFromContext(ctx).InstanceID
	if id == "" {
		return "", apperr.Validation(nil, "COMMAND-Inst01", "instance id missing in call context")
	}
	return id, nil
}

// newCommand assembles an append intent with caller identity filled in
// from the context.
func (c *Commands) newCommand(
	ctx context.Context,
	aggregateType eventstore.AggregateType,
	aggregateID, owner string,
	eventType eventstore.EventType,
	payload any,
	constraints ...*eventstore.UniqueConstraint,
) *eventstore.Command {
	data := CtxDataFromContext(ctx)
	return &eventstore.Command{
		InstanceID:        data.InstanceID,
		AggregateType:     aggregateType,
		AggregateID:       aggregateID,
		Type:              eventType,
		Payload:           payload,
		Creator:           data.UserID,
		Owner:             owner,
		UniqueConstraints: constraints,
	}
}

// loadWriteModel streams the model's events through the store (and its
// mapper pipeline) into the model. Single-clause queries stream in
// batches; multi-clause ones fall back to a search.
func (c *Commands) loadWriteModel(ctx context.Context, wm writeModel) error {
	query := wm.Query()
	if len(query.Filters) == 1 && query.Exclude == nil {
		return c.eventstore.FilterToReducer(ctx, query.Filters[0], wm)
	}
	events, err := c.eventstore.Search(ctx, query)
	if err != nil {
		return err
	}
	wm.AppendEvents(events...)
	return wm.Reduce()
}

// pushAndReduce appends the commands under the model's observed version
// and folds the committed events back into the model, so the caller gets
// current state without a second round trip.
func (c *Commands) pushAndReduce(ctx context.Context, wm writeModel, commands ...*eventstore.Command) (err error) {
	name := string(commands[0].Type)
	ctx, span := observability.StartSpan(ctx, c.tracer, "command.push",
		observability.AttrCommandName.String(name),
		observability.AttrAggregateType.String(string(commands[0].AggregateType)),
		observability.AttrAggregateID.String(commands[0].AggregateID),
	)
	start := time.Now()
	defer func() {
		c.metrics.RecordCommand(ctx, name, time.Since(start), err)
		observability.EndSpan(span, err)
	}()

	events, err := c.eventstore.PushWithConcurrencyCheck(ctx, wm.Frame().ProcessedSequence, commands...)
	if err != nil {
		return err
	}
	return AppendAndReduce(wm, events...)
}

// AppendAndReduce advances a write model with freshly committed events.
func AppendAndReduce(wm writeModel, events ...*eventstore.Event) error {
	wm.AppendEvents(events...)
	return wm.Reduce()
}
