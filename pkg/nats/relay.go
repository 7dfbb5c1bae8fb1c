// Package nats relays committed events to NATS JetStream so consumers
// outside the process (notification senders, analytics, audit sinks) can
// follow the log without a database connection. The relay is one-way:
// the event store stays the source of truth and never reads from NATS.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/observability"
)

// Config holds the relay's connection and stream settings.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream receiving the events.
	StreamName string

	// SubjectPrefix is prepended to every event subject, shaped
	// <prefix>.<aggregateType>.<eventType>.
	SubjectPrefix string

	// MaxAge bounds how long the stream retains events.
	MaxAge time.Duration

	// MaxBytes bounds the stream size.
	MaxBytes int64
}

// DefaultConfig returns the stock relay settings.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "IAM_EVENTS",
		SubjectPrefix: "iam.events",
		MaxAge:        7 * 24 * time.Hour,
		MaxBytes:      1 << 30,
	}
}

// Relay forwards committed events from the in-process subscription bus
// to JetStream. Duplicate publishes after a retry are absorbed by the
// JetStream message id, derived from the event's identity.
type Relay struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	bus        *eventstore.Bus
	aggregates []eventstore.AggregateType
	config     Config
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// RelayOption configures the relay.
type RelayOption func(*Relay)

// WithRelayLogger sets the structured logger.
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithRelayMetrics attaches the telemetry instruments.
func WithRelayMetrics(metrics *observability.Metrics) RelayOption {
	return func(r *Relay) {
		r.metrics = metrics
	}
}

// NewRelay connects to NATS, ensures the stream exists and prepares a
// relay for the given aggregate types. An empty aggregate list relays
// nothing; callers name what they want exported.
func NewRelay(config Config, bus *eventstore.Bus, aggregates []eventstore.AggregateType, opts ...RelayOption) (*Relay, error) {
	conn, err := nats.Connect(config.URL, nats.Name("iamcore-relay"))
	if err != nil {
		return nil, apperr.Internal(err, "NATS-Relay01", "unable to connect to nats")
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, apperr.Internal(err, "NATS-Relay02", "unable to open jetstream context")
	}

	r := &Relay{
		conn:       conn,
		js:         js,
		bus:        bus,
		aggregates: aggregates,
		config:     config,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return r, nil
}

func (r *Relay) ensureStream() error {
	streamConfig := &nats.StreamConfig{
		Name:     r.config.StreamName,
		Subjects: []string{r.config.SubjectPrefix + ".>"},
		MaxAge:   r.config.MaxAge,
		MaxBytes: r.config.MaxBytes,
		Storage:  nats.FileStorage,
		Replicas: 1,
	}

	_, err := r.js.StreamInfo(r.config.StreamName)
	if err != nil {
		if _, err := r.js.AddStream(streamConfig); err != nil {
			return apperr.Internal(err, "NATS-Relay03", "unable to create stream").
				With("stream", r.config.StreamName)
		}
		return nil
	}
	if _, err := r.js.UpdateStream(streamConfig); err != nil {
		return apperr.Internal(err, "NATS-Relay04", "unable to update stream").
			With("stream", r.config.StreamName)
	}
	return nil
}

// Run subscribes to the bus and publishes until the context ends. Events
// committed before Run are not replayed; the relay is a live feed.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.bus.SubscribeAggregates(r.aggregates...)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := r.publish(ctx, event); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "event relay publish failed",
					"aggregate_type", string(event.AggregateType),
					"event_type", string(event.Type),
					"error", err)
			}
		}
	}
}

// envelope is the wire shape of a relayed event. The payload stays raw
// JSON so consumers decode it with their own types.
type envelope struct {
	InstanceID       string          `json:"instanceId"`
	AggregateType    string          `json:"aggregateType"`
	AggregateID      string          `json:"aggregateId"`
	AggregateVersion uint64          `json:"aggregateVersion"`
	EventType        string          `json:"eventType"`
	Revision         uint16          `json:"revision"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	Creator          string          `json:"creator"`
	Owner            string          `json:"owner"`
	CreatedAt        time.Time       `json:"createdAt"`
	Position         string          `json:"position"`
	InTxOrder        uint32          `json:"inTxOrder"`
}

func (r *Relay) publish(ctx context.Context, event *eventstore.Event) error {
	data, err := json.Marshal(envelope{
		InstanceID:       event.InstanceID,
		AggregateType:    string(event.AggregateType),
		AggregateID:      event.AggregateID,
		AggregateVersion: event.AggregateVersion,
		EventType:        string(event.Type),
		Revision:         event.Revision,
		Payload:          event.Payload,
		Creator:          event.Creator,
		Owner:            event.Owner,
		CreatedAt:        event.CreatedAt,
		Position:         event.Position.Position.String(),
		InTxOrder:        event.Position.InTxOrder,
	})
	if err != nil {
		return apperr.Internal(err, "NATS-Relay05", "unable to marshal event envelope")
	}

	subject := fmt.Sprintf("%s.%s.%s", r.config.SubjectPrefix, event.AggregateType, event.Type)
	msgID := fmt.Sprintf("%s/%s/%s/%d",
		event.InstanceID, event.AggregateType, event.AggregateID, event.AggregateVersion)

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err = backoff.Retry(func() error {
		_, err := r.js.Publish(subject, data, nats.MsgId(msgID))
		return err
	}, backoff.WithMaxRetries(policy, 3))
	if err != nil {
		return err
	}
	r.metrics.RecordRelayPublish(ctx, string(event.AggregateType))
	return nil
}

// Close drains the connection so buffered publishes flush before exit.
func (r *Relay) Close() error {
	return r.conn.Drain()
}
