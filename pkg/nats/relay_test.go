package nats_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsclient "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authapp/zitadel-sub003/pkg/domain"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/eventstore/sqlite"
	"github.com/authapp/zitadel-sub003/pkg/nats"
)

type relayedEvent struct {
	InstanceID       string          `json:"instanceId"`
	AggregateType    string          `json:"aggregateType"`
	AggregateID      string          `json:"aggregateId"`
	AggregateVersion uint64          `json:"aggregateVersion"`
	EventType        string          `json:"eventType"`
	Payload          json.RawMessage `json:"payload"`
	Creator          string          `json:"creator"`
}

func TestRelayPublishesCommittedEvents(t *testing.T) {
	srv, err := nats.StartEmbeddedServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	bus := eventstore.NewBus()
	store, err := sqlite.New(sqlite.WithMemoryDatabase(), sqlite.WithBus(bus))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	config := nats.DefaultConfig()
	config.URL = srv.URL()
	config.StreamName = "TEST_EVENTS"
	config.MaxAge = time.Minute

	relay, err := nats.NewRelay(config, bus,
		[]eventstore.AggregateType{domain.UserAggregate})
	require.NoError(t, err)
	t.Cleanup(func() { relay.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// An independent JetStream consumer stands in for the downstream
	// system.
	conn, err := natsclient.Connect(srv.URL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	js, err := conn.JetStream()
	require.NoError(t, err)

	received := make(chan *natsclient.Msg, 8)
	sub, err := js.Subscribe("iam.events.user.>", func(msg *natsclient.Msg) {
		received <- msg
		msg.Ack()
	})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Unsubscribe() })

	_, err = store.Push(ctx, &eventstore.Command{
		InstanceID:    "inst-1",
		AggregateType: domain.UserAggregate,
		AggregateID:   "u1",
		Type:          domain.HumanAddedType,
		Payload:       map[string]string{"username": "ada"},
		Creator:       "admin",
		Owner:         "org-1",
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "iam.events.user."+string(domain.HumanAddedType), msg.Subject)

		var event relayedEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, "inst-1", event.InstanceID)
		assert.Equal(t, "user", event.AggregateType)
		assert.Equal(t, "u1", event.AggregateID)
		assert.Equal(t, uint64(1), event.AggregateVersion)
		assert.Equal(t, string(domain.HumanAddedType), event.EventType)
		assert.Equal(t, "admin", event.Creator)
		assert.Contains(t, string(event.Payload), "ada")
	case <-time.After(5 * time.Second):
		t.Fatal("relayed event not received")
	}
}

func TestRelayIgnoresOtherAggregates(t *testing.T) {
	srv, err := nats.StartEmbeddedServer(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(srv.Shutdown)

	bus := eventstore.NewBus()
	store, err := sqlite.New(sqlite.WithMemoryDatabase(), sqlite.WithBus(bus))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	config := nats.DefaultConfig()
	config.URL = srv.URL()
	config.StreamName = "TEST_EVENTS"
	config.MaxAge = time.Minute

	relay, err := nats.NewRelay(config, bus,
		[]eventstore.AggregateType{domain.UserAggregate})
	require.NoError(t, err)
	t.Cleanup(func() { relay.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := natsclient.Connect(srv.URL())
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	js, err := conn.JetStream()
	require.NoError(t, err)

	received := make(chan *natsclient.Msg, 8)
	sub, err := js.Subscribe("iam.events.>", func(msg *natsclient.Msg) {
		received <- msg
		msg.Ack()
	})
	require.NoError(t, err)
	t.Cleanup(func() { sub.Unsubscribe() })

	// Org events are outside the relay's aggregate list.
	_, err = store.Push(ctx, &eventstore.Command{
		InstanceID:    "inst-1",
		AggregateType: domain.OrgAggregate,
		AggregateID:   "org-1",
		Type:          domain.OrgAdded,
		Payload:       map[string]string{"name": "Acme"},
		Creator:       "admin",
		Owner:         "org-1",
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		t.Fatalf("unexpected relayed event on %s", msg.Subject)
	case <-time.After(500 * time.Millisecond):
	}
}
