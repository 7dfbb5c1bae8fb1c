// Package mapper implements the read-side transformation chain of the
// event log. Every event returned from a query passes, in order, through
// interceptors, global mappers, aggregate-type mappers and event-type
// mappers. Pushes are never affected.
//
// The pipeline exists for schema evolution (payload revision upgrades,
// field renames), computed-field injection and instance filtering.
package mapper

import (
	"sync"

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
)

// Interceptor may return the event unchanged, a transformed event, or nil
// to drop it from the result.
type Interceptor func(event *eventstore.Event) (*eventstore.Event, error)

// Mapper transforms an event. Returning the input unchanged is valid.
type Mapper func(event *eventstore.Event) (*eventstore.Event, error)

// Upgrader rewrites a payload from one revision to the next.
type Upgrader func(payload []byte) ([]byte, error)

// Pipeline is the ordered mapper registry. Registration order is execution
// order within each stratum. The registry is process-wide state: populate
// it at startup before the log serves queries; later mutations are
// permitted but not atomic with respect to in-flight reads.
type Pipeline struct {
	mu           sync.RWMutex
	interceptors []Interceptor
	global       []Mapper
	byAggregate  map[eventstore.AggregateType][]Mapper
	byEvent      map[eventstore.EventType][]Mapper
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		byAggregate: make(map[eventstore.AggregateType][]Mapper),
		byEvent:     make(map[eventstore.EventType][]Mapper),
	}
}

// RegisterInterceptor appends an interceptor to the first stratum.
func (p *Pipeline) RegisterInterceptor(interceptor Interceptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interceptors = append(p.interceptors, interceptor)
}

// RegisterGlobalMapper appends an unconditional transform.
func (p *Pipeline) RegisterGlobalMapper(mapper Mapper) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global = append(p.global, mapper)
}

// RegisterAggregateMapper appends a transform for one aggregate type.
func (p *Pipeline) RegisterAggregateMapper(aggregateType eventstore.AggregateType, mapper Mapper) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byAggregate[aggregateType] = append(p.byAggregate[aggregateType], mapper)
}

// RegisterEventMapper appends a transform for one event type.
func (p *Pipeline) RegisterEventMapper(eventType eventstore.EventType, mapper Mapper) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byEvent[eventType] = append(p.byEvent[eventType], mapper)
}

// RegisterUpgrader installs a payload revision upgrade for one event type.
// Events of that type at fromRevision are rewritten to toRevision; other
// revisions pass through untouched.
func (p *Pipeline) RegisterUpgrader(eventType eventstore.EventType, fromRevision, toRevision uint16, upgrade Upgrader) {
	p.RegisterEventMapper(eventType, func(event *eventstore.Event) (*eventstore.Event, error) {
		if event.Revision != fromRevision {
			return event, nil
		}
		payload, err := upgrade(event.Payload)
		if err != nil {
			return nil, apperr.Internal(err, "MAPPER-Upg01", "payload upgrade failed").
				With("event_type", string(eventType)).
				With("from_revision", fromRevision)
		}
		upgraded := *event
		upgraded.Payload = payload
		upgraded.Revision = toRevision
		return &upgraded, nil
	})
}

// Apply runs one event through all strata. A nil result with nil error
// means the event was dropped by an interceptor.
func (p *Pipeline) Apply(event *eventstore.Event) (*eventstore.Event, error) {
	p.mu.RLock()
	interceptors := p.interceptors
	global := p.global
	aggregateMappers := p.byAggregate[event.AggregateType]
	p.mu.RUnlock()

	var err error
	for _, interceptor := range interceptors {
		event, err = interceptor(event)
		if err != nil {
			return nil, err
		}
		if event == nil {
			return nil, nil
		}
	}
	for _, mapper := range global {
		if event, err = mapper(event); err != nil {
			return nil, err
		}
	}
	for _, mapper := range aggregateMappers {
		if event, err = mapper(event); err != nil {
			return nil, err
		}
	}

	// The event type may itself have been rewritten by earlier strata.
	p.mu.RLock()
	eventMappers := p.byEvent[event.Type]
	p.mu.RUnlock()
	for _, mapper := range eventMappers {
		if event, err = mapper(event); err != nil {
			return nil, err
		}
	}
	return event, nil
}

// ApplyAll runs a slice of events through the pipeline, dropping events
// filtered by interceptors.
func (p *Pipeline) ApplyAll(events []*eventstore.Event) ([]*eventstore.Event, error) {
	result := make([]*eventstore.Event, 0, len(events))
	for _, event := range events {
		mapped, err := p.Apply(event)
		if err != nil {
			return nil, err
		}
		if mapped != nil {
			result = append(result, mapped)
		}
	}
	return result, nil
}
