package eventstore

import "sync"

// Bus is the in-process subscription fan-out. The event log notifies it
// after every successful commit; each matching subscription receives the
// committed events in FIFO order. The bus holds no history: a new
// subscriber sees only events committed during its lifetime. Catch-up is
// the projection runtime's job, never the bus's.
type Bus struct {
	mu   sync.RWMutex
	subs map[AggregateType][]*Subscription
}

// NewBus creates an empty subscription bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[AggregateType][]*Subscription)}
}

// Subscribe registers a consumer for the given aggregate types. An empty
// or nil event-type list for an aggregate type means "all event types".
func (b *Bus) Subscribe(types map[AggregateType][]EventType) *Subscription {
	sub := &Subscription{
		bus:    b,
		types:  make(map[AggregateType][]EventType, len(types)),
		events: make(chan *Event),
		quit:   make(chan struct{}),
	}
	for aggregateType, eventTypes := range types {
		sub.types[aggregateType] = eventTypes
	}
	sub.cond = sync.NewCond(&sub.mu)

	b.mu.Lock()
	for aggregateType := range sub.types {
		b.subs[aggregateType] = append(b.subs[aggregateType], sub)
	}
	b.mu.Unlock()

	go sub.pump()
	return sub
}

// SubscribeAggregates registers a consumer for all event types of the
// given aggregate types.
func (b *Bus) SubscribeAggregates(aggregateTypes ...AggregateType) *Subscription {
	types := make(map[AggregateType][]EventType, len(aggregateTypes))
	for _, t := range aggregateTypes {
		types[t] = nil
	}
	return b.Subscribe(types)
}

// Notify fans the committed events out to every matching subscription.
// It never blocks on slow consumers: events are buffered per subscription
// and handed to the next waiter in FIFO order. Per aggregate type the
// delivery order equals commit order; no ordering is promised across
// aggregate types.
func (b *Bus) Notify(events []*Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, event := range events {
		for _, sub := range b.subs[event.AggregateType] {
			sub.offer(event)
		}
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for aggregateType := range sub.types {
		subs := b.subs[aggregateType]
		for i, s := range subs {
			if s == sub {
				b.subs[aggregateType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Subscription is a lazy, restartable sequence of committed events. The
// consumer reads from Events; Unsubscribe closes the sequence, signalled
// by channel close.
type Subscription struct {
	bus   *Bus
	types map[AggregateType][]EventType

	mu     sync.Mutex
	cond   *sync.Cond
	buffer []*Event
	closed bool

	events chan *Event
	quit   chan struct{}
	once   sync.Once
}

// Events returns the channel the consumer reads from. The channel is
// closed by Unsubscribe.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Unsubscribe closes the sequence, wakes any waiter with end-of-stream
// and drops the buffer. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s)
		s.mu.Lock()
		s.closed = true
		s.buffer = nil
		s.mu.Unlock()
		s.cond.Broadcast()
		close(s.quit)
	})
}

func (s *Subscription) matches(event *Event) bool {
	eventTypes, ok := s.types[event.AggregateType]
	if !ok {
		return false
	}
	if len(eventTypes) == 0 {
		return true
	}
	return containsEventType(eventTypes, event.Type)
}

func (s *Subscription) offer(event *Event) {
	if !s.matches(event) {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.buffer = append(s.buffer, event)
	s.mu.Unlock()
	s.cond.Signal()
}

// pump drains the FIFO buffer into the consumer channel.
func (s *Subscription) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		for len(s.buffer) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		event := s.buffer[0]
		s.buffer = s.buffer[1:]
		s.mu.Unlock()

		select {
		case s.events <- event:
		case <-s.quit:
			return
		}
	}
}
