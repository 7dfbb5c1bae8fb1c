package eventstore

import "time"

// Filter describes one conjunctive event predicate. Zero values mean
// "unconstrained" for the respective field.
type Filter struct {
	// InstanceID scopes the filter to one tenant. Queries without it are
	// permitted but treated as privileged by the caller.
	InstanceID string

	AggregateTypes []AggregateType
	AggregateIDs   []string
	EventTypes     []EventType

	Owner   string
	Creator string

	// CreatedAfter/CreatedBefore bound the commit timestamp (inclusive).
	CreatedAfter  time.Time
	CreatedBefore time.Time

	// PositionAfter restricts to events strictly after the given position.
	// The zero position means "from the beginning".
	PositionAfter Position

	// MaxAggregateVersion bounds the aggregate version (inclusive);
	// 0 means unbounded.
	MaxAggregateVersion uint64

	// Limit caps the number of returned events; 0 means no cap.
	Limit uint64

	// Descending reverses the default ascending (position, inTxOrder) order.
	Descending bool
}

// SearchQuery is a disjunction of filter clauses with an optional
// conjunctive exclusion. An empty clause list matches all events.
type SearchQuery struct {
	Filters []*Filter

	// Exclude is applied as a negated conjunct over the whole disjunction.
	Exclude *Filter

	Limit      uint64
	Descending bool
}

// NewSearchQuery builds a search over the given OR clauses.
func NewSearchQuery(filters ...*Filter) *SearchQuery {
	return &SearchQuery{Filters: filters}
}

// WithExclude sets the exclusion clause.
func (q *SearchQuery) WithExclude(filter *Filter) *SearchQuery {
	q.Exclude = filter
	return q
}

// WithLimit caps the result size.
func (q *SearchQuery) WithLimit(limit uint64) *SearchQuery {
	q.Limit = limit
	return q
}

// WithDescending reverses the result order.
func (q *SearchQuery) WithDescending() *SearchQuery {
	q.Descending = true
	return q
}

// Matches reports whether a single event satisfies the filter. The SQL
// store compiles filters to WHERE clauses; the subscription bus and tests
// use this in-memory form.
func (f *Filter) Matches(e *Event) bool {
	if f.InstanceID != "" && e.InstanceID != f.InstanceID {
		return false
	}
	if len(f.AggregateTypes) > 0 && !containsAggregateType(f.AggregateTypes, e.AggregateType) {
		return false
	}
	if len(f.AggregateIDs) > 0 && !containsString(f.AggregateIDs, e.AggregateID) {
		return false
	}
	if len(f.EventTypes) > 0 && !containsEventType(f.EventTypes, e.Type) {
		return false
	}
	if f.Owner != "" && e.Owner != f.Owner {
		return false
	}
	if f.Creator != "" && e.Creator != f.Creator {
		return false
	}
	if !f.CreatedAfter.IsZero() && e.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && e.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	if !f.PositionAfter.IsZero() && !e.Position.After(f.PositionAfter) {
		return false
	}
	return true
}

func containsAggregateType(haystack []AggregateType, needle AggregateType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsEventType(haystack []EventType, needle EventType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
