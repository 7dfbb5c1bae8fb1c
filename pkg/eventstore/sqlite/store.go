// Package sqlite implements the durable event log on SQLite. It provides
// atomic pushes with per-aggregate version sequencing, unique-constraint
// side effects, commit-time global positions, and the query engine the
// write models and projections read through.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/authapp/zitadel-sub003/pkg/apperr"
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/eventstore/mapper"
	"github.com/authapp/zitadel-sub003/pkg/observability"
)

// Store is the SQLite-backed event log. It satisfies eventstore.EventStore.
type Store struct {
	db       *sql.DB
	bus      *eventstore.Bus
	pipeline *mapper.Pipeline
	metrics  *observability.Metrics

	// pushMu serializes pushes so version assignment and the monotonic
	// position source are race-free. SQLite allows one writer at a time
	// anyway; serializing in-process avoids busy errors.
	pushMu sync.Mutex

	// lastPosition guards position monotonicity across commits.
	lastPosition decimal.Decimal

	now func() time.Time
}

type storeConfig struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
	bus          *eventstore.Bus
	pipeline     *mapper.Pipeline
	metrics      *observability.Metrics
	now          func() time.Time
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		dsn:          "iam.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
		now:          time.Now,
	}
}

// Option configures a Store.
type Option func(*storeConfig)

// WithDSN sets the data source name (file path or ":memory:").
func WithDSN(dsn string) Option {
	return func(c *storeConfig) {
		c.dsn = dsn
	}
}

// WithMemoryDatabase uses an in-memory database, mainly for tests.
func WithMemoryDatabase() Option {
	return func(c *storeConfig) {
		c.dsn = ":memory:"
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(c *storeConfig) {
		c.maxOpenConns = n
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(c *storeConfig) {
		c.maxIdleConns = n
	}
}

// WithWALMode enables write-ahead logging. Recommended for file-backed
// databases, ignored for :memory:.
func WithWALMode(enabled bool) Option {
	return func(c *storeConfig) {
		c.walMode = enabled
	}
}

// WithBus attaches the in-process subscription bus. Committed events are
// fanned out to it after every successful push.
func WithBus(bus *eventstore.Bus) Option {
	return func(c *storeConfig) {
		c.bus = bus
	}
}

// WithMapperPipeline attaches the read-side mapper pipeline. It runs on
// every event returned from a query; pushes are unaffected.
func WithMapperPipeline(pipeline *mapper.Pipeline) Option {
	return func(c *storeConfig) {
		c.pipeline = pipeline
	}
}

// WithMetrics attaches the telemetry instruments. Pushes record their
// event count and latency.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *storeConfig) {
		c.metrics = metrics
	}
}

// WithClock overrides the commit-time clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		c.now = now
	}
}

// New opens the event log and creates its schema if absent.
func New(opts ...Option) (*Store, error) {
	config := defaultStoreConfig()
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite", config.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each connection to :memory: gets its own database, so pin to one.
	if config.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(config.maxOpenConns)
		db.SetMaxIdleConns(config.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:       db,
		bus:      config.bus,
		pipeline: config.pipeline,
		metrics:  config.metrics,
		now:      config.now,
	}

	if config.walMode && config.dsn != ":memory:" {
		if _, err := db.Exec(`
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
			PRAGMA foreign_keys = ON;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return store, nil
}

// DB exposes the underlying connection pool. Projections share it so
// their read-model writes and checkpoints commit with SQLite transactions
// against the same database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Bus returns the attached subscription bus, or nil.
func (s *Store) Bus() *eventstore.Bus {
	return s.bus
}

// Health reports whether the store can serve requests.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.Internal(err, "EVENT-Health01", "event store unreachable")
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// nextPosition returns a strictly increasing commit position. Calls are
// serialized by pushMu.
func (s *Store) nextPosition() decimal.Decimal {
	pos := eventstore.PositionFromTime(s.now())
	if !pos.GreaterThan(s.lastPosition) {
		// Clock stalled or stepped back; advance by one microsecond so
		// position stays monotonic per instance under commit order.
		pos = s.lastPosition.Add(decimal.New(1, -6))
	}
	s.lastPosition = pos
	return pos
}
