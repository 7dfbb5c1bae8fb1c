package sqlite

import "database/sql"

// The log's schema. Idempotent: every statement is IF NOT EXISTS, so a
// restart against an existing database is a no-op.
//
// position carries NUMERIC affinity (declared DECIMAL); the generator
// spaces positions at least one microsecond apart, which is above the
// float64 ulp at epoch-second magnitude, so ordering survives storage.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	instance_id       TEXT    NOT NULL,
	aggregate_type    TEXT    NOT NULL,
	aggregate_id      TEXT    NOT NULL,
	aggregate_version INTEGER NOT NULL,
	event_type        TEXT    NOT NULL,
	revision          INTEGER NOT NULL DEFAULT 1,
	payload           TEXT,
	creator           TEXT    NOT NULL,
	owner             TEXT    NOT NULL,
	position          DECIMAL NOT NULL,
	in_tx_order       INTEGER NOT NULL,
	created_at        INTEGER NOT NULL,

	PRIMARY KEY (instance_id, aggregate_type, aggregate_id, aggregate_version)
);

CREATE INDEX IF NOT EXISTS idx_events_event_type ON events (instance_id, event_type);
CREATE INDEX IF NOT EXISTS idx_events_position   ON events (position, in_tx_order);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (instance_id, created_at);

-- Global constraints use the empty-string sentinel instance id.
CREATE TABLE IF NOT EXISTS unique_constraints (
	instance_id  TEXT NOT NULL,
	unique_type  TEXT NOT NULL,
	unique_field TEXT NOT NULL,

	PRIMARY KEY (instance_id, unique_type, unique_field)
);
`

func createSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
