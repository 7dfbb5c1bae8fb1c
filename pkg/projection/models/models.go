// Package models contains the concrete read-model projections. Each
// table carries the shared maintenance columns: creation_date and
// change_date from the commit clock, sequence from the aggregate
// version, plus resource_owner and instance_id for scoping.
package models

import (
	"github.com/authapp/zitadel-sub003/pkg/eventstore"
	"github.com/authapp/zitadel-sub003/pkg/projection"
)

// maintenanceColumns are the columns every reducer refreshes on update.
func maintenanceColumns(event *eventstore.Event) []projection.Column {
	return []projection.Column{
		projection.Col("change_date", event.CreatedAt.UnixMicro()),
		projection.Col("sequence", event.AggregateVersion),
	}
}

// rowColumns prepends the identity and creation columns for upserts.
func rowColumns(event *eventstore.Event, id string, extra ...projection.Column) []projection.Column {
	columns := []projection.Column{
		projection.Col("id", id),
		projection.Col("instance_id", event.InstanceID),
		projection.Col("resource_owner", event.Owner),
		projection.Col("creation_date", event.CreatedAt.UnixMicro()),
		projection.Col("change_date", event.CreatedAt.UnixMicro()),
		projection.Col("sequence", event.AggregateVersion),
	}
	return append(columns, extra...)
}

func instanceCondition(event *eventstore.Event, extra ...projection.Column) []projection.Column {
	conditions := []projection.Column{
		projection.Col("instance_id", event.InstanceID),
	}
	return append(conditions, extra...)
}
