package eventstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPositionOrdering(t *testing.T) {
	earlier := Position{Position: decimal.RequireFromString("1724659200.000001"), InTxOrder: 0}
	sameTxLater := Position{Position: decimal.RequireFromString("1724659200.000001"), InTxOrder: 1}
	later := Position{Position: decimal.RequireFromString("1724659200.000002"), InTxOrder: 0}

	assert.True(t, earlier.Before(sameTxLater))
	assert.True(t, sameTxLater.Before(later))
	assert.True(t, later.After(earlier))
	assert.Equal(t, 0, earlier.Compare(earlier))
}

func TestZeroPositionMeansBeginning(t *testing.T) {
	assert.True(t, ZeroPosition.IsZero())

	filter := &Filter{PositionAfter: ZeroPosition}
	event := testEvent("user", "user.human.added", "u1")
	event.Position = Position{Position: PositionFromTime(time.Now())}

	assert.True(t, filter.Matches(event))
}

func TestPositionFromTimePrecision(t *testing.T) {
	ts := time.Date(2026, 8, 26, 12, 0, 0, 123456000, time.UTC)
	pos := PositionFromTime(ts)

	assert.Equal(t, "1787745600.123456", pos.String())
}

func TestFilterMatches(t *testing.T) {
	event := testEvent("user", "user.human.added", "u1")
	event.Owner = "org-1"
	event.Creator = "admin"

	tests := []struct {
		name   string
		filter *Filter
		want   bool
	}{
		{"empty filter matches", &Filter{}, true},
		{"instance match", &Filter{InstanceID: "inst-1"}, true},
		{"instance mismatch", &Filter{InstanceID: "inst-2"}, false},
		{"aggregate type", &Filter{AggregateTypes: []AggregateType{"user"}}, true},
		{"aggregate id mismatch", &Filter{AggregateIDs: []string{"u2"}}, false},
		{"event type", &Filter{EventTypes: []EventType{"user.human.added", "user.removed"}}, true},
		{"owner", &Filter{Owner: "org-1"}, true},
		{"creator mismatch", &Filter{Creator: "someone-else"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(event))
		})
	}
}
