package eventstore

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the global ordering tuple of a committed event. Position is a
// commit-clock-derived decimal; InTxOrder disambiguates events written in
// the same transaction. Total order is lexicographic on the pair.
type Position struct {
	Position  decimal.Decimal
	InTxOrder uint32
}

// ZeroPosition means "from the beginning" when used as a lower bound.
var ZeroPosition = Position{Position: decimal.Zero}

// PositionFromTime derives a position decimal from a wall-clock timestamp,
// scaled to seconds with microsecond precision.
func PositionFromTime(t time.Time) decimal.Decimal {
	return decimal.New(t.UnixMicro(), -6)
}

// Compare returns -1, 0 or 1 ordering p against other.
func (p Position) Compare(other Position) int {
	if cmp := p.Position.Cmp(other.Position); cmp != 0 {
		return cmp
	}
	switch {
	case p.InTxOrder < other.InTxOrder:
		return -1
	case p.InTxOrder > other.InTxOrder:
		return 1
	default:
		return 0
	}
}

// After reports whether p sorts strictly after other.
func (p Position) After(other Position) bool {
	return p.Compare(other) > 0
}

// Before reports whether p sorts strictly before other.
func (p Position) Before(other Position) bool {
	return p.Compare(other) < 0
}

// IsZero reports whether p is the zero lower bound.
func (p Position) IsZero() bool {
	return p.InTxOrder == 0 && p.Position.IsZero()
}
