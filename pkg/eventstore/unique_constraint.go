package eventstore

import "github.com/authapp/zitadel-sub003/pkg/apperr"

// UniqueConstraintAction selects the side effect applied with an event.
type UniqueConstraintAction int

const (
	// UniqueConstraintAdd claims a unique value; a live claim conflicts.
	UniqueConstraintAdd UniqueConstraintAction = iota

	// UniqueConstraintRemove releases a previously claimed value.
	UniqueConstraintRemove

	// UniqueConstraintInstanceRemove clears every claim of an instance.
	UniqueConstraintInstanceRemove
)

// UniqueConstraint is a uniqueness side effect executed atomically with
// event insertion. Claims are scoped to the command's instance unless
// IsGlobal is set.
type UniqueConstraint struct {
	// UniqueType is the logical namespace, for example "usernames".
	UniqueType string

	// UniqueField is the value required to be unique within the namespace.
	UniqueField string

	Action UniqueConstraintAction

	// IsGlobal widens the scope from the instance to the whole store.
	IsGlobal bool

	// ErrorMessage is the translation key surfaced on an Add conflict.
	ErrorMessage string
}

// NewAddUniqueConstraint claims uniqueType/uniqueField for the instance.
func NewAddUniqueConstraint(uniqueType, uniqueField, errorMessage string) *UniqueConstraint {
	return &UniqueConstraint{
		UniqueType:   uniqueType,
		UniqueField:  uniqueField,
		Action:       UniqueConstraintAdd,
		ErrorMessage: errorMessage,
	}
}

// NewAddGlobalUniqueConstraint claims uniqueType/uniqueField across all
// instances.
func NewAddGlobalUniqueConstraint(uniqueType, uniqueField, errorMessage string) *UniqueConstraint {
	return &UniqueConstraint{
		UniqueType:   uniqueType,
		UniqueField:  uniqueField,
		Action:       UniqueConstraintAdd,
		IsGlobal:     true,
		ErrorMessage: errorMessage,
	}
}

// NewRemoveUniqueConstraint releases a previously claimed value.
func NewRemoveUniqueConstraint(uniqueType, uniqueField string) *UniqueConstraint {
	return &UniqueConstraint{
		UniqueType:  uniqueType,
		UniqueField: uniqueField,
		Action:      UniqueConstraintRemove,
	}
}

// NewRemoveGlobalUniqueConstraint releases a globally claimed value.
func NewRemoveGlobalUniqueConstraint(uniqueType, uniqueField string) *UniqueConstraint {
	return &UniqueConstraint{
		UniqueType:  uniqueType,
		UniqueField: uniqueField,
		Action:      UniqueConstraintRemove,
		IsGlobal:    true,
	}
}

// NewRemoveInstanceUniqueConstraints clears all claims of the command's
// instance, used when an instance is removed.
func NewRemoveInstanceUniqueConstraints() *UniqueConstraint {
	return &UniqueConstraint{Action: UniqueConstraintInstanceRemove}
}

// Validate checks structural requirements before the store applies the
// side effect.
func (c *UniqueConstraint) Validate() error {
	if c.Action == UniqueConstraintInstanceRemove {
		return nil
	}
	if c.UniqueType == "" {
		return apperr.Validation(nil, "EVENT-Unique02", "unique type must not be empty")
	}
	if c.UniqueField == "" {
		return apperr.Validation(nil, "EVENT-Unique03", "unique field must not be empty")
	}
	return nil
}
