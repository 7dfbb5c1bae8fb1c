package validators

import (
	"fmt"

	"github.com/authapp/zitadel-sub003/pkg/password"
)

// ValidatePassword requires a non-empty password above the entropy
// floor. The echoed value is always masked.
func ValidatePassword(fieldName string, value string) *ValidationResult {
	userFriendlyName := ToUserFriendlyName(fieldName)

	if len(value) == 0 {
		return NewValidationResult(false, fieldName,
			WithValue(MaskPassword(value)),
			WithMessage(fmt.Sprintf("%s is required", userFriendlyName)),
			WithSuggestedAction(fmt.Sprintf("Please provide a valid %s.", userFriendlyName)),
			WithValidationCode(ValidationCodeRequired),
		)
	}
	if password.ValidateStrength(value) != nil {
		return NewValidationResult(false, fieldName,
			WithValue(MaskPassword(value)),
			WithMessage(fmt.Sprintf("%s is too weak", userFriendlyName)),
			WithSuggestedAction(fmt.Sprintf("Please provide a stronger %s.", userFriendlyName)),
			WithValidationCode(ValidationCodeInvalid),
		)
	}
	return NewValidationResult(true, fieldName,
		WithValue(MaskPassword(value)),
		WithValidationCode(ValidationCodeSuccess),
	)
}
