package validators

import (
	"fmt"

	"github.com/asaskevich/govalidator"
)

// ValidateEmail requires a syntactically valid email address.
func ValidateEmail(fieldName string, value string) *ValidationResult {
	userFriendlyName := ToUserFriendlyName(fieldName)

	if len(value) == 0 {
		return NewValidationResult(false, fieldName,
			WithValue(value),
			WithMessage(fmt.Sprintf("%s is required", userFriendlyName)),
			WithSuggestedAction("Please provide a valid email address, e.g., 'name@example.com'."),
			WithValidationCode(ValidationCodeRequired),
		)
	}
	if !govalidator.IsEmail(value) {
		return NewValidationResult(false, fieldName,
			WithValue(value),
			WithMessage(fmt.Sprintf("Please enter a valid %s", userFriendlyName)),
			WithSuggestedAction("Please provide a valid email address, e.g., 'name@example.com'."),
			WithValidationCode(ValidationCodeInvalid),
		)
	}
	return NewValidationResult(true, fieldName,
		WithValue(value),
		WithValidationCode(ValidationCodeSuccess),
	)
}
