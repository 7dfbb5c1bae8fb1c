// Package validators provides field-level input validation with results
// that convert into the coded error taxonomy. Validation reads nothing
// and is always the first stage of a command.
package validators

import (
	"github.com/authapp/zitadel-sub003/pkg/apperr"
)

// ValidationCode classifies the outcome of a single field validation.
type ValidationCode string

const (
	ValidationCodeUnspecified ValidationCode = "unspecified"
	ValidationCodeSuccess     ValidationCode = "success"
	ValidationCodeRequired    ValidationCode = "required"
	ValidationCodeInvalid     ValidationCode = "invalid"
)

// ValidationOption customizes a ValidationResult.
type ValidationOption func(*ValidationResult)

// ValidationResult is the outcome of validating one field. Value holds
// what is safe to echo back; secrets are masked before they get here.
type ValidationResult struct {
	IsValid         bool           `json:"is_valid"`
	FieldName       string         `json:"field_name"`
	Value           string         `json:"value"`
	Message         string         `json:"message"`
	SuggestedAction string         `json:"suggested_action"`
	ValidationCode  ValidationCode `json:"validation_code"`
}

// WithValue sets the echoed value.
func WithValue(value string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Value = value
	}
}

// WithMaskedValue sets the echoed value in masked form.
func WithMaskedValue(value string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Value = MaskString(value)
	}
}

// WithMessage sets the human-readable failure message.
func WithMessage(message string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.Message = message
	}
}

// WithSuggestedAction tells the caller how to fix the input.
func WithSuggestedAction(action string) ValidationOption {
	return func(vr *ValidationResult) {
		vr.SuggestedAction = action
	}
}

// WithValidationCode sets the outcome classification.
func WithValidationCode(code ValidationCode) ValidationOption {
	return func(vr *ValidationResult) {
		vr.ValidationCode = code
	}
}

// NewValidationResult creates a result and applies the options.
func NewValidationResult(isValid bool, fieldName string, options ...ValidationOption) *ValidationResult {
	vr := &ValidationResult{
		IsValid:        isValid,
		FieldName:      fieldName,
		ValidationCode: ValidationCodeUnspecified,
	}
	for _, option := range options {
		option(vr)
	}
	return vr
}

// ToError converts a failed result into a coded validation error, nil
// when the result is valid.
func (vr *ValidationResult) ToError(code string) error {
	if vr.IsValid {
		return nil
	}
	return apperr.Validation(nil, code, vr.Message).
		With("field_name", vr.FieldName).
		With("value", vr.Value).
		With("suggested_action", vr.SuggestedAction)
}

// FieldValidations groups results by field name.
type FieldValidations struct {
	FieldName   string              `json:"field_name"`
	Validations []*ValidationResult `json:"validations"`
}

// HasErrors reports whether any result of this field is invalid.
func (f *FieldValidations) HasErrors() bool {
	for _, validation := range f.Validations {
		if !validation.IsValid {
			return true
		}
	}
	return false
}

// FieldValidationResults is a collection of field validations.
type FieldValidationResults []*FieldValidations

// HasErrors reports whether any field has validation errors.
func (f FieldValidationResults) HasErrors() bool {
	for _, fieldValidation := range f {
		if fieldValidation.HasErrors() {
			return true
		}
	}
	return false
}

// ValidationBuilder collects results across fields.
type ValidationBuilder struct {
	order   []string
	results map[string][]*ValidationResult
}

// NewValidationBuilder creates an empty builder.
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{results: make(map[string][]*ValidationResult)}
}

// Add records a result, applying further options first.
func (b *ValidationBuilder) Add(result *ValidationResult, options ...ValidationOption) *ValidationBuilder {
	for _, option := range options {
		option(result)
	}
	if _, ok := b.results[result.FieldName]; !ok {
		b.order = append(b.order, result.FieldName)
	}
	b.results[result.FieldName] = append(b.results[result.FieldName], result)
	return b
}

// Build returns all results grouped by field, in insertion order.
func (b *ValidationBuilder) Build() FieldValidationResults {
	fieldValidations := make(FieldValidationResults, 0, len(b.order))
	for _, fieldName := range b.order {
		fieldValidations = append(fieldValidations, &FieldValidations{
			FieldName:   fieldName,
			Validations: b.results[fieldName],
		})
	}
	return fieldValidations
}

// FirstError returns the first failed result as a coded error, nil when
// everything passed.
func (b *ValidationBuilder) FirstError(code string) error {
	for _, fieldName := range b.order {
		for _, result := range b.results[fieldName] {
			if !result.IsValid {
				return result.ToError(code)
			}
		}
	}
	return nil
}
