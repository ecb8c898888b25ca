// Package validator runs the per-question validation pipeline: structural
// check, then required check, then declared rules, stopping at the first failure.
package validator

import (
	"onboarding-flow/internal/common/errors"
	"onboarding-flow/internal/common/validation"
	"onboarding-flow/internal/models"
)

const requiredMessage = "This field is required"

// AddressFields are the subfields every address answer must fill.
var AddressFields = []string{"zipCode", "streetName", "neighborhood", "city", "state"}

// MinZipDigits is the unmasked length of a CEP.
const MinZipDigits = 8

// Validate checks value as the answer to q. It returns nil when valid, a
// STRUCTURAL_INVALID error with a per-subfield map for composite answers, or a
// VALIDATION_FAILED error with a single message.
func Validate(q models.Question, value interface{}) *errors.StandardError {
	if !models.IsEmpty(value) {
		if subErrors := structural(q, value); len(subErrors) > 0 {
			return errors.NewStructuralError(q.Field, subErrors)
		}
	}

	if models.IsEmpty(value) {
		if q.Required {
			return errors.NewValidationError(q.Field, requiredMessage)
		}
		return nil
	}

	for _, rule := range q.Validation {
		if msg := validation.CheckRule(rule, value); msg != "" {
			return errors.NewValidationError(q.Field, msg)
		}
	}
	return nil
}

// Valid reports whether the stored answer of q passes Validate.
func Valid(q models.Question, answers models.Answers) bool {
	return Validate(q, answers[q.Field]) == nil
}

func structural(q models.Question, value interface{}) map[string]string {
	switch q.Type {
	case models.TypeAddress:
		return addressErrors(value)
	}
	return nil
}

func addressErrors(value interface{}) map[string]string {
	addr, ok := value.(map[string]interface{})
	if !ok {
		out := map[string]string{}
		for _, f := range AddressFields {
			out[f] = requiredMessage
		}
		return out
	}

	out := map[string]string{}
	for _, f := range AddressFields {
		if models.IsEmpty(addr[f]) {
			out[f] = requiredMessage
		}
	}
	if _, missing := out["zipCode"]; !missing {
		if len(validation.Digits(validation.Stringify(addr["zipCode"]))) < MinZipDigits {
			out["zipCode"] = "ZIP code must have 8 digits"
		}
	}
	return out
}
