// internal/common/camunda/variables.go
package camunda

import (
	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/validation"
)

// ValidateVariables checks job variables against an activity's input schema.
// A nil schema accepts everything.
func ValidateVariables(schema *validation.Schema, variables string) error {
	if schema == nil {
		return nil
	}
	if variables == "" {
		variables = "{}"
	}

	result, err := schema.ValidateJSON([]byte(variables))
	if err != nil {
		return errors.NewValidationError(map[string]string{"variables": err.Error()})
	}
	if !result.Valid {
		return errors.NewValidationError(result.GetErrorMessages())
	}
	return nil
}
