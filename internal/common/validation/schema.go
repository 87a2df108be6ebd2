// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"franchise-ledger/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Validate checks a decoded job payload against a JSON schema expressed
// as a Go map. Returns a VALIDATION_FAILED StandardError listing every
// violated constraint, or nil when the payload conforms.
func Validate(document map[string]interface{}, schema map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.NewValidationError(fmt.Sprintf("schema validation error: %v", err))
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resErr := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", resErr.Field(), resErr.Description()))
	}
	return errors.NewValidationError(strings.Join(details, "; "))
}

// Object is a shorthand for building object schemas.
func Object(required []string, properties map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"required":   required,
		"properties": properties,
	}
}

// String constrains a property to a non-empty string.
func String() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

// Integer constrains a property to an integer with a minimum.
func Integer(minimum int64) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "minimum": minimum}
}

// Enum constrains a string property to a fixed value set.
func Enum(values ...string) map[string]interface{} {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return map[string]interface{}{"type": "string", "enum": vals}
}
