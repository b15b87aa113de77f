package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	pkghttp "github.com/BradenHooton/projectgrid/pkg/http"
	"github.com/go-playground/validator/v10"
)

// ValidationErrorResponse represents a validation error with field-level details
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report the JSON name of a field rather than the Go name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateRequest validates a request struct using go-playground/validator.
// It returns a user-friendly error describing the first failing field.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		first := ValidationErrorResponse{Field: ve[0].Field(), Message: formatValidationError(ve[0])}
		return fmt.Errorf("%s: %s", first.Field, first.Message)
	}
	return fmt.Errorf("validation failed: %w", err)
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "uuid":
		return "must be a valid id"
	case "hexcolor":
		return "must be a hex color such as #0066cc"
	case "dive":
		return "contains an invalid value"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// decodeRequest decodes and validates a JSON body, writing a 400 on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := pkghttp.DecodeJSON(w, r, dst); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, pkghttp.ErrEmptyBody) {
			msg = "Request body is required"
		}
		pkghttp.WriteError(w, http.StatusBadRequest, "ValidationError", "invalid_body", msg)
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, "ValidationError", "validation_failed", err.Error())
		return false
	}
	return true
}
