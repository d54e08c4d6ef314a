package command

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-bankfeed/core"
	goerrors "github.com/goliatone/go-errors"
)

// commandDependencyError reports a handler invoked before its service was wired.
func commandDependencyError(message string) error {
	err := goerrors.New(message, goerrors.CategoryInternal)
	return err.WithCode(http.StatusInternalServerError).
		WithTextCode(core.BankfeedErrorInternal)
}

// commandRequiredField flags a blank message field, deriving the human message
// from the wire field name.
func commandRequiredField(field string) error {
	return commandValidationError(field, strings.ReplaceAll(field, "_", " ")+" is required")
}

func commandValidationError(field, message string) error {
	err := goerrors.NewValidation("command: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	})
	return err.WithCode(http.StatusBadRequest).
		WithTextCode(core.BankfeedErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}
