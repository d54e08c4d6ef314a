package query

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-bankfeed/core"
	goerrors "github.com/goliatone/go-errors"
)

// queryDependencyError reports a query handler invoked before its reader was wired.
func queryDependencyError(message string) error {
	err := goerrors.New(message, goerrors.CategoryInternal)
	return err.WithCode(http.StatusInternalServerError).
		WithTextCode(core.BankfeedErrorInternal)
}

// queryRequiredField flags a blank message field, deriving the human message
// from the wire field name.
func queryRequiredField(field string) error {
	return queryValidationError(field, strings.ReplaceAll(field, "_", " ")+" is required")
}

func queryValidationError(field, message string) error {
	err := goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	})
	return err.WithCode(http.StatusBadRequest).
		WithTextCode(core.BankfeedErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}
