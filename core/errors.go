package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BankfeedErrorBadInput            = "BANKFEED_BAD_INPUT"
	BankfeedErrorNotFound            = "BANKFEED_NOT_FOUND"
	BankfeedErrorOwnershipDenied     = "BANKFEED_OWNERSHIP_DENIED"
	BankfeedErrorNotConnected        = "BANKFEED_NOT_CONNECTED"
	BankfeedErrorMissingRefreshToken = "BANKFEED_MISSING_REFRESH_TOKEN"
	BankfeedErrorRefreshLocked       = "BANKFEED_REFRESH_LOCKED"
	BankfeedErrorAdapterNotFound     = "BANKFEED_ADAPTER_NOT_REGISTERED"
	BankfeedErrorAdapterUnconfigured = "BANKFEED_ADAPTER_NOT_CONFIGURED"
	BankfeedErrorUpstreamFailed      = "BANKFEED_UPSTREAM_FAILED"
	BankfeedErrorCipherFailed        = "BANKFEED_CIPHER_FAILED"
	BankfeedErrorInternal            = "BANKFEED_INTERNAL_ERROR"
)

func NewNotFoundError(message string) *goerrors.Error {
	return newBankfeedError(message, goerrors.CategoryNotFound, BankfeedErrorNotFound)
}

func NewOwnershipError(message string) *goerrors.Error {
	return newBankfeedError(message, goerrors.CategoryAuthz, BankfeedErrorOwnershipDenied)
}

func NewNotConnectedError(message string) *goerrors.Error {
	return newBankfeedError(message, goerrors.CategoryConflict, BankfeedErrorNotConnected)
}

func NewMissingRefreshTokenError(message string) *goerrors.Error {
	return newBankfeedError(message, goerrors.CategoryConflict, BankfeedErrorMissingRefreshToken)
}

func NewUpstreamError(message string, cause error) *goerrors.Error {
	wrapped := goerrors.Wrap(cause, goerrors.CategoryOperation, message).
		WithTextCode(BankfeedErrorUpstreamFailed).
		WithCode(http.StatusBadGateway)
	return ensureBankfeedErrorEnvelope(wrapped)
}

func NewCipherError(message string, cause error) *goerrors.Error {
	wrapped := goerrors.Wrap(cause, goerrors.CategoryInternal, message).
		WithTextCode(BankfeedErrorCipherFailed)
	return ensureBankfeedErrorEnvelope(wrapped)
}

func IsNotFound(err error) bool { return hasTextCode(err, BankfeedErrorNotFound) }

func IsOwnershipDenied(err error) bool { return hasTextCode(err, BankfeedErrorOwnershipDenied) }

func IsNotConnected(err error) bool { return hasTextCode(err, BankfeedErrorNotConnected) }

func IsMissingRefreshToken(err error) bool {
	return hasTextCode(err, BankfeedErrorMissingRefreshToken)
}

func IsRefreshLocked(err error) bool { return hasTextCode(err, BankfeedErrorRefreshLocked) }

func IsUpstreamFailure(err error) bool { return hasTextCode(err, BankfeedErrorUpstreamFailed) }

func IsCipherFailure(err error) bool { return hasTextCode(err, BankfeedErrorCipherFailed) }

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

func bankfeedErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBankfeedErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "no rows"):
		return newBankfeedError(err.Error(), goerrors.CategoryNotFound, BankfeedErrorNotFound)
	case strings.Contains(msg, "adapter") && strings.Contains(msg, "not registered"):
		return newBankfeedError(err.Error(), goerrors.CategoryNotFound, BankfeedErrorAdapterNotFound)
	case strings.Contains(msg, "adapter") && strings.Contains(msg, "not configured"):
		return newBankfeedError(err.Error(), goerrors.CategoryConflict, BankfeedErrorAdapterUnconfigured)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newBankfeedError(err.Error(), goerrors.CategoryConflict, BankfeedErrorRefreshLocked)
	case strings.Contains(msg, "decrypt"), strings.Contains(msg, "decode envelope"), strings.Contains(msg, "key id mismatch"), strings.Contains(msg, "key version mismatch"):
		return newBankfeedError(err.Error(), goerrors.CategoryInternal, BankfeedErrorCipherFailed)
	case strings.Contains(msg, "token endpoint"), strings.Contains(msg, "invalid_grant"), strings.Contains(msg, "upstream"):
		return ensureBankfeedErrorEnvelope(
			goerrors.New(err.Error(), goerrors.CategoryOperation).
				WithTextCode(BankfeedErrorUpstreamFailed).
				WithCode(http.StatusBadGateway),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newBankfeedError(err.Error(), goerrors.CategoryBadInput, BankfeedErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBankfeedErrorEnvelope(mapped)
}

func newBankfeedError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBankfeedErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureBankfeedErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = bankfeedHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBankfeedTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBankfeedTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BankfeedErrorBadInput
	case goerrors.CategoryNotFound:
		return BankfeedErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return BankfeedErrorOwnershipDenied
	case goerrors.CategoryConflict:
		return BankfeedErrorNotConnected
	case goerrors.CategoryOperation:
		return BankfeedErrorUpstreamFailed
	default:
		return BankfeedErrorInternal
	}
}

func bankfeedHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
