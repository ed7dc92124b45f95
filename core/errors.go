package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	LeadsErrorBadInput          = "LEADS_BAD_INPUT"
	LeadsErrorNotFound          = "LEADS_NOT_FOUND"
	LeadsErrorDuplicateSchedule = "LEADS_DUPLICATE_SCHEDULE"
	LeadsErrorLeadClosed        = "LEADS_LEAD_CLOSED"
	LeadsErrorUnknownPhone      = "LEADS_UNKNOWN_PHONE"
	LeadsErrorTransientSend     = "LEADS_TRANSIENT_SEND"
	LeadsErrorSchemaMissing     = "LEADS_SCHEMA_MISSING"
	LeadsErrorInvalidTransition = "LEADS_INVALID_TRANSITION"
	LeadsErrorInvalidToken      = "LEADS_INVALID_TOKEN"
	LeadsErrorInternal          = "LEADS_INTERNAL_ERROR"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

func NewDuplicateScheduleError(message string) *goerrors.Error {
	return newLeadsError(message, goerrors.CategoryConflict, LeadsErrorDuplicateSchedule)
}

func NewLeadClosedError(leadID string) *goerrors.Error {
	return newLeadsError("core: lead is already closed", goerrors.CategoryConflict, LeadsErrorLeadClosed).
		WithMetadata(map[string]any{"lead_id": strings.TrimSpace(leadID)})
}

func NewUnknownPhoneError(phone string) *goerrors.Error {
	return newLeadsError("core: no open follow-up matches phone", goerrors.CategoryNotFound, LeadsErrorUnknownPhone).
		WithMetadata(map[string]any{"phone": strings.TrimSpace(phone)})
}

func NewTransientSendError(cause error, channel string) *goerrors.Error {
	err := goerrors.Wrap(cause, goerrors.CategoryExternal, "core: outbound send failed").
		WithTextCode(LeadsErrorTransientSend).
		WithMetadata(map[string]any{"channel": channel})
	return ensureLeadsErrorEnvelope(err)
}

func NewSchemaMissingError(cause error, relation string) *goerrors.Error {
	err := goerrors.Wrap(cause, goerrors.CategoryInternal, "core: expected relation is missing").
		WithTextCode(LeadsErrorSchemaMissing).
		WithMetadata(map[string]any{"relation": relation})
	return ensureLeadsErrorEnvelope(err)
}

func NewInvalidTransitionError(from UnlockStatus, to UnlockStatus) *goerrors.Error {
	return newLeadsError("core: unlock status transition is not allowed", goerrors.CategoryConflict, LeadsErrorInvalidTransition).
		WithMetadata(map[string]any{"from": string(from), "to": string(to)})
}

func NewInvalidTokenError(message string) *goerrors.Error {
	return newLeadsError(message, goerrors.CategoryAuth, LeadsErrorInvalidToken)
}

func IsDuplicateSchedule(err error) bool { return hasTextCode(err, LeadsErrorDuplicateSchedule) }

func IsLeadClosed(err error) bool { return hasTextCode(err, LeadsErrorLeadClosed) }

func IsUnknownPhone(err error) bool { return hasTextCode(err, LeadsErrorUnknownPhone) }

func IsTransientSend(err error) bool { return hasTextCode(err, LeadsErrorTransientSend) }

func IsSchemaMissing(err error) bool { return hasTextCode(err, LeadsErrorSchemaMissing) }

func IsInvalidTransition(err error) bool { return hasTextCode(err, LeadsErrorInvalidTransition) }

func IsInvalidToken(err error) bool { return hasTextCode(err, LeadsErrorInvalidToken) }

// isNotFound matches both the mapped envelope and raw store errors.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, LeadsErrorNotFound) || hasTextCode(err, LeadsErrorUnknownPhone) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func leadsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureLeadsErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such column"),
		strings.Contains(msg, "does not exist") && (strings.Contains(msg, "relation") || strings.Contains(msg, "column")):
		return newLeadsError(err.Error(), goerrors.CategoryInternal, LeadsErrorSchemaMissing)
	case strings.Contains(msg, "already closed"):
		return newLeadsError(err.Error(), goerrors.CategoryConflict, LeadsErrorLeadClosed)
	case strings.Contains(msg, "not found"):
		return newLeadsError(err.Error(), goerrors.CategoryNotFound, LeadsErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newLeadsError(err.Error(), goerrors.CategoryBadInput, LeadsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureLeadsErrorEnvelope(mapped)
}

func newLeadsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureLeadsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureLeadsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = leadsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultLeadsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultLeadsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return LeadsErrorBadInput
	case goerrors.CategoryNotFound:
		return LeadsErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return LeadsErrorInvalidToken
	case goerrors.CategoryConflict:
		return LeadsErrorInvalidTransition
	case goerrors.CategoryExternal:
		return LeadsErrorTransientSend
	default:
		return LeadsErrorInternal
	}
}

func leadsHTTPStatus(category goerrors.Category) int {
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
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
