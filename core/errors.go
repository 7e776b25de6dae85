package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	OrdersErrorBadInput        = "ORDERS_BAD_INPUT"
	OrdersErrorRemoteFailed    = "ORDERS_REMOTE_FAILED"
	OrdersErrorMailFailed      = "ORDERS_MAIL_FAILED"
	OrdersErrorTemplateMissing = "ORDERS_TEMPLATE_MISSING"
	OrdersErrorUnauthorized    = "ORDERS_UNAUTHORIZED"
	OrdersErrorInternal        = "ORDERS_INTERNAL_ERROR"
)

func ordersError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(ordersTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ordersWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	if source == nil {
		return ordersError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(ordersTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ordersTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return OrdersErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return OrdersErrorUnauthorized
	case goerrors.CategoryExternal:
		return OrdersErrorRemoteFailed
	case goerrors.CategoryOperation:
		return OrdersErrorMailFailed
	case goerrors.CategoryNotFound:
		return OrdersErrorTemplateMissing
	default:
		return OrdersErrorInternal
	}
}

// MapError normalizes any error into a rich envelope with an HTTP code and
// text code, so transports and alerting render failures uniformly.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureOrdersErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "usererrors"), strings.Contains(msg, "remote"):
		return newOrdersError(err.Error(), goerrors.CategoryExternal)
	case strings.Contains(msg, "mail"), strings.Contains(msg, "delivery id"):
		return newOrdersError(err.Error(), goerrors.CategoryOperation)
	case strings.Contains(msg, "template"):
		return newOrdersError(err.Error(), goerrors.CategoryNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "decode"):
		return newOrdersError(err.Error(), goerrors.CategoryBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureOrdersErrorEnvelope(mapped)
}

func newOrdersError(message string, category goerrors.Category) *goerrors.Error {
	return ensureOrdersErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(ordersTextCode(category)),
	)
}

func ensureOrdersErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = ordersHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = ordersTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func ordersHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
