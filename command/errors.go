package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/thegiantbeast/momentus-shop-api/core"
)

func commandDependencyError(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.OrdersErrorInternal)
}

func commandWrapValidation(err error, message string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.OrdersErrorBadInput)
}
