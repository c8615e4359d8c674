package rest

import (
	stderrors "errors"
	"fmt"

	"support-chat/errors"

	"github.com/gofiber/fiber/v2"
)

const (
	codeNotFound     = "not_found"
	codeForbidden    = "forbidden"
	codeUnauthorized = "unauthorized"
	codeValidation   = "validation"
	codeTransport    = "transport"
	codeRateLimited  = "rate_limited"
	codeInternal     = "internal"
)

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// statusOf maps a failure category to its HTTP status and wire code.
func statusOf(err error) (int, string) {
	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, errors.ErrInvalidSession):
		return fiber.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, errors.ErrNotFound):
		return fiber.StatusNotFound, codeNotFound
	case errors.Is(err, errors.ErrForbidden):
		return fiber.StatusForbidden, codeForbidden
	case errors.Is(err, errors.ErrValidation):
		return fiber.StatusUnprocessableEntity, codeValidation
	case errors.Is(err, errors.ErrTransport):
		return fiber.StatusBadGateway, codeTransport
	case stderrors.As(err, &fiberErr):
		switch fiberErr.Code {
		case fiber.StatusNotFound:
			return fiberErr.Code, codeNotFound
		case fiber.StatusTooManyRequests:
			return fiberErr.Code, codeRateLimited
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
			return fiberErr.Code, codeValidation
		}
		return fiberErr.Code, codeInternal
	default:
		return fiber.StatusInternalServerError, codeInternal
	}
}

// categoryOf turns an error body received by the client back into a categorized error.
func categoryOf(status int, body errorBody) error {
	var category error
	switch body.Code {
	case codeNotFound:
		category = errors.ErrNotFound
	case codeUnauthorized:
		category = errors.ErrInvalidSession
	case codeForbidden:
		category = errors.ErrForbidden
	case codeValidation:
		category = errors.ErrValidation
	default:
		category = errors.ErrTransport
	}
	if body.Error == "" {
		return fmt.Errorf("%w: status %d", category, status)
	}
	return fmt.Errorf("%w: %s", category, body.Error)
}
