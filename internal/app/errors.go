package app

import (
	"errors"
	"fmt"
	"net/http"

	"linkbird/api/internal/data"
	"linkbird/api/internal/nav"
	"linkbird/api/internal/session"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var errUnauthenticated = domainError(http.StatusUnauthorized, "UNAUTHENTICATED", "Sign in required", nil)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var dataErr *data.Error
	if errors.As(err, &dataErr) {
		switch dataErr.Kind {
		case data.NotFound:
			return http.StatusNotFound, "NOT_FOUND", dataErr.Message, nil
		case data.ValidationFailed:
			return http.StatusUnprocessableEntity, "VALIDATION_FAILED", dataErr.Message, nil
		default:
			return http.StatusBadGateway, string(dataErr.Kind), dataErr.Message, map[string]any{"op": dataErr.Op}
		}
	}
	if errors.Is(err, session.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	}
	if errors.Is(err, nav.ErrUnknownPage) {
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Unknown page", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
