package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

const (
	codeNotFound        = "NOT_FOUND"
	codeForbidden       = "FORBIDDEN"
	codeDuplicate       = "DUPLICATE"
	codeValidation      = "VALIDATION_ERROR"
	codeDatabase        = "DATABASE_ERROR"
	codeUnauthorized    = "UNAUTHORIZED"
	codeContactMismatch = "CONTACT_MISMATCH"
	codeDuplicateField  = "DUPLICATE_FIELD"
	codeCooldown        = "COOLDOWN_ACTIVE"
	codeConfiguration   = "CONFIGURATION_ERROR"
	codeAIGeneration    = "AI_GENERATION_ERROR"
	codeTemplate        = "TEMPLATE_ERROR"
	codeUserExists      = "USER_EXISTS"
	codeInvalidCreds    = "INVALID_CREDENTIALS"
	codeInvalidAPIKey   = "INVALID_API_KEY"
	codeAPIKeyRevoked   = "API_KEY_REVOKED"
	codeAPIKeyExpired   = "API_KEY_EXPIRED"
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

func notFound(entity string) *DomainError {
	return domainError(http.StatusNotFound, codeNotFound, entity+" not found", nil)
}

func forbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, codeForbidden, message, nil)
}

func duplicate(message string) *DomainError {
	return domainError(http.StatusConflict, codeDuplicate, message, nil)
}

func invalid(message string) *DomainError {
	return domainError(http.StatusBadRequest, codeValidation, message, nil)
}

func unauthorized(code, message string) *DomainError {
	return domainError(http.StatusUnauthorized, code, message, nil)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsKind reports whether err is a DomainError carrying code.
func IsKind(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
