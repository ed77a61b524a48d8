package errx

import "net/http"

// Type represents the category of error
type Type string

const (
	TypeInternal      Type = "INTERNAL"
	TypeValidation    Type = "VALIDATION"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeForbidden     Type = "FORBIDDEN"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeExternal      Type = "EXTERNAL"
)

func (t Type) String() string {
	return string(t)
}

// HTTPStatus is the default status for errors created without a registry.
func (t Type) HTTPStatus() int {
	switch t {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeAuthorization:
		return http.StatusUnauthorized
	case TypeForbidden:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
