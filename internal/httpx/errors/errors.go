package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, útil para logs, no se expone al cliente
}

// Error implementa la interfaz error.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail agrega detalles adicionales al error.
// Devuelve una COPIA del error para no mutar las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA del error.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithStatus devuelve una COPIA con otro status HTTP pero el mismo cuerpo.
// Usado para mantener cuerpos byte-idénticos entre 403 y 404 (ver ErrResourceHidden).
func (e *AppError) WithStatus(status int) *AppError {
	newErr := *e
	newErr.HTTPStatus = status
	return &newErr
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrUnauthenticated cubre TODO fallo de autenticación: token ausente,
	// malformado, expirado, firma inválida o revocado. El motivo concreto
	// nunca se distingue hacia el cliente, solo queda en logs/auditoría.
	ErrUnauthenticated = &AppError{
		Code:       "UNAUTHENTICATED",
		Message:    "No autenticado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrForbidden es la denegación de autorización genérica (403).
	// El motivo (missing tenant, cross-tenant) queda solo en la auditoría.
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Acceso denegado.",
		HTTPStatus: http.StatusForbidden,
	}

	// ErrResourceHidden se usa tanto para recursos inexistentes (404) como para
	// accesos cross-tenant denegados (403, via WithStatus). El cuerpo debe ser
	// byte-idéntico en ambos casos para no filtrar la existencia del recurso
	// en otro tenant (anti tenant-enumeration).
	ErrResourceHidden = &AppError{
		Code:       "RESOURCE_UNAVAILABLE",
		Message:    "El recurso no existe o no está disponible.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrTenantSuspended = &AppError{
		Code:       "TENANT_SUSPENDED",
		Message:    "La institución se encuentra suspendida.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Método HTTP no permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrTooManyRequests = &AppError{
		Code:       "TOO_MANY_REQUESTS",
		Message:    "Demasiadas solicitudes. Intente nuevamente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "Error interno del servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
