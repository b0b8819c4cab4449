package models

import (
	"errors"
	"net/http"
)

// ErrorCode representa el código de error
type ErrorCode string

const (
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrorCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrorCodeConflict         ErrorCode = "CONFLICT"
	ErrorCodeUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorCodeInternal         ErrorCode = "INTERNAL"
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"
	ErrorCodeTooLarge         ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrorCodeUnavailable      ErrorCode = "SERVICE_UNAVAILABLE"
)

// ErrorKind clasifica los errores de dominio
type ErrorKind string

const (
	KindClientInput ErrorKind = "client_input"
	KindAuth        ErrorKind = "auth"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindUpstream    ErrorKind = "upstream"
	KindInternal    ErrorKind = "internal"
)

// ErrorDetail representa un detalle específico del error
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// UpstreamDetails acompaña a los errores del proveedor contable
type UpstreamDetails struct {
	Status int    `json:"status"`
	Body   string `json:"body,omitempty"`
}

// ErrorResponse representa la respuesta de error estandarizada
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// AppError implementa la interfaz error con la categoría HTTP del fallo
type AppError struct {
	Kind    ErrorKind
	Message string
	Details interface{}
	Err     error
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode traduce la categoría al código HTTP
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code retorna el código de error público
func (e *AppError) Code() ErrorCode {
	switch e.Kind {
	case KindClientInput:
		return ErrorCodeInvalidRequest
	case KindAuth:
		return ErrorCodeUnauthorized
	case KindNotFound:
		return ErrorCodeNotFound
	case KindConflict:
		return ErrorCodeConflict
	case KindUpstream:
		return ErrorCodeUpstream
	default:
		return ErrorCodeInternal
	}
}

// NewValidationError crea un error de validación con detalles
func NewValidationError(message string, details ...ErrorDetail) *AppError {
	e := &AppError{Kind: KindClientInput, Message: message}
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

// NewUnauthorizedError crea un error de autenticación
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindAuth, Message: message}
}

// NewNotFoundError crea un error de recurso no encontrado
func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// NewConflictError crea un error de conflicto (checksum duplicado)
func NewConflictError(message string, details interface{}) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Details: details}
}

// NewUpstreamError envuelve un fallo del proveedor contable conservando su cuerpo
func NewUpstreamError(message string, status int, body string, err error) *AppError {
	return &AppError{
		Kind:    KindUpstream,
		Message: message,
		Details: UpstreamDetails{Status: status, Body: body},
		Err:     err,
	}
}

// NewInternalError crea un error interno del servidor
func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// AsAppError extrae un AppError de la cadena de errores
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind indica si err contiene un AppError de la categoría dada
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Kind == kind
}

// NewErrorResponse construye el cuerpo JSON para un error arbitrario
func NewErrorResponse(err error) (int, ErrorResponse) {
	if appErr, ok := AsAppError(err); ok {
		return appErr.StatusCode(), ErrorResponse{
			Error:   appErr.Error(),
			Code:    string(appErr.Code()),
			Details: appErr.Details,
		}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error: "Internal server error",
		Code:  string(ErrorCodeInternal),
	}
}

// NewMessageResponse construye un cuerpo de error sin AppError asociado
func NewMessageResponse(code ErrorCode, message string) ErrorResponse {
	return ErrorResponse{Error: message, Code: string(code)}
}
