// Package http serves the JSON API, the embedded dashboard and the ops
// endpoints.
//
// This file implements the Builder Pattern for the API response envelope.
// Every JSON response has the shape {success, data?, message?, error?}.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"carteira/internal/auth"
	"carteira/internal/core"
	applog "carteira/internal/log"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ResponseBuilder provides a fluent API for building enveloped responses.
type ResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewResponse creates a successful response builder with 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		envelope:   Envelope{Success: true},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Data sets the payload.
func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.envelope.Data = v
	return b
}

// Message sets a human readable message.
func (b *ResponseBuilder) Message(msg string) *ResponseBuilder {
	b.envelope.Message = msg
	return b
}

// Fail marks the response as failed with the given error string.
func (b *ResponseBuilder) Fail(code int, errMsg string) *ResponseBuilder {
	b.statusCode = code
	b.envelope.Success = false
	b.envelope.Error = errMsg
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.statusCode == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(b.envelope)
}

// OK writes data with 200.
func OK(w http.ResponseWriter, data any) {
	NewResponse().Data(data).Write(w)
}

// Created writes data with 201.
func Created(w http.ResponseWriter, data any) {
	NewResponse().Status(http.StatusCreated).Data(data).Write(w)
}

// ErrorResponse creates a failed response with the given status and message.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Fail(statusCode, message)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 response with a bearer challenge.
func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).
		Header("WWW-Authenticate", `Bearer realm="carteira"`)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidPeriod), errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorType(status int, err error) string {
	switch {
	case errors.Is(err, core.ErrDataIntegrity):
		return applog.ErrorTypeIntegrity
	case status == http.StatusGatewayTimeout:
		return applog.ErrorTypeTimeout
	default:
		return applog.ErrorTypeInternal
	}
}

// WriteError maps err to a status and writes it. Server-side failures are
// logged and answered with a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status < http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		b := ErrorResponse(status, err.Error())
		if status == http.StatusUnauthorized {
			b = UnauthorizedError(err.Error())
		}
		b.Write(w)
		return
	}

	logger := applog.FromContext(r.Context())
	logger.ErrorContext(r.Context(), "Request failed",
		applog.FieldError, err,
		applog.FieldErrorType, errorType(status, err),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)

	msg := "internal error"
	if status == http.StatusGatewayTimeout {
		msg = "request timed out"
	}
	ErrorResponse(status, msg).Write(w)
}
