package handler

import "github.com/mdfe/backend/internal/interfaces/http/dto"

// The types below only exist for the swagger annotations; handlers write
// through BaseHandler, which produces the same envelope.

// APIResponse is the envelope returned by every endpoint
// @Description Envelope carrying either data or an error
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the envelope of a failed call
// @Description Failed call with its error code
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// SuccessResponse acknowledges a call that returns no data
// @Description Bare acknowledgement
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// MessageData wraps a human readable confirmation
type MessageData struct {
	Message string `json:"message"`
}
