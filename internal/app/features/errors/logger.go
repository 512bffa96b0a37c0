// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"go.uber.org/zap"
)

// ErrorLogger couples error logging with error rendering so handlers can
// report a failure in one call.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger backed by the given zap logger.
func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: log}
}

// Internal logs err with the operation name and renders a generic 500.
func (e *ErrorLogger) Internal(w http.ResponseWriter, op string, err error) {
	e.log.Error(op, zap.Error(err))
	RenderInternal(w)
}

// BadRequest logs at debug level and renders a 400 with the message.
func (e *ErrorLogger) BadRequest(w http.ResponseWriter, op string, err error) {
	e.log.Debug(op, zap.Error(err))
	RenderBadRequest(w, err.Error())
}
