package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joelkehle/agrichain-advisor/internal/engine"
	"github.com/joelkehle/agrichain-advisor/internal/simulator"
	"github.com/joelkehle/agrichain-advisor/internal/store"
	"github.com/joelkehle/agrichain-advisor/internal/training"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

// Error is a failure with a fixed HTTP status. Bodies stay {"error": Message}.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

func validationError(format string, args ...any) error {
	return newError(CodeValidation, fmt.Sprintf(format, args...))
}

// classify maps domain errors onto an *Error.
func classify(err error) *Error {
	var he *Error
	if errors.As(err, &he) {
		return he
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return newError(CodeValidation, ve.Error())
	}
	var pe *simulator.ParamError
	if errors.As(err, &pe) {
		return newError(CodeValidation, pe.Error())
	}
	if errors.Is(err, store.ErrInvalid) {
		return newError(CodeValidation, err.Error())
	}
	if errors.Is(err, training.ErrNoTrainer) {
		return newError(CodeInternal, "Training module not found: "+err.Error())
	}
	return newError(CodeInternal, err.Error())
}

func writeError(w http.ResponseWriter, err error) {
	e := classify(err)
	payload := map[string]any{"error": e.Message}
	if errors.Is(err, training.ErrNoTrainer) {
		payload["instructions"] = "Set TRAIN_COMMAND (or training.command) to a program that reads the request body on stdin and prints a model artifact"
	}
	writeJSON(w, e.Status, payload)
}
