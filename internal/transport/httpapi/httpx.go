package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"custodyledger/pkg/domain"
)

type requestIDKey struct{}

func newRequestID() string { return "req_" + uuid.NewString() }

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return newRequestID()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes a request body, rejecting unknown fields. An empty body
// leaves dst untouched.
func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type errorBody struct {
	RequestID string      `json:"request_id"`
	Error     errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]string) {
	writeJSON(w, status, errorBody{
		RequestID: requestID(r.Context()),
		Error:     errorDetail{Code: code, Message: message, Details: details},
	})
}

// writeLedgerError maps a ledger error to its HTTP status and payload.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.CodeOf(err)
	var details map[string]string
	var le *domain.Error
	if errors.As(err, &le) {
		details = le.Metadata
	}
	status := statusFor(code)
	if code == domain.CodeReentrantCall {
		w.Header().Set("Retry-After", "1")
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, r, status, string(code), message, details)
}

func statusFor(code domain.Code) int {
	switch code {
	case domain.CodeInvalidArgument:
		return http.StatusBadRequest
	case domain.CodeAccessDenied:
		return http.StatusForbidden
	case domain.CodeNotAMember, domain.CodeUnknownItem:
		return http.StatusNotFound
	case domain.CodeAlreadyRegistered, domain.CodeInvalidStateTransition:
		return http.StatusConflict
	case domain.CodeIntegrityMismatch, domain.CodePriceMismatch:
		return http.StatusUnprocessableEntity
	case domain.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case domain.CodeTransferFailed:
		return http.StatusBadGateway
	case domain.CodeReentrantCall:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
